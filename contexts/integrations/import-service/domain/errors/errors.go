package errors

import "errors"

var (
	ErrJobNotFound  = errors.New("import job not found")
	ErrJobInFlight  = errors.New("an import job is already in flight for this user, provider and scope")
	ErrJobTerminal  = errors.New("import job already reached a terminal status")
	ErrInvalidScope = errors.New("invalid import scope")
)
