package errors

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrDuplicateEmail = errors.New("email address already registered")
)
