package errors

import "errors"

var (
	ErrRuleNotFound       = errors.New("watch rule not found")
	ErrNoSources          = errors.New("rule query requires at least one source")
	ErrUnknownSource      = errors.New("rule query references an unknown provider")
	ErrBlankKeywords      = errors.New("rule query requires at least one non-blank keyword")
	ErrNegativeMaxPrice   = errors.New("rule max price must be non-negative")
	ErrInvalidPollInterval = errors.New("poll interval out of range")
	ErrInvalidRuleName    = errors.New("rule name is required")
)
