package errors

import "errors"

var (
	ErrReleaseNotFound     = errors.New("watch release not found")
	ErrDuplicateRelease    = errors.New("watch release already tracked")
	ErrInvalidMatchMode    = errors.New("invalid match mode")
	ErrMissingReleaseID    = errors.New("discogs release id is required")
	ErrMissingMasterID     = errors.New("master_release mode requires a discogs master id")
	ErrInvalidTitle        = errors.New("title must not be blank")
	ErrNegativeTargetPrice = errors.New("target price must not be negative")
)
