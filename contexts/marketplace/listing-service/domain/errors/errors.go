package errors

import "errors"

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrInvalidListing  = errors.New("listing payload is invalid")
	ErrInvalidClick    = errors.New("outbound click is invalid")
)
