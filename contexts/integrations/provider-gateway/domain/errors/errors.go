package errors

import "errors"

var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrLinkNotFound      = errors.New("external account link not found")
	ErrTokenMissing      = errors.New("provider access token missing")
	ErrTokenExpired      = errors.New("provider access token expired")
	ErrProviderDisabled  = errors.New("provider is not configured")
	ErrInvalidSearchTerm = errors.New("search query has no usable keywords")
)
