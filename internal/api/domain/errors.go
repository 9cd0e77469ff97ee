package domain

import "errors"

// Error taxonomy shared by services and adapters. Wrap with fmt.Errorf("%w: ...")
// to attach detail and match with errors.Is.
var (
	ErrValidation          = errors.New("invalid metadata")
	ErrQuotaExceeded       = errors.New("storage quota exceeded")
	ErrNotFound            = errors.New("file not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrConflict            = errors.New("file already exists")
	ErrUpstreamTransient   = errors.New("upstream temporarily unavailable")
	ErrUpstreamLinkExpired = errors.New("upstream link expired")
	ErrCancelled           = errors.New("upload cancelled")
)
