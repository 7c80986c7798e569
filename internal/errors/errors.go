package errors

import "errors"

var (
	ErrMissingModelConfig   = errors.New("modelConfig is required")
	ErrInstanceNotFound     = errors.New("instance record not found")
	ErrMissingInstanceID    = errors.New("instance-id is required")
	ErrMissingInstanceState = errors.New("state is required")
	ErrNoInstanceLaunched   = errors.New("provisioning API returned no instances")
	ErrInvalidInstanceID    = errors.New("invalid instance ID format")
)
