package apperr

import (
	"errors"
	"fmt"
)

// Taxonomy shared by every core component. Callers match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrPersistence  = errors.New("persistence unavailable")
)

// ResourceError records which resource and key an upstream or persistence failure concerns.
// Error() includes the wrapped cause for logs; Public() omits it for end callers.
type ResourceError struct {
	Kind     error
	Resource string
	Key      string
	Err      error
}

func (e *ResourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s key=%s", e.Kind, e.Resource, e.Key)
	}
	return fmt.Sprintf("%s: %s key=%s: %v", e.Kind, e.Resource, e.Key, e.Err)
}

// Public returns a message safe to show to callers.
func (e *ResourceError) Public() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", e.Resource, e.Kind)
	}
	return fmt.Sprintf("%s: %s (key %s)", e.Resource, e.Kind, e.Key)
}

// Is matches both the taxonomy kind and any sentinel in the wrapped cause.
func (e *ResourceError) Is(target error) bool {
	return target == e.Kind
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Upstream wraps a blob store, extractor or transcript service failure.
// A cause that is already NotFound or InvalidInput is returned unchanged.
func Upstream(resource, key string, err error) error {
	if passthrough(err) {
		return err
	}
	return &ResourceError{Kind: ErrUpstream, Resource: resource, Key: key, Err: err}
}

// Persistence wraps a metadata store failure.
func Persistence(resource, key string, err error) error {
	if passthrough(err) {
		return err
	}
	return &ResourceError{Kind: ErrPersistence, Resource: resource, Key: key, Err: err}
}

// Invalid returns an InvalidInput error carrying a caller-facing reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

func passthrough(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnauthorized)
}
