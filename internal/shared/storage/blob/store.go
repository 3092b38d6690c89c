package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/util"
)

// SignedURLValidity is the fixed issuance window for download links.
const SignedURLValidity = 7 * 24 * time.Hour

// MaxObjectBytes bounds how much of a blob Fetch will read into memory.
const MaxObjectBytes = 20 << 20

// ErrInvalidPath is wrapped into a write error when a store rejects a path.
var ErrInvalidPath = errors.New("invalid storage path")

// Object is a fetched blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the capability every backing medium implements.
// SignedURL issues a new URL on every call and returns an apperr.ErrNotFound
// wrapped error when nothing is stored at path.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, path string, validity time.Duration) (string, error)
	Fetch(ctx context.Context, path string) (Object, error)
	Delete(ctx context.Context, path string) error
}

// DocumentPath builds users/{ownerID}/documents/{uuid}_{fileName}.
func DocumentPath(ownerID, fileName string) (string, error) {
	owner := strings.TrimSpace(ownerID)
	if owner == "" || strings.ContainsAny(owner, `/\`) || strings.Contains(owner, "..") {
		return "", apperr.Invalid("owner id is not usable in a storage path")
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", apperr.Invalid(err.Error())
	}
	return OwnerPrefix(owner) + "documents/" + uuid.NewString() + "_" + name, nil
}

// OwnerPrefix is the path prefix under which every blob of ownerID lives.
func OwnerPrefix(ownerID string) string {
	return "users/" + ownerID + "/"
}

// CleanPath validates a caller-supplied key and returns its normalized form.
func CleanPath(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" || strings.HasPrefix(trimmed, "/") || strings.Contains(trimmed, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	clean := path.Clean(trimmed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || clean != trimmed {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return clean, nil
}

// NotFound returns the error stores report for a missing blob.
func NotFound(key string) error {
	return fmt.Errorf("blob %s: %w", key, apperr.ErrNotFound)
}

// WithTimeout bounds every call to the wrapped store.
func WithTimeout(store Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return store
	}
	return &timeoutStore{next: store, timeout: timeout}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (s *timeoutStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Put(ctx, path, data, contentType)
}

func (s *timeoutStore) SignedURL(ctx context.Context, path string, validity time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.SignedURL(ctx, path, validity)
}

func (s *timeoutStore) Fetch(ctx context.Context, path string) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Fetch(ctx, path)
}

func (s *timeoutStore) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Delete(ctx, path)
}
