package documents

import (
	"fmt"

	"studybuddy-backend/internal/shared/apperr"
)

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = fmt.Errorf("document %w", apperr.ErrNotFound)

	// ErrForbidden indicates the caller does not own the document.
	ErrForbidden = fmt.Errorf("document %w", apperr.ErrUnauthorized)
)
