package chathistory

import (
	"fmt"

	"studybuddy-backend/internal/shared/apperr"
)

// ErrNotFound is returned by repos for a key that was never saved.
var ErrNotFound = fmt.Errorf("chat history %w", apperr.ErrNotFound)
