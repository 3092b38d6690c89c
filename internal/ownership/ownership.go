// Package ownership holds the single-owner access rule used before every mutation.
package ownership

import (
	"fmt"

	"studybuddy-backend/internal/shared/apperr"
)

// Authorize reports whether requesterID owns a record owned by ownerID.
// An empty requester never matches.
func Authorize(ownerID, requesterID string) bool {
	return requesterID != "" && ownerID == requesterID
}

// Require returns an apperr.ErrUnauthorized error naming the resource when Authorize fails.
func Require(ownerID, requesterID, resource, key string) error {
	if Authorize(ownerID, requesterID) {
		return nil
	}
	return fmt.Errorf("%s %s: %w", resource, key, apperr.ErrUnauthorized)
}
