package documents

import "context"

// Repo defines persistence operations for documents.
//
// Create assigns the id and upload date and returns the stored record.
// UpdateExtractedText sets the text and its timestamp together.
// Delete reports ErrNotFound for an unknown id.
type Repo interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, id string) (Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Document, error)
	UpdateExtractedText(ctx context.Context, id, text string) error
	Delete(ctx context.Context, id string) error
}
