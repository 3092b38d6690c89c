package chathistory

import "context"

// Repo persists chat histories. Save replaces the whole record.
type Repo interface {
	Save(ctx context.Context, h History) error
	Load(ctx context.Context, documentID, ownerID string) (History, error)
}
