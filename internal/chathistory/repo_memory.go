package chathistory

import (
	"context"
	"sync"
)

// MemoryRepo stores chat histories in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byKey map[string]History
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byKey: make(map[string]History)}
}

// Save overwrites the history for its key.
func (r *MemoryRepo) Save(ctx context.Context, h History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.Entries = append([]Entry(nil), h.Entries...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[Key(h.DocumentID, h.OwnerID)] = h
	return nil
}

// Load returns the history for a key.
func (r *MemoryRepo) Load(ctx context.Context, documentID, ownerID string) (History, error) {
	if err := ctx.Err(); err != nil {
		return History{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byKey[Key(documentID, ownerID)]
	if !ok {
		return History{}, ErrNotFound
	}
	h.Entries = append([]Entry(nil), h.Entries...)
	return h, nil
}

var _ Repo = (*MemoryRepo)(nil)
