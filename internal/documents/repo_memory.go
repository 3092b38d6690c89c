package documents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Document
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new document with a fresh id.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	doc.ID = uuid.NewString()
	doc.UploadDate = r.now()
	if doc.Source == "" {
		doc.Source = SourcePDF
	}
	if doc.ExtractedText != "" && doc.TextExtractedAt == nil {
		at := doc.UploadDate
		doc.TextExtractedAt = &at
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[doc.ID] = cloneDocument(doc)
	return doc, nil
}

// Get returns a document by id.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// ListByOwner returns the owner's documents, newest first.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Document, 0)
	for _, doc := range r.byID {
		if doc.OwnerID == ownerID {
			out = append(out, cloneDocument(doc))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadDate.After(out[j].UploadDate)
	})
	return out, nil
}

// UpdateExtractedText caches text on the document. Last write wins.
func (r *MemoryRepo) UpdateExtractedText(ctx context.Context, id, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	at := r.now()
	doc.ExtractedText = text
	doc.TextExtractedAt = &at
	r.byID[id] = doc
	return nil
}

// Delete removes a document.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func cloneDocument(doc Document) Document {
	if doc.TextExtractedAt != nil {
		at := *doc.TextExtractedAt
		doc.TextExtractedAt = &at
	}
	if doc.Video != nil {
		v := *doc.Video
		v.Segments = append([]Segment(nil), doc.Video.Segments...)
		doc.Video = &v
	}
	return doc
}

var _ Repo = (*MemoryRepo)(nil)
