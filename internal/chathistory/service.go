package chathistory

import (
	"context"
	"errors"
	"strings"
	"time"

	"studybuddy-backend/internal/documents"
	"studybuddy-backend/internal/ownership"
	"studybuddy-backend/internal/shared/apperr"
)

// MaxEntries bounds one saved conversation.
const MaxEntries = 500

// DocumentLookup resolves the document a history belongs to.
type DocumentLookup interface {
	Get(ctx context.Context, id string) (documents.Document, error)
}

// Service contains chat history logic.
type Service struct {
	Repo      Repo
	Documents DocumentLookup
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, docs DocumentLookup) *Service {
	return &Service{Repo: repo, Documents: docs, now: func() time.Time { return time.Now().UTC() }}
}

// Save replaces the requester's history for a document they own.
func (s *Service) Save(ctx context.Context, documentID, requesterID string, entries []Entry) (History, error) {
	if strings.TrimSpace(documentID) == "" {
		return History{}, apperr.Invalid("document id is required")
	}
	if len(entries) > MaxEntries {
		return History{}, apperr.Invalid("too many chat entries")
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Role) == "" {
			return History{}, apperr.Invalid("every entry needs a role")
		}
	}

	doc, err := s.Documents.Get(ctx, documentID)
	if err != nil {
		return History{}, apperr.Persistence("documents", documentID, err)
	}
	if err := ownership.Require(doc.OwnerID, requesterID, "document", documentID); err != nil {
		return History{}, err
	}

	h := History{
		DocumentID:  documentID,
		OwnerID:     requesterID,
		Entries:     append([]Entry{}, entries...),
		LastUpdated: s.now(),
	}
	if err := s.Repo.Save(ctx, h); err != nil {
		return History{}, apperr.Persistence("chat history", Key(documentID, requesterID), err)
	}
	return h, nil
}

// Load returns the requester's entries for a document, empty when nothing was saved.
func (s *Service) Load(ctx context.Context, documentID, requesterID string) ([]Entry, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, apperr.Invalid("document id is required")
	}
	h, err := s.Repo.Load(ctx, documentID, requesterID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Entry{}, nil
		}
		return nil, apperr.Persistence("chat history", Key(documentID, requesterID), err)
	}
	if h.Entries == nil {
		return []Entry{}, nil
	}
	return h.Entries, nil
}
