package chathistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy-backend/internal/documents"
	"studybuddy-backend/internal/shared/apperr"
)

func newService(t *testing.T) (*Service, documents.Document) {
	t.Helper()
	docs := documents.NewMemoryRepo()
	doc, err := docs.Create(context.Background(), documents.Document{
		OwnerID:     "u1",
		FileName:    "notes.pdf",
		StoragePath: "users/u1/documents/x_notes.pdf",
	})
	require.NoError(t, err)
	return NewService(NewMemoryRepo(), docs), doc
}

func TestSaveLoadPreservesOrder(t *testing.T) {
	svc, doc := newService(t)
	ctx := context.Background()
	entries := []Entry{
		{Role: "user", Content: "What is osmosis?"},
		{Role: "assistant", Content: "Movement of water across a membrane."},
		{Role: "user", Content: "Give an example."},
	}

	saved, err := svc.Save(ctx, doc.ID, "u1", entries)
	require.NoError(t, err)
	assert.False(t, saved.LastUpdated.IsZero())

	got, err := svc.Load(ctx, doc.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestSaveOverwritesWholeRecord(t *testing.T) {
	svc, doc := newService(t)
	ctx := context.Background()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	_, err := svc.Save(ctx, doc.ID, "u1", []Entry{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	require.NoError(t, err)

	svc.now = func() time.Time { return first.Add(time.Hour) }
	saved, err := svc.Save(ctx, doc.ID, "u1", []Entry{{Role: "user", Content: "c"}})
	require.NoError(t, err)
	assert.Equal(t, first.Add(time.Hour), saved.LastUpdated)

	got, err := svc.Load(ctx, doc.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Role: "user", Content: "c"}}, got)
}

func TestLoadNeverSavedReturnsEmpty(t *testing.T) {
	svc, doc := newService(t)
	got, err := svc.Load(context.Background(), doc.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got, 0)
}

func TestSaveRequiresOwner(t *testing.T) {
	svc, doc := newService(t)
	_, err := svc.Save(context.Background(), doc.ID, "u2", []Entry{{Role: "user", Content: "hi"}})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	got, err := svc.Load(context.Background(), doc.ID, "u2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveUnknownDocument(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Save(context.Background(), "missing", "u1", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveRejectsEntryWithoutRole(t *testing.T) {
	svc, doc := newService(t)
	_, err := svc.Save(context.Background(), doc.ID, "u1", []Entry{{Content: "orphan"}})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

type brokenRepo struct{}

func (brokenRepo) Save(ctx context.Context, h History) error { return errors.New("disk full") }
func (brokenRepo) Load(ctx context.Context, documentID, ownerID string) (History, error) {
	return History{}, errors.New("disk full")
}

func TestRepoFailuresArePersistenceErrors(t *testing.T) {
	svc, doc := newService(t)
	svc.Repo = brokenRepo{}

	_, err := svc.Save(context.Background(), doc.ID, "u1", nil)
	require.ErrorIs(t, err, apperr.ErrPersistence)
	_, err = svc.Load(context.Background(), doc.ID, "u1")
	require.ErrorIs(t, err, apperr.ErrPersistence)
}
