package chathistory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres with entries stored as JSONB.
type PGRepo struct {
	DB *sql.DB
}

// Save upserts the history row, replacing entries wholesale.
func (r *PGRepo) Save(ctx context.Context, h History) error {
	const query = `
INSERT INTO chat_histories (history_key, document_id, owner_id, entries, last_updated)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (history_key) DO UPDATE
SET entries = EXCLUDED.entries, last_updated = EXCLUDED.last_updated`

	entries := h.Entries
	if entries == nil {
		entries = []Entry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, Key(h.DocumentID, h.OwnerID), h.DocumentID, h.OwnerID, payload, h.LastUpdated)
	return err
}

// Load fetches the history row for a key.
func (r *PGRepo) Load(ctx context.Context, documentID, ownerID string) (History, error) {
	const query = `
SELECT document_id, owner_id, entries, last_updated
FROM chat_histories
WHERE history_key = $1`

	var h History
	var payload []byte
	err := r.DB.QueryRowContext(ctx, query, Key(documentID, ownerID)).Scan(
		&h.DocumentID,
		&h.OwnerID,
		&payload,
		&h.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return History{}, ErrNotFound
		}
		return History{}, err
	}
	if err := json.Unmarshal(payload, &h.Entries); err != nil {
		return History{}, fmt.Errorf("decode entries: %w", err)
	}
	return h, nil
}

var _ Repo = (*PGRepo)(nil)
