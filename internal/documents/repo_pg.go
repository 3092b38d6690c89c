package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, owner_id, file_name, storage_path, download_url, source, content_type, size_bytes, extracted_text, text_extracted_at, video, upload_date`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) (Document, error) {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    file_name,
    storage_path,
    download_url,
    source,
    content_type,
    size_bytes,
    extracted_text,
    text_extracted_at,
    video,
    upload_date
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	doc.ID = uuid.NewString()
	doc.UploadDate = time.Now().UTC()
	if doc.Source == "" {
		doc.Source = SourcePDF
	}

	var storagePath sql.NullString
	if doc.StoragePath != "" {
		storagePath = sql.NullString{String: doc.StoragePath, Valid: true}
	}
	var extractedText sql.NullString
	var extractedAt sql.NullTime
	if doc.ExtractedText != "" {
		at := doc.UploadDate
		if doc.TextExtractedAt != nil {
			at = *doc.TextExtractedAt
		}
		doc.TextExtractedAt = &at
		extractedText = sql.NullString{String: doc.ExtractedText, Valid: true}
		extractedAt = sql.NullTime{Time: at, Valid: true}
	}
	var video []byte
	if doc.Video != nil {
		b, err := json.Marshal(doc.Video)
		if err != nil {
			return Document{}, fmt.Errorf("marshal video: %w", err)
		}
		video = b
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OwnerID,
		doc.FileName,
		storagePath,
		doc.DownloadURL,
		string(doc.Source),
		doc.ContentType,
		doc.SizeBytes,
		extractedText,
		extractedAt,
		video,
		doc.UploadDate,
	)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get fetches a document by id.
func (r *PGRepo) Get(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByOwner lists the owner's documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string) ([]Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE owner_id = $1 ORDER BY upload_date DESC`
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateExtractedText sets extracted_text and text_extracted_at in one statement.
func (r *PGRepo) UpdateExtractedText(ctx context.Context, id, text string) error {
	const query = `
UPDATE documents
SET extracted_text = $1, text_extracted_at = $2
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, text, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a document row.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var storagePath sql.NullString
	var source string
	var extractedText sql.NullString
	var extractedAt sql.NullTime
	var video []byte
	if err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.FileName,
		&storagePath,
		&doc.DownloadURL,
		&source,
		&doc.ContentType,
		&doc.SizeBytes,
		&extractedText,
		&extractedAt,
		&video,
		&doc.UploadDate,
	); err != nil {
		return Document{}, err
	}
	doc.Source = Source(source)
	if storagePath.Valid {
		doc.StoragePath = storagePath.String
	}
	if extractedText.Valid {
		doc.ExtractedText = extractedText.String
	}
	if extractedAt.Valid {
		doc.TextExtractedAt = &extractedAt.Time
	}
	if len(video) > 0 {
		var v Video
		if err := json.Unmarshal(video, &v); err != nil {
			return Document{}, fmt.Errorf("decode video metadata: %w", err)
		}
		doc.Video = &v
	}
	return doc, nil
}

var _ Repo = (*PGRepo)(nil)
