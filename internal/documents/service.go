package documents

import (
	"context"
	"errors"
	"mime"
	"strings"

	"studybuddy-backend/internal/extract"
	"studybuddy-backend/internal/ownership"
	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/metrics"
	"studybuddy-backend/internal/shared/storage/blob"
	"studybuddy-backend/internal/shared/telemetry"
)

// MaxUploadBytes bounds an uploaded document.
const MaxUploadBytes = blob.MaxObjectBytes

// Transcript is what a transcript fetcher returns for one video.
type Transcript struct {
	VideoID      string
	Title        string
	Channel      string
	ThumbnailURL string
	FullText     string
	Language     string
	IsGenerated  bool
	Duration     float64
	Segments     []Segment
}

// TranscriptFetcher retrieves a video transcript.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoURL string) (Transcript, error)
}

// Service contains business logic for documents.
type Service struct {
	Store       blob.Store
	Repo        Repo
	Transcripts TranscriptFetcher
}

// Upload stores a PDF and records it. The record is created last, so a failed
// write or sign leaves no metadata behind.
func (s *Service) Upload(ctx context.Context, ownerID, fileName, declaredType string, data []byte) (Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Document{}, apperr.Invalid("owner is required")
	}
	if strings.TrimSpace(fileName) == "" {
		return Document{}, apperr.Invalid("file name is required")
	}
	if len(data) == 0 {
		return Document{}, apperr.Invalid("file is empty")
	}
	if len(data) > MaxUploadBytes {
		return Document{}, apperr.Invalid("file exceeds the upload limit")
	}
	if !isPDF(declaredType, data) {
		return Document{}, apperr.Invalid("only PDF files are supported")
	}

	storagePath, err := blob.DocumentPath(ownerID, fileName)
	if err != nil {
		return Document{}, err
	}
	downloadURL, err := s.putAndSign(ctx, storagePath, data, extract.MimePDF)
	if err != nil {
		return Document{}, err
	}

	doc, err := s.Repo.Create(ctx, Document{
		OwnerID:     ownerID,
		FileName:    fileName,
		StoragePath: storagePath,
		DownloadURL: downloadURL,
		Source:      SourcePDF,
		ContentType: extract.MimePDF,
		SizeBytes:   int64(len(data)),
	})
	if err != nil {
		return Document{}, apperr.Persistence("documents", storagePath, err)
	}

	metrics.IncUploads()
	telemetry.Info("document.created", map[string]any{
		"document_id":  doc.ID,
		"user_id":      ownerID,
		"storage_path": storagePath,
		"size_bytes":   doc.SizeBytes,
		"source":       string(doc.Source),
	})
	return doc, nil
}

// CreateFromVideo fetches a YouTube transcript and stores it as a text document
// whose extracted text is already cached.
func (s *Service) CreateFromVideo(ctx context.Context, ownerID, videoURL string) (Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Document{}, apperr.Invalid("owner is required")
	}
	if _, err := VideoID(videoURL); err != nil {
		return Document{}, err
	}
	if s.Transcripts == nil {
		return Document{}, apperr.Upstream("transcript service", videoURL, errors.New("not configured"))
	}

	tr, err := s.Transcripts.FetchTranscript(ctx, strings.TrimSpace(videoURL))
	if err != nil {
		return Document{}, apperr.Upstream("transcript service", videoURL, err)
	}
	if strings.TrimSpace(tr.FullText) == "" {
		return Document{}, apperr.Upstream("transcript service", videoURL, errors.New("empty transcript"))
	}

	title := strings.TrimSpace(tr.Title)
	if title == "" {
		title = tr.VideoID
	}
	storagePath, err := blob.DocumentPath(ownerID, tr.VideoID+".txt")
	if err != nil {
		return Document{}, err
	}
	body := []byte(tr.FullText)
	downloadURL, err := s.putAndSign(ctx, storagePath, body, extract.MimePlain+"; charset=utf-8")
	if err != nil {
		return Document{}, err
	}

	doc, err := s.Repo.Create(ctx, Document{
		OwnerID:       ownerID,
		FileName:      title,
		StoragePath:   storagePath,
		DownloadURL:   downloadURL,
		Source:        SourceYouTube,
		ContentType:   extract.MimePlain,
		SizeBytes:     int64(len(body)),
		ExtractedText: tr.FullText,
		Video: &Video{
			VideoID:      tr.VideoID,
			Channel:      tr.Channel,
			ThumbnailURL: tr.ThumbnailURL,
			Duration:     tr.Duration,
			Language:     tr.Language,
			IsGenerated:  tr.IsGenerated,
			Segments:     tr.Segments,
		},
	})
	if err != nil {
		return Document{}, apperr.Persistence("documents", storagePath, err)
	}

	metrics.IncUploads()
	telemetry.Info("document.created", map[string]any{
		"document_id":  doc.ID,
		"user_id":      ownerID,
		"storage_path": storagePath,
		"source":       string(doc.Source),
		"video_id":     tr.VideoID,
	})
	return doc, nil
}

// Get returns a document by id.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	if strings.TrimSpace(id) == "" {
		return Document{}, apperr.Invalid("document id is required")
	}
	doc, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Document{}, apperr.Persistence("documents", id, err)
	}
	return doc, nil
}

// List returns the owner's documents.
func (s *Service) List(ctx context.Context, ownerID string) ([]Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Invalid("owner is required")
	}
	docs, err := s.Repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Persistence("documents", ownerID, err)
	}
	return docs, nil
}

// Delete removes a document the requester owns. The blob is removed afterwards
// on a best-effort basis.
func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := ownership.Require(doc.OwnerID, requesterID, "document", id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return apperr.Persistence("documents", id, err)
	}

	switch doc.Location() {
	case LocationPathBacked:
		if err := s.Store.Delete(ctx, doc.StoragePath); err != nil {
			telemetry.Warn("document.blob_delete_failed", map[string]any{
				"document_id":  id,
				"storage_path": doc.StoragePath,
				"error":        err,
			})
		}
	case LocationLegacyURLOnly:
		// Nothing addressable to remove.
	}

	telemetry.Info("document.deleted", map[string]any{
		"document_id": id,
		"user_id":     requesterID,
	})
	return nil
}

func (s *Service) putAndSign(ctx context.Context, storagePath string, data []byte, contentType string) (string, error) {
	if err := s.Store.Put(ctx, storagePath, data, contentType); err != nil {
		return "", apperr.Upstream("blob store", storagePath, err)
	}
	url, err := s.Store.SignedURL(ctx, storagePath, blob.SignedURLValidity)
	if err != nil {
		return "", apperr.Upstream("blob store", storagePath, err)
	}
	return url, nil
}

func isPDF(declaredType string, data []byte) bool {
	mediaType, _, err := mime.ParseMediaType(declaredType)
	if err != nil || mediaType != extract.MimePDF {
		return false
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return extract.DetectType(head) == extract.MimePDF
}
