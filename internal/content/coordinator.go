// Package content serves the read path for a document and the explicit
// extract-and-cache operation that fills its text cache.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"studybuddy-backend/internal/documents"
	"studybuddy-backend/internal/extract"
	"studybuddy-backend/internal/ownership"
	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/metrics"
	"studybuddy-backend/internal/shared/storage/blob"
	"studybuddy-backend/internal/shared/telemetry"
)

const (
	defaultExtractTimeout = 2 * time.Minute
	cacheWriteTimeout     = 5 * time.Second
)

// DocumentStore is the part of the metadata store the coordinator needs.
type DocumentStore interface {
	Get(ctx context.Context, id string) (documents.Document, error)
	UpdateExtractedText(ctx context.Context, id, text string) error
}

// Options tunes the coordinator.
type Options struct {
	// ExtractTimeout bounds one extractor call.
	ExtractTimeout time.Duration
	// Dedup collapses concurrent extractions of the same storage path into one extractor call.
	Dedup bool
}

// Coordinator reconciles the metadata store, the blob store and the extractor.
type Coordinator struct {
	docs           DocumentStore
	store          blob.Store
	extractor      extract.Extractor
	extractTimeout time.Duration
	group          *singleflight.Group
	now            func() time.Time
}

// New builds a Coordinator.
func New(docs DocumentStore, store blob.Store, extractor extract.Extractor, opts Options) *Coordinator {
	timeout := opts.ExtractTimeout
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	c := &Coordinator{
		docs:           docs,
		store:          store,
		extractor:      extractor,
		extractTimeout: timeout,
		now:            time.Now,
	}
	if opts.Dedup {
		c.group = &singleflight.Group{}
	}
	return c
}

// Content is the merged view of a document returned by GetContent.
type Content struct {
	DocumentID    string
	FileName      string
	EffectiveURL  string
	StoragePath   string
	ExtractedText string
	Cached        bool
	StaleLink     bool
	Location      documents.Location
	Source        documents.Source
	Video         *documents.Video
	UploadDate    time.Time
}

// GetContent returns a document with a usable link. It never calls the extractor
// and never writes.
func (c *Coordinator) GetContent(ctx context.Context, documentID string) (Content, error) {
	if strings.TrimSpace(documentID) == "" {
		return Content{}, apperr.Invalid("document id is required")
	}
	doc, err := c.docs.Get(ctx, documentID)
	if err != nil {
		return Content{}, apperr.Persistence("documents", documentID, err)
	}
	metrics.IncContentReads()

	out := Content{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		StoragePath: doc.StoragePath,
		Location:    doc.Location(),
		Source:      doc.Source,
		Video:       doc.Video,
		UploadDate:  doc.UploadDate,
	}

	switch doc.Location() {
	case documents.LocationPathBacked:
		url, err := c.store.SignedURL(ctx, doc.StoragePath, blob.SignedURLValidity)
		if err != nil {
			return Content{}, apperr.Upstream("blob store", doc.StoragePath, err)
		}
		out.EffectiveURL = url
	case documents.LocationLegacyURLOnly:
		out.EffectiveURL = doc.DownloadURL
		out.StaleLink = true
	default:
		return Content{}, fmt.Errorf("document %s: unknown location %v", doc.ID, doc.Location())
	}

	if doc.Cached() {
		out.ExtractedText = doc.ExtractedText
		out.Cached = true
		metrics.IncExtractCacheHits()
	}
	return out, nil
}

// Extraction is the result of ExtractAndCache.
type Extraction struct {
	DocumentID string
	Text       string
	Length     int
	// Cached is true when the text came from the metadata store instead of the extractor.
	Cached bool
	// Stored is true when the text was written back to the document.
	Stored bool
}

// ExtractAndCache extracts text for a stored blob. When documentID is given the
// requester must own that document and the text is written back on a
// best-effort basis; otherwise storagePath must sit under the requester's prefix.
func (c *Coordinator) ExtractAndCache(ctx context.Context, storagePath, documentID, requesterID string) (Extraction, error) {
	storagePath = strings.TrimSpace(storagePath)
	documentID = strings.TrimSpace(documentID)

	if documentID != "" {
		doc, err := c.docs.Get(ctx, documentID)
		if err != nil {
			return Extraction{}, apperr.Persistence("documents", documentID, err)
		}
		if err := ownership.Require(doc.OwnerID, requesterID, "document", documentID); err != nil {
			return Extraction{}, err
		}
		if storagePath == "" {
			storagePath = doc.StoragePath
		}
		if storagePath != doc.StoragePath {
			return Extraction{}, apperr.Invalid("storagePath does not belong to the document")
		}
		if doc.Cached() {
			metrics.IncExtractCacheHits()
			return Extraction{
				DocumentID: doc.ID,
				Text:       doc.ExtractedText,
				Length:     extract.NewResult(doc.ExtractedText).Length,
				Cached:     true,
			}, nil
		}
	} else {
		if storagePath == "" {
			return Extraction{}, apperr.Invalid("storagePath is required")
		}
		if _, err := blob.CleanPath(storagePath); err != nil {
			return Extraction{}, apperr.Invalid("storagePath is not a valid storage path")
		}
		if err := ownership.Require(pathOwner(storagePath), requesterID, "blob", storagePath); err != nil {
			return Extraction{}, err
		}
	}
	if storagePath == "" {
		return Extraction{}, apperr.Invalid("document has no storage path")
	}

	res, err := c.extractShared(ctx, storagePath)
	if err != nil {
		return Extraction{}, err
	}

	out := Extraction{DocumentID: documentID, Text: res.Text, Length: res.Length}
	if documentID != "" && res.Text != "" {
		out.Stored = c.writeBack(ctx, documentID, res.Text)
	}
	return out, nil
}

// extractShared runs one extraction per storage path when dedup is on. The
// shared call is detached from any single caller's context so a cancelled
// caller does not fail the others; each caller still stops waiting on its own
// cancellation. The extractor timeout bounds the shared call.
func (c *Coordinator) extractShared(ctx context.Context, storagePath string) (extract.Result, error) {
	if c.group == nil {
		return c.extract(ctx, storagePath)
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(storagePath, func() (interface{}, error) {
		return c.extract(shared, storagePath)
	})
	select {
	case <-ctx.Done():
		return extract.Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return extract.Result{}, r.Err
		}
		return r.Val.(extract.Result), nil
	}
}

func (c *Coordinator) extract(ctx context.Context, storagePath string) (extract.Result, error) {
	obj, err := c.store.Fetch(ctx, storagePath)
	if err != nil {
		return extract.Result{}, apperr.Upstream("blob store", storagePath, err)
	}
	if extract.IsPlainText(obj.ContentType) {
		return extract.NewResult(string(obj.Data)), nil
	}
	if c.extractor == nil {
		return extract.Result{}, apperr.Upstream("extractor", storagePath, errors.New("not configured"))
	}

	metrics.IncExtractCalls()
	started := c.now()
	ctx, cancel := context.WithTimeout(ctx, c.extractTimeout)
	defer cancel()
	res, err := c.extractor.Extract(ctx, obj.Data, pathBase(storagePath))
	metrics.ObserveExtractDurationMs(float64(c.now().Sub(started).Microseconds()) / 1000.0)
	if err != nil {
		metrics.IncExtractFailures()
		if errors.Is(err, extract.ErrUnsupported) {
			return extract.Result{}, apperr.Invalid("document type cannot be extracted")
		}
		return extract.Result{}, apperr.Upstream("extractor", storagePath, err)
	}
	if res.Length == 0 && res.Text != "" {
		res = extract.NewResult(res.Text)
	}
	return res, nil
}

// writeBack stores text on the document. Failures are logged and swallowed:
// the caller already has the text.
func (c *Coordinator) writeBack(ctx context.Context, documentID, text string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := c.docs.UpdateExtractedText(ctx, documentID, text); err != nil {
		metrics.IncExtractCacheWriteFailures()
		telemetry.Warn("extract.cache_write_failed", map[string]any{
			"document_id": documentID,
			"error":       err,
		})
		return false
	}
	telemetry.Info("extract.cached", map[string]any{
		"document_id": documentID,
		"length":      len(text),
	})
	return true
}

// pathOwner returns {owner} for users/{owner}/..., or "" for any other layout.
func pathOwner(p string) string {
	rest, ok := strings.CutPrefix(p, "users/")
	if !ok {
		return ""
	}
	owner, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return owner
}

func pathBase(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
