package content

import (
	"time"

	"studybuddy-backend/internal/documents"
)

// ContentResponse is the outward-facing view returned by the content route.
type ContentResponse struct {
	DocumentID    string           `json:"documentId"`
	FileName      string           `json:"fileName"`
	DownloadURL   string           `json:"downloadUrl"`
	StoragePath   string           `json:"storagePath,omitempty"`
	ExtractedText string           `json:"extractedText,omitempty"`
	Cached        bool             `json:"cached"`
	StaleLink     bool             `json:"staleLink,omitempty"`
	Source        documents.Source `json:"source"`
	Video         *documents.Video `json:"video,omitempty"`
	UploadDate    time.Time        `json:"uploadDate"`
}

func toContentResponse(c Content) ContentResponse {
	return ContentResponse{
		DocumentID:    c.DocumentID,
		FileName:      c.FileName,
		DownloadURL:   c.EffectiveURL,
		StoragePath:   c.StoragePath,
		ExtractedText: c.ExtractedText,
		Cached:        c.Cached,
		StaleLink:     c.StaleLink,
		Source:        c.Source,
		Video:         c.Video,
		UploadDate:    c.UploadDate,
	}
}

type extractRequest struct {
	StoragePath string `json:"storagePath"`
	DocumentID  string `json:"documentId"`
}

// ExtractResponse mirrors the extractor's text and length plus cache state.
type ExtractResponse struct {
	DocumentID string `json:"documentId,omitempty"`
	Text       string `json:"text"`
	Length     int    `json:"length"`
	Cached     bool   `json:"cached"`
	Stored     bool   `json:"stored"`
}

func toExtractResponse(e Extraction) ExtractResponse {
	return ExtractResponse{
		DocumentID: e.DocumentID,
		Text:       e.Text,
		Length:     e.Length,
		Cached:     e.Cached,
		Stored:     e.Stored,
	}
}
