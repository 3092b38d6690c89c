package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID      string     `json:"documentId"`
	FileName        string     `json:"fileName"`
	StoragePath     string     `json:"storagePath,omitempty"`
	DownloadURL     string     `json:"downloadUrl,omitempty"`
	Source          Source     `json:"source"`
	ContentType     string     `json:"contentType,omitempty"`
	SizeBytes       int64      `json:"sizeBytes"`
	HasText         bool       `json:"hasText"`
	TextExtractedAt *time.Time `json:"textExtractedAt,omitempty"`
	Video           *Video     `json:"video,omitempty"`
	UploadDate      time.Time  `json:"uploadDate"`
}

func toResponse(doc Document) DocumentResponse {
	resp := DocumentResponse{
		DocumentID:      doc.ID,
		FileName:        doc.FileName,
		StoragePath:     doc.StoragePath,
		DownloadURL:     doc.DownloadURL,
		Source:          doc.Source,
		ContentType:     doc.ContentType,
		SizeBytes:       doc.SizeBytes,
		HasText:         doc.Cached(),
		TextExtractedAt: doc.TextExtractedAt,
		UploadDate:      doc.UploadDate,
	}
	if doc.Video != nil {
		v := *doc.Video
		v.Segments = nil
		resp.Video = &v
	}
	return resp
}

type videoRequest struct {
	URL string `json:"url"`
}
