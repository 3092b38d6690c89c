package documents

import "time"

// Source identifies how a document came into the system.
type Source string

const (
	SourcePDF     Source = "pdf"
	SourceYouTube Source = "youtube"
)

// Location says how a document's bytes are reached.
type Location int

const (
	// LocationPathBacked records carry a storage path and are re-signed on every read.
	LocationPathBacked Location = iota
	// LocationLegacyURLOnly records predate path-based storage and only have a stored download URL.
	LocationLegacyURLOnly
)

func (l Location) String() string {
	switch l {
	case LocationPathBacked:
		return "path_backed"
	case LocationLegacyURLOnly:
		return "legacy_url_only"
	default:
		return "unknown"
	}
}

// Segment is one timed line of a video transcript.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Video holds the metadata of a YouTube transcript document.
type Video struct {
	VideoID      string    `json:"videoId"`
	Channel      string    `json:"channel,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Duration     float64   `json:"duration"`
	Language     string    `json:"language,omitempty"`
	IsGenerated  bool      `json:"isGenerated"`
	Segments     []Segment `json:"segments,omitempty"`
}

// Document is the authoritative record of an uploaded item.
type Document struct {
	ID              string
	OwnerID         string
	FileName        string
	StoragePath     string
	DownloadURL     string
	Source          Source
	ContentType     string
	SizeBytes       int64
	ExtractedText   string
	TextExtractedAt *time.Time
	Video           *Video
	UploadDate      time.Time
}

// Location reports which read path applies to the document.
func (d Document) Location() Location {
	if d.StoragePath != "" {
		return LocationPathBacked
	}
	return LocationLegacyURLOnly
}

// Cached reports whether extracted text is already stored.
func (d Document) Cached() bool {
	return d.ExtractedText != ""
}
