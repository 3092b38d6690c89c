package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"studybuddy-backend/internal/documents"
	"studybuddy-backend/internal/extract"
	"studybuddy-backend/internal/shared/telemetry"
)

const (
	extractPath    = "/api/ai/extract-text"
	transcriptPath = "/api/youtube/extract"

	maxResponseBytes = 32 << 20
)

// Client talks to the external AI service for PDF text extraction and
// YouTube transcripts.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("AI_SERVICE_URL is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type extractResponse struct {
	Text   string `json:"text"`
	Length int    `json:"length"`
	Detail string `json:"detail,omitempty"`
}

// Extract uploads the document as multipart field "file" and returns the text.
func (c *Client) Extract(ctx context.Context, data []byte, fileName string) (extract.Result, error) {
	if len(data) == 0 {
		return extract.Result{}, fmt.Errorf("%w: empty document", extract.ErrUnsupported)
	}
	if fileName == "" {
		fileName = "document.pdf"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", path.Base(fileName))
	if err != nil {
		return extract.Result{}, err
	}
	if _, err := part.Write(data); err != nil {
		return extract.Result{}, err
	}
	if err := w.Close(); err != nil {
		return extract.Result{}, err
	}

	body, err := c.post(ctx, extractPath, w.FormDataContentType(), &buf)
	if err != nil {
		return extract.Result{}, err
	}
	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return extract.Result{}, fmt.Errorf("ai service extract parse: %w", err)
	}
	return extract.NewResult(parsed.Text), nil
}

type transcriptRequest struct {
	URL string `json:"url"`
}

type transcriptSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type transcriptResponse struct {
	Success       bool                `json:"success"`
	VideoID       string              `json:"video_id"`
	Title         string              `json:"title"`
	Channel       string              `json:"channel"`
	ThumbnailURL  string              `json:"thumbnail_url"`
	Transcript    []transcriptSegment `json:"transcript"`
	FullText      string              `json:"full_text"`
	Language      string              `json:"language"`
	IsGenerated   bool                `json:"is_generated"`
	Duration      float64             `json:"duration"`
	TotalDuration float64             `json:"total_duration"`
	Error         string              `json:"error"`
	ErrorType     string              `json:"error_type"`
}

// FetchTranscript asks the AI service for a video's transcript.
func (c *Client) FetchTranscript(ctx context.Context, videoURL string) (documents.Transcript, error) {
	payload, err := json.Marshal(transcriptRequest{URL: videoURL})
	if err != nil {
		return documents.Transcript{}, err
	}
	body, err := c.post(ctx, transcriptPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return documents.Transcript{}, err
	}

	var parsed transcriptResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return documents.Transcript{}, fmt.Errorf("ai service transcript parse: %w", err)
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "failed to extract transcript"
		}
		return documents.Transcript{}, fmt.Errorf("ai service transcript: %s (%s)", msg, parsed.ErrorType)
	}
	if parsed.VideoID == "" {
		return documents.Transcript{}, errors.New("ai service transcript missing video_id")
	}

	segments := make([]documents.Segment, 0, len(parsed.Transcript))
	for _, s := range parsed.Transcript {
		segments = append(segments, documents.Segment{Text: s.Text, Start: s.Start, Duration: s.Duration})
	}
	duration := parsed.Duration
	if duration == 0 {
		duration = parsed.TotalDuration
	}
	return documents.Transcript{
		VideoID:      parsed.VideoID,
		Title:        parsed.Title,
		Channel:      parsed.Channel,
		ThumbnailURL: parsed.ThumbnailURL,
		FullText:     parsed.FullText,
		Language:     parsed.Language,
		IsGenerated:  parsed.IsGenerated,
		Duration:     duration,
		Segments:     segments,
	}, nil
}

func (c *Client) post(ctx context.Context, route, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("ai service request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	telemetry.Info("aiservice.response", map[string]any{
		"route":       route,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ai service %s: status %d: %s", route, resp.StatusCode, detail(raw))
	}
	return raw, nil
}

func detail(raw []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

var (
	_ extract.Extractor           = (*Client)(nil)
	_ documents.TranscriptFetcher = (*Client)(nil)
)
