package bootstrap

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/config"
	"studybuddy-backend/internal/shared/telemetry"
)

const pdfBody = "%PDF-1.4\n1 0 obj << >> endobj\ntrailer << >>\n%%EOF\n"

type fakeAIService struct {
	extractCalls atomic.Int32
}

func (f *fakeAIService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/ai/extract-text":
		f.extractCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "mitochondria is the powerhouse", "length": 30})
	case "/api/youtube/extract":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"video_id":   "dQw4w9WgXcQ",
			"title":      "Cell biology",
			"transcript": []map[string]any{{"text": "cells", "start": 0, "duration": 1}},
			"full_text":  "cells are small",
			"duration":   1,
		})
	default:
		http.NotFound(w, r)
	}
}

type testApp struct {
	t      *testing.T
	router *gin.Engine
	ai     *fakeAIService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	t.Cleanup(telemetry.SetOutput(&logs))

	ai := &fakeAIService{}
	srv := httptest.NewServer(ai)
	t.Cleanup(srv.Close)

	app, err := Build(config.Config{
		Env:              "dev",
		ObjectStoreType:  "local",
		LocalStoreDir:    t.TempDir(),
		PublicBaseURL:    "http://studybuddy.test",
		BlobSigningKey:   "test-signing-key",
		BlobTimeout:      5 * time.Second,
		AIServiceURL:     srv.URL,
		AIServiceTimeout: 5 * time.Second,
		JWTSecret:        "test-secret",
		JWTTTL:           time.Hour,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return &testApp{t: t, router: app.Router, ai: ai}
}

func (a *testApp) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	a.router.ServeHTTP(resp, req)
	return resp
}

func (a *testApp) doJSON(method, path, token string, payload any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(payload)
	return a.do(method, path, token, bytes.NewReader(raw), "application/json")
}

func (a *testApp) register(email string) string {
	a.t.Helper()
	resp := a.doJSON(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret1", "username": strings.Split(email, "@")[0],
	})
	if resp.Code != http.StatusOK {
		a.t.Fatalf("register %s: %d %s", email, resp.Code, resp.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	decode(a.t, resp, &out)
	return out.Token
}

func (a *testApp) upload(token, fileName, contentType string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		a.t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(data)
	_ = w.Close()
	return a.do(http.MethodPost, "/api/v1/documents", token, &buf, w.FormDataContentType())
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", resp.Body.String(), err)
	}
}

type documentView struct {
	DocumentID  string `json:"documentId"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
	DownloadURL string `json:"downloadUrl"`
	Source      string `json:"source"`
	HasText     bool   `json:"hasText"`
}

type contentView struct {
	DocumentID    string `json:"documentId"`
	DownloadURL   string `json:"downloadUrl"`
	ExtractedText string `json:"extractedText"`
	Cached        bool   `json:"cached"`
}

type extractView struct {
	Text   string `json:"text"`
	Length int    `json:"length"`
	Cached bool   `json:"cached"`
	Stored bool   `json:"stored"`
}

func TestDocumentLifecycle(t *testing.T) {
	app := newTestApp(t)
	owner := app.register("owner@example.com")
	other := app.register("other@example.com")

	resp := app.upload(owner, "notes.pdf", "application/pdf", []byte(pdfBody))
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var doc documentView
	decode(t, resp, &doc)
	if doc.DocumentID == "" || !strings.HasSuffix(doc.StoragePath, "_notes.pdf") || doc.Source != "pdf" || doc.HasText {
		t.Fatalf("unexpected upload response: %+v", doc)
	}

	resp = app.do(http.MethodGet, "/api/v1/documents", owner, nil, "")
	var listed []documentView
	decode(t, resp, &listed)
	if len(listed) != 1 || listed[0].DocumentID != doc.DocumentID {
		t.Fatalf("unexpected list: %+v", listed)
	}
	resp = app.do(http.MethodGet, "/api/v1/documents", other, nil, "")
	decode(t, resp, &listed)
	if len(listed) != 0 {
		t.Fatalf("other user should see no documents: %+v", listed)
	}

	contentPath := "/api/v1/documents/" + doc.DocumentID + "/content"
	resp = app.do(http.MethodGet, contentPath, owner, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("content: %d %s", resp.Code, resp.Body.String())
	}
	var before contentView
	decode(t, resp, &before)
	if before.Cached || before.DownloadURL == "" {
		t.Fatalf("expected uncached content with a link: %+v", before)
	}

	u, err := url.Parse(before.DownloadURL)
	if err != nil {
		t.Fatalf("parse download url: %v", err)
	}
	resp = app.do(http.MethodGet, u.RequestURI(), "", nil, "")
	if resp.Code != http.StatusOK || resp.Body.String() != pdfBody {
		t.Fatalf("signed download: %d %q", resp.Code, resp.Body.String())
	}

	resp = app.doJSON(http.MethodPost, "/api/v1/documents/extract", other, map[string]string{"documentId": doc.DocumentID})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("extract by non-owner: expected 403, got %d", resp.Code)
	}

	resp = app.doJSON(http.MethodPost, "/api/v1/documents/extract", owner, map[string]string{
		"documentId": doc.DocumentID, "storagePath": doc.StoragePath,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("extract: %d %s", resp.Code, resp.Body.String())
	}
	var ex extractView
	decode(t, resp, &ex)
	if ex.Text != "mitochondria is the powerhouse" || ex.Cached || !ex.Stored {
		t.Fatalf("unexpected extraction: %+v", ex)
	}

	resp = app.doJSON(http.MethodPost, "/api/v1/documents/extract", owner, map[string]string{"documentId": doc.DocumentID})
	decode(t, resp, &ex)
	if !ex.Cached {
		t.Fatalf("second extract should be served from cache: %+v", ex)
	}
	if got := app.ai.extractCalls.Load(); got != 1 {
		t.Fatalf("extractor should run once, ran %d times", got)
	}

	resp = app.do(http.MethodGet, contentPath, owner, nil, "")
	var after contentView
	decode(t, resp, &after)
	if !after.Cached || after.ExtractedText != ex.Text {
		t.Fatalf("expected cached content: %+v", after)
	}

	historyPath := "/api/v1/documents/" + doc.DocumentID + "/chat-history"
	resp = app.doJSON(http.MethodPost, historyPath, owner, []map[string]string{
		{"role": "user", "content": "what is a cell?"},
		{"role": "assistant", "content": "the unit of life"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("save history: %d %s", resp.Code, resp.Body.String())
	}
	resp = app.do(http.MethodGet, historyPath, owner, nil, "")
	var entries []map[string]string
	decode(t, resp, &entries)
	if len(entries) != 2 || entries[1]["content"] != "the unit of life" {
		t.Fatalf("unexpected history: %+v", entries)
	}
	resp = app.do(http.MethodGet, historyPath, other, nil, "")
	decode(t, resp, &entries)
	if resp.Code != http.StatusOK || len(entries) != 0 {
		t.Fatalf("history is keyed per user, other user should see none: %d %+v", resp.Code, entries)
	}
	resp = app.doJSON(http.MethodPost, historyPath, other, []map[string]string{{"role": "user", "content": "hi"}})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("history save by non-owner: expected 403, got %d", resp.Code)
	}

	resp = app.do(http.MethodDelete, "/api/v1/documents/"+doc.DocumentID, other, nil, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("delete by non-owner: expected 403, got %d", resp.Code)
	}
	resp = app.do(http.MethodGet, contentPath, owner, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("document must survive rejected delete, got %d", resp.Code)
	}

	resp = app.do(http.MethodDelete, "/api/v1/documents/"+doc.DocumentID, owner, nil, "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = app.do(http.MethodGet, contentPath, owner, nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("content after delete: expected 404, got %d", resp.Code)
	}
}

func TestUploadRejections(t *testing.T) {
	app := newTestApp(t)
	token := app.register("u@example.com")

	if resp := app.upload("", "notes.pdf", "application/pdf", []byte(pdfBody)); resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous upload: expected 401, got %d", resp.Code)
	}
	if resp := app.upload(token, "notes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK")); resp.Code != http.StatusBadRequest {
		t.Fatalf("docx upload: expected 400, got %d", resp.Code)
	}
	if resp := app.upload(token, "empty.pdf", "application/pdf", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("empty upload: expected 400, got %d", resp.Code)
	}
}

func TestExtractByPathRequiresOwnPrefix(t *testing.T) {
	app := newTestApp(t)
	token := app.register("u@example.com")

	resp := app.doJSON(http.MethodPost, "/api/v1/documents/extract", token, map[string]string{
		"storagePath": "users/someone-else/documents/x_notes.pdf",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = app.doJSON(http.MethodPost, "/api/v1/documents/extract", token, map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing path: expected 400, got %d", resp.Code)
	}
}

func TestYouTubeDocumentIsCachedOnCreate(t *testing.T) {
	app := newTestApp(t)
	token := app.register("u@example.com")

	resp := app.doJSON(http.MethodPost, "/api/v1/youtube", token, map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("youtube: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var doc documentView
	decode(t, resp, &doc)
	if doc.Source != "youtube" || !doc.HasText || doc.FileName != "Cell biology" {
		t.Fatalf("unexpected video document: %+v", doc)
	}

	resp = app.doJSON(http.MethodPost, "/api/v1/documents/extract", token, map[string]string{"documentId": doc.DocumentID})
	var ex extractView
	decode(t, resp, &ex)
	if !ex.Cached || ex.Text != "cells are small" {
		t.Fatalf("expected cached transcript: %+v", ex)
	}
	if app.ai.extractCalls.Load() != 0 {
		t.Fatalf("extractor must not run for transcripts")
	}

	resp = app.doJSON(http.MethodPost, "/api/v1/youtube", token, map[string]string{"url": "https://vimeo.com/1"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad url: expected 400, got %d", resp.Code)
	}
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(http.MethodGet, "/api/v1/health", "", nil, "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok":true`) {
		t.Fatalf("health: %d %s", resp.Code, resp.Body.String())
	}
	resp = app.do(http.MethodGet, "/metrics", "", nil, "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "uploads_total") {
		t.Fatalf("metrics: %d %s", resp.Code, resp.Body.String())
	}
}
