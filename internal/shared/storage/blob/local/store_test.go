package local

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/storage/blob"
)

const testKey = "users/u1/documents/abc_notes.pdf"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), "http://files.test", "test-signing-key")
}

func TestPutFetchRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	body := []byte("%PDF-1.4 hello")
	if err := s.Put(ctx, testKey, body, "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err := s.Fetch(ctx, testKey)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(obj.Data) != string(body) {
		t.Fatalf("unexpected data: %q", obj.Data)
	}
	if obj.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type: %s", obj.ContentType)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, testKey, []byte("one"), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, testKey, []byte("two"), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err := s.Fetch(ctx, testKey)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(obj.Data) != "two" {
		t.Fatalf("expected overwrite, got %q", obj.Data)
	}
}

func TestPutRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	err := s.Put(context.Background(), "../escape.pdf", []byte("x"), "application/pdf")
	if !errors.Is(err, blob.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestSignedURLMissingBlob(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SignedURL(context.Background(), testKey, blob.SignedURLValidity)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Fetch(context.Background(), testKey); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on fetch, got %v", err)
	}
	if err := s.Delete(context.Background(), testKey); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestSignedURLsAreFreshAndValid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, testKey, []byte("%PDF-1.4"), "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	first, err := s.SignedURL(ctx, testKey, blob.SignedURLValidity)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	now = now.Add(time.Minute)
	second, err := s.SignedURL(ctx, testKey, blob.SignedURLValidity)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if first == second {
		t.Fatalf("expected a new URL per call")
	}

	for _, raw := range []string{first, second} {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		key := strings.TrimPrefix(u.Path, RoutePrefix)
		if err := s.Verify(key, u.Query().Get("expires"), u.Query().Get("sig")); err != nil {
			t.Fatalf("expected valid signature for %s: %v", raw, err)
		}
	}

	now = now.Add(blob.SignedURLValidity + time.Minute)
	u, _ := url.Parse(first)
	if err := s.Verify(testKey, u.Query().Get("expires"), u.Query().Get("sig")); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expiry after the window, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := newTestStore(t)
	if err := s.Verify(testKey, "notanumber", "sig"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected bad signature, got %v", err)
	}
	expires := time.Now().Add(time.Hour).Unix()
	sig := s.sign(testKey, expires)
	if err := s.Verify("users/u2/documents/other.pdf", "0", sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected other key to fail, got %v", err)
	}
}

func TestDownloadRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, testKey, []byte("%PDF-1.4 body"), "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	signed, err := s.SignedURL(ctx, testKey, time.Hour)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}

	router := gin.New()
	s.RegisterRoutes(router.Group("/api/v1"))

	u, _ := url.Parse(signed)
	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Body.String() != "%PDF-1.4 body" {
		t.Fatalf("unexpected body: %q", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, RoutePrefix+testKey+"?expires=1&sig=bad", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad signature, got %d", resp.Code)
	}
}

func TestFetchReturnsDeclaredContentType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "users/u1/youtube/vid123.txt"

	if err := s.Put(ctx, key, []byte("<html> transcript"), "text/plain; charset=utf-8"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err := s.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if obj.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("expected declared type, got %s", obj.ContentType)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Put(ctx, key, []byte("%PDF-1.4 again"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err = s.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if obj.ContentType != "application/pdf" {
		t.Fatalf("expected sniffed type after delete, got %s", obj.ContentType)
	}
}

func TestSignedURLDownloadsReservedCharacterNames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	ctx := context.Background()
	router := gin.New()
	s.RegisterRoutes(router.Group("/api/v1"))

	names := []string{"plain notes.pdf", "notes #1.pdf", "what?.pdf", "50% off.pdf", "a&b=c+d.pdf"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			key := "users/u1/documents/abc_" + name
			body := "%PDF-1.4 " + name
			if err := s.Put(ctx, key, []byte(body), "application/pdf"); err != nil {
				t.Fatalf("Put: %v", err)
			}
			signed, err := s.SignedURL(ctx, key, time.Hour)
			if err != nil {
				t.Fatalf("SignedURL: %v", err)
			}
			u, err := url.Parse(signed)
			if err != nil {
				t.Fatalf("signed url does not parse: %v", err)
			}
			if u.Fragment != "" {
				t.Fatalf("signed url has a fragment: %s", signed)
			}
			if u.Query().Get("sig") == "" || u.Query().Get("expires") == "" {
				t.Fatalf("signed url lost its query: %s", signed)
			}

			req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
			}
			if resp.Body.String() != body {
				t.Fatalf("unexpected body: %q", resp.Body.String())
			}
		})
	}
}

func TestDownloadQuotesFilename(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	ctx := context.Background()
	key := `users/u1/documents/abc_say "hi"; x=1.pdf`
	if err := s.Put(ctx, key, []byte("%PDF-1.4"), "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	signed, err := s.SignedURL(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}

	router := gin.New()
	s.RegisterRoutes(router.Group("/api/v1"))
	u, _ := url.Parse(signed)
	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type: %s", ct)
	}

	disposition, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("parse Content-Disposition %q: %v", resp.Header().Get("Content-Disposition"), err)
	}
	if disposition != "inline" {
		t.Fatalf("unexpected disposition: %s", disposition)
	}
	if params["filename"] != `abc_say "hi"; x=1.pdf` {
		t.Fatalf("unexpected filename: %q", params["filename"])
	}
	if len(params) != 1 {
		t.Fatalf("filename leaked extra params: %v", params)
	}
}
