package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/telemetry"
)

func TestFromErrorMapsTaxonomy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := telemetry.SetOutput(&bytes.Buffer{})
	defer restore()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid", err: apperr.Invalid("file is empty"), status: http.StatusBadRequest, code: "validation_error"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
		{name: "missing", err: apperr.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "ownership", err: apperr.ErrUnauthorized, status: http.StatusForbidden, code: "forbidden"},
		{name: "upstream", err: apperr.Upstream("blob store", "users/u1/a.pdf", errors.New("dial tcp: secret")), status: http.StatusBadGateway, code: "upstream_unavailable"},
		{name: "persistence", err: apperr.Persistence("documents", "d1", errors.New("pq: password failed")), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			FromError(c, tt.err)

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, body.Error.Code)
			}
			if strings.Contains(body.Error.Message, "secret") || strings.Contains(body.Error.Message, "password") {
				t.Fatalf("cause leaked to caller: %s", body.Error.Message)
			}
		})
	}
}

func TestFromErrorNamesResource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := telemetry.SetOutput(&bytes.Buffer{})
	defer restore()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	FromError(c, apperr.Upstream("extractor", "users/u1/a.pdf", errors.New("timeout")))

	if !strings.Contains(w.Body.String(), "extractor") || !strings.Contains(w.Body.String(), "users/u1/a.pdf") {
		t.Fatalf("expected resource and key in body: %s", w.Body.String())
	}
}
