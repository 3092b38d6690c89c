package local

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/server/respond"
)

// RegisterRoutes mounts the signed download route. The group must not require
// a bearer token: the signature is the credential.
func (s *Store) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/blobs/*path", s.download)
}

func (s *Store) download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("path"), "/")

	if err := s.Verify(key, c.Query("expires"), c.Query("sig")); err != nil {
		respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
		return
	}

	obj, err := s.Fetch(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "blob not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read blob", nil)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": path.Base(key)}))
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
