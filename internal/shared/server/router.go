package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/chathistory"
	"studybuddy-backend/internal/content"
	"studybuddy-backend/internal/documents"
	"studybuddy-backend/internal/identity"
	"studybuddy-backend/internal/services/health"
	"studybuddy-backend/internal/shared/config"
	"studybuddy-backend/internal/shared/metrics"
	"studybuddy-backend/internal/shared/server/middleware"
	"studybuddy-backend/internal/shared/server/respond"
)

// APIPrefix is the versioned route group.
const APIPrefix = "/api/v1"

// RouteRegistrar mounts routes on a group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps lists what the router needs. BlobRoutes is nil unless the local
// blob store serves its own signed downloads.
type RouterDeps struct {
	Config             config.Config
	Tokens             middleware.TokenVerifier
	Health             *health.Service
	IdentityHandler    *identity.Handler
	DocumentHandler    *documents.Handler
	ContentHandler     *content.Handler
	ChatHistoryHandler *chathistory.Handler
	BlobRoutes         RouteRegistrar
	RateLimiter        *middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Tokens,
			APIPrefix+"/auth/",
			APIPrefix+"/blobs/",
			APIPrefix+"/health",
			"/metrics",
		),
		middleware.Throttle(middleware.ThrottleConfig{
			Rules:    throttleRules,
			Classify: throttleGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group(APIPrefix)
	api.GET("/health", healthHandler(deps.Health))

	registrars := []RouteRegistrar{
		deps.IdentityHandler,
		deps.DocumentHandler,
		deps.ContentHandler,
		deps.ChatHistoryHandler,
		deps.BlobRoutes,
	}
	for _, reg := range registrars {
		if isNil(reg) {
			continue
		}
		reg.RegisterRoutes(api)
	}

	return r
}

var throttleRules = map[string]middleware.ThrottleRule{
	"EXTRACT": {PerSecond: 0.5, Burst: 5},
	"UPLOAD":  {PerSecond: 1, Burst: 10},
	"AUTH":    {PerSecond: 1, Burst: 10},
	"READ":    {PerSecond: 20, Burst: 60},
}

func throttleGroup(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case strings.HasPrefix(path, APIPrefix+"/auth/"):
		return "AUTH"
	case path == APIPrefix+"/documents/extract":
		return "EXTRACT"
	case c.Request.Method == http.MethodPost && (path == APIPrefix+"/documents" || path == APIPrefix+"/youtube"):
		return "UPLOAD"
	case c.Request.Method == http.MethodGet:
		return "READ"
	default:
		return ""
	}
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		ok, checks := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
	}
}

// isNil catches typed nil handler pointers stored in the interface.
func isNil(reg RouteRegistrar) bool {
	switch v := reg.(type) {
	case nil:
		return true
	case *identity.Handler:
		return v == nil
	case *documents.Handler:
		return v == nil
	case *content.Handler:
		return v == nil
	case *chathistory.Handler:
		return v == nil
	default:
		return false
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
