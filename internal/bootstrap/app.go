package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"studybuddy-backend/internal/aiservice"
	"studybuddy-backend/internal/chathistory"
	"studybuddy-backend/internal/content"
	"studybuddy-backend/internal/documents"
	"studybuddy-backend/internal/extract"
	"studybuddy-backend/internal/identity"
	"studybuddy-backend/internal/services/health"
	"studybuddy-backend/internal/shared/auth"
	"studybuddy-backend/internal/shared/config"
	"studybuddy-backend/internal/shared/server"
	"studybuddy-backend/internal/shared/storage/blob"
	"studybuddy-backend/internal/shared/storage/blob/local"
	miniostore "studybuddy-backend/internal/shared/storage/blob/minio"
	s3store "studybuddy-backend/internal/shared/storage/blob/s3"
	"studybuddy-backend/internal/shared/storage/db"
	"studybuddy-backend/internal/shared/telemetry"
)

// App holds constructed dependencies for the process lifetime.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Store  blob.Store
	Tokens *auth.Issuer

	DocumentsRepo   documents.Repo
	ChatHistoryRepo chathistory.Repo
	UsersRepo       identity.Repo

	DocumentsService   *documents.Service
	Content            *content.Coordinator
	ChatHistoryService *chathistory.Service
	IdentityService    *identity.Service
	Health             *health.Service
}

// Build constructs every dependency and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL, cfg.Env)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, blobRoutes, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  blob.WithTimeout(store, cfg.BlobTimeout),
		Tokens: tokens,
		Health: health.NewService(),
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	deps := server.RouterDeps{
		Config:             cfg,
		Tokens:             tokens,
		Health:             app.Health,
		IdentityHandler:    identity.NewHandler(app.IdentityService),
		DocumentHandler:    documents.NewHandler(app.DocumentsService),
		ContentHandler:     content.NewHandler(app.Content),
		ChatHistoryHandler: chathistory.NewHandler(app.ChatHistoryService),
	}
	if blobRoutes != nil {
		deps.BlobRoutes = blobRoutes
	}
	app.Router = server.NewRouter(deps)

	return app, nil
}

// Close releases database and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (blob.Store, *local.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "minio":
		store, err := miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		if cfg.BlobSigningKey == "" && !cfg.IsDevLike() {
			return nil, nil, fmt.Errorf("BLOB_SIGNING_KEY is required for the local object store outside dev")
		}
		store := local.New(cfg.LocalStoreDir, cfg.PublicBaseURL, cfg.BlobSigningKey)
		return store, store, nil
	}
}

func buildChatHistoryRepo(ctx context.Context, app *App) (chathistory.Repo, error) {
	kind := app.Config.ChatHistoryStore
	if kind == "" {
		kind = "memory"
		if app.DB != nil {
			kind = "postgres"
		}
	}
	switch kind {
	case "redis":
		cli, err := chathistory.DialRedis(ctx, app.Config.RedisAddr, app.Config.RedisPassword, app.Config.RedisDB)
		if err != nil {
			return nil, err
		}
		app.Redis = cli
		app.Health.Register("redis", func(ctx context.Context) error { return cli.Ping(ctx).Err() })
		return chathistory.NewRedisRepo(cli, 0), nil
	case "postgres":
		if app.DB == nil {
			return nil, fmt.Errorf("CHAT_HISTORY_STORE=postgres requires DATABASE_URL")
		}
		return &chathistory.PGRepo{DB: app.DB}, nil
	default:
		return chathistory.NewMemoryRepo(), nil
	}
}

func buildServices(ctx context.Context, app *App) error {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.UsersRepo = &identity.PGRepo{DB: app.DB}
		app.Health.Register("database", app.DB.PingContext)
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.UsersRepo = identity.NewMemoryRepo()
	}

	chatRepo, err := buildChatHistoryRepo(ctx, app)
	if err != nil {
		return err
	}
	app.ChatHistoryRepo = chatRepo

	var extractor extract.Extractor = extract.PDF{}
	var transcripts documents.TranscriptFetcher
	if app.Config.AIServiceURL != "" {
		client, err := aiservice.NewClient(app.Config.AIServiceURL, app.Config.AIServiceTimeout)
		if err != nil {
			return err
		}
		extractor = client
		transcripts = client
	}

	app.DocumentsService = &documents.Service{
		Store:       app.Store,
		Repo:        app.DocumentsRepo,
		Transcripts: transcripts,
	}
	app.Content = content.New(app.DocumentsRepo, app.Store, extractor, content.Options{
		ExtractTimeout: app.Config.AIServiceTimeout,
		Dedup:          app.Config.ExtractDedup,
	})
	app.ChatHistoryService = chathistory.NewService(chatRepo, app.DocumentsService)
	app.IdentityService = identity.NewService(identity.NewLocal(app.UsersRepo, app.Tokens))

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":           app.Config.Env,
		"object_store":  app.Config.ObjectStoreType,
		"database":      app.DB != nil,
		"chat_history":  fmt.Sprintf("%T", chatRepo),
		"ai_service":    app.Config.AIServiceURL != "",
		"extract_dedup": app.Config.ExtractDedup,
	})
	return nil
}
