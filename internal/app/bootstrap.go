package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"blog-backend/internal/auth"
	"blog-backend/internal/blog"
	"blog-backend/internal/config"
	"blog-backend/internal/db"
	"blog-backend/internal/media"
	"blog-backend/internal/observability"
	"blog-backend/internal/password"
	"blog-backend/internal/token"
	"blog-backend/internal/user"
)

type Options struct {
	LoadDotEnv bool
}

type Runtime struct {
	Handler http.Handler
	Addr    string
	Logger  *observability.Logger
	Close   func() error
}

// Build wires the whole server: config, observability, store, session
// manager, authorization gate and routes.
func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	hasher := password.NewHasher(cfg.BcryptCost)
	tokens := token.NewManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	userRepo := user.NewRepository(database)
	userService := user.NewService(userRepo, hasher, tokens)
	userHandler := user.NewHandler(userService, user.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})

	if err := userService.SeedAdmin(ctx, cfg.AdminName, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	gate := auth.NewGate(tokens, userService)
	limiter := auth.NewRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)

	blogRepo := blog.NewRepository(database)
	blogHandler := blog.NewHandler(blogRepo)

	var uploader media.CoverUploader
	if cfg.CloudinaryURL != "" {
		uploader, err = media.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init cloudinary: %w", err)
		}
	}
	uploadHandler := media.NewUploadHandler(uploader)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler(database))

	mux.HandleFunc("POST /api/v1/users/register", userHandler.Register)
	mux.Handle("POST /api/v1/users/login", limiter.Middleware(http.HandlerFunc(userHandler.Login)))
	mux.HandleFunc("POST /api/v1/users/refresh", userHandler.Refresh)
	mux.Handle("POST /api/v1/users/logout", gate.Authenticate(http.HandlerFunc(userHandler.Logout)))
	mux.Handle("POST /api/v1/users/update-password", gate.Authenticate(http.HandlerFunc(userHandler.UpdatePassword)))
	mux.Handle("POST /api/v1/users/forget-password", limiter.Middleware(http.HandlerFunc(userHandler.ForgetPassword)))
	mux.Handle("GET /api/v1/users/me", gate.Authenticate(http.HandlerFunc(userHandler.Me)))
	mux.Handle("PATCH /api/v1/users/update", gate.Authenticate(http.HandlerFunc(userHandler.Update)))
	mux.Handle("DELETE /api/v1/users/{userid}", gate.Authenticate(auth.RequireRole(auth.RoleAdmin, http.HandlerFunc(userHandler.Delete))))
	mux.Handle("GET /api/v1/users", gate.Authenticate(auth.RequireRole(auth.RoleAdmin, http.HandlerFunc(userHandler.List))))

	mux.Handle("POST /api/v1/blogs", gate.Authenticate(http.HandlerFunc(blogHandler.Create)))
	mux.Handle("GET /api/v1/blogs", gate.Authenticate(http.HandlerFunc(blogHandler.List)))
	mux.Handle("GET /api/v1/blogs/filter", gate.Authenticate(http.HandlerFunc(blogHandler.Filter)))
	mux.Handle("GET /api/v1/blogs/filterbydate", gate.Authenticate(http.HandlerFunc(blogHandler.FilterByDate)))
	mux.Handle("GET /api/v1/blogs/{id}", gate.Authenticate(http.HandlerFunc(blogHandler.GetByID)))
	mux.Handle("PATCH /api/v1/blogs/{id}", gate.Authenticate(http.HandlerFunc(blogHandler.Update)))
	mux.Handle("DELETE /api/v1/blogs/{id}", gate.Authenticate(http.HandlerFunc(blogHandler.Delete)))

	mux.Handle("POST /api/v1/media/upload", gate.Authenticate(http.HandlerFunc(uploadHandler.Upload)))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Addr:    ":" + cfg.Port,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
