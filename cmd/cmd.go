package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-backend/internal/config"
	"chat-backend/internal/handlers"
	"chat-backend/internal/repository"
	"chat-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Initialize stores
	var (
		userStore    services.UserStore
		messageStore services.MessageStore
		pinger       handlers.Pinger
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := repository.NewMemoryStore()
		userStore, messageStore, pinger = store, store.Messages(), store
		log.Warn().Msg("Using in-memory store, data is lost on restart")
	default:
		db := connectDatabase(ctx, cfg.Database)
		defer db.Close()
		userRepo := repository.NewUserRepository(db)
		userStore, messageStore, pinger = userRepo, repository.NewMessageRepository(db), userRepo
	}

	// Real-time delivery
	wsHub := services.NewWSHub()
	var relay services.Relay
	if cfg.NATS.URL != "" {
		nc, natsRelay := connectRelay(cfg.NATS, wsHub)
		defer nc.Drain()
		defer natsRelay.Close()
		relay = natsRelay
	}
	notifier := services.NewNotifier(wsHub, relay)

	// Image uploads
	var uploader services.ImageUploader
	if cfg.AWS.S3Bucket != "" {
		s3Uploader, err := services.NewS3ImageUploader(ctx, services.S3Options{
			Region:        cfg.AWS.Region,
			Bucket:        cfg.AWS.S3Bucket,
			AccessKey:     cfg.AWS.AccessKey,
			SecretKey:     cfg.AWS.SecretKey,
			Endpoint:      cfg.AWS.Endpoint,
			PublicBaseURL: cfg.AWS.PublicBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create image uploader")
		}
		uploader = s3Uploader
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Image uploads enabled")
	}

	// Initialize services
	userService := services.NewUserService(userStore, cfg.JWT.Secret, cfg.JWT.TokenTTL)
	messageService := services.NewMessageService(messageStore, userStore, notifier, uploader)

	// Setup router
	router := handlers.NewRouter(handlers.RouterConfig{
		UserService:    userService,
		MessageService: messageService,
		Hub:            wsHub,
		Store:          pinger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SendPerMinute:  cfg.RateLimit.SendPerMinute,
		SecureCookie:   os.Getenv("ENV") == "production",
	})

	// Create HTTP server. WriteTimeout stays unset so hijacked WebSocket connections are not cut.
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("driver", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not closed by Shutdown
	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func connectDatabase(ctx context.Context, dbCfg config.DatabaseConfig) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}
	if dbCfg.MaxConns > 0 {
		poolCfg.MaxConns = dbCfg.MaxConns
	}

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}
	return db
}

func connectRelay(natsCfg config.NATSConfig, hub *services.WSHub) (*nats.Conn, *services.NATSRelay) {
	nc, err := nats.Connect(natsCfg.URL,
		nats.Name("chat-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Str("url", natsCfg.URL).Msg("Failed to connect to NATS")
	}

	relay := services.NewNATSRelay(nc, hub, natsCfg.SubjectPrefix)
	if err := relay.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start NATS relay")
	}
	return nc, relay
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
