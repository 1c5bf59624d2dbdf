package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"resumepersona/backend/config"
	"resumepersona/backend/handlers/events"
	"resumepersona/backend/logging"
	"resumepersona/backend/services/cache"
	"resumepersona/backend/services/database"
	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/provisioning"
	"resumepersona/backend/services/reconcile"
	"resumepersona/backend/services/secret"
	"resumepersona/backend/services/session"
	"resumepersona/backend/services/voiceagent"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := database.Open(startCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(startCtx, db); err != nil {
		return err
	}

	key, derived, err := secret.KeyFromConfig(cfg.PersonaSecretKey, cfg.JWTSecretKey)
	if err != nil {
		return err
	}
	if derived {
		logger.Warn("PERSONA_SECRET_KEY not set, deriving the API key sealing key from JWT_SECRET_KEY")
	}
	sealer, err := secret.NewSealer(key)
	if err != nil {
		return err
	}

	var listingCache cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(startCtx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		listingCache = rc
	} else {
		logger.Info("REDIS_URL not set, public listing is not cached")
	}

	identities := identity.NewStore(db, identity.LogMailer{Logger: logger}, identity.Options{
		RequireConfirmation: cfg.Auth.RequireEmailConfirmation,
		ConfirmationTTL:     cfg.Auth.ConfirmationTTL,
		PublicBaseURL:       cfg.Auth.PublicBaseURL,
	}, logger)

	tokens, err := session.NewTokenIssuer(cfg.JWTSecretKey, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	sessions := session.NewManager(tokens, session.NewPgLedger(db))
	hub := events.NewHub(logger)
	sessions.Subscribe(session.LogListener(logger))
	sessions.Subscribe(hub)

	agents := voiceagent.NewClient(cfg.VoiceAgent.BaseURL, cfg.VoiceAgent.Timeout, logger)
	personas := persona.NewStore(db, sealer, listingCache, logger)
	workflow := provisioning.NewWorkflow(identities, agents, personas, sessions, logger)

	if cfg.Reconcile.Enabled {
		worker, err := reconcile.NewWorker(cfg.RedisURL, cfg.Reconcile.Interval, personas, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("reconciler stopped", zap.Error(err))
			}
		}()
	}

	router := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logger,
		workflow:   workflow,
		identities: identities,
		personas:   personas,
		sessions:   sessions,
		hub:        hub,
		health:     healthCheck(db, listingCache),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
