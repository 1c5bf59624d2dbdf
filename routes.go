package main

import (
	"context"
	"database/sql"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"resumepersona/backend/config"
	"resumepersona/backend/handlers"
	"resumepersona/backend/handlers/auth"
	"resumepersona/backend/handlers/document"
	"resumepersona/backend/handlers/events"
	"resumepersona/backend/handlers/personas"
	"resumepersona/backend/handlers/profile"
	"resumepersona/backend/handlers/response"
	"resumepersona/backend/handlers/status"
	"resumepersona/backend/handlers/user"
	"resumepersona/backend/services/cache"
	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/provisioning"
	"resumepersona/backend/services/session"
)

type Workflow interface {
	auth.Workflow
	personas.Workflow
	status.Reporter
}

type Identities interface {
	auth.Confirmer
	user.Accounts
	handlers.SeedAccounts
}

type PersonaStore interface {
	profile.Store
	handlers.SeedPersonas
}

type routerDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	workflow   Workflow
	identities Identities
	personas   PersonaStore
	sessions   auth.Resumer
	hub        *events.Hub
	health     func(ctx context.Context) error
}

var (
	_ Workflow     = (*provisioning.Workflow)(nil)
	_ Identities   = (*identity.Store)(nil)
	_ PersonaStore = (*persona.Store)(nil)
	_ auth.Resumer = (*session.Manager)(nil)
)

func newRouter(d routerDeps) http.Handler {
	logger := d.logger
	r := mux.NewRouter()

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   d.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	})

	r.HandleFunc("/healthz", healthHandler(d.health)).Methods("GET")

	// Public routes (no auth required)
	r.HandleFunc("/api/auth/signup", auth.SignupHandler(d.workflow, logger)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/login", auth.LoginHandler(d.workflow, logger)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/confirm", auth.ConfirmHandler(d.identities, logger)).Methods("GET")
	r.HandleFunc("/api/documents/extract", document.ExtractHandler(d.cfg.UploadMaxBytes, logger)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/personas", personas.ListPublicHandler(d.workflow)).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/personas/{id}", personas.GetPublicHandler(d.workflow, logger)).Methods("GET", "OPTIONS")
	r.HandleFunc("/ws/events", events.HandleWebSocket(d.hub, d.sessions, originChecker(d.cfg.CORS.AllowedOrigins), logger))

	if d.cfg.DevRoutes {
		logger.Warn("dev routes enabled")
		r.HandleFunc("/api/dev/seed-personas", handlers.GenerateSeedPersonasHandler(d.identities, d.personas, logger)).Methods("POST", "OPTIONS")
	}

	// Create a subrouter for protected routes
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(auth.Middleware(d.sessions))

	protected.HandleFunc("/auth/logout", auth.LogoutHandler(d.workflow, logger)).Methods("POST", "OPTIONS")

	// Me routes
	protected.HandleFunc("/me", user.GetMeHandler(d.identities, d.personas, logger)).Methods("GET", "OPTIONS")
	protected.HandleFunc("/me/profile", profile.GetMyProfileHandler(d.personas, logger)).Methods("GET", "OPTIONS")
	protected.HandleFunc("/me/profile", profile.UpdateProfileHandler(d.personas, logger)).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/me/persona", personas.GetMineHandler(d.workflow, logger)).Methods("GET", "OPTIONS")
	protected.HandleFunc("/me/persona", personas.DeleteMineHandler(d.workflow, logger)).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/status", status.GetMyStatusHandler(d.workflow, logger)).Methods("GET", "OPTIONS")

	// Persona routes
	protected.HandleFunc("/personas", personas.CreateHandler(d.workflow, logger)).Methods("POST", "OPTIONS")
	protected.HandleFunc("/personas/{id}/visibility", personas.SetVisibilityHandler(d.workflow, logger)).Methods("PUT", "OPTIONS")

	return c.Handler(r)
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func healthCheck(db *sql.DB, c cache.Cache) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return c.Ping(ctx)
	}
}

// originChecker mirrors the CORS allow-list for websocket upgrades.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
