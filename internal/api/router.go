package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/config"
	"github.com/xproxy/xproxy/internal/handlers"
	"github.com/xproxy/xproxy/internal/handlers/admin"
	"github.com/xproxy/xproxy/internal/middleware"
)

// Dependencies carries the constructed services the router wires
// together. DB may be nil in stateless deployments; the management
// surface is mounted only when persistence is available.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB

	AuthCheck     *handlers.AuthCheckHandler
	Proxy         *handlers.ProxyHandler
	Models        *handlers.ModelsHandler
	UsageRecord   *handlers.UsageRecordHandler
	BudgetBlocked *handlers.BudgetBlockedHandler
	Health        *handlers.HealthHandler

	JWT       *auth.JWTService
	AuthCache *auth.Cache
	Registry  admin.RegistryReloader
}

func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   deps.Config.CORS.AllowedMethods,
		AllowedHeaders:   deps.Config.CORS.AllowedHeaders,
		AllowCredentials: deps.Config.CORS.AllowCredentials,
		MaxAge:           deps.Config.CORS.MaxAge,
	}))

	r.Get("/health", deps.Health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Data-plane surface.
	if deps.AuthCheck != nil {
		r.Post("/auth/check", deps.AuthCheck.ServeHTTP)
	}
	if deps.UsageRecord != nil {
		r.Post("/usage/record", deps.UsageRecord.ServeHTTP)
	}
	if deps.BudgetBlocked != nil {
		r.Get("/budget/blocked", deps.BudgetBlocked.ServeHTTP)
	}

	// Proxy surface.
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", deps.Proxy.ChatCompletions)
		r.Post("/messages", deps.Proxy.Messages)
		r.Post("/responses", deps.Proxy.Responses)
		r.Get("/models", deps.Models.ServeHTTP)
	})
	r.Post("/agents/v1/chat/completions", deps.Proxy.Agents)

	// Management surface, only with a database.
	if deps.DB != nil && deps.JWT != nil {
		mountAdmin(r, deps)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	return r
}

func mountAdmin(r chi.Router, deps *Dependencies) {
	authHandler := admin.NewAuthHandler(deps.DB, deps.JWT, deps.Logger)
	projectHandler := admin.NewProjectHandler(deps.DB, deps.Logger)
	pipeHandler := admin.NewPipeHandler(deps.DB, deps.Logger)
	tokenHandler := admin.NewTokenHandler(deps.DB, deps.AuthCache, deps.Logger)
	keyHandler := admin.NewRegisteredKeyHandler(deps.DB, deps.Registry, deps.Logger)
	limitHandler := admin.NewLimitHandler(deps.DB, deps.Logger)
	pricingHandler := admin.NewPricingHandler(deps.DB, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireSession(deps.JWT, deps.Logger))

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectHandler.Create)
				r.Get("/", projectHandler.List)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Delete("/", projectHandler.Delete)

					r.Post("/pipes", pipeHandler.Create)
					r.Get("/pipes", pipeHandler.List)
					r.Delete("/pipes/{pipeID}", pipeHandler.Delete)

					r.Post("/tokens", tokenHandler.Create)
					r.Get("/tokens", tokenHandler.List)
					r.Delete("/tokens/{tokenID}", tokenHandler.Revoke)

					r.Post("/keys", keyHandler.Create)
					r.Get("/keys", keyHandler.List)
					r.Delete("/keys/{keyID}", keyHandler.Delete)

					r.Post("/limits", limitHandler.Set)
					r.Get("/limits", limitHandler.List)

					r.Post("/pricing", pricingHandler.Create)
					r.Get("/pricing", pricingHandler.List)
				})
			})
		})
	})
}
