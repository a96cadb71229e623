package router

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/straye-as/deal-engine/internal/auth"
	"github.com/straye-as/deal-engine/internal/catalog"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/database"
	"github.com/straye-as/deal-engine/internal/http/handler"
	"github.com/straye-as/deal-engine/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/deal-engine/docs" // Import generated swagger docs
)

// WarehouseHealth reports the warehouse connection state for readiness
type WarehouseHealth interface {
	HealthCheck(ctx context.Context) *catalog.HealthStatus
}

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	warehouse       WarehouseHealth
	authMiddleware  *auth.Middleware
	rateLimiter     *middleware.RateLimiter
	dealHandler     *handler.DealHandler
	documentHandler *handler.DocumentHandler
	formHandler     *handler.FormHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	warehouse WarehouseHealth,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	dealHandler *handler.DealHandler,
	documentHandler *handler.DocumentHandler,
	formHandler *handler.FormHandler,
) *Router {
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		warehouse:       warehouse,
		authMiddleware:  authMiddleware,
		rateLimiter:     rateLimiter,
		dealHandler:     dealHandler,
		documentHandler: documentHandler,
		formHandler:     formHandler,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health check (basic liveness check)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Database health check with pool statistics
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats":   stats,
		})
	})

	// Readiness: the database is required, the warehouse only when enabled
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{"status": "healthy"}
		}

		if rt.warehouse != nil {
			status := rt.warehouse.HealthCheck(r.Context())
			checks["warehouse"] = status
			if status.Status == "unhealthy" && rt.cfg.Catalog.Source == catalog.SourceWarehouse {
				allHealthy = false
			}
		}

		status, code := "healthy", http.StatusOK
		if !allHealthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
	})

	if rt.cfg.Server.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.rateLimiter.Limit)

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", rt.dealHandler.List)
			r.Post("/", rt.dealHandler.Create)

			r.Route("/{dealId}", func(r chi.Router) {
				r.Get("/", rt.dealHandler.Get)
				r.Put("/", rt.dealHandler.Update)
				r.Delete("/", rt.dealHandler.Delete)
				r.Get("/latest", rt.dealHandler.GetLatest)
				r.Get("/history", rt.dealHandler.History)
				r.Post("/numbers/{kind}", rt.dealHandler.AssignNumber)

				// Negotiation
				r.Get("/versions", rt.dealHandler.ListVersions)
				r.Post("/versions", rt.dealHandler.CreateVersion)
				r.Delete("/versions/last", rt.dealHandler.DeleteLastVersion)
				r.Post("/versions/{version}/accept", rt.dealHandler.AcceptVersion)
				r.Post("/versions/{version}/reject", rt.dealHandler.RejectVersion)

				// Documents
				r.Get("/documents", rt.documentHandler.List)
				r.Post("/documents", rt.documentHandler.Upload)
				r.Get("/documents/{documentId}/download", rt.documentHandler.Download)
				r.Post("/documents/{documentId}/sent", rt.documentHandler.MarkSent)
				r.Delete("/documents/{documentId}", rt.documentHandler.Delete)

				// Form drafts
				r.Get("/forms/{documentType}", rt.formHandler.Get)
				r.Get("/forms/{documentType}/content", rt.formHandler.Content)
				r.Put("/forms/{documentType}", rt.formHandler.Save)
			})
		})
	})

	return r
}
