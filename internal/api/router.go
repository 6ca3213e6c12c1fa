// Package api wires together all HTTP routes for the record store.
//
// Route groups:
//   - / and /raw/*path serve the page shell with a page-friendly CSP; any
//     other unmatched GET is looked up under the web asset root.
//   - /api/admin requires the admin bearer token.
//   - /api/auth/key-login is public but rate limited per client IP.
//   - /api/user accepts a session token, and requires one when
//     auth.session.required is set.
//   - /health, /ready and /version are unauthenticated probes.
package api

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordstore/recordstore/internal/api/admin"
	"github.com/recordstore/recordstore/internal/api/keyauth"
	"github.com/recordstore/recordstore/internal/api/userdata"
	"github.com/recordstore/recordstore/internal/api/web"
	"github.com/recordstore/recordstore/internal/audit"
	"github.com/recordstore/recordstore/internal/auth"
	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/jobs"
	"github.com/recordstore/recordstore/internal/middleware"
	"github.com/recordstore/recordstore/internal/recordstore"
	"github.com/recordstore/recordstore/internal/safego"
)

// Version is reported by GET /version. Release builds override it with
// -ldflags "-X github.com/recordstore/recordstore/internal/api.Version=...".
var Version = "0.1.0"

// Dependencies are the long-lived objects the router's handlers share.
type Dependencies struct {
	Store *recordstore.Store
	// AdminTokenHash is the bcrypt hash checked by the admin routes
	AdminTokenHash string
	// Sessions is nil when session tokens are disabled
	Sessions *auth.SessionIssuer
	// Shipper is nil when auditing is disabled
	Shipper audit.Shipper
}

// BackgroundServices holds the goroutines and resources started alongside the
// router. The caller (cmd/server) calls Shutdown after the HTTP server has
// drained in-flight requests.
type BackgroundServices struct {
	keyStats     *jobs.KeyStatsCollector
	rateLimiters []*middleware.RateLimiter
	shipper      audit.Shipper
}

// Shutdown stops all background goroutines and flushes the audit shipper.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.keyStats != nil {
		bg.keyStats.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Error("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the gin router and starts the background
// services it depends on.
func NewRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{shipper: deps.Shipper}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS.AllowedOrigins))

	apiHeaders := middleware.APISecurityHeadersConfig()
	pageHeaders := middleware.PageSecurityHeadersConfig()
	if cfg.Security.TLS.Enabled {
		apiHeaders, pageHeaders = apiHeaders.WithHSTS(), pageHeaders.WithHSTS()
	}

	// Probes
	probes := router.Group("/")
	probes.Use(middleware.SecurityHeadersMiddleware(apiHeaders))
	{
		probes.GET("/health", healthCheckHandler())
		probes.GET("/ready", readinessHandler(deps.Store))
		probes.GET("/version", versionHandler())
	}

	// Page shell
	webHandler := web.NewHandler(cfg.Web.IndexPath, cfg.Web.AssetRoot())
	pages := router.Group("/")
	pages.Use(middleware.SecurityHeadersMiddleware(pageHeaders))
	{
		pages.GET("/", webHandler.IndexHandler())
		pages.GET("/raw/*path", webHandler.IndexHandler())
	}
	// GET /raw without the slash is redirected to /raw/ by gin (301).
	// Scripts, styles and images next to the page are served for unmatched paths.
	router.NoRoute(middleware.SecurityHeadersMiddleware(pageHeaders), webHandler.AssetsHandler())

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.SecurityHeadersMiddleware(apiHeaders))
	apiGroup.Use(middleware.BodyLimitMiddleware(cfg.Server.MaxBodyBytes))
	if deps.Shipper != nil {
		apiGroup.Use(middleware.AuditMiddleware(deps.Shipper, &cfg.Audit))
	}

	var adminLimiter, loginLimiter *middleware.RateLimiter
	if cfg.Security.RateLimiting.Enabled {
		generalCfg, loginCfg := middleware.RateLimitConfigsFrom(&cfg.Security.RateLimiting)
		general := middleware.NewRateLimiter(generalCfg)
		loginLimiter = middleware.NewRateLimiter(loginCfg)
		adminLimiter = middleware.NewRateLimiter(middleware.AdminRateLimitConfig())
		bg.rateLimiters = append(bg.rateLimiters, general, loginLimiter, adminLimiter)
		apiGroup.Use(middleware.RateLimitMiddleware(general))
	}

	adminHandlers := admin.NewHandlers(deps.Store)
	adminGroup := apiGroup.Group("/admin")
	adminGroup.Use(middleware.AdminAuthMiddleware(deps.AdminTokenHash, adminLimiter))
	{
		adminGroup.POST("/generate-key", adminHandlers.GenerateKeyHandler())
		adminGroup.GET("/keys", adminHandlers.ListKeysHandler())
		adminGroup.GET("/registrations", adminHandlers.ListRegistrationsHandler())
	}

	// A nil *auth.SessionIssuer must not become a non-nil interface value.
	var issuer keyauth.TokenIssuer
	if deps.Sessions != nil {
		issuer = deps.Sessions
	}
	loginHandler := keyauth.NewHandler(deps.Store, issuer)
	authGroup := apiGroup.Group("/auth")
	if loginLimiter != nil {
		authGroup.Use(middleware.RateLimitMiddleware(loginLimiter))
	}
	authGroup.POST("/key-login", loginHandler.LoginHandler())

	userHandlers := userdata.NewHandlers(deps.Store)
	userGroup := apiGroup.Group("/user")
	userGroup.Use(middleware.SessionMiddleware(deps.Sessions, cfg.Auth.Session.Required))
	{
		userGroup.GET("/data", userHandlers.GetHandler())
		userGroup.POST("/data", userHandlers.SaveHandler())
	}

	bg.keyStats = jobs.NewKeyStatsCollector(deps.Store, cfg.Jobs.KeyStatsInterval)
	safego.Go("key-stats-collector", func() { bg.keyStats.Start(context.Background()) })
	log.Printf("Key stats collector scheduled (every %v)", cfg.Jobs.KeyStatsInterval)

	return router, bg
}

// @Summary      Health check
// @Description  Liveness probe. Always healthy while the process serves HTTP.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Router       /health [get]
func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Pinger is anything whose backend reachability can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// readinessHandler probes the persistence backend so a readiness gate fails
// while writes would fail.
// GET /ready
func readinessHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			slog.Warn("readiness probe failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": gin.H{"store": "unhealthy"},
				"error":  "store backend not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": gin.H{"store": "healthy"},
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the build version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}
