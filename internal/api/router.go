// Package api wires together all HTTP routes for the MailNow admin backend.
//
// Route grouping:
//   - /api/v1 is the dashboard API. Signup, login, verification links and invite
//     acceptance are open but sit behind the stricter auth rate limiter; everything else
//     needs a user JWT. Company scoped routes resolve the caller's role in the company
//     named by :company_id.
//   - /v1 is the public API that customers call with an API key. The company comes from
//     the key and each route requires one capability of the key's permission.
//   - /health, /ready, /version and /metrics are unauthenticated probes.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mailnow/mailnow-admin/internal/api/admin"
	"github.com/mailnow/mailnow-admin/internal/api/public"
	"github.com/mailnow/mailnow-admin/internal/auth"
	"github.com/mailnow/mailnow-admin/internal/config"
	"github.com/mailnow/mailnow-admin/internal/crypto"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
	"github.com/mailnow/mailnow-admin/internal/invites"
	"github.com/mailnow/mailnow-admin/internal/jobs"
	"github.com/mailnow/mailnow-admin/internal/middleware"
	"github.com/mailnow/mailnow-admin/internal/safego"
	"github.com/mailnow/mailnow-admin/internal/services"
	"github.com/mailnow/mailnow-admin/internal/storage"
	"github.com/mailnow/mailnow-admin/internal/validation"

	// Import storage backends to register them
	_ "github.com/mailnow/mailnow-admin/internal/storage/azure"
	_ "github.com/mailnow/mailnow-admin/internal/storage/gcs"
	_ "github.com/mailnow/mailnow-admin/internal/storage/local"
	_ "github.com/mailnow/mailnow-admin/internal/storage/s3"
)

// Options carries the process-level dependencies that NewRouter does not build from cfg.
type Options struct {
	DB *sqlx.DB
	// Redis is nil when redis.enabled is false; invitations and rate limits then stay in
	// process memory.
	Redis   *redis.Client
	Version string
}

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	creditJob    *jobs.CreditResetJob
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.creditJob != nil {
		bg.creditJob.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router and starts the credit reset job.
func NewRouter(cfg *config.Config, opts Options) (*gin.Engine, *BackgroundServices, error) {
	db := opts.DB
	router := gin.New()

	// Storage backend for log exports
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	cipher, err := crypto.FromEncryptionKey(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize secret cipher: %w", err)
	}
	jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize JWT manager: %w", err)
	}
	exportOpts := services.LogExportOptions{
		Backend: cfg.Storage.DefaultBackend,
		URLTTL:  cfg.Exports.URLTTL,
		MaxRows: cfg.Exports.MaxRows,
	}
	if cfg.Exports.PGPPublicKey != "" {
		exportOpts.Recipients, err = validation.ParsePGPRecipients("exports.pgp_public_key", cfg.Exports.PGPPublicKey)
		if err != nil {
			return nil, nil, err
		}
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	companyRepo := repositories.NewCompanyRepository(db)
	industryRepo := repositories.NewIndustryRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	teamRepo := repositories.NewTeamMemberRepository(db)
	smtpRepo := repositories.NewSMTPProfileRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	emailLogRepo := repositories.NewEmailLogRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Invitations, verification tokens and rate limits are shared through Redis when it is
	// configured
	var inviteStore invites.Store
	var verificationStore invites.VerificationStore
	var redisLimiter *redis_rate.Limiter
	if opts.Redis != nil {
		inviteStore = invites.NewRedisStore(opts.Redis, cfg.Invites.TTL)
		verificationStore = invites.NewRedisVerificationStore(opts.Redis, cfg.Invites.VerificationTTL)
		redisLimiter = redis_rate.NewLimiter(opts.Redis)
		slog.Info("using redis for invitations and rate limiting")
	} else {
		inviteStore = invites.NewMemoryStore(cfg.Invites.TTL)
		verificationStore = invites.NewMemoryVerificationStore(cfg.Invites.VerificationTTL)
	}

	// Services
	accounts := services.NewAccountService(userRepo, companyRepo, industryRepo, jwtManager, int64(jwtManager.Expiry().Seconds()))
	accounts.UseVerificationStore(verificationStore, strings.TrimRight(cfg.Server.BaseURL, "/")+"/api/v1/auth/verify-email")
	apiKeys := services.NewAPIKeyService(apiKeyRepo, services.APIKeyOptions{
		MaxGenerationAttempts: cfg.Auth.APIKeys.MaxGenerationAttempts,
		LastUsedTimeout:       cfg.Auth.APIKeys.LastUsedTimeout,
	})
	credits := services.NewCreditService(companyRepo)
	team := services.NewTeamService(teamRepo, companyRepo, userRepo, inviteStore)
	smtpProfiles := services.NewSMTPService(smtpRepo, cipher)
	templates := services.NewTemplateService(templateRepo)
	webhooks := services.NewWebhookService(webhookRepo)
	emailLogs := services.NewEmailLogService(emailLogRepo)
	exporter := services.NewLogExporter(emailLogRepo, storageBackend, exportOpts)
	dashboard := services.NewDashboardService(credits, emailLogs, apiKeys, team)

	// Monthly credit reset
	creditJob := jobs.NewCreditResetJob(credits, &cfg.Credits)
	safego.Go("credit-reset-job", func() { creditJob.Start(context.Background()) })

	// Rate limiters
	generalLimits := middleware.RateLimitConfigFrom(cfg.Security.RateLimiting)
	authLimits := middleware.AuthRateLimitConfig()
	var generalLimiter, authLimiter middleware.Limiter
	var memoryLimiters []*middleware.RateLimiter
	if redisLimiter != nil {
		generalLimiter = middleware.NewRedisLimiter(redisLimiter, generalLimits, "rl:api:")
		authLimiter = middleware.NewRedisLimiter(redisLimiter, authLimits, "rl:auth:")
	} else {
		g := middleware.NewRateLimiter(generalLimits)
		a := middleware.NewRateLimiter(authLimits)
		generalLimiter, authLimiter = g, a
		memoryLimiters = []*middleware.RateLimiter{g, a}
	}
	rateLimit := func(l middleware.Limiter) gin.HandlerFunc {
		if !cfg.Security.RateLimiting.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(l)
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS)))

	router.GET("/", rootHandler())
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, storageBackend))
	router.GET("/version", versionHandler(opts.Version))
	if cfg.Telemetry.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Handlers
	authHandlers := admin.NewAuthHandlers(accounts)
	userHandlers := admin.NewUserHandlers(accounts)
	companyHandlers := admin.NewCompanyHandlers(accounts, credits)
	industryHandlers := admin.NewIndustryHandlers(accounts)
	apiKeyHandlers := admin.NewAPIKeyHandlers(apiKeys, generalLimits.RequestsPerMinute)
	smtpHandlers := admin.NewSMTPHandlers(smtpProfiles)
	templateHandlers := admin.NewTemplateHandlers(templates)
	webhookHandlers := admin.NewWebhookHandlers(webhooks)
	teamHandlers := admin.NewTeamHandlers(team)
	logHandlers := admin.NewLogHandlers(emailLogs, exporter)
	dashboardHandlers := admin.NewDashboardHandlers(dashboard)
	emailHandlers := public.NewEmailHandlers(credits, smtpProfiles, templates, emailLogs)
	resourceHandlers := public.NewResourceHandlers(emailLogs, webhooks)

	audit := middleware.AuditMiddleware(auditRepo, &cfg.Audit)

	// Dashboard API
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/choices", admin.ChoicesHandler())

		// Signed export downloads for backends whose URLs this service serves
		if verifier, ok := storageBackend.(storage.URLVerifier); ok {
			apiV1.GET("/files/*filepath", fileDownloadHandler(storageBackend, verifier))
		}

		// Unauthenticated, rate limited by client IP
		openGroup := apiV1.Group("")
		openGroup.Use(rateLimit(authLimiter), audit)
		{
			openGroup.POST("/auth/signup", authHandlers.SignupHandler())
			openGroup.POST("/auth/login", authHandlers.LoginHandler())
			openGroup.GET("/auth/verify-email", authHandlers.VerifyEmailHandler())
			openGroup.POST("/team/accept-invite", teamHandlers.AcceptInviteHandler())
		}

		authenticated := apiV1.Group("")
		authenticated.Use(middleware.JWTAuthMiddleware(jwtManager, accounts), rateLimit(generalLimiter), audit)
		{
			authenticated.POST("/auth/verify-email", authHandlers.RequestVerificationHandler())
			authenticated.GET("/user/profile", userHandlers.GetProfileHandler())
			authenticated.PUT("/user/profile", userHandlers.UpdateProfileHandler())
			authenticated.PUT("/user/password", userHandlers.ChangePasswordHandler())
			authenticated.DELETE("/user", userHandlers.DeleteAccountHandler())
			authenticated.GET("/companies", userHandlers.ListCompaniesHandler())

			authenticated.GET("/industries", industryHandlers.List)
			authenticated.GET("/industries/:id", industryHandlers.Get)

			staff := authenticated.Group("")
			staff.Use(middleware.RequireStaff())
			{
				staff.POST("/industries", industryHandlers.Create)
				staff.PUT("/industries/:id", industryHandlers.Update)
				staff.DELETE("/industries/:id", industryHandlers.Delete)
				staff.GET("/admin/users", userHandlers.ListUsersHandler())
				staff.GET("/admin/companies", companyHandlers.ListAllCompaniesHandler())
			}

			company := authenticated.Group("/companies/:company_id")
			member := middleware.RequireCompanyRole(team, enums.RoleMember)
			adminRole := middleware.RequireCompanyRole(team, enums.RoleAdmin)
			owner := middleware.RequireCompanyRole(team, enums.RoleOwner)

			// Company profile and billing
			company.GET("", member, companyHandlers.GetCompanyHandler())
			company.PUT("", adminRole, companyHandlers.UpdateCompanyHandler())
			company.DELETE("", owner, companyHandlers.DeleteCompanyHandler())
			company.GET("/credits", member, companyHandlers.GetCreditsHandler())
			company.PUT("/pricing-tier", owner, companyHandlers.SetPricingTierHandler())
			company.GET("/dashboard/stats", member, dashboardHandlers.StatsHandler())

			// API keys
			company.GET("/api-keys", member, apiKeyHandlers.ListAPIKeysHandler())
			company.GET("/api-keys/stats", member, apiKeyHandlers.GetAPIKeyStatsHandler())
			company.POST("/api-keys", adminRole, apiKeyHandlers.CreateAPIKeyHandler())
			company.POST("/api-keys/:id/revoke", adminRole, apiKeyHandlers.RevokeAPIKeyHandler())
			company.DELETE("/api-keys/:id", adminRole, apiKeyHandlers.DeleteAPIKeyHandler())

			// SMTP profiles
			company.GET("/smtp-profiles", member, smtpHandlers.List)
			company.GET("/smtp-profiles/:id", member, smtpHandlers.Get)
			company.POST("/smtp-profiles", adminRole, smtpHandlers.Create)
			company.PUT("/smtp-profiles/:id", adminRole, smtpHandlers.Update)
			company.PATCH("/smtp-profiles/:id/set-default", adminRole, smtpHandlers.SetDefault)
			company.DELETE("/smtp-profiles/:id", adminRole, smtpHandlers.Delete)

			// Templates
			company.GET("/templates", member, templateHandlers.List)
			company.GET("/templates/stats", member, templateHandlers.Stats)
			company.GET("/templates/:id", member, templateHandlers.Get)
			company.POST("/templates", adminRole, templateHandlers.Create)
			company.PUT("/templates/:id", adminRole, templateHandlers.Update)
			company.DELETE("/templates/:id", adminRole, templateHandlers.Delete)

			// Webhooks
			company.GET("/webhooks", member, webhookHandlers.List)
			company.GET("/webhooks/:id", member, webhookHandlers.Get)
			company.POST("/webhooks", adminRole, webhookHandlers.Create)
			company.PUT("/webhooks/:id", adminRole, webhookHandlers.Update)
			company.DELETE("/webhooks/:id", adminRole, webhookHandlers.Delete)

			// Team
			company.GET("/team/members", member, teamHandlers.ListMembersHandler())
			company.POST("/team/members", adminRole, teamHandlers.AddMemberHandler())
			company.PATCH("/team/members/:id", adminRole, teamHandlers.ChangeRoleHandler())
			company.DELETE("/team/members/:id", adminRole, teamHandlers.RemoveMemberHandler())
			company.POST("/team/invite", adminRole, teamHandlers.InviteHandler())

			// Email logs
			company.GET("/logs", member, logHandlers.List)
			company.GET("/logs/stats", member, logHandlers.Stats)
			company.GET("/logs/distribution", member, logHandlers.Distribution)
			company.GET("/logs/:id", member, logHandlers.Get)
			company.POST("/logs/export", adminRole, logHandlers.Export)
		}
	}

	// Public API
	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuthMiddleware(apiKeys), rateLimit(generalLimiter), audit)
	{
		v1.POST("/email/send", middleware.RequireCapability(apiKeys, auth.CapSendEmail), emailHandlers.SendHandler())
		v1.GET("/email/status/:message_id", middleware.RequireCapability(apiKeys, auth.CapReadLogs), emailHandlers.StatusHandler())
		v1.GET("/logs", middleware.RequireCapability(apiKeys, auth.CapReadLogs), resourceHandlers.ListLogs)
		v1.GET("/webhooks", middleware.RequireCapability(apiKeys, auth.CapReadWebhooks), resourceHandlers.ListWebhooks)
		v1.PUT("/webhooks/:id", middleware.RequireCapability(apiKeys, auth.CapConfigureWebhooks), resourceHandlers.UpdateWebhook)
	}

	bg := &BackgroundServices{
		creditJob:    creditJob,
		rateLimiters: memoryLimiters,
	}

	return router, bg, nil
}

// rootHandler answers GET / so load balancers and humans get a quick sign of life.
func rootHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Admin Service is working",
			"data":    nil,
		})
	}
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the export storage backend.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the storage backend so
// that a readiness gate fails when log exports would error.
func readinessHandler(db *sqlx.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Exists() on an absent path exercises credentials and connectivity without
		// creating any state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the build version and the supported API versions.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler(version string) gin.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs one structured record per request. The record is JSON or text
// depending on the slog handler installed by telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		// Probes are noisy; keep them at debug.
		if path == "/health" || path == "/ready" || path == "/metrics" {
			level = slog.LevelDebug
		}

		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", redactQuery(query)),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
			slog.String("service", cfg.Telemetry.ServiceName),
		)
	}
}

// redactQuery hides download signatures so logged URLs cannot be replayed.
func redactQuery(query string) string {
	if !strings.Contains(query, "signature=") {
		return query
	}
	parts := strings.Split(query, "&")
	for i, p := range parts {
		if strings.HasPrefix(p, "signature=") {
			parts[i] = "signature=REDACTED"
		}
	}
	return strings.Join(parts, "&")
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, "+auth.APIKeyHeader+", "+middleware.RequestIDHeader)
			c.Header("Access-Control-Expose-Headers", middleware.RequestIDHeader+", X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
