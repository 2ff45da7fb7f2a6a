package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	adminapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/admin"
	authapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/auth"
	billingapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/billing"
	creditsapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/credits"
	plansapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/plans"
	stripewebhooks "github.com/shahzaibimran219/pdf-scrapper/internal/api/stripewebhook"
	usersapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/users"
	"github.com/shahzaibimran219/pdf-scrapper/internal/app/http/middleware"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/logger"
)

type EngineConfig struct {
	CORSOrigins []string
	Release     bool
	Gatherer    prometheus.Gatherer
}

func NewEngine(cfg EngineConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return r
}

type Handlers struct {
	fx.In

	Auth    *authapi.Handler
	Billing *billingapi.Handler
	Credits *creditsapi.Handler
	Users   *usersapi.Handler
	Admin   *adminapi.Handler
	Plans   *plansapi.Handler
	Webhook *stripewebhooks.Handler
}

// RegisterRoutes mounts the API. The webhook sits outside the sanitizer:
// its signature covers the raw body.
func RegisterRoutes(r *gin.Engine, h Handlers, jwtSecret string, db *gorm.DB) {
	r.POST("/webhook", h.Webhook.StripeWebhook)

	public := r.Group("/")
	public.Use(middleware.SanitizeInput())
	public.GET("/plans", h.Plans.ListPlans)
	public.GET("/auth/google", h.Auth.GoogleStart)
	public.GET("/auth/google/callback", h.Auth.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(jwtSecret), middleware.SanitizeInput())
	auth.GET("/me", h.Users.GetCurrentUser)

	auth.POST("/billing/checkout", h.Billing.Checkout)
	auth.POST("/billing/downgrade", h.Billing.ScheduleDowngrade)
	auth.POST("/billing/downgrade/cancel", h.Billing.CancelDowngrade)
	auth.POST("/billing/cancel", h.Billing.CancelSubscription)
	auth.POST("/billing/portal", h.Billing.Portal)
	auth.GET("/billing/verify-session", h.Billing.VerifySession)
	auth.GET("/billing/me", h.Billing.Me)

	auth.GET("/credits/ledger", h.Credits.Ledger)

	// Extraction requires an unfrozen account
	scraping := auth.Group("/")
	scraping.Use(middleware.RequireScrapingEnabled(db))
	scraping.POST("/credits/debit", h.Credits.Debit)

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtSecret), middleware.RequireRole(users.RoleAdmin))
	admin.GET("/users", h.Admin.ListAllUsers)
	admin.GET("/users/:id/ledger", h.Admin.UserLedger)
	admin.GET("/cancellations", h.Admin.ListCancellations)
}

// RunHTTP serves r for the lifetime of the fx app.
func RunHTTP(lc fx.Lifecycle, r *gin.Engine, addr string, log *zap.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
