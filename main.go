package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shahzaibimran219/pdf-scrapper/config"
	"github.com/shahzaibimran219/pdf-scrapper/database"
	adminapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/admin"
	authapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/auth"
	billingapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/billing"
	creditsapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/credits"
	plansapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/plans"
	stripewebhooks "github.com/shahzaibimran219/pdf-scrapper/internal/api/stripewebhook"
	usersapi "github.com/shahzaibimran219/pdf-scrapper/internal/api/users"
	appbilling "github.com/shahzaibimran219/pdf-scrapper/internal/app/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/app/credits"
	routes "github.com/shahzaibimran219/pdf-scrapper/internal/app/http"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/clock"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/logger"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/metrics"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/redislock"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/stripe"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.Load,
			config.LoadCatalog,
			func(cfg config.Config) logger.Config {
				return logger.Config{
					ServiceName: "pdf-scrapper",
					Environment: cfg.AppEnv,
					Level:       cfg.LogLevel,
					Format:      cfg.LogFormat,
				}
			},
			logger.New,
			func() *metrics.Metrics { return metrics.New(prometheus.DefaultRegisterer) },
			func() clock.Clock { return clock.System{} },
			openDatabase,
			newProcessor,
			newLocker,
			credits.NewLedger,
			func(cfg config.Config) appbilling.Config {
				return appbilling.Config{
					SuccessURL:      cfg.CheckoutSuccessURL(),
					CancelURL:       cfg.CheckoutCancelURL(),
					PortalReturnURL: cfg.PortalReturnURL(),
				}
			},
			appbilling.NewService,

			authapi.NewHandler,
			billingapi.NewHandler,
			creditsapi.NewHandler,
			usersapi.NewHandler,
			adminapi.NewHandler,
			plansapi.NewHandler,
			func(svc *appbilling.Service, log *zap.Logger) *stripewebhooks.Handler {
				return stripewebhooks.NewHandler(svc, log)
			},
			func(cfg config.Config) *gin.Engine {
				return routes.NewEngine(routes.EngineConfig{
					CORSOrigins: cfg.CORSOrigins,
					Release:     cfg.AppEnv == "production",
					Gatherer:    prometheus.DefaultGatherer,
				})
			},
		),
		fx.Invoke(func(r *gin.Engine, h routes.Handlers, cfg config.Config, db *gorm.DB) {
			routes.RegisterRoutes(r, h, cfg.JWTSecret, db)
		}),
		fx.Invoke(func(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
			routes.RunHTTP(lc, r, ":"+cfg.Port, log)
		}),
	)
	app.Run()
}

func openDatabase(lc fx.Lifecycle, cfg config.Config) (*gorm.DB, error) {
	db, err := database.Open(database.Config{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBURL,
		Logger: logger.NewGormLogger(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func newProcessor(cfg config.Config, log *zap.Logger) (billing.Processor, error) {
	c, err := stripe.New(stripe.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	}, log)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// newLocker returns a nil Locker without REDIS_URL; checkout then runs
// unlocked.
func newLocker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (appbilling.Locker, error) {
	if cfg.RedisURL == "" {
		log.Info("redis not configured, checkout lock disabled")
		return nil, nil
	}
	client, err := redislock.Connect(context.Background(), cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return client.Close() },
	})
	return redislock.New(client), nil
}
