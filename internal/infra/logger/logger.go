package logger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ServiceName string
	Environment string
	Level       string
	Format      string
}

// New builds the process logger and syncs it on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = normalizeFormat(cfg.Format)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	if zapCfg.Encoding == "console" {
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log, err := zapCfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}

	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "pdf-scrapper"
	}
	log = log.With(
		zap.String("service", service),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
	)
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = log.Sync()
				return nil
			},
		})
	}
	return log, nil
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

type ctxKey struct{}

// WithRequestID stores the request id for FromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext returns the global logger tagged with the request id.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.L()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}
