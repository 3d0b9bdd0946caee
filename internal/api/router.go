package api

import (
	"net/http"

	"github.com/getkayan/warden/internal/health"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RouterConfig collects what NewRouter mounts. Nil handlers are skipped.
type RouterConfig struct {
	Prefix      string
	CORSOrigins []string
	Logger      *zap.Logger

	Auth      *Handler
	Resources *ResourceHandler
	Health    *health.Manager
	Metrics   http.Handler
}

// NewRouter builds the echo instance with middleware, the error envelope
// and every route.
func NewRouter(cfg RouterConfig) *echo.Echo {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, messageResponse{Message: "Warden API"})
	})
	if cfg.Health != nil {
		e.GET("/health", cfg.Health.Live)
		e.GET("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	g := e.Group(cfg.Prefix)
	if cfg.Auth != nil {
		cfg.Auth.RegisterRoutes(g)
		if cfg.Resources != nil {
			cfg.Resources.RegisterRoutes(g, cfg.Auth.AuthMiddleware)
		}
	}
	return e
}
