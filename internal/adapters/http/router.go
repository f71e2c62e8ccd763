package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/platform/telemetry"
)

const (
	// DefaultRequestTimeout bounds an API request. It sits above the upstream
	// client timeouts so a slow provider surfaces as UPSTREAM_ERROR, not TIMEOUT.
	DefaultRequestTimeout = 30 * time.Second

	defaultServiceName = "stockquote-service"
	apiPrefix          = "/api/v1"
)

// RouterConfig carries what SetupRouter wires. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Logger        *slog.Logger
	AuthConfig    *config.AuthConfig
	AppConfig     *config.AppConfig
	HealthHandler *handlers.HealthHandler
	StockHandler  *handlers.StockHandler

	// Timeout bounds requests under /api/v1. Zero disables it.
	Timeout time.Duration
}

// NewDefaultRouterConfig returns a RouterConfig with DefaultRequestTimeout.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	authCfg *config.AuthConfig,
	healthHandler *handlers.HealthHandler,
	stockHandler *handlers.StockHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AuthConfig:    authCfg,
		AppConfig:     appCfg,
		HealthHandler: healthHandler,
		StockHandler:  stockHandler,
		Timeout:       DefaultRequestTimeout,
	}
}

func (cfg RouterConfig) serviceName() string {
	if cfg.AppConfig != nil && cfg.AppConfig.Name != "" {
		return cfg.AppConfig.Name
	}

	return defaultServiceName
}

// globalMiddleware is the chain every request passes, outermost first.
// Recovery must wrap everything; the IDs must exist before tracing and
// logging read them.
func (cfg RouterConfig) globalMiddleware() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	}

	chain = append(chain, telemetry.Middleware(cfg.serviceName())...)

	return append(chain, middleware.Logging(cfg.Logger))
}

// apiMiddleware guards /api/v1. Health endpoints never see it.
func (cfg RouterConfig) apiMiddleware() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{middleware.Timeout(cfg.Timeout)}

	if auth := cfg.AuthConfig; auth != nil && auth.Enabled {
		chain = append(chain, middleware.GatewayAuth(auth, auth.RequiredScope))
	}

	return chain
}

// SetupRouter installs the middleware chain and every route on engine:
// /-/ for operations (unauthenticated, unbounded) and /api/v1 for quotes.
// Unknown routes answer with the JSON error envelope.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(cfg.globalMiddleware()...)

	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		dto.AbortWithErrorCode(c, dto.ErrorCodeNotFound, "no route for "+c.Request.URL.Path)
	})
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed,
			dto.NewErrorResponse(dto.ErrorCodeBadRequest, c.Request.Method+" is not allowed here").
				WithTraceID(dto.GetTraceID(c)))
	})

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Register(engine)
	}

	if cfg.StockHandler != nil {
		api := engine.Group(apiPrefix, cfg.apiMiddleware()...)
		cfg.StockHandler.RegisterStockRoutes(api)
	}
}
