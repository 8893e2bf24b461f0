package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FinFactor/internal/domain/models"
	icache "FinFactor/internal/service/cache"
	"FinFactor/internal/service/metrics"
	"FinFactor/internal/service/ratelimit"
	"FinFactor/internal/usecase"
	pkgcache "FinFactor/pkg/cache"
	xhttp "FinFactor/pkg/http"
	applogger "FinFactor/pkg/logger"
)

// FactorsHandler serves the factor API over Echo.
type FactorsHandler struct {
	analysis *usecase.FactorAnalysis
	cache    icache.BytesCache
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
	rate     float64
	burst    int
	upgrader websocket.Upgrader
	l        *applogger.Logger
}

func NewFactorsHandler(analysis *usecase.FactorAnalysis) *FactorsHandler {
	metrics.Register()
	return &FactorsHandler{
		analysis: analysis,
		rl:       ratelimit.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetCache enables response caching of compute results for ttl.
func (h *FactorsHandler) SetCache(c icache.BytesCache, ttl time.Duration) {
	h.cache, h.cacheTTL = c, ttl
}

// SetRateLimit limits each client IP to rate requests per second with the
// given burst. A zero rate disables limiting.
func (h *FactorsHandler) SetRateLimit(rate float64, burst int) {
	h.rate, h.burst = rate, burst
}

// SetLogger injects a structured logger.
func (h *FactorsHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *FactorsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api/v1/factors")
	g.GET("", h.List, h.observe("list"))
	g.POST("/compute", h.Compute, h.observe("compute"), h.limit("compute"))
	g.POST("/analyze", h.Analyze, h.observe("analyze"), h.limit("analyze"))
	e.GET("/ws/ic", h.StreamIC, h.limit("ic_stream"))
}

func (h *FactorsHandler) observe(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()
			return next(c)
		}
	}
}

func (h *FactorsHandler) limit(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.rate <= 0 {
				return next(c)
			}
			if !h.rl.Allow(c.RealIP()+":"+endpoint, float64(h.burst), h.rate) {
				metrics.APIErrors.WithLabelValues(endpoint, "rate_limited").Inc()
				if h.l != nil {
					h.l.Warn("rate limited",
						applogger.String("endpoint", endpoint),
						applogger.String("remote", c.RealIP()),
					)
				}
				return xhttp.TooManyRequestsResponse(c)
			}
			return next(c)
		}
	}
}

func (h *FactorsHandler) fail(c echo.Context, endpoint string, err error) error {
	ae := appError(err)
	metrics.APIErrors.WithLabelValues(endpoint, models.ErrorKind(err)).Inc()
	if h.l != nil && ae.Status >= http.StatusInternalServerError {
		h.l.Error(endpoint+" failed", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, ae)
}

func (h *FactorsHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *FactorsHandler) List(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.analysis.Factors())
}

func (h *FactorsHandler) Compute(c echo.Context) error {
	req := &models.ComputeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("compute", "invalid_request").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	var key string
	if h.cache != nil {
		raw, _ := json.Marshal(req)
		key = pkgcache.Key("compute", pkgcache.HashKey(string(raw)))
		b, ok, err := h.cache.GetBytes(c.Request().Context(), key)
		if err != nil && h.l != nil {
			h.l.Warn("response cache get failed", applogger.String("key", key), applogger.Error(err))
		}
		if ok {
			metrics.APICacheHits.WithLabelValues("compute").Inc()
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	in, err := usecase.ComputeInputFrom(*req)
	if err != nil {
		return h.fail(c, "compute", err)
	}
	out, err := h.analysis.Compute(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, "compute", err)
	}

	b, err := json.Marshal(xhttp.APIResponse{Status: http.StatusOK, Message: http.StatusText(http.StatusOK), Data: out})
	if err != nil {
		return h.fail(c, "compute", err)
	}
	if h.cache != nil {
		if err := h.cache.SetBytes(c.Request().Context(), key, b, h.cacheTTL); err != nil && h.l != nil {
			h.l.Warn("response cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return c.JSONBlob(http.StatusOK, b)
}

func (h *FactorsHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("analyze", "invalid_request").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	in, err := usecase.AnalyzeInputFrom(*req)
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	report, err := h.analysis.Analyze(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, report)
}
