package api_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/handler/api"
	"FinFactor/internal/repository"
	icache "FinFactor/internal/service/cache"
	"FinFactor/internal/services/factors"
	"FinFactor/internal/usecase"
)

var d0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newServer(t *testing.T, configure func(*api.FactorsHandler)) *echo.Echo {
	t.Helper()
	p := repository.NewMemoryProvider()
	for k, inst := range []string{"A", "B", "C", "D", "E", "F"} {
		g := 0.001 * float64(k+1)
		dates := make([]time.Time, 40)
		vals := make([]float64, 40)
		for i := range dates {
			dates[i] = d0.AddDate(0, 0, i)
			vals[i] = 100 * math.Pow(1+g, float64(i))
		}
		p.SetSeries(models.SeriesPrices, inst, dates, vals)
	}
	reg := factors.NewDefaultRegistry()
	require.NoError(t, reg.RegisterPresets([]models.FactorSpec{
		{Name: "momentum", As: "mom_1d", Params: map[string]any{"lookback": 1, "skip_recent": 0}},
	}))
	a := usecase.NewFactorAnalysis(p, reg, usecase.AnalysisConfig{})
	h := api.NewFactorsHandler(a)
	if configure != nil {
		configure(h)
	}
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

const momentumBody = `{
	"factor": {"name": "momentum", "params": {"lookback": 1, "skip_recent": 0}},
	"universe": ["A", "B", "C", "D", "E", "F"],
	"start": "2024-01-11",
	"end": "2024-01-26"`

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestListFactors(t *testing.T) {
	e := newServer(t, nil)
	rec := do(e, http.MethodGet, "/api/v1/factors", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []usecase.FactorInfo
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &infos))
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name)
	}
	assert.Contains(t, names, "momentum")
	assert.Contains(t, names, "composite")
}

func TestComputeEndpoint(t *testing.T) {
	e := newServer(t, nil)
	rec := do(e, http.MethodPost, "/api/v1/factors/compute", momentumBody+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Factor   models.FactorMetadata `json:"factor"`
		Values   *models.Table         `json:"values"`
		Coverage float64               `json:"coverage"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &out))
	assert.Equal(t, "momentum", out.Factor.Name)
	assert.Equal(t, 16, out.Values.NumRows())
	assert.InDelta(t, 1.0, out.Coverage, 1e-12)
}

func TestComputeCachesResponse(t *testing.T) {
	cache := icache.NewTTLCache(16)
	e := newServer(t, func(h *api.FactorsHandler) { h.SetCache(cache, time.Minute) })

	first := do(e, http.MethodPost, "/api/v1/factors/compute", momentumBody+`}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, 1, cache.Len())

	second := do(e, http.MethodPost, "/api/v1/factors/compute", momentumBody+`}`)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestComputeValidation(t *testing.T) {
	e := newServer(t, nil)

	rec := do(e, http.MethodPost, "/api/v1/factors/compute", `{"factor":{"name":"momentum"},"universe":[],"start":"2024-01-01","end":"2024-02-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/factors/compute", `{"factor":{"name":"carry"},"universe":["A"],"start":"2024-01-01","end":"2024-02-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UNKNOWN_FACTOR")
}

func TestAnalyzeEndpoint(t *testing.T) {
	e := newServer(t, nil)
	rec := do(e, http.MethodPost, "/api/v1/factors/analyze", momentumBody+`, "periods": [1], "n_quantiles": 3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report struct {
		RunID    string `json:"run_id"`
		Horizons []struct {
			Period int `json:"period"`
			IC     struct {
				MeanIC float64 `json:"mean_ic"`
			} `json:"ic"`
		} `json:"horizons"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Horizons, 1)
	assert.InDelta(t, 1.0, report.Horizons[0].IC.MeanIC, 1e-9)
}

func TestAnalyzeInsufficientDataIs422(t *testing.T) {
	e := newServer(t, nil)
	body := `{"factor":{"name":"momentum","params":{"lookback":1,"skip_recent":0}},"universe":["A","B"],"start":"2024-01-11","end":"2024-01-26","periods":[1]}`
	rec := do(e, http.MethodPost, "/api/v1/factors/analyze", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "ERR_INSUFFICIENT_DATA")
}

func TestRateLimit(t *testing.T) {
	e := newServer(t, func(h *api.FactorsHandler) { h.SetRateLimit(0.001, 1) })
	first := do(e, http.MethodPost, "/api/v1/factors/compute", momentumBody+`}`)
	assert.Equal(t, http.StatusOK, first.Code)
	second := do(e, http.MethodPost, "/api/v1/factors/compute", momentumBody+`}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestStreamIC(t *testing.T) {
	srv := httptest.NewServer(newServer(t, nil))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/ic?factor=mom_1d&universe=A,B,C,D,E,F&start=2024-01-11&end=2024-01-26&period=1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	require.NoError(t, err)
	defer conn.Close()

	var (
		points  []models.ICPoint
		summary map[string]any
	)
	for {
		var msg struct {
			Type    string          `json:"type"`
			Point   json.RawMessage `json:"point"`
			Summary map[string]any  `json:"summary"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "point":
			var p struct {
				Date string  `json:"date"`
				IC   float64 `json:"ic"`
			}
			require.NoError(t, json.Unmarshal(msg.Point, &p))
			d, err := time.Parse(models.DateLayout, p.Date)
			require.NoError(t, err)
			points = append(points, models.ICPoint{Date: d, IC: p.IC})
		case "summary":
			summary = msg.Summary
		default:
			t.Fatalf("unexpected message type %q", msg.Type)
		}
	}
	require.Len(t, points, 16)
	assert.Equal(t, d0.AddDate(0, 0, 10), points[0].Date)
	assert.InDelta(t, 1.0, points[0].IC, 1e-9)
	require.NotNil(t, summary)
	assert.InDelta(t, 1.0, summary["mean_ic"], 1e-9)
}

func TestStreamICReportsErrors(t *testing.T) {
	srv := httptest.NewServer(newServer(t, nil))
	defer srv.Close()

	// three instruments never reach the minimum cross-section
	u := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/ic?factor=mom_1d&universe=A,B,C&start=2024-01-11&end=2024-01-26"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	var lastErr map[string]any
	for {
		var msg struct {
			Type  string         `json:"type"`
			Error map[string]any `json:"error"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		types = append(types, msg.Type)
		lastErr = msg.Error
	}
	require.Len(t, types, 17)
	assert.Equal(t, "point", types[0])
	assert.Equal(t, "error", types[16])
	assert.Equal(t, "ERR_INSUFFICIENT_DATA", lastErr["code"])
}

func TestStreamICRejectsBadQuery(t *testing.T) {
	e := newServer(t, nil)
	rec := do(e, http.MethodGet, "/ws/ic?factor=momentum&universe=A&start=bad&end=2024-01-26", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
