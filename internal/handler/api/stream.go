package api

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/service/metrics"
	"FinFactor/internal/usecase"
	xhttp "FinFactor/pkg/http"
	applogger "FinFactor/pkg/logger"
)

const streamWriteWait = 10 * time.Second

// StreamMessage is one websocket frame of the IC stream. A stream sends one
// "point" per date, then a "summary", or an "error" when the analysis fails.
type StreamMessage struct {
	Type    string           `json:"type"`
	Point   *models.ICPoint  `json:"point,omitempty"`
	Summary *models.ICResult `json:"summary,omitempty"`
	Error   *xhttp.AppError  `json:"error,omitempty"`
}

// StreamIC upgrades to a websocket and streams the IC series of one factor.
// Query validation happens before the upgrade so bad requests get a plain 400.
func (h *FactorsHandler) StreamIC(c echo.Context) error {
	req := &models.ICStreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("ic_stream", "invalid_request").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	in, err := usecase.StreamInputFrom(*req)
	if err != nil {
		return h.fail(c, "ic_stream", err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		if h.l != nil {
			h.l.Warn("websocket upgrade failed", applogger.Error(err))
		}
		return nil
	}
	defer conn.Close()
	metrics.ICStreams.Inc()
	defer metrics.ICStreams.Dec()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	// the client sends nothing; a read error means it went away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	send := func(m StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(m)
	}

	sent := 0
	res, err := h.analysis.StreamIC(ctx, in, func(p models.ICPoint) error {
		sent++
		return send(StreamMessage{Type: "point", Point: &p})
	})
	if err != nil {
		if ctx.Err() == nil {
			metrics.APIErrors.WithLabelValues("ic_stream", models.ErrorKind(err)).Inc()
			_ = send(StreamMessage{Type: "error", Error: appError(err)})
		}
		if h.l != nil {
			h.l.Debug("ic stream ended early",
				applogger.String("factor", req.Factor),
				applogger.Int("sent", sent),
				applogger.Error(err),
			)
		}
	} else {
		summary := *res
		summary.Series = nil
		_ = send(StreamMessage{Type: "summary", Summary: &summary})
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return nil
}
