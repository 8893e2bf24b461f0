package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"FinFactor/internal/domain/models"
	pkgkafka "FinFactor/pkg/kafka"
	applogger "FinFactor/pkg/logger"
)

// AnalysisRequestHandler runs analyses requested over Kafka. Each message is a
// JSON AnalyzeRequest; the report reaches consumers through the result store
// and publisher attached to the use case.
type AnalysisRequestHandler struct {
	topic    string
	analysis *FactorAnalysis
	validate *validator.Validate
	l        *applogger.Logger
}

func NewAnalysisRequestHandler(topic string, analysis *FactorAnalysis) *AnalysisRequestHandler {
	return &AnalysisRequestHandler{topic: topic, analysis: analysis, validate: validator.New()}
}

// SetLogger injects a structured logger.
func (h *AnalysisRequestHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *AnalysisRequestHandler) Topic() string { return h.topic }

func (h *AnalysisRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AnalyzeRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("decode analysis request: %w", err))
	}
	if err := defaults.Set(&req); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("analysis request defaults: %w", err))
	}
	if err := h.validate.StructCtx(ctx, &req); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("invalid analysis request: %w", err))
	}
	in, err := AnalyzeInputFrom(req)
	if err != nil {
		return permanentIfInvalid(err)
	}
	report, err := h.analysis.Analyze(ctx, in)
	if err != nil {
		return permanentIfInvalid(err)
	}
	if h.l != nil {
		h.l.Info("analysis request processed",
			applogger.String("run_id", report.RunID),
			applogger.String("factor", report.Factor.Name),
			applogger.Int("horizons", len(report.Horizons)),
			applogger.Float64("coverage", report.Coverage),
		)
	}
	return nil
}

// permanentIfInvalid keeps retries for errors that may clear up, such as an
// unreachable provider, and gives up at once on rejected requests.
func permanentIfInvalid(err error) error {
	if models.IsValidation(err) {
		return pkgkafka.Permanent(err)
	}
	return err
}

var _ pkgkafka.MessageHandler = (*AnalysisRequestHandler)(nil)
