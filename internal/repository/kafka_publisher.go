package repository

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	pkgkafka "FinFactor/pkg/kafka"
	applogger "FinFactor/pkg/logger"
)

// ReportSummary is the record published for each analysis run. It carries the
// headline numbers per horizon; the full report lives in the result store.
type ReportSummary struct {
	RunID     string           `json:"run_id"`
	Factor    string           `json:"factor"`
	Category  models.Category  `json:"category"`
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Universe  int              `json:"universe_size"`
	Coverage  float64          `json:"coverage"`
	Horizons  []HorizonSummary `json:"horizons"`
	Warnings  int              `json:"warnings"`
	CreatedAt string           `json:"created_at"`
}

type HorizonSummary struct {
	Period       int      `json:"period"`
	MeanIC       *float64 `json:"mean_ic,omitempty"`
	IR           *float64 `json:"ir,omitempty"`
	PValue       *float64 `json:"p_value,omitempty"`
	LongShort    *float64 `json:"long_short,omitempty"`
	Monotonicity *float64 `json:"monotonicity,omitempty"`
}

// Summarize reduces a report to its published summary.
func Summarize(r *models.AnalysisReport) ReportSummary {
	s := ReportSummary{
		RunID:     r.RunID,
		Factor:    r.Factor.Name,
		Category:  r.Factor.Category,
		Start:     r.Start.Format(models.DateLayout),
		End:       r.End.Format(models.DateLayout),
		Universe:  len(r.Universe),
		Coverage:  r.Coverage,
		Warnings:  len(r.Warnings),
		CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	for _, h := range r.Horizons {
		hs := HorizonSummary{Period: h.Period}
		if h.IC != nil {
			hs.MeanIC = models.OptionalFloat(h.IC.MeanIC)
			hs.IR = h.IC.IR
			hs.PValue = h.IC.PValue
		}
		if h.Quantiles != nil {
			hs.LongShort = h.Quantiles.LongShortReturn
			hs.Monotonicity = h.Quantiles.MonotonicityScore
		}
		s.Horizons = append(s.Horizons, hs)
	}
	return s
}

// KafkaPublisher publishes report summaries keyed by run id.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaPublisher(p *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

// SetLogger injects a structured logger.
func (k *KafkaPublisher) SetLogger(l *applogger.Logger) { k.l = l }

func (k *KafkaPublisher) PublishReport(ctx context.Context, r *models.AnalysisReport) error {
	if r == nil {
		return fmt.Errorf("publish report: nil report")
	}
	msg := pkgkafka.Message{
		Key:   []byte(r.RunID),
		Value: Summarize(r),
		Headers: []kafka.Header{
			{Key: "factor", Value: []byte(r.Factor.Name)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := k.producer.PublishBatch(ctx, k.topic, []pkgkafka.Message{msg}); err != nil {
		if k.l != nil {
			k.l.Warn("kafka publish report failed",
				applogger.String("topic", k.topic),
				applogger.String("run_id", r.RunID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish report %s: %w", r.RunID, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error { return k.producer.Close() }

var _ domrepo.ResultPublisher = (*KafkaPublisher)(nil)
