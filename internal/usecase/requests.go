package usecase

import (
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	"FinFactor/pkg/util"
)

func parseDate(field, s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &models.ValidationError{Kind: models.ErrInvalidDateRange, Field: field, Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	s, err := parseDate("start", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := parseDate("end", end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

// ComputeInputFrom converts a decoded compute request.
func ComputeInputFrom(req models.ComputeRequest) (ComputeInput, error) {
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return ComputeInput{}, err
	}
	return ComputeInput{
		Factor:    req.Factor,
		Universe:  req.Universe,
		Start:     start,
		End:       end,
		Normalize: req.Normalize,
	}, nil
}

// AnalyzeInputFrom converts a decoded analyze request.
func AnalyzeInputFrom(req models.AnalyzeRequest) (AnalyzeInput, error) {
	ci, err := ComputeInputFrom(models.ComputeRequest{
		Factor:    req.Factor,
		Universe:  req.Universe,
		Start:     req.Start,
		End:       req.End,
		Normalize: req.Normalize,
	})
	if err != nil {
		return AnalyzeInput{}, err
	}
	return AnalyzeInput{
		ComputeInput: ci,
		Periods:      req.Periods,
		Method:       models.ICMethod(req.Method),
		NQuantiles:   req.NQuantiles,
	}, nil
}

// StreamInputFrom converts the websocket query. Universe is comma separated.
func StreamInputFrom(req models.ICStreamRequest) (AnalyzeInput, error) {
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return AnalyzeInput{}, err
	}
	universe := util.SplitList(req.Universe)
	return AnalyzeInput{
		ComputeInput: ComputeInput{
			Factor:   models.FactorSpec{Name: req.Factor},
			Universe: universe,
			Start:    start,
			End:      end,
		},
		Periods: []int{req.Period},
		Method:  models.ICMethod(req.Method),
	}, nil
}
