package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"FinFactor/internal/domain/models"
	xhttp "FinFactor/pkg/http"
)

// appError maps a use case error onto an HTTP error. Input problems are 400,
// data that cannot support the computation is 422, an unavailable upstream is
// 503 and a timeout 504.
func appError(err error) *xhttp.AppError {
	kind := models.ErrorKind(err)
	code := "ERR_" + strings.ToUpper(kind)
	var ae *xhttp.AppError
	switch kind {
	case "invalid_universe", "invalid_date_range", "invalid_parameter", "unknown_factor", "duplicate_factor":
		ae = xhttp.NewAppError(code, fieldOf(err), err.Error(), http.StatusBadRequest)
	case "insufficient_data", "data_unavailable":
		ae = xhttp.NewAppError(code, "", err.Error(), http.StatusUnprocessableEntity)
	default:
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			ae = xhttp.ServiceUnavailableError("data provider unavailable")
		case errors.Is(err, context.DeadlineExceeded):
			ae = xhttp.GatewayTimeoutError("analysis timed out")
		case kind == "computation":
			ae = xhttp.NewAppError(code, "", err.Error(), http.StatusInternalServerError)
		default:
			ae = xhttp.InternalError("factor analysis failed")
		}
	}
	return ae.WithError(err)
}

func fieldOf(err error) string {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
