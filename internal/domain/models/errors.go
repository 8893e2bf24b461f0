package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error categories. Match them with errors.Is; use errors.As on the structured
// types below to recover the instrument, date or field involved.
var (
	ErrInvalidUniverse  = errors.New("invalid universe")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrComputation      = errors.New("computation error")
	ErrDuplicateFactor  = errors.New("duplicate factor")
	ErrUnknownFactor    = errors.New("unknown factor")
)

// ValidationError reports a rejected input. Kind is one of ErrInvalidUniverse,
// ErrInvalidDateRange or ErrInvalidParameter.
type ValidationError struct {
	Kind   error
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s=%v: %s", e.Kind, e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == e.Kind }

// NewInvalidParameter builds a ValidationError of kind ErrInvalidParameter.
func NewInvalidParameter(field string, value any, reason string) *ValidationError {
	return &ValidationError{Kind: ErrInvalidParameter, Field: field, Value: value, Reason: reason}
}

// InsufficientDataError reports history too short for the requested computation.
type InsufficientDataError struct {
	Factor     string
	Instrument string
	Date       time.Time
	Need       int
	Have       int
	Reason     string
}

func (e *InsufficientDataError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInsufficientData.Error())
	if e.Factor != "" {
		fmt.Fprintf(&b, ": factor %s", e.Factor)
	}
	if e.Instrument != "" {
		fmt.Fprintf(&b, ": instrument %s", e.Instrument)
	}
	if !e.Date.IsZero() {
		fmt.Fprintf(&b, ": date %s", e.Date.Format(DateLayout))
	}
	if e.Need > 0 {
		fmt.Fprintf(&b, ": need %d observations, have %d", e.Need, e.Have)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// DataUnavailableError lists instruments a provider had no data for. Providers
// return it together with the partial table.
type DataUnavailableError struct {
	Series      string
	Instruments []string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%v: %s: no data for %s", ErrDataUnavailable, e.Series, strings.Join(e.Instruments, ","))
}

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

// ComputationError wraps a numeric failure.
type ComputationError struct {
	Factor     string
	Instrument string
	Date       time.Time
	Err        error
}

func (e *ComputationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: factor %s", ErrComputation, e.Factor)
	if e.Instrument != "" {
		fmt.Fprintf(&b, ": instrument %s", e.Instrument)
	}
	if !e.Date.IsZero() {
		fmt.Fprintf(&b, ": date %s", e.Date.Format(DateLayout))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ComputationError) Is(target error) bool { return target == ErrComputation }
func (e *ComputationError) Unwrap() error        { return e.Err }

// RegistryError reports a failed registry lookup or registration. Kind is
// ErrDuplicateFactor or ErrUnknownFactor.
type RegistryError struct {
	Name string
	Kind error
}

func (e *RegistryError) Error() string   { return fmt.Sprintf("%v: %q", e.Kind, e.Name) }
func (e *RegistryError) Is(t error) bool { return t == e.Kind }

// IsValidation reports whether err rejects the request itself, so running it
// again with the same input cannot succeed.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUniverse) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrUnknownFactor) ||
		errors.Is(err, ErrDuplicateFactor)
}

// ErrorKind maps an error to a short label used by metrics and HTTP mapping.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidUniverse):
		return "invalid_universe"
	case errors.Is(err, ErrInvalidDateRange):
		return "invalid_date_range"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrComputation):
		return "computation"
	case errors.Is(err, ErrDuplicateFactor):
		return "duplicate_factor"
	case errors.Is(err, ErrUnknownFactor):
		return "unknown_factor"
	default:
		return "internal"
	}
}
