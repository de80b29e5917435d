package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ValidationReason classifies why an order parameter was rejected.
type ValidationReason string

const (
	ReasonSymbolUnknown     ValidationReason = "SYMBOL_UNKNOWN"
	ReasonQuantityTooSmall  ValidationReason = "QUANTITY_TOO_SMALL"
	ReasonQuantityTooLarge  ValidationReason = "QUANTITY_TOO_LARGE"
	ReasonQuantityStep      ValidationReason = "QUANTITY_STEP_MISMATCH"
	ReasonPriceTooLow       ValidationReason = "PRICE_TOO_LOW"
	ReasonPriceTooHigh      ValidationReason = "PRICE_TOO_HIGH"
	ReasonPriceTick         ValidationReason = "PRICE_TICK_MISMATCH"
)

// ValidationError rejects an order before any exchange interaction.
// It is always recoverable: the caller fixes the parameters and retries.
type ValidationError struct {
	Reason ValidationReason
	Symbol string
	Value  decimal.Decimal // the offending quantity or price
	Bound  decimal.Decimal // the violated filter bound (min, max, step or tick)

	// SuggestedQty is the nearest valid quantity below the request.
	// Set only for ReasonQuantityStep.
	SuggestedQty decimal.Decimal
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonSymbolUnknown:
		return fmt.Sprintf("validation [%s]: no trading rules for symbol %q", e.Reason, e.Symbol)
	case ReasonQuantityStep:
		return fmt.Sprintf("validation [%s]: %s quantity %s off step %s, nearest valid is %s",
			e.Reason, e.Symbol, e.Value, e.Bound, e.SuggestedQty)
	default:
		return fmt.Sprintf("validation [%s]: %s value %s violates bound %s",
			e.Reason, e.Symbol, e.Value, e.Bound)
	}
}

func (e *ValidationError) IsRetriable() bool {
	return false
}

// GatewayError wraps a failed exchange call. Transient errors (network,
// rate limit, 5xx) may be retried by the caller; permanent ones may not.
type GatewayError struct {
	Op        string // "place", "cancel", "exchange_info"
	Code      int    // HTTP status or exchange business code, 0 if unknown
	Msg       string
	Err       error // underlying error, may be nil
	Retriable bool
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: code=%d msg=%s", e.Op, e.Code, e.Msg)
}

func (e *GatewayError) IsRetriable() bool {
	return e.Retriable
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// CompensationError means an OCO leg is live at the exchange with no
// tracked peer: the second leg failed AND the compensating cancel of the
// first leg failed too. This is fatal and requires manual intervention;
// it must never be retried or swallowed.
type CompensationError struct {
	OrderID   string // exchange ID of the live, unprotected order
	Symbol    string
	PlaceErr  error // why the second leg failed
	CancelErr error // why the compensating cancel failed
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("COMPENSATION_FAILURE: order %s on %s is live with no peer (place: %v, cancel: %v)",
		e.OrderID, e.Symbol, e.PlaceErr, e.CancelErr)
}

func (e *CompensationError) IsRetriable() bool {
	return false
}

func (e *CompensationError) Unwrap() error {
	return e.CancelErr
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "write")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrLimitPriceRequired is returned when a LIMIT/STOP_LIMIT order has no limit price.
	ErrLimitPriceRequired = errors.New("limit price required")

	// ErrTriggerPriceRequired is returned when a trigger-kind order has no trigger price.
	ErrTriggerPriceRequired = errors.New("trigger price required")

	// ErrFeedColumnMissing is returned when the historical feed lacks a required column.
	ErrFeedColumnMissing = errors.New("required column missing")

	// ErrConfigNotFound is returned when the configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
