package donation

import (
	"errors"
	"net/http"

	"go-donate/internal/payment"
)

// Kind classifies a failed donation or reconciliation operation
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnsupportedCurrency
	KindGateway
	KindMissingGatewayCode
	KindTransactionNotFound
	KindBadCallback
	KindPersistence
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnsupportedCurrency:
		return "unsupported_currency"
	case KindGateway:
		return "gateway"
	case KindMissingGatewayCode:
		return "missing_gateway_code"
	case KindTransactionNotFound:
		return "transaction_not_found"
	case KindBadCallback:
		return "bad_callback"
	case KindPersistence:
		return "persistence"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the error type returned by Service and Reconciler
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error to a response code. Gateway failures are 400 when
// the gateway answered with an error status and 502 when it could not be reached.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindUnsupportedCurrency, KindBadCallback:
		return http.StatusBadRequest
	case KindGateway:
		var gwErr *payment.GatewayError
		if errors.As(e.Err, &gwErr) && gwErr.Transport() {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	case KindMissingGatewayCode:
		return http.StatusBadGateway
	case KindTransactionNotFound, KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of err, or zero when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// classify wraps a lower-level failure in the matching kind
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var gwErr *payment.GatewayError
	switch {
	case errors.Is(err, payment.ErrUnsupportedCurrency):
		return newError(KindUnsupportedCurrency, err.Error(), err)
	case errors.Is(err, payment.ErrMissingGatewayCode):
		return newError(KindMissingGatewayCode, "No gateway code found in response", err)
	case errors.As(err, &gwErr):
		if gwErr.Transport() {
			if gwErr.Timeout() {
				return newError(KindGateway, "Payment gateway timed out", err)
			}
			return newError(KindGateway, "Payment gateway unavailable", err)
		}
		return newError(KindGateway, "Payment gateway error: "+gwErr.Body, err)
	default:
		return newError(KindPersistence, "Failed to process donation", err)
	}
}
