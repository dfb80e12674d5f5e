package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedCurrency is returned when no merchant is configured for a currency
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrMissingGatewayCode is returned when an order lookup carries no gateway code
	ErrMissingGatewayCode = errors.New("no gateway code found in response")
)

// SessionRequest holds data for creating a hosted checkout session
type SessionRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
}

// Session is the gateway's answer to a session request
type Session struct {
	SessionID        string
	SuccessIndicator string
	OrderID          string
}

// OrderResult is the authoritative order status returned by the gateway
type OrderResult struct {
	Result      string
	GatewayCode GatewayCode
	// SubCodes holds the gateway code of every entry in the order's transaction array
	SubCodes []GatewayCode
	Raw      json.RawMessage
}

// Approved classifies the order: the overall result must be SUCCESS, the
// gateway code APPROVED, and every sub-transaction present must be APPROVED.
// An order without sub-transactions is not disqualified by that alone.
func (o *OrderResult) Approved() bool {
	if o.Result != ResultSuccess || o.GatewayCode != CodeApproved {
		return false
	}
	for _, code := range o.SubCodes {
		if code != CodeApproved {
			return false
		}
	}
	return true
}

// Pending reports whether the gateway has not reached a final decision on the
// order yet
func (o *OrderResult) Pending() bool {
	return o.Result == ResultPending || o.GatewayCode == CodePending
}

// Gateway defines the hosted checkout provider. Every call is reported to the
// given audit sink, whatever its outcome.
type Gateway interface {
	CreateSession(ctx context.Context, creds Credentials, req SessionRequest, audit AuditSink) (*Session, error)
	VerifyOrder(ctx context.Context, creds Credentials, orderID string, audit AuditSink) (*OrderResult, error)
}

// GatewayError describes a failed gateway call. StatusCode is zero when the
// request never produced an HTTP response.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway error: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("payment gateway error: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Transport reports whether the call failed before an HTTP response arrived
func (e *GatewayError) Transport() bool {
	return e.StatusCode == 0
}

// Timeout reports whether the call ran out of time
func (e *GatewayError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
