package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Donation type ids seeded into donation_types.
const (
	DonationTypeGeneral     int64 = 1
	DonationTypeRiderPledge int64 = 2
)

// Currency is a reference row; Code selects the merchant credentials.
type Currency struct {
	ID   int64  `json:"currency_id"`
	Name string `json:"currency_name"`
	Code string `json:"currency_code"`
}

// DonationType categorises a donation (general fund, rider pledge, ...)
type DonationType struct {
	ID                int64  `json:"donation_id"`
	Name              string `json:"donation_name"`
	IsGeneralDonation bool   `json:"is_general_donation"`
}

// Donation is one pledge attempt. PaymentDoneAt is set once the gateway confirms payment.
type Donation struct {
	ID             int64           `json:"record_id"`
	FirstName      string          `json:"first_name"`
	SecondName     string          `json:"second_name"`
	Email          string          `json:"email"`
	MobileNo       string          `json:"mobile_no"`
	Message        string          `json:"message"`
	CurrencyID     int64           `json:"currency_id"`
	Amount         decimal.Decimal `json:"amount"`
	DonationTypeID int64           `json:"donation_id"`
	CreatedAt      time.Time       `json:"created_at"`
	PaymentDoneAt  *time.Time      `json:"payment_done_at,omitempty"`
}

// IsPledge reports whether the donation sponsors a rider
func (d *Donation) IsPledge() bool {
	return d.DonationTypeID == DonationTypeRiderPledge
}

// DonorName joins first and second name for greetings
func (d *Donation) DonorName() string {
	if d.SecondName == "" {
		return d.FirstName
	}
	return d.FirstName + " " + d.SecondName
}

// Rider is a sponsored participant. Raise is the running pledge total.
type Rider struct {
	ID       int64           `json:"rider_id"`
	Name     string          `json:"rider_name"`
	Email    string          `json:"rider_email"`
	MobileNo string          `json:"mobile_no"`
	Goal     decimal.Decimal `json:"rider_goal"`
	Raise    decimal.Decimal `json:"rider_raise"`
	Image    string          `json:"rider_img"`
}

// RiderDonation links a pledge-type donation to its rider
type RiderDonation struct {
	RiderID    int64 `json:"rider_id"`
	DonationID int64 `json:"donation_id"`
}

// TransactionStatus is the gateway session state
type TransactionStatus string

const (
	TransactionInitiated TransactionStatus = "initiated"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

// Transaction is one hosted checkout session bound to a donation.
// SuccessIndicator is issued by the gateway and echoed back on the callback.
type Transaction struct {
	ID               int64             `json:"id"`
	DonationID       int64             `json:"donation_id"`
	OrderID          string            `json:"mpgs_order_id"`
	SessionID        string            `json:"session_id"`
	SuccessIndicator string            `json:"success_indicator"`
	Amount           decimal.Decimal   `json:"amount"`
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	GatewayCode      string            `json:"gateway_code,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// APILog is an append-only record of one outbound gateway call
type APILog struct {
	ID              int64             `json:"id"`
	RequestURL      string            `json:"request_url"`
	RequestMethod   string            `json:"request_method"`
	RequestHeaders  map[string]string `json:"request_headers"`
	RequestPayload  json.RawMessage   `json:"request_payload,omitempty"`
	ResponseStatus  *int              `json:"response_status,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	Error           string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// User represents an admin account
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Password  string     `json:"-"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

const RoleAdmin = "admin"
