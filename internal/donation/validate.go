package donation

import (
	"net/mail"
	"strings"

	"go-donate/internal/models"

	"github.com/shopspring/decimal"
)

// Request is the body of a donation submission
type Request struct {
	FirstName      string          `json:"first_name"`
	SecondName     string          `json:"second_name"`
	Email          string          `json:"email"`
	PhoneNumber    string          `json:"phone_number"`
	CurrencyID     int64           `json:"currency_id"`
	Amount         decimal.Decimal `json:"amount"`
	DonationTypeID int64           `json:"donation_id"`
	RiderID        int64           `json:"rider_id,omitempty"`
	Message        string          `json:"message"`
}

// Normalize trims free-text fields in place
func (r *Request) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.SecondName = strings.TrimSpace(r.SecondName)
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Message = strings.TrimSpace(r.Message)
}

// Validate checks the request shape before any persistence happens
func (r *Request) Validate() error {
	var problems []string
	if r.FirstName == "" {
		problems = append(problems, "first_name is required")
	}
	if r.Email == "" {
		problems = append(problems, "email is required")
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		problems = append(problems, "email is invalid")
	}
	if r.CurrencyID <= 0 {
		problems = append(problems, "currency_id is required")
	}
	if !r.Amount.IsPositive() {
		problems = append(problems, "amount must be greater than zero")
	} else if !r.Amount.Equal(r.Amount.Round(2)) {
		problems = append(problems, "amount must have at most two decimal places")
	}
	if r.DonationTypeID <= 0 {
		problems = append(problems, "donation_id is required")
	}
	if r.DonationTypeID == models.DonationTypeRiderPledge && r.RiderID <= 0 {
		problems = append(problems, "rider_id is required for rider pledges")
	}
	if len(problems) > 0 {
		return newError(KindValidation, strings.Join(problems, "; "), nil)
	}
	return nil
}
