package donation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-donate/internal/database"
	"go-donate/internal/models"
	"go-donate/internal/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDescription is sent to the gateway when the donor left no message
const DefaultDescription = "Donation to CCC Foundation"

// Config holds the URLs the service hands out
type Config struct {
	// AppURL is the public base URL including the route prefix, e.g. https://example.org/ccc-line
	AppURL string
	// ReturnURL is where the hosted checkout sends the browser after payment
	ReturnURL string
}

// Result is returned to the donor after a successful submission
type Result struct {
	DonationID int64  `json:"donation_id"`
	PaymentURL string `json:"payment_url"`
}

// CheckoutPage is what the payment page needs to start the hosted checkout
type CheckoutPage struct {
	Donation    *models.Donation
	Transaction *models.Transaction
}

// Service creates donations and their gateway sessions
type Service struct {
	db         *database.DB
	gateway    payment.Gateway
	router     *payment.CredentialRouter
	cfg        Config
	logger     *zap.Logger
	newOrderID func() string
}

func NewService(db *database.DB, gateway payment.Gateway, router *payment.CredentialRouter, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &Service{
		db:         db,
		gateway:    gateway,
		router:     router,
		cfg:        cfg,
		logger:     logger,
		newOrderID: uuid.NewString,
	}
}

// CreateDonation records the donation and opens a hosted checkout session for it.
//
// The donation row and the rider link and increment are committed first. The
// gateway is then called without holding the database write lock, and the
// transaction row is written in a second short unit of work. When any step
// after the first commit fails, the committed donation is removed and the
// rider total restored before the error is returned.
func (s *Service) CreateDonation(ctx context.Context, req Request) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	currency, err := s.db.GetCurrency(ctx, req.CurrencyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindValidation, fmt.Sprintf("Currency with ID %d not found", req.CurrencyID), err)
		}
		return nil, newError(KindPersistence, "Failed to load currency", err)
	}
	if _, err := s.db.GetDonationType(ctx, req.DonationTypeID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindValidation, fmt.Sprintf("Donation type with ID %d not found", req.DonationTypeID), err)
		}
		return nil, newError(KindPersistence, "Failed to load donation type", err)
	}

	creds, err := s.router.Lookup(currency.Code)
	if err != nil {
		return nil, newError(KindUnsupportedCurrency, "Unsupported currency: "+currency.Code, err)
	}

	d := &models.Donation{
		FirstName:      req.FirstName,
		SecondName:     req.SecondName,
		Email:          req.Email,
		MobileNo:       req.PhoneNumber,
		Message:        req.Message,
		CurrencyID:     currency.ID,
		Amount:         req.Amount,
		DonationTypeID: req.DonationTypeID,
	}
	description := d.Message
	if description == "" {
		description = DefaultDescription
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := tx.InsertDonation(ctx, d); err != nil {
			return err
		}
		if !d.IsPledge() {
			return nil
		}
		if err := tx.IncrementRiderRaise(ctx, req.RiderID, d.Amount); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return newError(KindValidation, fmt.Sprintf("Rider with ID %d not found", req.RiderID), err)
			}
			return err
		}
		return tx.InsertRiderDonation(ctx, req.RiderID, d.ID)
	})
	if err != nil {
		s.logger.Warn("Donation not recorded",
			zap.String("email", d.Email),
			zap.String("currency", currency.Code),
			zap.String("amount", d.Amount.String()),
			zap.Error(err),
		)
		return nil, classify(err)
	}

	audit := &payment.AuditBuffer{}
	session, err := s.gateway.CreateSession(ctx, creds, payment.SessionRequest{
		OrderID:     s.newOrderID(),
		Amount:      d.Amount,
		Currency:    currency.Code,
		Description: description,
		ReturnURL:   s.cfg.ReturnURL,
	}, audit)
	s.flushAudit(ctx, audit)
	if err != nil {
		return nil, s.rollback(ctx, d, currency.Code, err)
	}

	tr := &models.Transaction{
		DonationID:       d.ID,
		OrderID:          session.OrderID,
		SessionID:        session.SessionID,
		SuccessIndicator: session.SuccessIndicator,
		Amount:           d.Amount,
		Currency:         currency.Code,
		Status:           models.TransactionInitiated,
	}
	if err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		return tx.InsertTransaction(ctx, tr)
	}); err != nil {
		return nil, s.rollback(ctx, d, currency.Code, err)
	}

	s.logger.Info("Donation created",
		zap.Int64("donation_id", d.ID),
		zap.String("order_id", tr.OrderID),
		zap.String("currency", tr.Currency),
		zap.String("amount", tr.Amount.String()),
	)

	return &Result{
		DonationID: d.ID,
		PaymentURL: fmt.Sprintf("%s/payment-page/%d", s.cfg.AppURL, d.ID),
	}, nil
}

// rollback removes a committed donation after a later step failed and
// returns the classified cause
func (s *Service) rollback(ctx context.Context, d *models.Donation, currency string, cause error) error {
	s.compensate(ctx, d)
	s.logger.Warn("Donation rolled back",
		zap.Int64("donation_id", d.ID),
		zap.String("email", d.Email),
		zap.String("currency", currency),
		zap.String("amount", d.Amount.String()),
		zap.Error(cause),
	)
	return classify(cause)
}

// PaymentPage loads the donation and the most recent session opened for it
func (s *Service) PaymentPage(ctx context.Context, donationID int64) (*CheckoutPage, error) {
	d, err := s.db.GetDonation(ctx, donationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "Donation not found", err)
		}
		return nil, newError(KindPersistence, "Failed to load donation", err)
	}
	t, err := s.db.LatestTransactionForDonation(ctx, donationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindTransactionNotFound, "Transaction not found", err)
		}
		return nil, newError(KindPersistence, "Failed to load transaction", err)
	}
	return &CheckoutPage{Donation: d, Transaction: t}, nil
}

// Currencies lists the currencies a donor can choose
func (s *Service) Currencies(ctx context.Context) ([]*models.Currency, error) {
	return s.db.ListCurrencies(ctx)
}

// DonationTypes lists the donation categories
func (s *Service) DonationTypes(ctx context.Context) ([]*models.DonationType, error) {
	return s.db.ListDonationTypes(ctx)
}

// TotalGeneralDonations sums the amounts of all general donations
func (s *Service) TotalGeneralDonations(ctx context.Context) (decimal.Decimal, error) {
	return s.db.SumGeneralDonations(ctx)
}

// compensate deletes the donation if it was committed despite the failure.
// A rolled back insert can hand its id to a later donation, so the row is
// only removed when it is still the one this request wrote.
func (s *Service) compensate(ctx context.Context, d *models.Donation) {
	if d.ID == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	existing, err := s.db.GetDonation(ctx, d.ID)
	if errors.Is(err, database.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error("Failed to check donation for compensation", zap.Int64("donation_id", d.ID), zap.Error(err))
		return
	}
	if existing.Email != d.Email || !existing.CreatedAt.Equal(d.CreatedAt) {
		return
	}

	if _, err := s.db.DeleteDonationCascade(ctx, d.ID); err != nil {
		s.logger.Error("Failed to delete orphaned donation", zap.Int64("donation_id", d.ID), zap.Error(err))
		return
	}
	s.logger.Warn("Deleted orphaned donation", zap.Int64("donation_id", d.ID))
}

func (s *Service) flushAudit(ctx context.Context, audit *payment.AuditBuffer) {
	if err := audit.Flush(context.WithoutCancel(ctx), s.db); err != nil {
		s.logger.Error("Failed to write gateway audit log", zap.Error(err))
	}
}
