package donation

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"go-donate/internal/database"
	"go-donate/internal/models"
	"go-donate/internal/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const receiptTimeout = 30 * time.Second

// ReceiptSender delivers the confirmation email for a completed payment
type ReceiptSender interface {
	SendDonationReceipt(ctx context.Context, d *models.Donation, t *models.Transaction) error
}

// EventPublisher fans completed donations out to live listeners
type EventPublisher interface {
	Publish(event any)
}

// Publishers sends every event to each publisher in order
type Publishers []EventPublisher

func (p Publishers) Publish(event any) {
	for _, pub := range p {
		pub.Publish(event)
	}
}

// CompletedEvent is published once per donation that reaches completed
type CompletedEvent struct {
	Type       string           `json:"type"`
	DonationID int64            `json:"donation_id"`
	Amount     decimal.Decimal  `json:"amount"`
	Currency   string           `json:"currency"`
	RiderID    *int64           `json:"rider_id,omitempty"`
	RiderRaise *decimal.Decimal `json:"rider_raise,omitempty"`
}

const EventDonationCompleted = "donation.completed"

// Outcome describes the state of a transaction after reconciliation
type Outcome struct {
	Transaction *models.Transaction
	Status      models.TransactionStatus
	GatewayCode payment.GatewayCode
	// Duplicate is set when the transaction was already terminal and nothing was changed
	Duplicate bool
}

// Message returns the donor-facing reason for a failed outcome
func (o *Outcome) Message() string {
	return payment.FailureMessage(o.GatewayCode)
}

// RedirectConfig holds the pages the browser lands on after a callback
type RedirectConfig struct {
	SuccessURL string
	FailureURL string
}

// Reconciler settles transactions against the gateway's authoritative order status
type Reconciler struct {
	db       *database.DB
	gateway  payment.Gateway
	router   *payment.CredentialRouter
	receipts ReceiptSender
	events   EventPublisher
	cfg      RedirectConfig
	logger   *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func NewReconciler(db *database.DB, gateway payment.Gateway, router *payment.CredentialRouter, receipts ReceiptSender, events EventPublisher, cfg RedirectConfig, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		db:       db,
		gateway:  gateway,
		router:   router,
		receipts: receipts,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleCallback reconciles the transaction named by the callback query and
// returns the URL the browser should be redirected to. Errors never escape:
// they turn into a failure page carrying a readable reason.
func (r *Reconciler) HandleCallback(ctx context.Context, query url.Values) string {
	indicator := query.Get("resultIndicator")

	outcome, err := r.ReconcileIndicator(ctx, indicator)
	if err != nil {
		r.logger.Warn("Payment callback failed", zap.String("result_indicator", indicator), zap.Error(err))
		return r.failureRedirect(callbackErrorMessage(err))
	}
	if outcome.Status == models.TransactionCompleted {
		return r.cfg.SuccessURL
	}
	return r.failureRedirect(outcome.Message())
}

// ReconcileIndicator verifies and settles the transaction whose success
// indicator matches. A transaction already terminal is reported as a duplicate
// without calling the gateway. The gateway is asked for the order status
// without holding the database write lock; the settlement is then applied only
// if the transaction is still initiated, so of several concurrent deliveries of
// the same callback exactly one settles and the rest are duplicates.
func (r *Reconciler) ReconcileIndicator(ctx context.Context, indicator string) (*Outcome, error) {
	return r.reconcile(ctx, indicator, false)
}

// ReconcileStale is ReconcileIndicator for the stale session sweep. An order
// the gateway still reports as pending, such as a donor inside 3-D Secure, is
// left initiated instead of being failed.
func (r *Reconciler) ReconcileStale(ctx context.Context, indicator string) (*Outcome, error) {
	return r.reconcile(ctx, indicator, true)
}

func (r *Reconciler) reconcile(ctx context.Context, indicator string, keepPending bool) (*Outcome, error) {
	if indicator == "" {
		return nil, newError(KindBadCallback, "Missing resultIndicator parameter", nil)
	}

	t, err := r.db.GetTransactionBySuccessIndicator(ctx, indicator)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindTransactionNotFound, "Transaction not found", err)
		}
		return nil, classify(err)
	}
	if t.Status.IsTerminal() {
		return r.duplicate(t), nil
	}

	creds, err := r.router.Lookup(t.Currency)
	if err != nil {
		return nil, classify(err)
	}
	audit := &payment.AuditBuffer{}
	result, err := r.gateway.VerifyOrder(ctx, creds, t.OrderID, audit)
	if flushErr := audit.Flush(context.WithoutCancel(ctx), r.db); flushErr != nil {
		r.logger.Error("Failed to write gateway audit log", zap.Error(flushErr))
	}
	if err != nil {
		return nil, classify(err)
	}

	if keepPending && result.Pending() {
		r.logger.Info("Order still pending at the gateway",
			zap.Int64("transaction_id", t.ID),
			zap.String("order_id", t.OrderID),
		)
		return &Outcome{Transaction: t, Status: models.TransactionInitiated, GatewayCode: result.GatewayCode}, nil
	}

	status := models.TransactionFailed
	if result.Approved() {
		status = models.TransactionCompleted
	}

	var duplicate bool
	var paid *models.Donation
	var rider *models.Rider
	err = r.db.WithTx(ctx, func(tx *database.Tx) error {
		settled, err := tx.SettleTransaction(ctx, t.ID, status, string(result.GatewayCode))
		if err != nil {
			return err
		}
		if !settled {
			duplicate = true
			current, err := tx.GetTransactionBySuccessIndicator(ctx, indicator)
			if errors.Is(err, database.ErrNotFound) {
				return newError(KindTransactionNotFound, "Transaction not found", err)
			}
			if err != nil {
				return err
			}
			t = current
			return nil
		}
		t.Status = status
		t.GatewayCode = string(result.GatewayCode)

		if status != models.TransactionCompleted {
			return nil
		}
		marked, err := tx.MarkDonationPaid(ctx, t.DonationID, r.now())
		if err != nil || !marked {
			return err
		}
		if paid, err = tx.GetDonation(ctx, t.DonationID); err != nil {
			return err
		}
		rider, err = tx.GetDonationRider(ctx, t.DonationID)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	if duplicate {
		return r.duplicate(t), nil
	}

	r.logger.Info("Transaction settled",
		zap.Int64("transaction_id", t.ID),
		zap.Int64("donation_id", t.DonationID),
		zap.String("order_id", t.OrderID),
		zap.String("status", string(status)),
		zap.String("gateway_code", string(result.GatewayCode)),
	)

	if paid != nil {
		r.publishCompleted(paid, t, rider)
		r.sendReceipt(paid, t)
	}
	return &Outcome{Transaction: t, Status: status, GatewayCode: result.GatewayCode}, nil
}

func (r *Reconciler) duplicate(t *models.Transaction) *Outcome {
	r.logger.Info("Duplicate payment callback ignored",
		zap.Int64("transaction_id", t.ID),
		zap.String("status", string(t.Status)),
	)
	return &Outcome{
		Transaction: t,
		Status:      t.Status,
		GatewayCode: payment.ParseGatewayCode(t.GatewayCode),
		Duplicate:   true,
	}
}

// Wait blocks until every receipt started so far has been attempted
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// sendReceipt runs detached from the request; a failure is only logged
func (r *Reconciler) sendReceipt(d *models.Donation, t *models.Transaction) {
	if r.receipts == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), receiptTimeout)
		defer cancel()
		if err := r.receipts.SendDonationReceipt(ctx, d, t); err != nil {
			r.logger.Error("Failed to send donation receipt",
				zap.Int64("donation_id", d.ID),
				zap.String("email", d.Email),
				zap.Error(err),
			)
		}
	}()
}

func (r *Reconciler) publishCompleted(d *models.Donation, t *models.Transaction, rider *models.Rider) {
	if r.events == nil {
		return
	}
	event := CompletedEvent{
		Type:       EventDonationCompleted,
		DonationID: d.ID,
		Amount:     d.Amount,
		Currency:   t.Currency,
	}
	if rider != nil {
		event.RiderID = &rider.ID
		event.RiderRaise = &rider.Raise
	}
	r.events.Publish(event)
}

func (r *Reconciler) failureRedirect(message string) string {
	u, err := url.Parse(r.cfg.FailureURL)
	if err != nil {
		return r.cfg.FailureURL + "?error=" + url.QueryEscape(message)
	}
	q := u.Query()
	q.Set("error", message)
	u.RawQuery = q.Encode()
	return u.String()
}

// callbackErrorMessage turns a reconciliation error into text fit for the donor
func callbackErrorMessage(err error) string {
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) && gwErr.Timeout() {
		return payment.FailureMessage(payment.CodeTimedOut)
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindGateway:
			return "Payment verification failed. Please try again."
		case KindPersistence:
			return payment.DefaultDeclineReason
		}
		return e.Error()
	}
	return payment.DefaultDeclineReason
}
