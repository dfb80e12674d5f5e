package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-donate/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "nested", "donations.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertDonation(t *testing.T, db *DB, typeID int64, amount string) *models.Donation {
	t.Helper()
	d := &models.Donation{
		FirstName:      "Nimal",
		Email:          "nimal@example.com",
		CurrencyID:     1,
		Amount:         decimal.RequireFromString(amount),
		DonationTypeID: typeID,
	}
	if err := db.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertDonation(context.Background(), d)
	}); err != nil {
		t.Fatalf("InsertDonation: %v", err)
	}
	return d
}

func insertTransaction(t *testing.T, db *DB, donationID int64, indicator string, createdAt time.Time) *models.Transaction {
	t.Helper()
	tr := &models.Transaction{
		DonationID:       donationID,
		OrderID:          "order-" + indicator,
		SessionID:        "session-" + indicator,
		SuccessIndicator: indicator,
		Amount:           decimal.RequireFromString("100.00"),
		Currency:         "LKR",
		CreatedAt:        createdAt,
	}
	if err := db.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertTransaction(context.Background(), tr)
	}); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	return tr
}

func TestInitDBSeedsReferenceData(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	currencies, err := db.ListCurrencies(ctx)
	if err != nil {
		t.Fatalf("ListCurrencies: %v", err)
	}
	if len(currencies) != 4 || currencies[0].Code != "LKR" {
		t.Errorf("currencies = %+v", currencies)
	}

	types, err := db.ListDonationTypes(ctx)
	if err != nil {
		t.Fatalf("ListDonationTypes: %v", err)
	}
	if len(types) != 2 || !types[0].IsGeneralDonation {
		t.Errorf("donation types = %+v", types)
	}

	if _, err := db.GetCurrency(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCurrency(99) err = %v, want ErrNotFound", err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertDonation(ctx, &models.Donation{FirstName: "A", Email: "a@example.com", CurrencyID: 1, Amount: decimal.NewFromInt(1), DonationTypeID: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	n, err := db.CountDonations(ctx)
	if err != nil {
		t.Fatalf("CountDonations: %v", err)
	}
	if n != 0 {
		t.Errorf("donations = %d after rollback, want 0", n)
	}
}

func TestIncrementRiderRaiseConcurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rider, err := db.CreateRider(ctx, &models.Rider{Name: "Kasun", Goal: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("CreateRider: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.WithTx(ctx, func(tx *Tx) error {
				return tx.IncrementRiderRaise(ctx, rider.ID, decimal.RequireFromString("12.50"))
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("IncrementRiderRaise: %v", err)
		}
	}

	got, err := db.GetRider(ctx, rider.ID)
	if err != nil {
		t.Fatalf("GetRider: %v", err)
	}
	if want := decimal.RequireFromString("250"); !got.Raise.Equal(want) {
		t.Errorf("raise = %s, want %s", got.Raise, want)
	}
}

func TestIncrementRiderRaiseUnknownRider(t *testing.T) {
	db := newTestDB(t)
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		return tx.IncrementRiderRaise(context.Background(), 404, decimal.NewFromInt(1))
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIncrementRiderRaiseExactCents(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		times  int
		want   string
	}{
		{name: "ten cents", amount: "0.10", times: 10, want: "1.00"},
		{name: "nineteen ninety-nine", amount: "19.99", times: 7, want: "139.93"},
		{name: "one cent", amount: "0.01", times: 30, want: "0.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()
			rider, err := db.CreateRider(ctx, &models.Rider{Name: "Kasun", Goal: decimal.RequireFromString("500.55")})
			if err != nil {
				t.Fatalf("CreateRider: %v", err)
			}

			for i := 0; i < tt.times; i++ {
				if err := db.WithTx(ctx, func(tx *Tx) error {
					return tx.IncrementRiderRaise(ctx, rider.ID, decimal.RequireFromString(tt.amount))
				}); err != nil {
					t.Fatalf("IncrementRiderRaise: %v", err)
				}
			}

			got, err := db.GetRider(ctx, rider.ID)
			if err != nil {
				t.Fatalf("GetRider: %v", err)
			}
			if want := decimal.RequireFromString(tt.want); !got.Raise.Equal(want) {
				t.Errorf("raise = %s, want %s", got.Raise, want)
			}
			if !got.Goal.Equal(decimal.RequireFromString("500.55")) {
				t.Errorf("goal = %s, want 500.55", got.Goal)
			}
		})
	}
}

func TestDeleteDonationCascade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rider, err := db.CreateRider(ctx, &models.Rider{Name: "Kasun", Goal: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("CreateRider: %v", err)
	}

	d := &models.Donation{FirstName: "A", Email: "a@example.com", CurrencyID: 1, Amount: decimal.RequireFromString("40"), DonationTypeID: models.DonationTypeRiderPledge}
	if err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertDonation(ctx, d); err != nil {
			return err
		}
		if err := tx.IncrementRiderRaise(ctx, rider.ID, d.Amount); err != nil {
			return err
		}
		return tx.InsertRiderDonation(ctx, rider.ID, d.ID)
	}); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	insertTransaction(t, db, d.ID, "ind-cascade", time.Now().UTC())

	existed, err := db.DeleteDonationCascade(ctx, d.ID)
	if err != nil || !existed {
		t.Fatalf("DeleteDonationCascade = %v, %v", existed, err)
	}

	got, _ := db.GetRider(ctx, rider.ID)
	if !got.Raise.IsZero() {
		t.Errorf("raise = %s after cascade, want 0", got.Raise)
	}
	if n, _ := db.CountRiderDonations(ctx, rider.ID); n != 0 {
		t.Errorf("rider links = %d, want 0", n)
	}
	if _, err := db.GetDonation(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDonation err = %v, want ErrNotFound", err)
	}
	if _, err := db.LatestTransactionForDonation(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("transaction survived cascade: %v", err)
	}

	existed, err = db.DeleteDonationCascade(ctx, d.ID)
	if err != nil || existed {
		t.Errorf("second delete = %v, %v; want false, nil", existed, err)
	}
}

func TestDeleteDonationCascadeKeepsOtherPledges(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rider, err := db.CreateRider(ctx, &models.Rider{Name: "Kasun", Goal: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("CreateRider: %v", err)
	}

	pledge := func(amount string) *models.Donation {
		d := &models.Donation{FirstName: "A", Email: "a@example.com", CurrencyID: 1, Amount: decimal.RequireFromString(amount), DonationTypeID: models.DonationTypeRiderPledge}
		if err := db.WithTx(ctx, func(tx *Tx) error {
			if err := tx.InsertDonation(ctx, d); err != nil {
				return err
			}
			if err := tx.IncrementRiderRaise(ctx, rider.ID, d.Amount); err != nil {
				return err
			}
			return tx.InsertRiderDonation(ctx, rider.ID, d.ID)
		}); err != nil {
			t.Fatalf("pledge %s: %v", amount, err)
		}
		return d
	}
	pledge("0.10")
	removed := pledge("19.99")
	pledge("0.20")

	if _, err := db.DeleteDonationCascade(ctx, removed.ID); err != nil {
		t.Fatalf("DeleteDonationCascade: %v", err)
	}

	got, _ := db.GetRider(ctx, rider.ID)
	if want := decimal.RequireFromString("0.30"); !got.Raise.Equal(want) {
		t.Errorf("raise = %s, want %s", got.Raise, want)
	}
	if n, _ := db.CountRiderDonations(ctx, rider.ID); n != 2 {
		t.Errorf("rider links = %d, want 2", n)
	}
}

func TestSettleAndMarkPaidOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := insertDonation(t, db, models.DonationTypeGeneral, "100")
	tr := insertTransaction(t, db, d.ID, "ind-once", time.Now().UTC())

	for i, want := range []bool{true, false} {
		var settled, marked bool
		err := db.WithTx(ctx, func(tx *Tx) error {
			var err error
			if settled, err = tx.SettleTransaction(ctx, tr.ID, models.TransactionCompleted, "APPROVED"); err != nil {
				return err
			}
			marked, err = tx.MarkDonationPaid(ctx, d.ID, time.Now())
			return err
		})
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if settled != want || marked != want {
			t.Errorf("round %d: settled=%v marked=%v, want %v", i, settled, marked, want)
		}
	}

	got, err := db.GetTransactionBySuccessIndicator(ctx, "ind-once")
	if err != nil {
		t.Fatalf("GetTransactionBySuccessIndicator: %v", err)
	}
	if got.Status != models.TransactionCompleted || got.GatewayCode != "APPROVED" {
		t.Errorf("transaction = %+v", got)
	}

	if err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.SettleTransaction(ctx, tr.ID, models.TransactionInitiated, "")
		return err
	}); err == nil {
		t.Error("settling to initiated should fail")
	}
}

func TestLatestTransactionForDonation(t *testing.T) {
	db := newTestDB(t)
	d := insertDonation(t, db, models.DonationTypeGeneral, "100")
	now := time.Now().UTC()
	insertTransaction(t, db, d.ID, "ind-old", now.Add(-time.Hour))
	insertTransaction(t, db, d.ID, "ind-new", now)

	got, err := db.LatestTransactionForDonation(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("LatestTransactionForDonation: %v", err)
	}
	if got.SuccessIndicator != "ind-new" {
		t.Errorf("latest = %s, want ind-new", got.SuccessIndicator)
	}
}

func TestGetStaleTransactionsWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		indicator string
		age       time.Duration
	}{
		{"too-old", 48 * time.Hour},
		{"stale-1", 2 * time.Hour},
		{"stale-2", time.Hour},
		{"fresh", time.Minute},
	}
	for _, c := range cases {
		d := insertDonation(t, db, models.DonationTypeGeneral, "10")
		insertTransaction(t, db, d.ID, c.indicator, now.Add(-c.age))
	}

	stale, err := db.GetStaleTransactions(ctx, now.Add(-24*time.Hour), now.Add(-15*time.Minute), 10)
	if err != nil {
		t.Fatalf("GetStaleTransactions: %v", err)
	}
	var got []string
	for _, tr := range stale {
		got = append(got, tr.SuccessIndicator)
	}
	if fmt.Sprint(got) != "[stale-1 stale-2]" {
		t.Errorf("stale = %v, want [stale-1 stale-2]", got)
	}
}

func TestSumGeneralDonations(t *testing.T) {
	tests := []struct {
		name    string
		general []string
		pledges []string
		want    string
	}{
		{name: "none", want: "0"},
		{name: "whole and half", general: []string{"1000.50", "499.50"}, pledges: []string{"700"}, want: "1500"},
		{name: "tenths", general: []string{"0.10", "0.20"}, want: "0.30"},
		{name: "odd cents", general: []string{"19.99", "19.99", "0.03"}, pledges: []string{"0.10"}, want: "40.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			for _, a := range tt.general {
				insertDonation(t, db, models.DonationTypeGeneral, a)
			}
			for _, a := range tt.pledges {
				insertDonation(t, db, models.DonationTypeRiderPledge, a)
			}

			total, err := db.SumGeneralDonations(context.Background())
			if err != nil {
				t.Fatalf("SumGeneralDonations: %v", err)
			}
			if want := decimal.RequireFromString(tt.want); !total.Equal(want) {
				t.Errorf("total = %s, want %s", total, want)
			}
		})
	}
}

func TestDonationAmountRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := insertDonation(t, db, models.DonationTypeGeneral, "19.99")
	insertTransaction(t, db, d.ID, "ind-round-trip", time.Now().UTC())

	got, err := db.GetDonation(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDonation: %v", err)
	}
	if got.Amount.StringFixed(2) != "19.99" {
		t.Errorf("donation amount = %s, want 19.99", got.Amount)
	}

	latest, err := db.LatestTransactionForDonation(ctx, d.ID)
	if err != nil {
		t.Fatalf("LatestTransactionForDonation: %v", err)
	}
	if latest.Amount.StringFixed(2) != "100.00" {
		t.Errorf("transaction amount = %s, want 100.00", latest.Amount)
	}
}

func TestAPILogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	status := 201

	for i := 0; i < 3; i++ {
		if err := db.RecordAPICall(ctx, &models.APILog{
			RequestURL:     fmt.Sprintf("https://gateway.test/%d", i),
			RequestMethod:  "POST",
			RequestHeaders: map[string]string{"Authorization": "Basic ****"},
			RequestPayload: []byte(`{"apiOperation":"INITIATE_CHECKOUT"}`),
			ResponseStatus: &status,
			ResponseBody:   `{"result":"SUCCESS"}`,
		}); err != nil {
			t.Fatalf("RecordAPICall: %v", err)
		}
	}

	logs, total, err := db.GetAPILogs(ctx, 2, 0)
	if err != nil {
		t.Fatalf("GetAPILogs: %v", err)
	}
	if total != 3 || len(logs) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", total, len(logs))
	}
	if logs[0].RequestHeaders["Authorization"] != "Basic ****" {
		t.Errorf("headers = %v", logs[0].RequestHeaders)
	}
	if logs[0].ResponseStatus == nil || *logs[0].ResponseStatus != 201 {
		t.Errorf("response status = %v", logs[0].ResponseStatus)
	}
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := db.EnsureDefaultAdmin(ctx, "admin", "admin123")
	if err != nil || !created {
		t.Fatalf("EnsureDefaultAdmin = %v, %v", created, err)
	}
	created, err = db.EnsureDefaultAdmin(ctx, "admin", "other")
	if err != nil || created {
		t.Fatalf("second EnsureDefaultAdmin = %v, %v", created, err)
	}

	user, err := db.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("admin123")); err != nil {
		t.Errorf("stored password does not match: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("role = %q", user.Role)
	}

	if err := db.TouchLastLogin(ctx, user.ID, time.Now()); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}
	user, _ = db.GetUserByUsername(ctx, "admin")
	if user.LastLogin == nil {
		t.Error("last_login not recorded")
	}

	if _, err := db.GetUserByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
