package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_URL", "https://donate.example.org/")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	cfg := Load()

	if cfg.ServerPort != 8000 {
		t.Errorf("ServerPort = %d", cfg.ServerPort)
	}
	if cfg.ReturnURL != "https://donate.example.org/ccc-line/payment_callback" {
		t.Errorf("ReturnURL = %s", cfg.ReturnURL)
	}
	if cfg.PaymentFailureURL != "https://donate.example.org/static/payment-failed.html" {
		t.Errorf("PaymentFailureURL = %s", cfg.PaymentFailureURL)
	}
	if cfg.MPGSCheckoutScript != "https://test-gateway.mastercard.com/static/checkout/checkout.min.js" {
		t.Errorf("MPGSCheckoutScript = %s", cfg.MPGSCheckoutScript)
	}
	if cfg.MPGSTimeout != 15*time.Second {
		t.Errorf("MPGSTimeout = %s", cfg.MPGSTimeout)
	}
	if !cfg.JWTSecretGenerated || len(cfg.JWTSecret) != 32 {
		t.Errorf("expected generated secret, got %q", cfg.JWTSecret)
	}
	if len(cfg.MPGSCurrencies) != 4 {
		t.Errorf("expected 4 default currencies, got %v", cfg.MPGSCurrencies)
	}
}

func TestCredentials(t *testing.T) {
	t.Setenv("MPGS_CURRENCIES", "lkr, usd,gbp")
	t.Setenv("MPGS_LKR_MERCHANT_ID", "LKRM")
	t.Setenv("MPGS_LKR_USERNAME", "merchant.LKRM")
	t.Setenv("MPGS_LKR_PASSWORD", "p1")
	t.Setenv("MPGS_USD_MERCHANT_ID", "USDM")
	t.Setenv("MPGS_USD_USERNAME", "merchant.USDM")
	t.Setenv("MPGS_USD_PASSWORD", "p2")
	t.Setenv("MPGS_TIMEOUT", "3s")

	cfg := Load()
	table := cfg.Credentials()

	if len(table) != 2 {
		t.Fatalf("expected 2 merchants, got %v", table)
	}
	if table["LKR"].MerchantID != "LKRM" || table["USD"].APIPassword != "p2" {
		t.Errorf("unexpected table %v", table)
	}
	if _, ok := table["GBP"]; ok {
		t.Error("currency without merchant id must be omitted")
	}
	if cfg.MPGSTimeout != 3*time.Second {
		t.Errorf("MPGSTimeout = %s", cfg.MPGSTimeout)
	}
}

func TestAllowedOriginsKeepCase(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://Example.org, http://localhost:3000")
	cfg := Load()
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://Example.org" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CONTACT_INBOX=team@example.org\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONTACT_INBOX", "")
	os.Unsetenv("CONTACT_INBOX")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := Load().ContactInbox; got != "team@example.org" {
		t.Errorf("ContactInbox = %q", got)
	}
}
