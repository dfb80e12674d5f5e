package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go-donate/internal/payment"

	"github.com/joho/godotenv"
)

// RoutePrefix is the path every public donation endpoint lives under
const RoutePrefix = "/ccc-line"

// Config holds the application configuration
type Config struct {
	ServerPort         int
	DatabaseURL        string
	JWTSecret          string
	JWTSecretGenerated bool
	LogLevel           string
	LogFormat          string
	AllowedOrigins     []string
	AdminUser          string
	AdminPass          string

	AppURL            string
	ReturnURL         string
	PaymentSuccessURL string
	PaymentFailureURL string
	StaticDir         string
	AvatarDir         string

	MPGSBaseURL        string
	MPGSAPIVersion     string
	MPGSTimeout        time.Duration
	MPGSMerchantName   string
	MPGSCheckoutScript string
	MPGSCurrencies     []string
	Merchants          map[string]payment.Credentials

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	ContactInbox string

	TelegramToken  string
	TelegramChatID string

	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
	ReconcileMaxAge     time.Duration
}

// LoadDotEnv reads variables from the given files into the environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	jwtSecret := getEnv("JWT_SECRET", "")
	generated := false
	if jwtSecret == "" {
		jwtSecret = generateRandomSecret(32)
		generated = true
	}

	appURL := strings.TrimRight(getEnv("APP_URL", "http://localhost:8000"), "/")
	baseURL := strings.TrimRight(getEnv("MPGS_BASE_URL", "https://test-gateway.mastercard.com/api/rest"), "/")
	currencies := getEnvAsList("MPGS_CURRENCIES", []string{"LKR", "GBP", "USD", "EUR"})
	for i := range currencies {
		currencies[i] = strings.ToUpper(currencies[i])
	}

	merchants := make(map[string]payment.Credentials, len(currencies))
	for _, code := range currencies {
		merchants[code] = payment.Credentials{
			MerchantID:  getEnv("MPGS_"+code+"_MERCHANT_ID", ""),
			APIUsername: getEnv("MPGS_"+code+"_USERNAME", ""),
			APIPassword: getEnv("MPGS_"+code+"_PASSWORD", ""),
		}
	}

	return &Config{
		ServerPort:         getEnvAsInt("SERVER_PORT", 8000),
		DatabaseURL:        getEnv("DATABASE_URL", "./data/donations.db"),
		JWTSecret:          jwtSecret,
		JWTSecretGenerated: generated,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		AdminUser:          getEnv("ADMIN_USER", "admin"),
		AdminPass:          getEnv("ADMIN_PASS", "admin123"),

		AppURL:            appURL,
		ReturnURL:         getEnv("RETURN_URL", appURL+RoutePrefix+"/payment_callback"),
		PaymentSuccessURL: getEnv("PAYMENT_SUCCESS_URL", appURL+"/static/payment-success.html"),
		PaymentFailureURL: getEnv("PAYMENT_FAILURE_URL", appURL+"/static/payment-failed.html"),
		StaticDir:         getEnv("STATIC_DIR", "./web/static"),
		AvatarDir:         getEnv("AVATAR_DIR", "./public/images/avatars"),

		MPGSBaseURL:        baseURL,
		MPGSAPIVersion:     getEnv("MPGS_API_VERSION", "100"),
		MPGSTimeout:        getEnvAsDuration("MPGS_TIMEOUT", 15*time.Second),
		MPGSMerchantName:   getEnv("MPGS_MERCHANT_NAME", "CCC Foundation"),
		MPGSCheckoutScript: getEnv("MPGS_CHECKOUT_SCRIPT", checkoutScriptURL(baseURL)),
		MPGSCurrencies:     currencies,
		Merchants:          merchants,

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 465),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", getEnv("SMTP_USERNAME", "")),
		ContactInbox: getEnv("CONTACT_INBOX", ""),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),

		ReconcileInterval:   getEnvAsDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileStaleAfter: getEnvAsDuration("RECONCILE_STALE_AFTER", 15*time.Minute),
		ReconcileMaxAge:     getEnvAsDuration("RECONCILE_MAX_AGE", 24*time.Hour),
	}
}

// Credentials returns the merchant table for the configured currencies.
// Currencies without a merchant id are left out, so they fail as unsupported.
func (c *Config) Credentials() map[string]payment.Credentials {
	table := make(map[string]payment.Credentials, len(c.Merchants))
	for code, creds := range c.Merchants {
		if creds.MerchantID == "" {
			continue
		}
		table[code] = creds
	}
	return table
}

// checkoutScriptURL derives the hosted checkout script from the REST base URL
func checkoutScriptURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/static/checkout/checkout.min.js"
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// generateRandomSecret generates a cryptographically secure random string
func generateRandomSecret(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-secret-%d", time.Now().UnixNano())
	}
	for i := range b {
		b[i] = charset[b[i]%byte(len(charset))]
	}
	return string(b)
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
