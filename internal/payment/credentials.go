package payment

import (
	"fmt"
	"sort"
	"strings"
)

// Credentials are the merchant identity used for one currency
type Credentials struct {
	MerchantID  string
	APIUsername string
	APIPassword string
}

// CredentialRouter maps a currency code to its merchant credentials.
// Each currency settles into its own merchant account.
type CredentialRouter struct {
	table map[string]Credentials
}

// NewCredentialRouter copies the table; currency codes are matched case-insensitively
func NewCredentialRouter(table map[string]Credentials) *CredentialRouter {
	r := &CredentialRouter{table: make(map[string]Credentials, len(table))}
	for code, creds := range table {
		r.table[strings.ToUpper(strings.TrimSpace(code))] = creds
	}
	return r
}

// Lookup returns the credentials for a currency or ErrUnsupportedCurrency
func (r *CredentialRouter) Lookup(currency string) (Credentials, error) {
	creds, ok := r.table[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		return Credentials{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	return creds, nil
}

// Currencies lists the configured currency codes in order
func (r *CredentialRouter) Currencies() []string {
	codes := make([]string, 0, len(r.table))
	for code := range r.table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
