package mpgs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-donate/internal/models"
	"go-donate/internal/payment"

	"go.uber.org/zap"
)

const (
	DefaultAPIVersion   = "100"
	DefaultMerchantName = "CCC Foundation"
	DefaultTimeout      = 15 * time.Second

	maxBodyBytes = 1 << 20
)

// Config holds the gateway connection settings
type Config struct {
	BaseURL      string
	APIVersion   string
	MerchantName string
	Timeout      time.Duration
}

// Gateway talks to a Mastercard Payment Gateway Services hosted checkout API
type Gateway struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ payment.Gateway = (*Gateway)(nil)

func New(cfg Config, logger *zap.Logger) *Gateway {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MerchantName == "" {
		cfg.MerchantName = DefaultMerchantName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type sessionPayload struct {
	APIOperation string      `json:"apiOperation"`
	Interaction  interaction `json:"interaction"`
	Order        order       `json:"order"`
}

type interaction struct {
	Merchant       merchant       `json:"merchant"`
	Operation      string         `json:"operation"`
	DisplayControl displayControl `json:"displayControl"`
	ReturnURL      string         `json:"returnUrl"`
}

type merchant struct {
	Name string `json:"name"`
}

type displayControl struct {
	BillingAddress string `json:"billingAddress"`
	CustomerEmail  string `json:"customerEmail"`
	Shipping       string `json:"shipping"`
}

type order struct {
	ID          string `json:"id"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type sessionResponse struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	SuccessIndicator string `json:"successIndicator"`
}

type orderResponse struct {
	Result   string `json:"result"`
	Response struct {
		GatewayCode string `json:"gatewayCode"`
	} `json:"response"`
	Transaction []struct {
		Response struct {
			GatewayCode string `json:"gatewayCode"`
		} `json:"response"`
	} `json:"transaction"`
}

// CreateSession initiates a hosted checkout session for one order
func (g *Gateway) CreateSession(ctx context.Context, creds payment.Credentials, req payment.SessionRequest, audit payment.AuditSink) (*payment.Session, error) {
	payload := sessionPayload{
		APIOperation: "INITIATE_CHECKOUT",
		Interaction: interaction{
			Merchant:  merchant{Name: g.cfg.MerchantName},
			Operation: "PURCHASE",
			DisplayControl: displayControl{
				BillingAddress: "HIDE",
				CustomerEmail:  "HIDE",
				Shipping:       "HIDE",
			},
			ReturnURL: req.ReturnURL,
		},
		Order: order{
			ID:          req.OrderID,
			Currency:    req.Currency,
			Description: req.Description,
			Amount:      req.Amount.StringFixed(2),
		},
	}

	body, err := g.do(ctx, "create session", http.MethodPost, g.path(creds, "session"), creds, payload, audit)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &payment.GatewayError{Op: "create session", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if resp.Session.ID == "" || resp.SuccessIndicator == "" {
		return nil, &payment.GatewayError{Op: "create session", Err: errors.New("response is missing session id or success indicator")}
	}

	return &payment.Session{
		SessionID:        resp.Session.ID,
		SuccessIndicator: resp.SuccessIndicator,
		OrderID:          req.OrderID,
	}, nil
}

// VerifyOrder fetches the order and classifies its gateway codes
func (g *Gateway) VerifyOrder(ctx context.Context, creds payment.Credentials, orderID string, audit payment.AuditSink) (*payment.OrderResult, error) {
	body, err := g.do(ctx, "verify order", http.MethodGet, g.path(creds, "order/"+orderID), creds, nil, audit)
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &payment.GatewayError{Op: "verify order", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	raw := resp.Response.GatewayCode
	if len(resp.Transaction) > 0 {
		raw = resp.Transaction[0].Response.GatewayCode
	}
	if raw == "" {
		return nil, payment.ErrMissingGatewayCode
	}

	result := &payment.OrderResult{
		Result:      resp.Result,
		GatewayCode: payment.ParseGatewayCode(raw),
		Raw:         json.RawMessage(body),
	}
	for _, tx := range resp.Transaction {
		result.SubCodes = append(result.SubCodes, payment.ParseGatewayCode(tx.Response.GatewayCode))
	}

	g.logger.Debug("Order verified",
		zap.String("order_id", orderID),
		zap.String("result", result.Result),
		zap.String("gateway_code", string(result.GatewayCode)),
	)
	return result, nil
}

func (g *Gateway) path(creds payment.Credentials, resource string) string {
	return fmt.Sprintf("%s/version/%s/merchant/%s/%s", g.cfg.BaseURL, g.cfg.APIVersion, creds.MerchantID, resource)
}

// do performs one call and reports it to audit before returning
func (g *Gateway) do(ctx context.Context, op, method, url string, creds payment.Credentials, payload any, audit payment.AuditSink) ([]byte, error) {
	entry := &models.APILog{
		RequestURL:    url,
		RequestMethod: method,
		RequestHeaders: map[string]string{
			"Authorization": "Basic ****",
		},
		CreatedAt: time.Now().UTC(),
	}
	defer g.record(ctx, audit, entry)

	var reqBody io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			entry.Error = err.Error()
			return nil, &payment.GatewayError{Op: op, Err: err}
		}
		entry.RequestPayload = jsonPayload
		entry.RequestHeaders["Content-Type"] = "application/json"
		reqBody = bytes.NewReader(jsonPayload)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		entry.Error = err.Error()
		return nil, &payment.GatewayError{Op: op, Err: err}
	}
	request.Header.Set("Authorization", "Basic "+basicToken(creds))
	request.Header.Set("Accept", "application/json")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(request)
	if err != nil {
		entry.Error = err.Error()
		g.logger.Warn("Payment gateway request failed", zap.String("op", op), zap.String("url", url), zap.Error(err))
		return nil, &payment.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	entry.ResponseStatus = &status
	entry.ResponseHeaders = make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		entry.ResponseHeaders[key] = resp.Header.Get(key)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	entry.ResponseBody = string(body)
	if err != nil {
		entry.Error = err.Error()
		return nil, &payment.GatewayError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if status < 200 || status > 299 {
		g.logger.Warn("Payment gateway returned error status",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("body", entry.ResponseBody),
		)
		return nil, &payment.GatewayError{Op: op, StatusCode: status, Body: entry.ResponseBody}
	}
	return body, nil
}

func (g *Gateway) record(ctx context.Context, audit payment.AuditSink, entry *models.APILog) {
	if audit == nil {
		return
	}
	if err := audit.RecordAPICall(context.WithoutCancel(ctx), entry); err != nil {
		g.logger.Error("Failed to record gateway call", zap.String("url", entry.RequestURL), zap.Error(err))
	}
}

func basicToken(creds payment.Credentials) string {
	return base64.StdEncoding.EncodeToString([]byte(creds.APIUsername + ":" + creds.APIPassword))
}
