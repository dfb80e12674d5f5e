package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sync"
	"time"

	"go-donate/internal/donation"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	sendTimeout    = 10 * time.Second
)

// Client represents a Telegram bot client
type Client struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	wg sync.WaitGroup
}

// New creates a new Telegram client. Without a token or chat id every
// notification is dropped.
func New(token, chatID string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:      token,
		chatID:     chatID,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: sendTimeout},
		logger:     logger,
	}
}

// Enabled reports whether a bot token and chat are configured
func (c *Client) Enabled() bool {
	return c.token != "" && c.chatID != ""
}

// Message represents a Telegram message payload
type Message struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to Telegram
func (c *Client) SendMessage(ctx context.Context, message string) error {
	if !c.Enabled() {
		return fmt.Errorf("telegram token or chat_id not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)

	jsonData, err := json.Marshal(Message{
		ChatID:    c.chatID,
		Text:      message,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// Publish posts completed donations to the staff chat in the background.
// Other events are ignored.
func (c *Client) Publish(event any) {
	if !c.Enabled() {
		return
	}
	var e donation.CompletedEvent
	switch v := event.(type) {
	case donation.CompletedEvent:
		e = v
	case *donation.CompletedEvent:
		e = *v
	default:
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := c.SendMessage(ctx, FormatDonation(e)); err != nil {
			c.logger.Warn("Failed to post donation to Telegram", zap.Int64("donation_id", e.DonationID), zap.Error(err))
		}
	}()
}

// Wait blocks until queued notifications have been attempted
func (c *Client) Wait() {
	c.wg.Wait()
}

// FormatDonation renders the staff message for a completed donation
func FormatDonation(e donation.CompletedEvent) string {
	text := fmt.Sprintf(
		"<b>Donation received</b>\n\n"+
			"<b>Donation:</b> #%d\n"+
			"<b>Amount:</b> %s %s",
		e.DonationID,
		html.EscapeString(e.Currency),
		e.Amount.StringFixed(2),
	)
	if e.RiderID != nil {
		text += fmt.Sprintf("\n<b>Rider:</b> #%d", *e.RiderID)
		if e.RiderRaise != nil {
			text += fmt.Sprintf(" (raised %s)", e.RiderRaise.StringFixed(2))
		}
	}
	return text
}
