package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go-donate/internal/models"

	"go.uber.org/zap"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Inbox receives contact form messages
	Inbox string
}

// Mailer handles email sending
type Mailer struct {
	config Config
	logger *zap.Logger
	send   func(ctx context.Context, to []string, msg []byte) error
}

// New creates a new Mailer
func New(config Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailer{config: config, logger: logger}
	m.send = m.deliver
	return m
}

// Send sends an HTML email
func (m *Mailer) Send(ctx context.Context, to string, subject string, body string) error {
	// If no config, just log (mock mode)
	if m.config.Host == "" {
		m.logger.Info("Mock mail", zap.String("to", to), zap.String("subject", subject), zap.Int("body_length", len(body)))
		return nil
	}

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Date: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", m.config.From, to, sanitizeHeader(subject), time.Now().Format(time.RFC1123Z), body))

	if err := m.send(ctx, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.logger.Debug("Mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// SendDonationReceipt confirms a completed payment to the donor
func (m *Mailer) SendDonationReceipt(ctx context.Context, d *models.Donation, t *models.Transaction) error {
	paidAt := time.Now()
	if d.PaymentDoneAt != nil {
		paidAt = *d.PaymentDoneAt
	}
	body := GenerateDonationReceiptHTML(d.DonorName(), t.OrderID, t.Currency+" "+t.Amount.StringFixed(2), paidAt.Format("02 Jan 2006 15:04"))
	return m.Send(ctx, d.Email, "Thank you for your donation - CCC Line", body)
}

// ContactMessage is a message submitted through the contact form
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"msg"`
}

// SendContactMessage forwards the message to the inbox and acknowledges it to the sender
func (m *Mailer) SendContactMessage(ctx context.Context, msg ContactMessage) error {
	if m.config.Inbox == "" {
		return errors.New("contact inbox is not configured")
	}
	if err := m.Send(ctx, m.config.Inbox, msg.Subject, GenerateContactHTML(msg)); err != nil {
		return err
	}
	return m.Send(ctx, msg.Email, "Your message is submitted - CCC Line", GenerateContactAckHTML(msg.Name))
}

// deliver opens an SMTP session. Port 465 uses implicit TLS, other ports STARTTLS when offered.
func (m *Mailer) deliver(ctx context.Context, to []string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	var conn net.Conn
	var err error
	if m.config.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: m.config.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if m.config.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
				return err
			}
		}
	}
	if m.config.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)); err != nil {
			return err
		}
	}
	if err := client.Mail(m.config.From); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// GenerateDonationReceiptHTML generates HTML for a donation receipt
func GenerateDonationReceiptHTML(donorName, orderID, amount, paidDate string) string {
	return fmt.Sprintf(`
		<html>
		<body>
			<h2>Donation Receipt</h2>
			<p>Dear %s,</p>
			<p>We have received your donation. Thank you for supporting the CCC Line.</p>
			<p><strong>Amount:</strong> %s</p>
			<p><strong>Reference:</strong> %s</p>
			<p><strong>Date:</strong> %s</p>
			<br>
			<p>Best regards,<br>CCC Foundation</p>
		</body>
		</html>
	`, html.EscapeString(donorName), html.EscapeString(amount), html.EscapeString(orderID), html.EscapeString(paidDate))
}

// GenerateContactHTML generates HTML for a forwarded contact message
func GenerateContactHTML(msg ContactMessage) string {
	return fmt.Sprintf(`
		<html>
		<body>
			<h2>New Message Submitted</h2>
			<p><strong>Name:</strong> %s</p>
			<p><strong>E-mail:</strong> %s</p>
			<p><strong>Message:</strong></p>
			<p>%s</p>
		</body>
		</html>
	`, html.EscapeString(msg.Name), html.EscapeString(msg.Email), html.EscapeString(msg.Message))
}

// GenerateContactAckHTML generates HTML for the acknowledgement sent to the sender
func GenerateContactAckHTML(name string) string {
	return fmt.Sprintf(`
		<html>
		<body>
			<p>Dear %s,</p>
			<p>Thank you for your message.</p>
			<p>We have forwarded your message to CCC Lines, we will contact you later for further information.</p>
			<br>
			<p>Best regards,<br>Team<br>CCC Lines</p>
		</body>
		</html>
	`, html.EscapeString(name))
}
