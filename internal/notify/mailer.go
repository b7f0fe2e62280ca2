package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/quicksend/quicksend/internal/config"
)

// ShareNotification carries everything needed to tell a recipient about a
// shared file.
type ShareNotification struct {
	Recipient string
	Filename  string
	ShareLink string
	ExpiresAt time.Time
}

// Mailer delivers share notifications. Failure is reported to the caller but
// never rolls back the share itself.
type Mailer interface {
	SendShareNotification(n ShareNotification) error
}

// SMTPMailer sends notifications through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer constructs a mailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendShareNotification composes and sends the share email.
func (m *SMTPMailer) SendShareNotification(n ShareNotification) error {
	if n.Recipient == "" {
		return fmt.Errorf("recipient address required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", n.Recipient)
	fmt.Fprintf(&b, "Subject: A file has been shared with you: %s\r\n", n.Filename)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "You can download %q here:\r\n\r\n%s\r\n\r\n", n.Filename, n.ShareLink)
	fmt.Fprintf(&b, "The link expires on %s or after the download limit is reached.\r\n",
		n.ExpiresAt.Format("Jan 2, 2006 15:04 MST"))

	if err := smtp.SendMail(m.cfg.Address(), nil, m.cfg.From, []string{n.Recipient}, []byte(b.String())); err != nil {
		return fmt.Errorf("send share notification: %w", err)
	}
	return nil
}
