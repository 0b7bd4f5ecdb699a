package notify

import (
	"fmt"
	"net/smtp"

	log "github.com/sirupsen/logrus"

	"hempies/coasync/internal/config"
)

// Notifier announces products that came into stock and need COA review.
// NotifyReviewNeeded reports whether a notification was actually
// attempted; it is false when notifications are disabled in settings.
type Notifier interface {
	NotifyReviewNeeded(sku, name string) bool
}

// Mailer sends notifications over SMTP. Delivery is fire-and-forget:
// failures are logged and never surface to the sync.
type Mailer struct {
	cfg config.NotifyConfig
}

func NewMailer(cfg config.NotifyConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) NotifyReviewNeeded(sku, name string) bool {
	if !m.cfg.Enabled || m.cfg.Email == "" {
		return false
	}

	subject := "Product requires COA review: " + sku
	body := fmt.Sprintf("Hello,\n\n"+
		"The following product is now in stock and requires a COA review:\n\n"+
		"SKU: %s\nName: %s\n\n"+
		"Please review and approve the COA for this product.\n\n"+
		"This is an automated message from the COA sync service.\n", sku, name)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, m.cfg.Email, subject, body)

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{m.cfg.Email}, []byte(msg)); err != nil {
		log.Errorf("Failed to send notification email for SKU %s: %v", sku, err)
	}
	return true
}
