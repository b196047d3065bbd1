// Package mail is the seam for transactional email. Delivery goes through an
// external provider in production; the shipped implementation only records
// the send in the service log.
package mail

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"huddler.io/internal/obs"
)

// Mailer delivers transactional email.
type Mailer interface {
	// SendInvite mails the setup-password link to a newly invited account.
	SendInvite(ctx context.Context, email, link string) error
	// SendWelcome confirms a newsletter subscription.
	SendWelcome(ctx context.Context, email string) error
}

// LogMailer logs sends instead of delivering them.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer returns a mailer writing to log, falling back to the shared
// logger when log is nil.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = obs.Logger()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) SendInvite(ctx context.Context, email, link string) error {
	m.log.Info("invite email",
		zap.String("email", redact(email)),
		zap.String("link", link),
	)
	return nil
}

func (m *LogMailer) SendWelcome(ctx context.Context, email string) error {
	m.log.Info("welcome email", zap.String("email", redact(email)))
	return nil
}

// redact keeps logs useful without storing whole addresses.
func redact(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
