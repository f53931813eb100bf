// Package notify delivers transactional email, either inline or through RabbitMQ.
package notify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"

	"mindcare/backend/pkg/logger"
)

// EmailKind identifies the template an email was built from.
type EmailKind string

const (
	KindVerify EmailKind = "verify"
	KindReset  EmailKind = "reset"
)

// EmailJob is one email waiting to be delivered.
type EmailJob struct {
	Kind    EmailKind `json:"kind"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
}

// Mailer sends a single email.
type Mailer interface {
	Send(ctx context.Context, job EmailJob) error
}

// Notifier accepts email jobs for delivery.
type Notifier interface {
	Notify(ctx context.Context, job EmailJob) error
}

// VerificationEmail links to the frontend page that consumes token.
func VerificationEmail(frontendURL, to, token string) EmailJob {
	link := fmt.Sprintf("%s/verify-email?token=%s", frontendURL, url.QueryEscape(token))
	return EmailJob{
		Kind:    KindVerify,
		To:      to,
		Subject: "Confirm your Mindcare email address",
		Body: "Welcome to Mindcare.\n\n" +
			"Please confirm your email address by opening the link below. It is valid for 24 hours.\n\n" +
			link + "\n",
	}
}

// PasswordResetEmail links to the frontend page that consumes token.
func PasswordResetEmail(frontendURL, to, token string) EmailJob {
	link := fmt.Sprintf("%s/reset-password?token=%s", frontendURL, url.QueryEscape(token))
	return EmailJob{
		Kind:    KindReset,
		To:      to,
		Subject: "Reset your Mindcare password",
		Body: "Someone asked to reset the password for this account.\n\n" +
			"Open the link below within one hour to choose a new password. " +
			"If it was not you, ignore this email.\n\n" +
			link + "\n",
	}
}

// DirectNotifier sends email synchronously. It is used when no broker is configured.
type DirectNotifier struct {
	mailer Mailer
}

func NewDirectNotifier(mailer Mailer) *DirectNotifier {
	return &DirectNotifier{mailer: mailer}
}

func (n *DirectNotifier) Notify(ctx context.Context, job EmailJob) error {
	return n.mailer.Send(ctx, job)
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	log *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log.WithComponent("mailer")}
}

func (m *LogMailer) Send(_ context.Context, job EmailJob) error {
	m.log.Info("Email not sent, no SMTP host configured",
		"kind", string(job.Kind),
		"to", job.To,
		"subject", job.Subject,
		"body", job.Body,
	)
	return nil
}

type instrumentedMailer struct {
	next    Mailer
	counter *prometheus.CounterVec
}

// Instrumented counts deliveries by kind and outcome on counter.
func Instrumented(next Mailer, counter *prometheus.CounterVec) Mailer {
	if counter == nil {
		return next
	}
	return &instrumentedMailer{next: next, counter: counter}
}

func (m *instrumentedMailer) Send(ctx context.Context, job EmailJob) error {
	err := m.next.Send(ctx, job)
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.counter.WithLabelValues(string(job.Kind), outcome).Inc()
	return err
}
