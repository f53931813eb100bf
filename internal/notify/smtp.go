package notify

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"mindcare/backend/pkg/config"
)

const defaultSMTPTimeout = 10 * time.Second

// SMTPMailer delivers email through an SMTP relay, upgrading to TLS when the
// relay offers STARTTLS. Every delivery is bounded by the configured timeout
// and by the caller's context.
type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, job EmailJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.buildMessage(job)
	if err != nil {
		return err
	}

	guard := &connGuard{}
	stop := context.AfterFunc(ctx, guard.expire)
	defer stop()

	client, err := mail.NewClient(m.cfg.SMTPHost, m.clientOptions(ctx, guard)...)
	if err != nil {
		return fmt.Errorf("smtp client for %s: %w", m.cfg.SMTPHost, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.cfg.SMTPHost, err)
	}
	return nil
}

func (m *SMTPMailer) clientOptions(ctx context.Context, guard *connGuard) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTimeout(m.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(func(dialCtx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(dialCtx, network, addr)
			if err != nil {
				return nil, err
			}
			// Bounds the greeting and handshake, which go-mail reads without a deadline.
			deadline := time.Now().Add(m.cfg.Timeout)
			if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
				deadline = dl
			}
			if err := conn.SetDeadline(deadline); err != nil {
				conn.Close()
				return nil, err
			}
			guard.set(conn)
			return conn, nil
		}),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

func (m *SMTPMailer) buildMessage(job EmailJob) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(job.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(job.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, job.Body)
	return msg, nil
}

// connGuard lets a cancelled context interrupt a delivery in progress.
type connGuard struct {
	mu      sync.Mutex
	conn    net.Conn
	expired bool
}

func (g *connGuard) set(conn net.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = conn
	if g.expired {
		_ = conn.SetDeadline(time.Now())
	}
}

func (g *connGuard) expire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = true
	if g.conn != nil {
		_ = g.conn.SetDeadline(time.Now())
	}
}
