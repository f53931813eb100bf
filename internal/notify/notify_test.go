package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/logger"
)

type recordingMailer struct {
	sent []EmailJob
	err  error
}

func (m *recordingMailer) Send(_ context.Context, job EmailJob) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, job)
	return nil
}

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (d *fakeDelivery) Ack(bool) error { d.acked = true; return nil }

func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.nacked = true
	d.requeued = requeue
	return nil
}

func TestEmailBuilders(t *testing.T) {
	v := VerificationEmail("https://app.mindcare.test", "ana@example.com", "a b")
	assert.Equal(t, KindVerify, v.Kind)
	assert.Equal(t, "ana@example.com", v.To)
	assert.Contains(t, v.Body, "https://app.mindcare.test/verify-email?token=a+b")

	r := PasswordResetEmail("https://app.mindcare.test", "ana@example.com", "tok")
	assert.Equal(t, KindReset, r.Kind)
	assert.Contains(t, r.Body, "https://app.mindcare.test/reset-password?token=tok")
}

func TestWorkerHandle(t *testing.T) {
	job := VerificationEmail("http://localhost:3000", "ana@example.com", "tok")
	body, err := json.Marshal(job)
	require.NoError(t, err)

	t.Run("sends and acks", func(t *testing.T) {
		mailer := &recordingMailer{}
		w := NewWorker(nil, mailer, "q", logger.Discard())
		d := &fakeDelivery{}

		w.handle(context.Background(), d, body)

		assert.True(t, d.acked)
		assert.False(t, d.nacked)
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, job, mailer.sent[0])
	})

	t.Run("drops undecodable job", func(t *testing.T) {
		mailer := &recordingMailer{}
		w := NewWorker(nil, mailer, "q", logger.Discard())
		d := &fakeDelivery{}

		w.handle(context.Background(), d, []byte("{not json"))

		assert.True(t, d.nacked)
		assert.False(t, d.requeued)
		assert.Empty(t, mailer.sent)
	})

	t.Run("drops job the mailer rejects", func(t *testing.T) {
		w := NewWorker(nil, &recordingMailer{err: errors.New("relay down")}, "q", logger.Discard())
		d := &fakeDelivery{}

		w.handle(context.Background(), d, body)

		assert.True(t, d.nacked)
		assert.False(t, d.requeued)
		assert.False(t, d.acked)
	})
}

func TestDirectNotifier(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewDirectNotifier(mailer)
	require.NoError(t, n.Notify(context.Background(), EmailJob{Kind: KindReset, To: "x@example.com"}))
	assert.Len(t, mailer.sent, 1)
}

func TestInstrumentedMailer(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "emails"}, []string{"kind", "outcome"})

	ok := Instrumented(&recordingMailer{}, counter)
	bad := Instrumented(&recordingMailer{err: errors.New("x")}, counter)

	_ = ok.Send(context.Background(), EmailJob{Kind: KindVerify})
	_ = bad.Send(context.Background(), EmailJob{Kind: KindVerify})
	_ = bad.Send(context.Background(), EmailJob{Kind: KindVerify})

	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("verify", "sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(counter.WithLabelValues("verify", "failed")))
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "info", JSON: true, Output: &buf})

	require.NoError(t, NewLogMailer(log).Send(context.Background(), EmailJob{Kind: KindVerify, To: "ana@example.com", Subject: "Hi"}))
	assert.Contains(t, buf.String(), `"to":"ana@example.com"`)
	assert.Contains(t, buf.String(), `"component":"mailer"`)
}

func TestSMTPMessageEncoding(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 2525,
		From:     "Mindcare <no-reply@mindcare.test>",
	})

	msg, err := m.buildMessage(EmailJob{
		To:      "ana@example.com",
		Subject: "Réinitialisez votre mot de passe",
		Body:    "line1\r\nline2\nline3",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "Subject: =?UTF-8?")
	assert.NotContains(t, raw, "Réinitialisez")
	assert.Contains(t, raw, "Content-Transfer-Encoding: quoted-printable")
	assert.Contains(t, raw, "<ana@example.com>")
	assert.NotContains(t, raw, "\r\r\n")
	assert.Contains(t, raw, "line1\r\nline2\r\nline3")
}

func TestSMTPMailerRejectsBadRecipient(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1, From: "no-reply@mindcare.test"})
	_, err := m.buildMessage(EmailJob{To: "not an address"})
	assert.Error(t, err)
	assert.Error(t, m.Send(context.Background(), EmailJob{To: "not an address"}))
}

// stalledRelay accepts connections and never sends the SMTP greeting.
func stalledRelay(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func TestSMTPMailerHonoursContextDeadline(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{
		SMTPHost: "127.0.0.1",
		SMTPPort: stalledRelay(t),
		From:     "no-reply@mindcare.test",
		Timeout:  time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, EmailJob{To: "ana@example.com", Subject: "Hi", Body: "hello"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSMTPMailerTimesOutStalledRelay(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{
		SMTPHost: "127.0.0.1",
		SMTPPort: stalledRelay(t),
		From:     "no-reply@mindcare.test",
		Timeout:  200 * time.Millisecond,
	})

	start := time.Now()
	err := m.Send(context.Background(), EmailJob{To: "ana@example.com", Subject: "Hi", Body: "hello"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}
