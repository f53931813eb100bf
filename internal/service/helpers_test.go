package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/notify"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/database"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"
	"mindcare/backend/pkg/resilience"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []notify.EmailJob
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, job notify.EmailJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return n.err
}

func (n *recordingNotifier) sent() []notify.EmailJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.EmailJob(nil), n.jobs...)
}

func newTestUserService(t *testing.T, db *gorm.DB) (*UserService, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	svc := NewUserService(
		repository.NewGormUserRepository(db),
		repository.NewGormTokenRepository(db),
		jwt.NewService("test-secret", time.Hour),
		n,
		"http://localhost:3000/",
		logger.Discard(),
	)
	return svc, n
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := models.User{Name: "Test", Email: email, Password: "password123"}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

// scriptedGenerator returns errs in order, then reply.
type scriptedGenerator struct {
	mu     sync.Mutex
	errs   []error
	reply  string
	calls  int
	prompt string
}

func (g *scriptedGenerator) Generate(_ context.Context, systemPrompt, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompt = systemPrompt
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return "", err
	}
	return g.reply, nil
}

var errUpstream = errors.New("upstream timeout")

func newTestChatService(t *testing.T, db *gorm.DB, gen ReplyGenerator) *ChatService {
	t.Helper()
	prompts := NewPromptService(repository.NewGormPromptRepository(db), "default prompt", logger.Discard())
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("ai"), logger.Discard())
	return NewChatService(
		repository.NewGormChatRepository(db),
		prompts,
		gen,
		breaker,
		ChatOptions{MaxAttempts: 3, RetryBackoff: time.Millisecond},
		logger.Discard(),
	)
}
