package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/logger"
	"mindcare/backend/pkg/resilience"
	"mindcare/backend/shared/observability"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrEmptyMessage    = errors.New("message content is empty")
	ErrMessageTooLong  = errors.New("message content is too long")
	ErrAIUnavailable   = errors.New("assistant is unavailable")
)

const (
	// MaxMessageRunes bounds the length of a user message.
	MaxMessageRunes = 4000
	titleRunes      = 50
)

// ReplyGenerator produces the assistant's answer to userText under systemPrompt.
type ReplyGenerator interface {
	Generate(ctx context.Context, systemPrompt, userText string) (string, error)
}

// ChatOptions tunes reply generation.
type ChatOptions struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	// Replies counts generations by outcome; optional.
	Replies *prometheus.CounterVec
}

// ChatService manages chat sessions and generates assistant replies
type ChatService struct {
	chats     repository.ChatRepository
	prompts   *PromptService
	generator ReplyGenerator
	breaker   *resilience.CircuitBreaker
	opts      ChatOptions
	log       *logger.Logger
	now       func() time.Time
	messages  metric.Int64Counter
}

func NewChatService(
	chats repository.ChatRepository,
	prompts *PromptService,
	generator ReplyGenerator,
	breaker *resilience.CircuitBreaker,
	opts ChatOptions,
	log *logger.Logger,
) *ChatService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	log = log.WithComponent("chat_service")

	counter, err := otel.Meter(observability.TracerName).Int64Counter(
		"mindcare.chat.messages",
		metric.WithDescription("Chat messages stored, by author."),
	)
	if err != nil {
		log.LogError(err, "Failed to create chat message counter")
	}

	return &ChatService{
		chats:     chats,
		prompts:   prompts,
		generator: generator,
		breaker:   breaker,
		opts:      opts,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		messages:  counter,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, userID uint, title string) (*models.ChatSession, error) {
	session := models.ChatSession{UserID: userID, Title: strings.TrimSpace(title)}
	if err := s.chats.CreateSession(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns the user's sessions, most recently active first
func (s *ChatService) ListSessions(ctx context.Context, userID uint) ([]models.ChatSession, error) {
	return s.chats.ListSessions(ctx, userID)
}

// GetSession returns a session with its messages in creation order
func (s *ChatService) GetSession(ctx context.Context, userID uint, id string) (*models.ChatSession, error) {
	session, err := s.chats.GetSessionWithMessages(ctx, userID, id)
	return session, notFound(err, ErrSessionNotFound)
}

func (s *ChatService) RenameSession(ctx context.Context, userID uint, id, title string) (*models.ChatSession, error) {
	session, err := s.chats.RenameSession(ctx, userID, id, strings.TrimSpace(title))
	return session, notFound(err, ErrSessionNotFound)
}

// DeleteSession removes the session and all of its messages
func (s *ChatService) DeleteSession(ctx context.Context, userID uint, id string) error {
	return notFound(s.chats.DeleteSession(ctx, userID, id), ErrSessionNotFound)
}

// ValidateContent trims content and enforces the message length rules
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageRunes {
		return "", ErrMessageTooLong
	}
	return content, nil
}

// SendMessage stores the user's message, asks the generator for a reply and
// stores that too. When generation fails the user message stays stored and
// an error wrapping ErrAIUnavailable is returned.
func (s *ChatService) SendMessage(ctx context.Context, userID uint, sessionID, content string) (*models.ChatExchange, error) {
	content, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}

	session, err := s.chats.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}

	var title string
	if session.Title == "" {
		title = firstRunes(content, titleRunes)
	}

	userMsg := models.Message{
		SessionID:  session.ID,
		Content:    content,
		IsFromUser: true,
		CreatedAt:  s.now(),
	}
	if err := s.chats.AddMessage(ctx, &userMsg, title); err != nil {
		return nil, err
	}
	s.countMessage(ctx, "user")

	systemPrompt := s.prompts.ActiveContent(ctx)

	var reply string
	err = resilience.Retry(ctx, s.opts.MaxAttempts, s.opts.RetryBackoff, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			var genErr error
			reply, genErr = s.generator.Generate(ctx, systemPrompt, content)
			return genErr
		})
	})
	if err != nil {
		s.observeReply("failed")
		s.log.LogError(err, "Reply generation failed", "session_id", session.ID)
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	s.observeReply("ok")

	created := s.now()
	if !created.After(userMsg.CreatedAt) {
		// keep the reply strictly after the question at microsecond precision
		created = userMsg.CreatedAt.Add(time.Microsecond)
	}
	assistantMsg := models.Message{
		SessionID:  session.ID,
		Content:    reply,
		IsFromUser: false,
		CreatedAt:  created,
	}
	if err := s.chats.AddMessage(ctx, &assistantMsg, ""); err != nil {
		return nil, err
	}
	s.countMessage(ctx, "assistant")

	return &models.ChatExchange{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *ChatService) observeReply(outcome string) {
	if s.opts.Replies != nil {
		s.opts.Replies.WithLabelValues(outcome).Inc()
	}
}

func (s *ChatService) countMessage(ctx context.Context, author string) {
	if s.messages != nil {
		s.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("author", author)))
	}
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
