package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/logger"
)

func TestSendMessageStoresBothTurnsAndTitlesSession(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := createUser(t, db, "chat@example.com")
	gen := &scriptedGenerator{reply: "  That sounds hard. What helps you relax?  "}
	svc := newTestChatService(t, db, gen)

	session, err := svc.CreateSession(ctx, u.ID, "")
	require.NoError(t, err)

	long := "I have been feeling anxious about work and sleep for weeks, what can I do about it?"
	exchange, err := svc.SendMessage(ctx, u.ID, session.ID, "  "+long+"  ")
	require.NoError(t, err)
	assert.Equal(t, long, exchange.UserMessage.Content)
	assert.True(t, exchange.UserMessage.IsFromUser)
	assert.False(t, exchange.AssistantMessage.IsFromUser)
	assert.Equal(t, "  That sounds hard. What helps you relax?  ", exchange.AssistantMessage.Content)
	assert.True(t, exchange.AssistantMessage.CreatedAt.After(exchange.UserMessage.CreatedAt))
	assert.Equal(t, "default prompt", gen.prompt)

	loaded, err := svc.GetSession(ctx, u.ID, session.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.True(t, loaded.Messages[0].IsFromUser)
	assert.Equal(t, strings.TrimSpace(string([]rune(long)[:50])), loaded.Title, "title comes from the first message")

	_, err = svc.SendMessage(ctx, u.ID, session.ID, "a second question")
	require.NoError(t, err)
	loaded, err = svc.GetSession(ctx, u.ID, session.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(long, loaded.Title), "later messages keep the title")
	assert.Len(t, loaded.Messages, 4)
}

func TestSendMessageKeepsUserTurnWhenGenerationFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := createUser(t, db, "fail@example.com")
	gen := &scriptedGenerator{errs: []error{errUpstream, errUpstream, errUpstream}}
	svc := newTestChatService(t, db, gen)

	session, err := svc.CreateSession(ctx, u.ID, "Existing title")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, u.ID, session.ID, "hello there")
	require.ErrorIs(t, err, ErrAIUnavailable)
	assert.Equal(t, 3, gen.calls)

	loaded, err := svc.GetSession(ctx, u.ID, session.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.True(t, loaded.Messages[0].IsFromUser)
	assert.Equal(t, "Existing title", loaded.Title)
}

func TestSendMessageRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := createUser(t, db, "retry@example.com")
	gen := &scriptedGenerator{errs: []error{errUpstream}, reply: "ok"}
	svc := newTestChatService(t, db, gen)

	session, err := svc.CreateSession(ctx, u.ID, "")
	require.NoError(t, err)

	exchange, err := svc.SendMessage(ctx, u.ID, session.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", exchange.AssistantMessage.Content)
	assert.Equal(t, 2, gen.calls)
}

func TestSendMessageUsesActivePrompt(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := createUser(t, db, "prompt@example.com")
	gen := &scriptedGenerator{reply: "ok"}
	svc := newTestChatService(t, db, gen)

	p, err := svc.prompts.Create(ctx, &models.SystemPromptRequest{Name: "calm", Content: "Be calm."})
	require.NoError(t, err)
	_, err = svc.prompts.Activate(ctx, p.ID)
	require.NoError(t, err)

	session, err := svc.CreateSession(ctx, u.ID, "")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, u.ID, session.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Be calm.", gen.prompt)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := createUser(t, db, "owner@example.com")
	other := createUser(t, db, "other@example.com")
	gen := &scriptedGenerator{reply: "ok"}
	svc := newTestChatService(t, db, gen)

	session, err := svc.CreateSession(ctx, owner.ID, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, owner.ID, session.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, owner.ID, session.ID, strings.Repeat("é", MaxMessageRunes+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = svc.SendMessage(ctx, other.ID, session.ID, "hi")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.SendMessage(ctx, owner.ID, "missing", "hi")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Zero(t, gen.calls)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	u := createUser(t, db, "life@example.com")
	other := createUser(t, db, "nosy@example.com")
	svc := newTestChatService(t, db, &scriptedGenerator{reply: "ok"})

	first, err := svc.CreateSession(ctx, u.ID, "first")
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, u.ID, "second")
	require.NoError(t, err)

	// activity moves a session to the top of the list
	svc.now = func() time.Time { return time.Now().UTC().Add(time.Minute) }
	_, err = svc.SendMessage(ctx, u.ID, first.ID, "bump")
	require.NoError(t, err)

	sessions, err := svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)

	renamed, err := svc.RenameSession(ctx, u.ID, second.ID, "  renamed ")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Title)

	_, err = svc.RenameSession(ctx, other.ID, second.ID, "hijack")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, other.ID, first.ID), ErrSessionNotFound)

	require.NoError(t, svc.DeleteSession(ctx, u.ID, first.ID))
	var remaining int64
	require.NoError(t, db.Model(&models.Message{}).Where("session_id = ?", first.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	_, err = svc.GetSession(ctx, u.ID, first.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestActiveContentFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	prompts := NewPromptService(repository.NewGormPromptRepository(db), "fallback", logger.Discard())

	assert.Equal(t, "fallback", prompts.ActiveContent(ctx))

	a, err := prompts.Create(ctx, &models.SystemPromptRequest{Name: "a", Content: "A"})
	require.NoError(t, err)
	b, err := prompts.Create(ctx, &models.SystemPromptRequest{Name: "b", Content: "B"})
	require.NoError(t, err)

	_, err = prompts.Activate(ctx, a.ID)
	require.NoError(t, err)
	_, err = prompts.Activate(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", prompts.ActiveContent(ctx))

	var active int64
	require.NoError(t, db.Model(&models.SystemPrompt{}).Where("is_active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(1), active)

	_, err = prompts.Activate(ctx, 999)
	assert.ErrorIs(t, err, ErrPromptNotFound)
	assert.ErrorIs(t, prompts.Delete(ctx, 999), ErrPromptNotFound)
}
