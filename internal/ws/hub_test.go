package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/backend/internal/models"
	"mindcare/backend/pkg/errors"
	"mindcare/backend/pkg/logger"
	pkgws "mindcare/backend/pkg/ws"
)

type delayedSender struct {
	delay time.Duration
	err   error
}

func (s *delayedSender) SendMessage(ctx context.Context, _ uint, sessionID, content string) (*models.ChatExchange, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.ChatExchange{
		UserMessage:      models.Message{SessionID: sessionID, Content: content, IsFromUser: true},
		AssistantMessage: models.Message{SessionID: sessionID, Content: "reply to " + content},
	}, nil
}

func mapAll(err error) *errors.AppError {
	return errors.NewBadRequestError("EMPTY_MESSAGE", err.Error())
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { hub.Serve(c, 1, "session-1") })

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		hub.Close()
	})
	return conn
}

func TestSlowRepliesDoNotExpireTheReadDeadline(t *testing.T) {
	oldPong, oldPing := pongWait, pingPeriod
	pongWait, pingPeriod = 200*time.Millisecond, time.Hour
	t.Cleanup(func() { pongWait, pingPeriod = oldPong, oldPing })

	hub := NewHub(&delayedSender{delay: 400 * time.Millisecond}, mapAll, logger.Discard())
	conn := dialHub(t, hub)

	for _, content := range []string{"first", "second"} {
		require.NoError(t, conn.WriteJSON(pkgws.ClientFrame{Content: content}))

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var exchange models.ChatExchange
		require.NoError(t, conn.ReadJSON(&exchange), content)
		assert.Equal(t, content, exchange.UserMessage.Content)
		assert.Equal(t, "reply to "+content, exchange.AssistantMessage.Content)
	}
	assert.Equal(t, 1, hub.ActiveConnections())
}

func TestServiceErrorsBecomeErrorFrames(t *testing.T) {
	hub := NewHub(&delayedSender{err: assert.AnError}, mapAll, logger.Discard())
	conn := dialHub(t, hub)

	require.NoError(t, conn.WriteJSON(pkgws.ClientFrame{Content: ""}))
	var frame pkgws.ErrorFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "EMPTY_MESSAGE", frame.Error.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame = pkgws.ErrorFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "INVALID_FRAME", frame.Error.Code)
}

func TestSendReturnsOnceWriterHasExited(t *testing.T) {
	c := &Client{
		Send: make(chan []byte),
		done: make(chan struct{}),
		log:  logger.Discard(),
	}
	close(c.done)

	returned := make(chan struct{})
	go func() {
		c.sendError("AI_UNAVAILABLE", "unavailable")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("send blocked after the writer exited")
	}
}
