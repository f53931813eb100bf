package api

import (
	"net/http"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/service"
	"mindcare/backend/internal/ws"
	"mindcare/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves chat sessions over REST and WebSocket
type ChatHandler struct {
	service *service.ChatService
	hub     *ws.Hub
}

func NewChatHandler(service *service.ChatService, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{service: service, hub: hub}
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessions, err := h.service.ListSessions(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": nonNil(sessions)})
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.CreateSessionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), userID, req.Title)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetSession returns the session with its messages oldest first
func (h *ChatHandler) GetSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	session, err := h.service.GetSession(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "messages": session.Messages})
}

func (h *ChatHandler) RenameSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.RenameSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.service.RenameSession(c.Request.Context(), userID, c.Param("id"), req.Title)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendMessage stores the user message and answers with both turns.
// A failed reply is reported as 502 with the user message already stored.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	exchange, err := h.service.SendMessage(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, exchange)
}

// Connect upgrades to a WebSocket bound to the sessionId query parameter
func (h *ChatHandler) Connect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.Error(errors.NewBadRequestError("INVALID_PARAMETER", "sessionId is required"))
		c.Abort()
		return
	}
	if _, err := h.service.GetSession(c.Request.Context(), userID, sessionID); err != nil {
		fail(c, err)
		return
	}

	h.hub.Serve(c, userID, sessionID)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
