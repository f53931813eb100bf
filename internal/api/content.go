package api

import (
	"net/http"

	"mindcare/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ContentHandler serves the public content lists
type ContentHandler struct {
	service *service.ContentService
}

func NewContentHandler(service *service.ContentService) *ContentHandler {
	return &ContentHandler{service: service}
}

// ListEvents returns published events, upcoming first
func (h *ContentHandler) ListEvents(c *gin.Context) {
	events, err := h.service.ListEvents(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *ContentHandler) GetEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	event, err := h.service.GetPublishedEvent(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// ListResources accepts an optional category filter
func (h *ContentHandler) ListResources(c *gin.Context) {
	resources, err := h.service.ListResources(c.Request.Context(), c.Query("category"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resources": resources})
}

func (h *ContentHandler) ListBanners(c *gin.Context) {
	banners, err := h.service.ListBanners(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banners": banners})
}

func (h *ContentHandler) ListRecommendations(c *gin.Context) {
	cards, err := h.service.ListRecommendations(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": cards})
}
