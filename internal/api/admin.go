package api

import (
	"net/http"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/service"
	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the back-office: content CRUD, system prompts and analytics.
// Every route is mounted behind RequireRole(ADMIN).
type AdminHandler struct {
	content   *service.ContentService
	prompts   *service.PromptService
	analytics *service.AnalyticsService
	bounds    config.AnalyticsConfig
}

// NewAdminHandler wires the handler. bounds sets the defaults and maxima of the analytics query parameters.
func NewAdminHandler(
	content *service.ContentService,
	prompts *service.PromptService,
	analytics *service.AnalyticsService,
	bounds config.AnalyticsConfig,
) *AdminHandler {
	return &AdminHandler{content: content, prompts: prompts, analytics: analytics, bounds: bounds}
}

// events

func (h *AdminHandler) ListEvents(c *gin.Context) {
	respondList(c, "events", h.content.AdminListEvents)
}
func (h *AdminHandler) GetEvent(c *gin.Context)    { respondGet(c, h.content.GetEvent) }
func (h *AdminHandler) CreateEvent(c *gin.Context) { respondCreate(c, h.content.CreateEvent) }
func (h *AdminHandler) UpdateEvent(c *gin.Context) { respondUpdate(c, h.content.UpdateEvent) }
func (h *AdminHandler) DeleteEvent(c *gin.Context) { respondDelete(c, h.content.DeleteEvent) }

// resources

func (h *AdminHandler) ListResources(c *gin.Context) {
	respondList(c, "resources", h.content.AdminListResources)
}
func (h *AdminHandler) GetResource(c *gin.Context)    { respondGet(c, h.content.GetResource) }
func (h *AdminHandler) CreateResource(c *gin.Context) { respondCreate(c, h.content.CreateResource) }
func (h *AdminHandler) UpdateResource(c *gin.Context) { respondUpdate(c, h.content.UpdateResource) }
func (h *AdminHandler) DeleteResource(c *gin.Context) { respondDelete(c, h.content.DeleteResource) }

// banners

func (h *AdminHandler) ListBanners(c *gin.Context) {
	respondList(c, "banners", h.content.AdminListBanners)
}
func (h *AdminHandler) GetBanner(c *gin.Context)    { respondGet(c, h.content.GetBanner) }
func (h *AdminHandler) CreateBanner(c *gin.Context) { respondCreate(c, h.content.CreateBanner) }
func (h *AdminHandler) UpdateBanner(c *gin.Context) { respondUpdate(c, h.content.UpdateBanner) }
func (h *AdminHandler) DeleteBanner(c *gin.Context) { respondDelete(c, h.content.DeleteBanner) }

// ReorderBanners takes every banner id in the new display order
func (h *AdminHandler) ReorderBanners(c *gin.Context) {
	var req models.ReorderBannersRequest
	if !bindJSON(c, &req) {
		return
	}
	banners, err := h.content.ReorderBanners(c.Request.Context(), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banners": banners})
}

// recommendation cards

func (h *AdminHandler) ListRecommendations(c *gin.Context) {
	respondList(c, "recommendations", h.content.AdminListRecommendations)
}
func (h *AdminHandler) GetRecommendation(c *gin.Context) {
	respondGet(c, h.content.GetRecommendation)
}
func (h *AdminHandler) CreateRecommendation(c *gin.Context) {
	respondCreate(c, h.content.CreateRecommendation)
}
func (h *AdminHandler) UpdateRecommendation(c *gin.Context) {
	respondUpdate(c, h.content.UpdateRecommendation)
}
func (h *AdminHandler) DeleteRecommendation(c *gin.Context) {
	respondDelete(c, h.content.DeleteRecommendation)
}

// system prompts

func (h *AdminHandler) ListPrompts(c *gin.Context)  { respondList(c, "prompts", h.prompts.List) }
func (h *AdminHandler) GetPrompt(c *gin.Context)    { respondGet(c, h.prompts.Get) }
func (h *AdminHandler) CreatePrompt(c *gin.Context) { respondCreate(c, h.prompts.Create) }
func (h *AdminHandler) UpdatePrompt(c *gin.Context) { respondUpdate(c, h.prompts.Update) }
func (h *AdminHandler) DeletePrompt(c *gin.Context) { respondDelete(c, h.prompts.Delete) }

func (h *AdminHandler) ActivatePrompt(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	prompt, err := h.prompts.Activate(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

// analytics

// KeywordPopularity handles GET /admin/analytics/keywords?days=&limit=
func (h *AdminHandler) KeywordPopularity(c *gin.Context) {
	days, ok := intQuery(c, "days", h.bounds.DefaultDays, 1, h.bounds.MaxDays)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", h.bounds.DefaultLimit, 1, h.bounds.MaxLimit)
	if !ok {
		return
	}

	report, err := h.analytics.KeywordPopularity(c.Request.Context(), days, limit)
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromContext(c).Debug("Keyword report built",
		"days", days,
		"limit", limit,
		"messages", report.Summary.TotalMessages,
	)
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) ChatOverview(c *gin.Context) {
	days, ok := intQuery(c, "days", h.bounds.DefaultDays, 1, h.bounds.MaxDays)
	if !ok {
		return
	}
	overview, err := h.analytics.ChatOverview(c.Request.Context(), days)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
