package api

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"mindcare/backend/internal/service"
	"mindcare/backend/pkg/errors"
)

// FieldError describes one failed validation rule
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ToAppError maps service errors onto the HTTP error surface. Unknown errors
// become INTERNAL_ERROR with the cause kept for logging only.
func ToAppError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, service.ErrUserAlreadyExists):
		return errors.NewConflictError("USER_EXISTS", "A user with this email already exists")
	case stderrors.Is(err, service.ErrInvalidCredentials):
		return errors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
	case stderrors.Is(err, service.ErrUserNotFound):
		return errors.NewNotFoundError("USER_NOT_FOUND", "User not found")
	case stderrors.Is(err, service.ErrInvalidRole):
		return errors.NewBadRequestError("INVALID_ROLE", "Role must be USER or ADMIN")
	case stderrors.Is(err, service.ErrWrongPassword):
		return errors.NewBadRequestError("WRONG_PASSWORD", "Current password is incorrect")
	case stderrors.Is(err, service.ErrTokenInvalid):
		return errors.NewBadRequestError("TOKEN_INVALID", "The link is invalid or has already been used")
	case stderrors.Is(err, service.ErrTokenExpired):
		return errors.NewBadRequestError("TOKEN_EXPIRED", "The link has expired")

	case stderrors.Is(err, service.ErrSessionNotFound):
		return errors.NewNotFoundError("SESSION_NOT_FOUND", "Chat session not found")
	case stderrors.Is(err, service.ErrEmptyMessage):
		return errors.NewBadRequestError("EMPTY_MESSAGE", "Message content must not be empty")
	case stderrors.Is(err, service.ErrMessageTooLong):
		return errors.NewBadRequestError("MESSAGE_TOO_LONG", "Message content must be at most "+strconv.Itoa(service.MaxMessageRunes)+" characters")
	case stderrors.Is(err, service.ErrAIUnavailable):
		return errors.NewBadGatewayError("AI_UNAVAILABLE", "The assistant could not reply, please try again").Wrap(err)

	case stderrors.Is(err, service.ErrEventNotFound):
		return errors.NewNotFoundError("EVENT_NOT_FOUND", "Event not found")
	case stderrors.Is(err, service.ErrResourceNotFound):
		return errors.NewNotFoundError("RESOURCE_NOT_FOUND", "Resource not found")
	case stderrors.Is(err, service.ErrBannerNotFound):
		return errors.NewNotFoundError("BANNER_NOT_FOUND", "Banner not found")
	case stderrors.Is(err, service.ErrRecommendationNotFound):
		return errors.NewNotFoundError("RECOMMENDATION_NOT_FOUND", "Recommendation card not found")
	case stderrors.Is(err, service.ErrPromptNotFound):
		return errors.NewNotFoundError("PROMPT_NOT_FOUND", "System prompt not found")
	case stderrors.Is(err, service.ErrInvalidOrder):
		return errors.NewBadRequestError("INVALID_ORDER", "The order must list every banner exactly once")
	case stderrors.Is(err, service.ErrInvalidEventTime):
		return errors.ValidationError("Event must end after it starts", []FieldError{{Field: "endsAt", Rule: "gtfield"}})

	case stderrors.Is(err, service.ErrAnalyticsUnavailable):
		return errors.NewInternalServerError("ANALYTICS_UNAVAILABLE", "Analytics are temporarily unavailable").Wrap(err)
	}
	return errors.FromError(err)
}

func fail(c *gin.Context, err error) {
	c.Error(ToAppError(err))
	c.Abort()
}

// bindJSON binds the body into req and reports VALIDATION_ERROR on failure
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(errors.ValidationError("Invalid request body", fieldErrors(err)))
		c.Abort()
		return false
	}
	return true
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return []FieldError{{Field: "body", Rule: "json"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: lowerFirst(fe.Field()), Rule: fe.Tag()})
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// idParam parses the :id path parameter
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.Error(errors.NewBadRequestError("INVALID_PARAMETER", "id must be a positive integer"))
		c.Abort()
		return 0, false
	}
	return uint(id), true
}

// intQuery reads an optional integer query parameter within [min, max]
func intQuery(c *gin.Context, name string, def, min, max int) (int, bool) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return def, true
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < min || v > max {
		c.Error(errors.NewBadRequestError("INVALID_PARAMETER",
			name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max)).
			WithDetails(gin.H{"parameter": name, "value": raw}))
		c.Abort()
		return 0, false
	}
	return v, true
}
