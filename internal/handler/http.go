package handler

import (
	"errors"
	"fmt"
	"net/http"

	"story-engine/internal/middleware"
	"story-engine/internal/models"
	"story-engine/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	// Errors lists individual problems for validation failures.
	Errors []string `json:"errors,omitempty"`
}

// PlaySessionHandler serves the play-session HTTP API.
type PlaySessionHandler struct {
	service  service.PlaySessionService
	verifier middleware.TokenVerifier
	logger   *zap.Logger
}

// NewPlaySessionHandler creates the handler. verifier checks user bearer tokens.
func NewPlaySessionHandler(s service.PlaySessionService, verifier middleware.TokenVerifier, logger *zap.Logger) *PlaySessionHandler {
	return &PlaySessionHandler{
		service:  s,
		verifier: verifier,
		logger:   logger.Named("PlaySessionHandler"),
	}
}

// RegisterRoutes mounts the player and authoring routes. All of them require a user token.
func (h *PlaySessionHandler) RegisterRoutes(e *echo.Echo) {
	authMiddleware := echo.WrapMiddleware(middleware.AuthMiddleware(h.verifier, h.logger))

	sessions := e.Group("/sessions", authMiddleware)
	{
		sessions.POST("", h.startSession)
		sessions.GET("/:id", h.getSession)
		sessions.GET("/:id/node", h.getCurrentNode)
		sessions.GET("/:id/choices", h.getAvailableChoices)
		sessions.POST("/:id/choices/:choiceId", h.makeChoice)
		sessions.PATCH("/:id/state", h.updateGameState)
		sessions.POST("/:id/complete", h.completeSession)
		sessions.POST("/:id/saves", h.saveGame)
		sessions.GET("/:id/saves", h.listSavedGames)
	}

	saves := e.Group("/saves", authMiddleware)
	{
		saves.POST("/:id/load", h.loadSavedGame)
		saves.DELETE("/:id", h.deleteSavedGame)
	}

	stories := e.Group("/stories", authMiddleware)
	{
		stories.POST("/:id/validate", h.validateConditionsAndEffects)
	}
}

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator is installed as e.Validator so c.Validate checks `validate` tags.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}
	return nil
}

// --- helpers --- //

func getUserID(c echo.Context) (string, error) {
	userID, ok := models.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return "", fmt.Errorf("%w: user id missing from context", models.ErrUnauthorized)
	}
	return userID, nil
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s format", models.ErrBadRequest, name)
	}
	return id, nil
}

// bindAndValidate decodes the body into req and checks its tags. A validator is optional.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", models.ErrBadRequest)
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}

func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	apiErr := APIError{Message: err.Error()}

	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		statusCode = http.StatusUnprocessableEntity
		apiErr = APIError{Message: models.ErrValidation.Error(), Errors: validationErr.Errors}
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		apiErr = APIError{Message: "Unauthorized"}
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
	case errors.Is(err, models.ErrValidation):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
	case errors.Is(err, models.ErrConcurrentUpdate):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}

// logUnexpected logs errors that are not one of the expected client-facing sentinels.
func (h *PlaySessionHandler) logUnexpected(msg string, err error, fields ...zap.Field) {
	if errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrForbidden) ||
		errors.Is(err, models.ErrBadRequest) ||
		errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrConcurrentUpdate) {
		return
	}
	h.logger.Error(msg, append(fields, zap.Error(err))...)
}
