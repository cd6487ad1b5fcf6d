package handler

import (
	"net/http"

	"story-engine/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (h *PlaySessionHandler) startSession(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req startSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.service.StartSession(c.Request().Context(), userID, req.StoryID, req.StartingNodeID)
	if err != nil {
		h.logUnexpected("Error starting session", err, zap.String("userID", userID), zap.String("storyID", req.StoryID))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *PlaySessionHandler) getSession(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.service.GetSession(c.Request().Context(), userID, sessionID)
	if err != nil {
		h.logUnexpected("Error getting session", err, zap.String("sessionID", sessionID.String()))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *PlaySessionHandler) getCurrentNode(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	view, err := h.service.GetCurrentNode(c.Request().Context(), userID, sessionID)
	if err != nil {
		h.logUnexpected("Error getting current node", err, zap.String("sessionID", sessionID.String()))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *PlaySessionHandler) getAvailableChoices(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	choices, err := h.service.GetAvailableChoices(c.Request().Context(), userID, sessionID)
	if err != nil {
		h.logUnexpected("Error getting available choices", err, zap.String("sessionID", sessionID.String()))
		return handleServiceError(c, err)
	}
	if choices == nil {
		choices = []models.Choice{}
	}
	return c.JSON(http.StatusOK, choiceListResponse{Data: choices})
}

// makeChoice takes an optional {"gameStateUpdate": {...}} body.
func (h *PlaySessionHandler) makeChoice(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	choiceID := c.Param("choiceId")

	var req makeChoiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.service.MakeChoice(c.Request().Context(), userID, sessionID, choiceID, req.GameStateUpdate)
	if err != nil {
		h.logUnexpected("Error making choice", err,
			zap.String("sessionID", sessionID.String()), zap.String("choiceID", choiceID))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// updateGameState takes a bare StatePatch body.
func (h *PlaySessionHandler) updateGameState(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	var patch models.StatePatch
	if err := bindAndValidate(c, &patch); err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.service.UpdateGameState(c.Request().Context(), userID, sessionID, &patch)
	if err != nil {
		h.logUnexpected("Error updating game state", err, zap.String("sessionID", sessionID.String()))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *PlaySessionHandler) completeSession(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.service.CompleteSession(c.Request().Context(), userID, sessionID)
	if err != nil {
		h.logUnexpected("Error completing session", err, zap.String("sessionID", sessionID.String()))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *PlaySessionHandler) validateConditionsAndEffects(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	storyID := c.Param("id")

	var req validateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}

	result, err := h.service.ValidateConditionsAndEffects(c.Request().Context(), userID, storyID, req.Condition.Condition, req.Effects)
	if err != nil {
		h.logUnexpected("Error validating story content", err, zap.String("storyID", storyID))
		return handleServiceError(c, err)
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	return c.JSON(http.StatusOK, result)
}
