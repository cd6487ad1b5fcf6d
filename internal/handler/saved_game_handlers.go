package handler

import (
	"net/http"

	"story-engine/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (h *PlaySessionHandler) saveGame(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	var req saveGameRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}

	save, err := h.service.SaveGame(c.Request().Context(), userID, sessionID, req.Name)
	if err != nil {
		h.logUnexpected("Error saving game", err, zap.String("sessionID", sessionID.String()))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, save)
}

func (h *PlaySessionHandler) listSavedGames(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	saves, err := h.service.ListSavedGames(c.Request().Context(), userID, sessionID)
	if err != nil {
		h.logUnexpected("Error listing saved games", err, zap.String("sessionID", sessionID.String()))
		return handleServiceError(c, err)
	}
	if saves == nil {
		saves = []*models.SavedGame{}
	}
	return c.JSON(http.StatusOK, savedGameListResponse{Data: saves})
}

func (h *PlaySessionHandler) loadSavedGame(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	saveID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.service.LoadSavedGame(c.Request().Context(), userID, saveID)
	if err != nil {
		h.logUnexpected("Error loading saved game", err, zap.String("saveID", saveID.String()))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *PlaySessionHandler) deleteSavedGame(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	saveID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := h.service.DeleteSavedGame(c.Request().Context(), userID, saveID); err != nil {
		h.logUnexpected("Error deleting saved game", err, zap.String("saveID", saveID.String()))
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
