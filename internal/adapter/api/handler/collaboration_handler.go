package handler

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/middleware"
	"nexus/internal/usecase"
	"nexus/pkg/response"
)

type CollaborationHandler struct {
	collabUseCase *usecase.CollaborationUseCase
}

func NewCollaborationHandler(collabUseCase *usecase.CollaborationUseCase) *CollaborationHandler {
	return &CollaborationHandler{collabUseCase: collabUseCase}
}

type createCollaborationRequest struct {
	RequesterID string `json:"requesterId" validate:"required"`
	RecipientID string `json:"recipientId" validate:"required"`
	ChatID      string `json:"chatId"`
}

type updateCollaborationRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *CollaborationHandler) ListCollaborations(c echo.Context) error {
	views, err := h.collabUseCase.ListCollaborations(c.Request().Context(), middleware.CallerFrom(c), c.QueryParam("status"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, views)
}

func (h *CollaborationHandler) ListAllCollaborations(c echo.Context) error {
	collabs, err := h.collabUseCase.ListAllCollaborations(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, collabs)
}

func (h *CollaborationHandler) CreateCollaboration(c echo.Context) error {
	var req createCollaborationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	collab, err := h.collabUseCase.CreateCollaboration(c.Request().Context(), usecase.CreateCollaborationInput{
		RequesterID: req.RequesterID,
		RecipientID: req.RecipientID,
		ChatID:      req.ChatID,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, collab)
}

func (h *CollaborationHandler) UpdateCollaboration(c echo.Context) error {
	var req updateCollaborationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	collab, err := h.collabUseCase.UpdateCollaborationStatus(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), req.Status)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, collab)
}

func (h *CollaborationHandler) AcceptCollaboration(c echo.Context) error {
	result, err := h.collabUseCase.AcceptCollaboration(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, result)
}

func (h *CollaborationHandler) RejectCollaboration(c echo.Context) error {
	if err := h.collabUseCase.RejectCollaboration(c.Request().Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Collaboration rejected"})
}
