package handler

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/middleware"
	"nexus/internal/usecase"
	"nexus/pkg/logger"
	"nexus/pkg/response"
)

type RequestHandler struct {
	requestUseCase *usecase.RequestUseCase
}

func NewRequestHandler(requestUseCase *usecase.RequestUseCase) *RequestHandler {
	return &RequestHandler{requestUseCase: requestUseCase}
}

type createRequestRequest struct {
	InvestorID     string `json:"investorId" validate:"required"`
	EntrepreneurID string `json:"entrepreneurId" validate:"required"`
	InvestorName   string `json:"investorName" validate:"required"`
	ProfileSnippet string `json:"profileSnippet"`
}

func (h *RequestHandler) ListRequests(c echo.Context) error {
	views, err := h.requestUseCase.ListRequests(c.Request().Context(), middleware.CallerFrom(c), c.QueryParam("status"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, views)
}

func (h *RequestHandler) ListAllRequests(c echo.Context) error {
	requests, err := h.requestUseCase.ListAllRequests(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, requests)
}

func (h *RequestHandler) CreateRequest(c echo.Context) error {
	var req createRequestRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	request, err := h.requestUseCase.CreateRequest(c.Request().Context(), usecase.CreateRequestInput{
		InvestorID:     req.InvestorID,
		EntrepreneurID: req.EntrepreneurID,
		InvestorName:   req.InvestorName,
		ProfileSnippet: req.ProfileSnippet,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, request)
}

func (h *RequestHandler) AcceptRequest(c echo.Context) error {
	result, err := h.requestUseCase.AcceptRequest(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		logger.Warn("Accept request %s failed: %v", c.Param("id"), err)
		return response.Error(c, err)
	}
	return response.Success(c, result)
}

func (h *RequestHandler) RejectRequest(c echo.Context) error {
	if err := h.requestUseCase.RejectRequest(c.Request().Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		logger.Warn("Reject request %s failed: %v", c.Param("id"), err)
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Request rejected"})
}
