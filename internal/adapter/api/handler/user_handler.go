package handler

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/usecase"
	"nexus/pkg/response"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

type profileRequest struct {
	Bio                *string           `json:"bio" validate:"omitempty,max=2000"`
	Interests          []string          `json:"interests"`
	Portfolio          []string          `json:"portfolio"`
	StartupName        *string           `json:"startupName"`
	StartupDescription *string           `json:"startupDescription"`
	FundingNeed        *float64          `json:"fundingNeed" validate:"omitempty,min=0"`
	PitchDeck          *string           `json:"pitchDeck"`
	Avatar             *string           `json:"avatar"`
	Location           *string           `json:"location"`
	SocialLinks        map[string]string `json:"socialLinks"`
	Experience         *string           `json:"experience"`
	Industry           *string           `json:"industry"`
	Stage              *string           `json:"stage"`
	Traction           *string           `json:"traction"`
	TeamSize           *int              `json:"teamSize" validate:"omitempty,min=0"`
}

type createUserRequest struct {
	profileRequest
	ID       string `json:"id"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=investor entrepreneur"`
	Name     string `json:"name" validate:"required"`
}

func (p profileRequest) toInput() usecase.UpdateProfileInput {
	return usecase.UpdateProfileInput{
		Bio:                p.Bio,
		Interests:          p.Interests,
		Portfolio:          p.Portfolio,
		StartupName:        p.StartupName,
		StartupDescription: p.StartupDescription,
		FundingNeed:        p.FundingNeed,
		PitchDeck:          p.PitchDeck,
		Avatar:             p.Avatar,
		Location:           p.Location,
		SocialLinks:        p.SocialLinks,
		Experience:         p.Experience,
		Industry:           p.Industry,
		Stage:              p.Stage,
		Traction:           p.Traction,
		TeamSize:           p.TeamSize,
	}
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.userUseCase.ListUsers(c.Request().Context(), c.QueryParam("role"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, users)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.userUseCase.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) GetUserByEmail(c echo.Context) error {
	user, err := h.userUseCase.GetUserByEmail(c.Request().Context(), c.Param("email"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.CreateUser(c.Request().Context(), usecase.CreateUserInput{
		ID:       req.ID,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Name:     req.Name,
		Profile:  req.profileRequest.toInput(),
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), c.Param("id"), req.toInput())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	if err := h.userUseCase.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "User deleted"})
}
