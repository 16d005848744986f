package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"nexus/internal/domain/entity"
	"nexus/internal/domain/repository"
	"nexus/pkg/errors"
)

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{userRepo: userRepo}
}

type CreateUserInput struct {
	ID       string
	Email    string
	Password string
	Role     string
	Name     string
	Profile  UpdateProfileInput
}

// UpdateProfileInput holds the editable profile fields. Nil means "leave
// unchanged".
type UpdateProfileInput struct {
	Bio                *string
	Interests          []string
	Portfolio          []string
	StartupName        *string
	StartupDescription *string
	FundingNeed        *float64
	PitchDeck          *string
	Avatar             *string
	Location           *string
	SocialLinks        map[string]string
	Experience         *string
	Industry           *string
	Stage              *string
	Traction           *string
	TeamSize           *int
}

func (uc *UserUseCase) ListUsers(ctx context.Context, role string) ([]*entity.User, error) {
	if role != "" && !entity.IsValidRole(role) {
		return nil, errors.Validation(`Invalid role. Must be "investor" or "entrepreneur"`)
	}
	return uc.userRepo.List(ctx, role)
}

func (uc *UserUseCase) GetUser(ctx context.Context, id string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, id)
}

func (uc *UserUseCase) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	return uc.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
}

func (uc *UserUseCase) CreateUser(ctx context.Context, input CreateUserInput) (*entity.User, error) {
	if input.Email == "" || input.Name == "" || input.Password == "" {
		return nil, errors.Validation("email, password, and name are required")
	}
	if !entity.IsValidRole(input.Role) {
		return nil, errors.Validation(`Invalid role. Must be "investor" or "entrepreneur"`)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("Failed to hash password", err)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.New().String()
	}

	user := &entity.User{
		ID:        id,
		Email:     strings.TrimSpace(input.Email),
		Password:  string(hash),
		Role:      input.Role,
		Name:      strings.TrimSpace(input.Name),
		Interests: []string{},
		Portfolio: []string{},
	}
	applyProfile(user, input.Profile)

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyProfile(user, input)

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (uc *UserUseCase) DeleteUser(ctx context.Context, id string) error {
	return uc.userRepo.Delete(ctx, id)
}

func applyProfile(user *entity.User, input UpdateProfileInput) {
	if input.Bio != nil {
		user.Bio = *input.Bio
	}
	if input.Interests != nil {
		user.Interests = input.Interests
	}
	if input.Portfolio != nil {
		user.Portfolio = input.Portfolio
	}
	if input.StartupName != nil {
		user.StartupName = *input.StartupName
	}
	if input.StartupDescription != nil {
		user.StartupDescription = *input.StartupDescription
	}
	if input.FundingNeed != nil {
		user.FundingNeed = *input.FundingNeed
	}
	if input.PitchDeck != nil {
		user.PitchDeck = *input.PitchDeck
	}
	if input.Avatar != nil {
		user.Avatar = *input.Avatar
	}
	if input.Location != nil {
		user.Location = *input.Location
	}
	if input.SocialLinks != nil {
		user.SocialLinks = input.SocialLinks
	}
	if input.Experience != nil {
		user.Experience = *input.Experience
	}
	if input.Industry != nil {
		user.Industry = *input.Industry
	}
	if input.Stage != nil {
		user.Stage = *input.Stage
	}
	if input.Traction != nil {
		user.Traction = *input.Traction
	}
	if input.TeamSize != nil {
		user.TeamSize = *input.TeamSize
	}
}
