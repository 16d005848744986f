package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"nexus/internal/domain/entity"
	"nexus/pkg/errors"
)

func TestCreateUserHashesPassword(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, CreateUserInput{Email: "ann@x.io", Password: "s3cret", Role: entity.RoleInvestor, Name: "Ann"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "s3cret", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("s3cret")))

	_, err = f.users.CreateUser(ctx, CreateUserInput{Email: "ann@x.io", Password: "x", Role: entity.RoleInvestor, Name: "Dup"})
	assert.True(t, errors.Is(err, errors.CodeConflict))

	_, err = f.users.CreateUser(ctx, CreateUserInput{Email: "bo@x.io", Password: "x", Role: "admin", Name: "Bo"})
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestUpdateProfileOnlyTouchesGivenFields(t *testing.T) {
	f := newFixture(EditPolicySender)
	ctx := context.Background()

	bio := "angel investor"
	user, err := f.users.CreateUser(ctx, CreateUserInput{Email: "ann@x.io", Password: "pw", Role: entity.RoleInvestor, Name: "Ann", Profile: UpdateProfileInput{Bio: &bio}})
	require.NoError(t, err)

	location := "Lagos"
	size := 4
	updated, err := f.users.UpdateProfile(ctx, user.ID, UpdateProfileInput{Location: &location, TeamSize: &size, Interests: []string{"fintech"}})
	require.NoError(t, err)
	assert.Equal(t, "angel investor", updated.Bio)
	assert.Equal(t, "Lagos", updated.Location)
	assert.Equal(t, 4, updated.TeamSize)
	assert.Equal(t, []string{"fintech"}, updated.Interests)

	_, err = f.users.UpdateProfile(ctx, "ghost", UpdateProfileInput{})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestListUsersValidatesRole(t *testing.T) {
	f := newFixture(EditPolicySender)

	_, err := f.users.ListUsers(context.Background(), "admin")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	users, err := f.users.ListUsers(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, users)
}
