package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/pkg/jwt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&entities.User{},
		&entities.Subscription{},
		&entities.Tag{},
		&entities.Ingredient{},
		&entities.Recipe{},
		&entities.RecipeTag{},
		&entities.RecipeIngredient{},
		&entities.Favorite{},
		&entities.ShoppingCart{},
	))

	return db
}

func newTestUserService(t *testing.T) (UserService, *gorm.DB) {
	db := newTestDB(t)
	return NewUserService(NewUserRepository(db), jwt.NewJWTService()), db
}

func registerUser(t *testing.T, svc UserService, username string) domain.UserResponse {
	res, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  "password123",
	})
	require.NoError(t, err)
	return res
}

func seedRecipe(t *testing.T, db *gorm.DB, authorID string, name string, pubDate time.Time) *entities.Recipe {
	recipe := &entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    uuid.MustParse(authorID),
		Name:        name,
		Text:        "text",
		ImageURL:    "https://cdn.test/recipes/" + name + ".png",
		CookingTime: 10,
		PubDate:     pubDate,
	}
	require.NoError(t, db.Create(recipe).Error)
	return recipe
}

func TestRegister(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	res := registerUser(t, svc, "alice")
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, "alice@example.com", res.Email)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.IsSubscribed)

	_, err := svc.Register(ctx, domain.RegisterRequest{
		Email:     "alice@example.com",
		Username:  "alice2",
		FirstName: "Test",
		LastName:  "User",
		Password:  "password123",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	_, err = svc.Register(ctx, domain.RegisterRequest{
		Email:     "alice2@example.com",
		Username:  "alice",
		FirstName: "Test",
		LastName:  "User",
		Password:  "password123",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	registerUser(t, svc, "alice")

	res, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice", res.User.Username)

	_, err = svc.Login(ctx, domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialsInvalid)

	_, err = svc.Login(ctx, domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialsInvalid)
}

func TestSetPassword(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")

	err := svc.SetPassword(ctx, domain.SetPasswordRequest{
		CurrentPassword: "wrong-password",
		NewPassword:     "newpassword123",
	}, alice.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPasswordNotMatch)

	require.NoError(t, svc.SetPassword(ctx, domain.SetPasswordRequest{
		CurrentPassword: "password123",
		NewPassword:     "newpassword123",
	}, alice.ID))

	_, err = svc.Login(ctx, domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "newpassword123",
	})
	require.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	alice := registerUser(t, svc, "alice")

	jwtService := jwt.NewJWTService()
	token, err := jwtService.GenerateTokenForgetPassword(map[string]any{
		"user_id": alice.ID,
	}, 30*time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, domain.ResetPasswordRequest{
		Token:       token,
		NewPassword: "resetpassword123",
	}))

	_, err = svc.Login(ctx, domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "resetpassword123",
	})
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, domain.ResetPasswordRequest{
		Token:       "not-a-token",
		NewPassword: "whatever123",
	})
	require.Error(t, err)
}

func TestSubscribe(t *testing.T) {
	svc, db := newTestUserService(t)
	ctx := context.Background()

	follower := registerUser(t, svc, "follower")
	author := registerUser(t, svc, "author")

	seedRecipe(t, db, author.ID, "Cake", time.Now())

	res, err := svc.Subscribe(ctx, follower.ID, author.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "author", res.Username)
	assert.True(t, res.IsSubscribed)
	assert.Equal(t, int64(1), res.RecipesCount)
	require.Len(t, res.Recipes, 1)
	assert.Equal(t, "Cake", res.Recipes[0].Name)

	_, err = svc.Subscribe(ctx, follower.ID, author.ID, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadySubscribed)

	_, err = svc.Subscribe(ctx, follower.ID, follower.ID, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSelfSubscription)

	_, err = svc.Subscribe(ctx, follower.ID, uuid.NewString(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUnsubscribe(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	follower := registerUser(t, svc, "follower")
	author := registerUser(t, svc, "author")

	err := svc.Unsubscribe(ctx, follower.ID, author.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	_, err = svc.Subscribe(ctx, follower.ID, author.ID, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, follower.ID, author.ID))

	err = svc.Unsubscribe(ctx, follower.ID, author.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestGetSubscriptions(t *testing.T) {
	svc, db := newTestUserService(t)
	ctx := context.Background()

	follower := registerUser(t, svc, "follower")
	author := registerUser(t, svc, "author")
	other := registerUser(t, svc, "other")

	base := time.Now()
	for i := 0; i < 3; i++ {
		seedRecipe(t, db, author.ID, fmt.Sprintf("Recipe %d", i), base.Add(time.Duration(i)*time.Second))
	}

	_, err := svc.Subscribe(ctx, follower.ID, author.ID, 0)
	require.NoError(t, err)

	subs, count, err := svc.GetSubscriptions(ctx, follower.ID, 1, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, subs, 1)

	sub := subs[0]
	assert.Equal(t, "author", sub.Username)
	assert.Equal(t, int64(3), sub.RecipesCount)
	// recipes_limit caps the embedded list, newest first.
	require.Len(t, sub.Recipes, 2)
	assert.Equal(t, "Recipe 2", sub.Recipes[0].Name)
	assert.Equal(t, "Recipe 1", sub.Recipes[1].Name)

	// Authors the follower is not subscribed to are absent.
	otherSubs, count, err := svc.GetSubscriptions(ctx, other.ID, 1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, otherSubs)
}

func TestGetUserDetail_IsSubscribed(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	follower := registerUser(t, svc, "follower")
	author := registerUser(t, svc, "author")

	detail, err := svc.GetUserDetail(ctx, author.ID, follower.ID)
	require.NoError(t, err)
	assert.False(t, detail.IsSubscribed)

	_, err = svc.Subscribe(ctx, follower.ID, author.ID, 0)
	require.NoError(t, err)

	detail, err = svc.GetUserDetail(ctx, author.ID, follower.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsSubscribed)

	// Anonymous lookups never report a subscription.
	detail, err = svc.GetUserDetail(ctx, author.ID, "")
	require.NoError(t, err)
	assert.False(t, detail.IsSubscribed)

	_, err = svc.GetUserDetail(ctx, uuid.NewString(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestGetUsers(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	registerUser(t, svc, "bob")
	registerUser(t, svc, "alice")
	registerUser(t, svc, "carol")

	users, count, err := svc.GetUsers(ctx, 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}
