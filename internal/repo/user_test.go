package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokazuha/backend/internal/models"
)

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	users := &UserRepo{DB: db}
	ctx := context.Background()

	first := &models.User{Email: "Alice@Example.com", IsActive: true}
	require.NoError(t, users.Create(ctx, first))
	assert.Equal(t, "alice@example.com", first.Email)

	second := &models.User{Email: "alice@example.com", IsActive: true}
	err := users.Create(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUserRepo_Create_RacingInsertHitsUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "alice@example.com", "Passw0rd!")

	// A racing registration can slip past the lookup and fail on the
	// unique index; the driver error must still translate to the
	// duplicate-email sentinel.
	clone := &models.User{ID: uuid.New(), Email: "alice@example.com", IsActive: true}
	insertErr := db.WithContext(ctx).Create(clone).Error
	require.Error(t, insertErr)
	assert.True(t, isUniqueViolation(insertErr))
	assert.False(t, isUniqueViolation(context.Canceled))
}

func TestUserRepo_FindByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	users := &UserRepo{DB: db}
	ctx := context.Background()

	created := createTestUser(t, db, "bob@example.com", "Passw0rd!")

	found, err := users.FindByEmail(ctx, "BOB@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_VerifyPassword_LockoutAfterFiveFailures(t *testing.T) {
	db := newTestDB(t)
	users := &UserRepo{DB: db}
	ctx := context.Background()

	createTestUser(t, db, "carol@example.com", "Passw0rd!")

	for i := 0; i < 5; i++ {
		user, err := users.FindByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		err = users.VerifyPassword(ctx, user, "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	// Sixth attempt fails with lockout even with the correct password.
	user, err := users.FindByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	err = users.VerifyPassword(ctx, user, "Passw0rd!")
	assert.ErrorIs(t, err, ErrAccountLocked)
	require.NotNil(t, user.LockedUntil)
	assert.True(t, user.LockedUntil.After(time.Now()))
}

func TestUserRepo_VerifyPassword_SuccessResetsCounter(t *testing.T) {
	db := newTestDB(t)
	users := &UserRepo{DB: db}
	ctx := context.Background()

	createTestUser(t, db, "dave@example.com", "Passw0rd!")

	for i := 0; i < 3; i++ {
		user, err := users.FindByEmail(ctx, "dave@example.com")
		require.NoError(t, err)
		require.Error(t, users.VerifyPassword(ctx, user, "wrong-password"))
	}

	user, err := users.FindByEmail(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, user.FailedLogins)
	require.NoError(t, users.VerifyPassword(ctx, user, "Passw0rd!"))

	user, err = users.FindByEmail(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, user.FailedLogins)
	assert.Nil(t, user.LockedUntil)
}

func TestUserRepo_SetPassword(t *testing.T) {
	db := newTestDB(t)
	users := &UserRepo{DB: db}
	ctx := context.Background()

	user := createTestUser(t, db, "erin@example.com", "Passw0rd!")

	require.NoError(t, users.SetPassword(ctx, user, "NewPassw0rd"))
	require.NoError(t, users.VerifyPassword(ctx, user, "NewPassw0rd"))

	reloaded, err := users.FindByEmail(ctx, "erin@example.com")
	require.NoError(t, err)
	assert.Error(t, users.VerifyPassword(ctx, reloaded, "Passw0rd!"))
}

func TestUserRepo_Roles(t *testing.T) {
	db := newTestDB(t)
	users := &UserRepo{DB: db}
	ctx := context.Background()

	user := createTestUser(t, db, "frank@example.com", "Passw0rd!")
	require.NoError(t, users.AssignRole(ctx, user, "Admin"))

	roles, err := users.RolesOf(ctx, user)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"User", "Admin"}, roles)
}

func TestUserRepo_FindByGoogleID(t *testing.T) {
	db := newTestDB(t)
	users := &UserRepo{DB: db}
	ctx := context.Background()

	user := createTestUser(t, db, "grace@example.com", "Passw0rd!")
	googleID := "google-sub-123"
	user.GoogleID = &googleID
	user.IsGoogleUser = true
	require.NoError(t, users.Save(ctx, user))

	found, err := users.FindByGoogleID(ctx, "google-sub-123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = users.FindByGoogleID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
