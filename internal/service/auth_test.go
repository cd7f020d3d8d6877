package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pokazuha/backend/internal/googleauth"
	"github.com/pokazuha/backend/internal/models"
	"github.com/pokazuha/backend/internal/repo"
	"github.com/pokazuha/backend/internal/tokens"
)

type fakeGoogle struct {
	identity *googleauth.Identity
}

func (f *fakeGoogle) ValidateIDToken(ctx context.Context, raw string) *googleauth.Identity {
	return f.identity
}

func newTestAuthService(t *testing.T, google GoogleResolver) *AuthService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))
	require.NoError(t, repo.SeedRoles(context.Background(), db))

	issuer, err := tokens.NewIssuer([]byte("test-jwt-secret"), "pokazuha", "pokazuha-api", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)

	if google == nil {
		google = &fakeGoogle{}
	}

	return &AuthService{
		DB:     db,
		Users:  &repo.UserRepo{DB: db},
		Tokens: &repo.RefreshTokenRepo{DB: db},
		Issuer: issuer,
		Google: google,
	}
}

func registerAlice(t *testing.T, svc *AuthService) *AuthResult {
	t.Helper()

	res, err := svc.Register(context.Background(), RegisterInput{
		Email:     "alice@example.com",
		Password:  "Passw0rd!",
		FirstName: "Alice",
	}, "192.0.2.1")
	require.NoError(t, err)
	return res
}

func TestAuthService_Register(t *testing.T) {
	svc := newTestAuthService(t, nil)

	res := registerAlice(t, svc)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, []string{"User"}, res.Roles)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, 2*time.Second)

	stored, err := svc.Tokens.FindByValue(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, stored.UserID)
	assert.Equal(t, "192.0.2.1", stored.CreatedByIP)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	registerAlice(t, svc)

	_, err := svc.Register(ctx, RegisterInput{Email: "Alice@Example.com", Password: "Passw0rd!"}, "")
	assert.ErrorIs(t, err, repo.ErrDuplicateEmail)

	var count int64
	require.NoError(t, svc.DB.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	svc := newTestAuthService(t, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "weak@example.com", Password: "short"}, "")
	assert.ErrorIs(t, err, ErrPasswordPolicy)
}

func TestAuthService_Login_GenericFailures(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	registerAlice(t, svc)

	// Unknown user, wrong password and inactive account are
	// indistinguishable to the caller.
	_, err := svc.Login(ctx, "nobody@example.com", "Passw0rd!", false, "")
	assert.ErrorIs(t, err, repo.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password", false, "")
	assert.ErrorIs(t, err, repo.ErrInvalidCredentials)

	require.NoError(t, svc.DB.Model(&models.User{}).
		Where("email = ?", "alice@example.com").
		Update("is_active", false).Error)
	_, err = svc.Login(ctx, "alice@example.com", "Passw0rd!", false, "")
	assert.ErrorIs(t, err, repo.ErrInvalidCredentials)
}

func TestAuthService_Login_UpdatesLastLogin(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	registerAlice(t, svc)

	res, err := svc.Login(ctx, "alice@example.com", "Passw0rd!", false, "192.0.2.5")
	require.NoError(t, err)
	require.NotNil(t, res.User.LastLoginAt)
	assert.WithinDuration(t, time.Now(), *res.User.LastLoginAt, 2*time.Second)
}

func TestAuthService_Login_SingleSessionByDefault(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	first := registerAlice(t, svc)

	// Default login revokes every other active session.
	second, err := svc.Login(ctx, "alice@example.com", "Passw0rd!", false, "")
	require.NoError(t, err)

	old, err := svc.Tokens.FindByValue(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.False(t, old.Active(time.Now()))

	// A remember-me login leaves prior sessions alone.
	third, err := svc.Login(ctx, "alice@example.com", "Passw0rd!", true, "")
	require.NoError(t, err)

	kept, err := svc.Tokens.FindByValue(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.True(t, kept.Active(time.Now()))

	last, err := svc.Tokens.FindByValue(ctx, third.RefreshToken)
	require.NoError(t, err)
	assert.True(t, last.Active(time.Now()))
}

func TestAuthService_Login_Lockout(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	registerAlice(t, svc)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "alice@example.com", "wrong-password", false, "")
		assert.ErrorIs(t, err, repo.ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, err := svc.Login(ctx, "alice@example.com", "Passw0rd!", false, "")
	assert.ErrorIs(t, err, repo.ErrAccountLocked)
}

func TestAuthService_GoogleLogin_CreatesUser(t *testing.T) {
	google := &fakeGoogle{identity: &googleauth.Identity{
		GoogleID:      "google-sub-1",
		Email:         "new@example.com",
		FirstName:     "New",
		LastName:      "User",
		Picture:       "https://example.com/p.png",
		EmailVerified: true,
	}}
	svc := newTestAuthService(t, google)
	ctx := context.Background()

	res, err := svc.GoogleLogin(ctx, "raw-id-token", "192.0.2.7")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", res.User.Email)
	assert.True(t, res.User.IsGoogleUser)
	assert.True(t, res.User.IsVerified)
	assert.Equal(t, []string{"User"}, res.Roles)

	// Second federated login reuses the account.
	again, err := svc.GoogleLogin(ctx, "raw-id-token", "")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
}

func TestAuthService_GoogleLogin_LinksByEmail(t *testing.T) {
	google := &fakeGoogle{identity: &googleauth.Identity{
		GoogleID:      "google-sub-2",
		Email:         "alice@example.com",
		EmailVerified: true,
	}}
	svc := newTestAuthService(t, google)
	ctx := context.Background()

	local := registerAlice(t, svc)

	res, err := svc.GoogleLogin(ctx, "raw-id-token", "")
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, res.User.ID)
	assert.True(t, res.User.IsGoogleUser)
	assert.True(t, res.User.IsVerified)
	require.NotNil(t, res.User.GoogleID)
	assert.Equal(t, "google-sub-2", *res.User.GoogleID)
}

func TestAuthService_GoogleLogin_InvalidToken(t *testing.T) {
	svc := newTestAuthService(t, &fakeGoogle{identity: nil})

	_, err := svc.GoogleLogin(context.Background(), "bad-token", "")
	assert.ErrorIs(t, err, ErrGoogleAuth)
}

func TestAuthService_Refresh_RotatesChain(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	first := registerAlice(t, svc)

	res, err := svc.Refresh(ctx, first.RefreshToken, "192.0.2.9")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, res.RefreshToken)
	assert.NotEmpty(t, res.AccessToken)

	old, err := svc.Tokens.FindByValue(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.True(t, old.Revoked())
	assert.Equal(t, res.RefreshToken, old.ReplacedByToken)
	assert.Equal(t, "192.0.2.9", old.RevokedByIP)

	fresh, err := svc.Tokens.FindByValue(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.True(t, fresh.Active(time.Now()))
}

func TestAuthService_Refresh_ReplayFails(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	first := registerAlice(t, svc)

	_, err := svc.Refresh(ctx, first.RefreshToken, "")
	require.NoError(t, err)

	// Replaying the consumed token never issues another pair.
	_, err = svc.Refresh(ctx, first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(ctx, "completely-unknown", "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Refresh_ConcurrentExchange(t *testing.T) {
	svc := newTestAuthService(t, nil)

	// Pin the pool to one connection so both goroutines hit the same
	// in-memory database.
	sqlDB, err := svc.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	first := registerAlice(t, svc)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background(), first.RefreshToken, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// Exactly one exchange wins, the other is turned away.
	var won, lost int
	for err := range results {
		if err == nil {
			won++
			continue
		}
		lost++
		assert.True(t, errors.Is(err, ErrInvalidToken) || errors.Is(err, repo.ErrTokenReused),
			"unexpected refresh error: %v", err)
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
}

func TestAuthService_Refresh_InactiveUser(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	first := registerAlice(t, svc)

	require.NoError(t, svc.DB.Model(&models.User{}).
		Where("email = ?", "alice@example.com").
		Update("is_active", false).Error)

	_, err := svc.Refresh(ctx, first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAuthService_Revoke(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	first := registerAlice(t, svc)

	require.NoError(t, svc.Revoke(ctx, first.RefreshToken, "192.0.2.3"))

	// Revoking again, or revoking garbage, reports an invalid token.
	assert.ErrorIs(t, svc.Revoke(ctx, first.RefreshToken, ""), ErrInvalidToken)
	assert.ErrorIs(t, svc.Revoke(ctx, "missing", ""), ErrInvalidToken)

	_, err := svc.Refresh(ctx, first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc := newTestAuthService(t, nil)
	ctx := context.Background()

	first := registerAlice(t, svc)
	second, err := svc.Login(ctx, "alice@example.com", "Passw0rd!", true, "")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, first.User.ID, "wrong-current", "NewPassw0rd1")
	assert.ErrorIs(t, err, repo.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, first.User.ID, "Passw0rd!", "weak")
	assert.ErrorIs(t, err, ErrPasswordPolicy)

	require.NoError(t, svc.ChangePassword(ctx, first.User.ID, "Passw0rd!", "NewPassw0rd1"))

	// Every previously active session is gone.
	for _, value := range []string{first.RefreshToken, second.RefreshToken} {
		stored, err := svc.Tokens.FindByValue(ctx, value)
		require.NoError(t, err)
		assert.False(t, stored.Active(time.Now()))
	}

	_, err = svc.Login(ctx, "alice@example.com", "Passw0rd!", false, "")
	assert.Error(t, err)
	_, err = svc.Login(ctx, "alice@example.com", "NewPassw0rd1", false, "")
	require.NoError(t, err)
}

func TestAuthService_CurrentUser(t *testing.T) {
	svc := newTestAuthService(t, nil)

	first := registerAlice(t, svc)

	user, roles, err := svc.CurrentUser(context.Background(), first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, []string{"User"}, roles)
}
