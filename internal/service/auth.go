package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pokazuha/backend/internal/events"
	"github.com/pokazuha/backend/internal/googleauth"
	"github.com/pokazuha/backend/internal/logging"
	"github.com/pokazuha/backend/internal/models"
	"github.com/pokazuha/backend/internal/repo"
	"github.com/pokazuha/backend/internal/tokens"
)

const defaultRole = "User"

// GoogleResolver validates externally issued identity tokens. Returns nil
// on any validation failure.
type GoogleResolver interface {
	ValidateIDToken(ctx context.Context, raw string) *googleauth.Identity
}

// AuthService composes credential storage, token issuing, federated
// identity resolution and the refresh-token ledger into the user-facing
// session flows. Each flow's writes run inside one transaction.
type AuthService struct {
	DB     *gorm.DB
	Users  *repo.UserRepo
	Tokens *repo.RefreshTokenRepo
	Issuer *tokens.Issuer
	Google GoogleResolver
	Events *events.Producer
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *models.User
	Roles        []string
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, ip string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if err := ValidatePassword(in.Password); err != nil {
		l.Warn("register_failed", "status", 400, "reason", "weak_password")
		return nil, err
	}

	user := &models.User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		IsActive:  true,
	}

	var result *AuthResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		users := s.Users.WithTx(tx)

		if err := users.Create(ctx, user); err != nil {
			return err
		}
		if err := users.SetPassword(ctx, user, in.Password); err != nil {
			return err
		}
		if err := users.AssignRole(ctx, user, defaultRole); err != nil {
			return err
		}

		var err error
		result, err = s.issuePair(ctx, tx, user, ip)
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			l.Warn("register_failed", "status", 400, "reason", "duplicate_email")
		} else {
			l.Error("register_failed", "status", 500, "error", err)
		}
		return nil, err
	}

	s.publish(ctx, "user_events", user.ID.String(), map[string]any{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	l.Info("register_success", "user_id", user.ID)
	return result, nil
}

// Login authenticates with email and password. Nonexistent users,
// inactive users and wrong passwords all surface the same
// ErrInvalidCredentials so nothing about the account is leaked. Unless
// rememberMe is set, every other active session is revoked before the
// new pair is issued.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool, ip string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown_or_inactive")
			return nil, repo.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		l.Warn("login_failed", "status", 401, "reason", "unknown_or_inactive")
		return nil, repo.ErrInvalidCredentials
	}

	if err := s.Users.VerifyPassword(ctx, user, password); err != nil {
		l.Warn("login_failed", "status", 401, "reason", "bad_password_or_locked")
		return nil, err
	}

	var result *AuthResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		users := s.Users.WithTx(tx)
		ledger := s.Tokens.WithTx(tx)

		now := time.Now().UTC()
		user.LastLoginAt = &now
		if err := users.Save(ctx, user); err != nil {
			return err
		}

		if !rememberMe {
			if err := ledger.RevokeAllForUser(ctx, user.ID); err != nil {
				return err
			}
		}

		var err error
		result, err = s.issuePair(ctx, tx, user, ip)
		return err
	})
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	s.publish(ctx, "user_events", user.ID.String(), map[string]any{
		"type":    "user_logged_in",
		"user_id": user.ID,
	})

	l.Info("login_success", "user_id", user.ID)
	return result, nil
}

// GoogleLogin resolves the external token, then matches by google id,
// falls back to matching by email (linking the account), and finally
// creates a fresh user from the federated profile.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken, ip string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.google_login")

	identity := s.Google.ValidateIDToken(ctx, idToken)
	if identity == nil {
		l.Warn("google_login_failed", "status", 401, "reason", "token_rejected")
		return nil, ErrGoogleAuth
	}

	var user *models.User
	var created bool
	var result *AuthResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		users := s.Users.WithTx(tx)

		var err error
		user, err = users.FindByGoogleID(ctx, identity.GoogleID)
		if err != nil && !errors.Is(err, repo.ErrUserNotFound) {
			return err
		}

		if user == nil {
			user, err = users.FindByEmail(ctx, identity.Email)
			if err != nil && !errors.Is(err, repo.ErrUserNotFound) {
				return err
			}
			if user != nil {
				googleID := identity.GoogleID
				user.GoogleID = &googleID
				user.IsGoogleUser = true
				user.IsVerified = identity.EmailVerified
				if err := users.Save(ctx, user); err != nil {
					return err
				}
			}
		}

		if user == nil {
			googleID := identity.GoogleID
			user = &models.User{
				Email:        identity.Email,
				FirstName:    identity.FirstName,
				LastName:     identity.LastName,
				AvatarURL:    identity.Picture,
				GoogleID:     &googleID,
				IsGoogleUser: true,
				IsVerified:   identity.EmailVerified,
				IsActive:     true,
			}
			if err := users.Create(ctx, user); err != nil {
				return err
			}
			if err := users.AssignRole(ctx, user, defaultRole); err != nil {
				return err
			}
			created = true
		}

		now := time.Now().UTC()
		user.LastLoginAt = &now
		if err := users.Save(ctx, user); err != nil {
			return err
		}

		result, err = s.issuePair(ctx, tx, user, ip)
		return err
	})
	if err != nil {
		l.Error("google_login_failed", "status", 500, "error", err)
		return nil, err
	}

	s.publish(ctx, "user_events", user.ID.String(), map[string]any{
		"type":    "user_logged_in",
		"user_id": user.ID,
		"google":  true,
		"created": created,
	})

	l.Info("google_login_success", "user_id", user.ID, "created", created)
	return result, nil
}

// Refresh exchanges an active refresh token for a new pair, consuming
// the old token exactly once.
func (s *AuthService) Refresh(ctx context.Context, tokenValue, ip string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	old, err := s.Tokens.FindByValue(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, repo.ErrTokenNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "unknown_token")
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !old.Active(time.Now().UTC()) {
		l.Warn("refresh_failed", "status", 401, "reason", "inactive_token")
		return nil, ErrInvalidToken
	}

	user := &old.User
	if !user.IsActive {
		l.Warn("refresh_failed", "status", 401, "reason", "user_inactive")
		return nil, ErrUserInactive
	}

	var result *AuthResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		ledger := s.Tokens.WithTx(tx)

		next := s.Issuer.GenerateRefreshToken(ip)
		next.UserID = user.ID

		if err := ledger.Rotate(ctx, old, next, ip); err != nil {
			return err
		}

		roles, err := s.Users.WithTx(tx).RolesOf(ctx, user)
		if err != nil {
			return err
		}

		access, expiresAt, err := s.Issuer.GenerateAccessToken(user, roles)
		if err != nil {
			return err
		}

		result = &AuthResult{
			AccessToken:  access,
			RefreshToken: next.Token,
			ExpiresAt:    expiresAt,
			User:         user,
			Roles:        roles,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrTokenReused) {
			l.Warn("refresh_failed", "status", 401, "reason", "token_reused")
			return nil, err
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("refresh_success", "user_id", user.ID)
	return result, nil
}

// Revoke is the explicit logout of one refresh token.
func (s *AuthService) Revoke(ctx context.Context, tokenValue, ip string) error {
	l := logging.FromContext(ctx).With("svc", "auth.revoke")

	if err := s.Tokens.Revoke(ctx, tokenValue, ip); err != nil {
		if errors.Is(err, repo.ErrTokenNotFound) {
			l.Warn("revoke_failed", "status", 400, "reason", "unknown_or_inactive_token")
			return ErrInvalidToken
		}
		l.Error("revoke_failed", "status", 500, "error", err)
		return err
	}

	l.Info("revoke_success")
	return nil
}

// ChangePassword verifies the current password, stores the new one and
// revokes every active session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password")

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.Users.VerifyPassword(ctx, user, current); err != nil {
		l.Warn("change_password_failed", "status", 400, "reason", "bad_current_password")
		return err
	}
	if err := ValidatePassword(next); err != nil {
		l.Warn("change_password_failed", "status", 400, "reason", "weak_password")
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Users.WithTx(tx).SetPassword(ctx, user, next); err != nil {
			return err
		}
		return s.Tokens.WithTx(tx).RevokeAllForUser(ctx, user.ID)
	})
	if err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return err
	}

	s.publish(ctx, "user_events", user.ID.String(), map[string]any{
		"type":    "password_changed",
		"user_id": user.ID,
	})

	l.Info("change_password_success", "user_id", user.ID)
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, []string, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.Users.RolesOf(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

// issuePair mints an access token plus a persisted refresh token for
// user, inside the caller's transaction.
func (s *AuthService) issuePair(ctx context.Context, tx *gorm.DB, user *models.User, ip string) (*AuthResult, error) {
	users := s.Users.WithTx(tx)
	ledger := s.Tokens.WithTx(tx)

	roles, err := users.RolesOf(ctx, user)
	if err != nil {
		return nil, err
	}

	access, expiresAt, err := s.Issuer.GenerateAccessToken(user, roles)
	if err != nil {
		return nil, err
	}

	refresh := s.Issuer.GenerateRefreshToken(ip)
	refresh.UserID = user.ID
	if err := ledger.Save(ctx, refresh); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt,
		User:         user,
		Roles:        roles,
	}, nil
}

// publish sends an event, logging failures instead of failing the flow.
func (s *AuthService) publish(ctx context.Context, topic, key string, event map[string]any) {
	if err := s.Events.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", topic, "error", err)
	}
}
