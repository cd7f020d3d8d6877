package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pokazuha/backend/internal/models"
)

// RefreshTokenRepo is the persistent ledger of refresh tokens and their
// rotation chain.
type RefreshTokenRepo struct {
	DB *gorm.DB
}

func (r *RefreshTokenRepo) WithTx(tx *gorm.DB) *RefreshTokenRepo {
	return &RefreshTokenRepo{DB: tx}
}

func (r *RefreshTokenRepo) Save(ctx context.Context, t *models.RefreshToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return r.DB.WithContext(ctx).Create(t).Error
}

// FindByValue loads a token with its owning user eagerly resolved.
func (r *RefreshTokenRepo) FindByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.DB.WithContext(ctx).Preload("User").Preload("User.Roles").
		Where("token = ?", value).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// Rotate consumes old exactly once and persists its successor. The
// revocation UPDATE is guarded on revoked_at IS NULL, so of two
// concurrent exchanges of the same value one wins and the other gets
// ErrTokenReused.
func (r *RefreshTokenRepo) Rotate(ctx context.Context, old, next *models.RefreshToken, revokingIP string) error {
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	now := time.Now().UTC()

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RefreshToken{}).
			Where("token = ? AND revoked_at IS NULL", old.Token).
			Updates(map[string]any{
				"revoked_at":        now,
				"revoked_by_ip":     revokingIP,
				"replaced_by_token": next.Token,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenReused
		}

		return tx.Create(next).Error
	})
}

// Revoke marks one active token revoked.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, value, revokingIP string) error {
	now := time.Now().UTC()

	token, err := r.FindByValue(ctx, value)
	if err != nil {
		return err
	}
	if !token.Active(now) {
		return ErrTokenNotFound
	}

	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", value).
		Updates(map[string]any{
			"revoked_at":    now,
			"revoked_by_ip": revokingIP,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// RevokeAllForUser revokes every currently active token of one user,
// forcing re-authentication everywhere.
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Update("revoked_at", now).Error
}

func (r *RefreshTokenRepo) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	now := time.Now().UTC()
	var tokens []models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// PurgeExpired deletes tokens past expiry. Maintenance only.
func (r *RefreshTokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
