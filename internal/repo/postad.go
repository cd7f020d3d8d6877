package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pokazuha/backend/internal/models"
)

type PostadRepo struct {
	DB *gorm.DB
}

func (r *PostadRepo) WithTx(tx *gorm.DB) *PostadRepo {
	return &PostadRepo{DB: tx}
}

func (r *PostadRepo) Create(ctx context.Context, ad *models.Postad) error {
	if ad.ID == uuid.Nil {
		ad.ID = uuid.New()
	}
	return r.DB.WithContext(ctx).Create(ad).Error
}

func (r *PostadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Postad, error) {
	var ad models.Postad
	err := r.DB.WithContext(ctx).Preload("Images").Where("id = ?", id).First(&ad).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostadNotFound
		}
		return nil, err
	}
	return &ad, nil
}

// IncrementViews is a relative UPDATE so concurrent reads do not lose
// counts.
func (r *PostadRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.Postad{}).
		Where("id = ?", id).
		Update("views", gorm.Expr("views + 1")).Error
}

type PostadFilter struct {
	Category string
	Status   string
	UserID   *uuid.UUID
	Offset   int
	Limit    int
}

func (r *PostadRepo) List(ctx context.Context, f PostadFilter) (int64, []models.Postad, error) {
	q := r.DB.WithContext(ctx).Model(&models.Postad{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var ads []models.Postad
	err := q.Preload("Images").
		Order("created_at DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&ads).Error
	if err != nil {
		return 0, nil, err
	}
	return total, ads, nil
}

func (r *PostadRepo) Save(ctx context.Context, ad *models.Postad) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(ad).Error
}

func (r *PostadRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("postad_id = ?", id).Delete(&models.PostadImage{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Postad{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostadNotFound
		}
		return nil
	})
}

func (r *PostadRepo) AddImage(ctx context.Context, img *models.PostadImage) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	return r.DB.WithContext(ctx).Create(img).Error
}
