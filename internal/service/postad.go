package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pokazuha/backend/internal/events"
	"github.com/pokazuha/backend/internal/logging"
	"github.com/pokazuha/backend/internal/models"
	"github.com/pokazuha/backend/internal/repo"
	"github.com/pokazuha/backend/internal/service/search"
)

// PostadService owns the classified-ad lifecycle around the auth core.
type PostadService struct {
	DB      *gorm.DB
	Postads *repo.PostadRepo
	Index   *search.Index
	Events  *events.Producer
}

type PostadInput struct {
	Title       string
	Description string
	Price       float64
	Category    string
	Location    string
}

func (s *PostadService) Create(ctx context.Context, userID uuid.UUID, in PostadInput) (*models.Postad, error) {
	l := logging.FromContext(ctx).With("svc", "postad.create")

	ad := &models.Postad{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Location:    in.Location,
		Status:      models.PostadStatusPending,
	}
	if err := s.Postads.Create(ctx, ad); err != nil {
		l.Error("postad_create_failed", "error", err)
		return nil, err
	}

	s.publish(ctx, ad.UserID, map[string]any{
		"type": "postad_created", "postad_id": ad.ID, "user_id": ad.UserID,
	})

	l.Info("postad_created", "postad_id", ad.ID)
	return ad, nil
}

func (s *PostadService) Get(ctx context.Context, id uuid.UUID) (*models.Postad, error) {
	ad, err := s.Postads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Postads.IncrementViews(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("postad_view_count_failed", "postad_id", id, "error", err)
	}
	return ad, nil
}

func (s *PostadService) List(ctx context.Context, f repo.PostadFilter) (int64, []models.Postad, error) {
	return s.Postads.List(ctx, f)
}

// Update applies changes if the caller owns the ad or carries the Admin
// role.
func (s *PostadService) Update(ctx context.Context, userID uuid.UUID, roles []string, id uuid.UUID, in PostadInput) (*models.Postad, error) {
	l := logging.FromContext(ctx).With("svc", "postad.update")

	ad, err := s.Postads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ad, userID, roles); err != nil {
		l.Warn("postad_update_denied", "postad_id", id, "user_id", userID)
		return nil, err
	}

	ad.Title = in.Title
	ad.Description = in.Description
	ad.Price = in.Price
	ad.Category = in.Category
	ad.Location = in.Location
	ad.UpdatedAt = time.Now().UTC()

	if err := s.Postads.Save(ctx, ad); err != nil {
		l.Error("postad_update_failed", "error", err)
		return nil, err
	}

	if ad.Status == models.PostadStatusActive {
		s.indexAd(ctx, ad)
	}
	s.publish(ctx, userID, map[string]any{
		"type": "postad_updated", "postad_id": ad.ID, "user_id": userID,
	})
	return ad, nil
}

// Approve publishes a pending ad. Moderation is an Admin-only action;
// ownership does not grant it.
func (s *PostadService) Approve(ctx context.Context, adminID uuid.UUID, roles []string, id uuid.UUID) (*models.Postad, error) {
	return s.moderate(ctx, adminID, roles, id, models.PostadStatusActive)
}

// Reject declines a pending ad and removes it from the index.
func (s *PostadService) Reject(ctx context.Context, adminID uuid.UUID, roles []string, id uuid.UUID) (*models.Postad, error) {
	return s.moderate(ctx, adminID, roles, id, models.PostadStatusRejected)
}

func (s *PostadService) moderate(ctx context.Context, adminID uuid.UUID, roles []string, id uuid.UUID, status string) (*models.Postad, error) {
	l := logging.FromContext(ctx).With("svc", "postad.moderate")

	if !slices.Contains(roles, "Admin") {
		l.Warn("postad_moderation_denied", "postad_id", id, "user_id", adminID)
		return nil, ErrNotOwner
	}

	ad, err := s.Postads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ad.Status = status
	ad.ApprovedAt = &now
	ad.ApprovedByUserID = &adminID
	ad.UpdatedAt = now

	if err := s.Postads.Save(ctx, ad); err != nil {
		l.Error("postad_moderation_failed", "error", err)
		return nil, err
	}

	if status == models.PostadStatusActive {
		s.indexAd(ctx, ad)
		s.publish(ctx, adminID, map[string]any{
			"type": "postad_approved", "postad_id": ad.ID, "admin_id": adminID,
		})
	} else {
		if s.Index != nil {
			if err := s.Index.Remove(ctx, id.String()); err != nil {
				l.Warn("postad_index_remove_failed", "postad_id", id, "error", err)
			}
		}
		s.publish(ctx, adminID, map[string]any{
			"type": "postad_rejected", "postad_id": ad.ID, "admin_id": adminID,
		})
	}

	l.Info("postad_moderated", "postad_id", ad.ID, "status", status)
	return ad, nil
}

func (s *PostadService) Delete(ctx context.Context, userID uuid.UUID, roles []string, id uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "postad.delete")

	ad, err := s.Postads.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(ad, userID, roles); err != nil {
		l.Warn("postad_delete_denied", "postad_id", id, "user_id", userID)
		return err
	}

	if err := s.Postads.Delete(ctx, id); err != nil {
		return err
	}

	if s.Index != nil {
		if err := s.Index.Remove(ctx, id.String()); err != nil {
			l.Warn("postad_index_remove_failed", "postad_id", id, "error", err)
		}
	}
	s.publish(ctx, userID, map[string]any{
		"type": "postad_deleted", "postad_id": id, "user_id": userID,
	})
	return nil
}

func (s *PostadService) AttachImage(ctx context.Context, userID uuid.UUID, roles []string, id uuid.UUID, path string, position int) (*models.PostadImage, error) {
	ad, err := s.Postads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ad, userID, roles); err != nil {
		return nil, err
	}

	img := &models.PostadImage{
		PostadID: ad.ID,
		Path:     path,
		Position: position,
	}
	if err := s.Postads.AddImage(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *PostadService) Search(ctx context.Context, query string, from, size int) (int64, []search.PostadDoc, error) {
	if s.Index == nil {
		return 0, nil, errors.New("search is not configured")
	}
	return s.Index.Search(ctx, query, from, size)
}

func authorize(ad *models.Postad, userID uuid.UUID, roles []string) error {
	if ad.UserID == userID || slices.Contains(roles, "Admin") {
		return nil
	}
	return ErrNotOwner
}

func (s *PostadService) indexAd(ctx context.Context, ad *models.Postad) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Put(ctx, ad); err != nil {
		logging.FromContext(ctx).Warn("postad_index_failed", "postad_id", ad.ID, "error", err)
	}
}

func (s *PostadService) publish(ctx context.Context, key uuid.UUID, event map[string]any) {
	if err := s.Events.PublishEvent(ctx, "postad_events", key.String(), event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", "postad_events", "error", err)
	}
}
