package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Location     string    `json:"location,omitempty"`
	Bio          string    `json:"bio,omitempty"`

	GoogleID     *string `gorm:"uniqueIndex"   json:"-"`
	IsGoogleUser bool    `gorm:"default:false" json:"is_google_user"`

	IsActive   bool `gorm:"default:true"  json:"is_active"`
	IsVerified bool `gorm:"default:false" json:"is_verified"`

	FailedLogins int        `gorm:"default:0" json:"-"`
	LockedUntil  *time.Time `json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Roles []Role `gorm:"many2many:user_roles" json:"-"`
}

func (u *User) FullName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Email
	}
	return full
}

// Locked reports whether a lockout window is still open.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

type Role struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}

type RefreshToken struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;index"      json:"user_id"`
	User            User       `json:"-"`
	Token           string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt       time.Time  `gorm:"not null"             json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	CreatedByIP     string     `json:"created_by_ip"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	RevokedByIP     string     `json:"revoked_by_ip,omitempty"`
	ReplacedByToken string     `json:"-"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked() && !t.Expired(now)
}

// Postad moderation states. New ads wait for an administrator's
// decision before they appear in public listings.
const (
	PostadStatusPending  = "pending"
	PostadStatusActive   = "active"
	PostadStatusRejected = "rejected"
)

type Postad struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index"       json:"user_id"`
	User        User      `json:"-"`
	Title       string    `gorm:"not null"              json:"title"`
	Description string    `gorm:"not null"              json:"description"`
	Price       float64   `gorm:"not null"              json:"price"`
	Category    string    `gorm:"index"                 json:"category"`
	Location    string    `json:"location"`
	Status      string    `gorm:"index;default:pending" json:"status"`
	Views       uint      `gorm:"default:0"             json:"views"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	ApprovedByUserID *uuid.UUID `gorm:"type:uuid" json:"approved_by_user_id,omitempty"`

	Images []PostadImage `json:"images"`
}

type PostadImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostadID  uuid.UUID `gorm:"type:uuid;index"      json:"postad_id"`
	Path      string    `gorm:"not null"             json:"path"`
	Position  int       `gorm:"default:0"            json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
