package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pokazuha/backend/internal/hash"
	"github.com/pokazuha/backend/internal/models"
)

const (
	maxFailedLogins = 5
	lockoutWindow   = 15 * time.Minute
)

// UserRepo owns user records, role assignment and password verification.
type UserRepo struct {
	DB *gorm.DB
}

func (r *UserRepo) WithTx(tx *gorm.DB) *UserRepo {
	return &UserRepo{DB: tx}
}

// NormalizeEmail is applied before every lookup and insert so that email
// uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Roles").
		Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Roles").
		Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Roles").
		Where("google_id = ?", googleID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user, keyed by normalized email. Returns
// ErrDuplicateEmail when the email is already taken.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		// Two concurrent registrations can both miss the lookup and
		// race on the insert; the loser hits the unique index.
		if isUniqueViolation(tx.Error) {
			return ErrDuplicateEmail
		}
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrDuplicateEmail
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures from the
// postgres and sqlite drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func (r *UserRepo) Save(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(u).Error
}

// VerifyPassword checks the password against the stored hash, enforcing
// the failed-attempt lockout. The counter is incremented with a relative
// UPDATE so concurrent failures are counted accurately.
func (r *UserRepo) VerifyPassword(ctx context.Context, u *models.User, password string) error {
	now := time.Now().UTC()
	if u.Locked(now) {
		return ErrAccountLocked
	}

	if hash.CheckPassword(u.PasswordHash, password) {
		if u.FailedLogins > 0 || u.LockedUntil != nil {
			err := r.DB.WithContext(ctx).Model(u).
				Updates(map[string]any{"failed_logins": 0, "locked_until": nil}).Error
			if err != nil {
				return err
			}
			u.FailedLogins = 0
			u.LockedUntil = nil
		}
		return nil
	}

	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", u.ID).
		Update("failed_logins", gorm.Expr("failed_logins + 1")).Error
	if err != nil {
		return err
	}

	var row models.User
	err = r.DB.WithContext(ctx).Select("failed_logins").
		Where("id = ?", u.ID).Take(&row).Error
	if err != nil {
		return err
	}
	failed := row.FailedLogins
	u.FailedLogins = failed
	if failed >= maxFailedLogins {
		until := now.Add(lockoutWindow)
		err = r.DB.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", u.ID).
			Update("locked_until", until).Error
		if err != nil {
			return err
		}
	}
	return ErrInvalidCredentials
}

// SetPassword stores a new password hash. Policy checks belong to the
// caller.
func (r *UserRepo) SetPassword(ctx context.Context, u *models.User, password string) error {
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	err = r.DB.WithContext(ctx).Model(u).Update("password_hash", pwHash).Error
	if err != nil {
		return err
	}
	u.PasswordHash = pwHash
	return nil
}

func (r *UserRepo) AssignRole(ctx context.Context, u *models.User, roleName string) error {
	role := models.Role{Name: roleName}
	err := r.DB.WithContext(ctx).Where("name = ?", roleName).FirstOrCreate(&role).Error
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(u).Association("Roles").Append(&role)
}

func (r *UserRepo) RolesOf(ctx context.Context, u *models.User) ([]string, error) {
	var roles []models.Role
	err := r.DB.WithContext(ctx).Model(u).Association("Roles").Find(&roles)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	return names, nil
}
