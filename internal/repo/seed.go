package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pokazuha/backend/internal/models"
)

// SeedRoles ensures the built-in roles exist. Idempotent, run at startup.
func SeedRoles(ctx context.Context, db *gorm.DB) error {
	for _, name := range []string{"User", "Admin"} {
		role := models.Role{Name: name}
		if err := db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin ensures a bootstrap administrator account exists. No-op when
// email is unset or the account is already there.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string) error {
	if email == "" {
		return nil
	}

	users := &UserRepo{DB: db}
	user := &models.User{Email: email, IsActive: true, IsVerified: true}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil
		}
		return err
	}
	if err := users.SetPassword(ctx, user, password); err != nil {
		return err
	}
	if err := users.AssignRole(ctx, user, "User"); err != nil {
		return err
	}
	return users.AssignRole(ctx, user, "Admin")
}

// Migrate creates the schema for every model owned by this service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.RefreshToken{},
		&models.Postad{},
		&models.PostadImage{},
	)
}
