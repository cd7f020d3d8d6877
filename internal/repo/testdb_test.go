package repo

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pokazuha/backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()

	users := &UserRepo{DB: db}
	user := &models.User{Email: email, IsActive: true}
	require.NoError(t, users.Create(context.Background(), user))
	require.NoError(t, users.SetPassword(context.Background(), user, password))
	require.NoError(t, users.AssignRole(context.Background(), user, "User"))
	return user
}
