package database_test

import (
	"testing"

	"multiproduct/database"
	"multiproduct/models"
	"multiproduct/testutil"
	"multiproduct/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func admins(t *testing.T, db *gorm.DB) []models.User {
	t.Helper()
	role, err := database.RoleByName(db, models.RoleAdmin)
	require.NoError(t, err)
	var users []models.User
	require.NoError(t, db.Where("role_id = ?", role.ID).Find(&users).Error)
	return users
}

func TestSeedAdminSkipsWithoutCredentials(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, database.SeedAdmin(db, database.AdminSeed{Email: "ops@example.com"}, 4))
	assert.Empty(t, admins(t, db))
}

func TestSeedAdminCreatesOnce(t *testing.T) {
	db := testutil.NewDB(t)
	seed := database.AdminSeed{Email: " Ops@Example.com ", Password: "s3cret-pass"}

	require.NoError(t, database.SeedAdmin(db, seed, 4))
	require.NoError(t, database.SeedAdmin(db, seed, 4))

	got := admins(t, db)
	require.Len(t, got, 1)
	assert.Equal(t, "ops@example.com", got[0].Email)
	assert.Equal(t, "ops", got[0].Username)
	assert.True(t, got[0].IsActive)
	assert.True(t, utils.CheckPassword(got[0].Password, "s3cret-pass"))
}

func TestSeedAdminPromotesExistingUser(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "ops@example.com", false)

	require.NoError(t, database.SeedAdmin(db, database.AdminSeed{Email: "ops@example.com", Password: "ignored-pass"}, 4))

	got := admins(t, db)
	require.Len(t, got, 1)
	assert.Equal(t, user.ID, got[0].ID)
	assert.True(t, got[0].IsActive)
	assert.True(t, utils.CheckPassword(got[0].Password, "password123"))
}

func TestSeedAdminLeavesExistingAdminAlone(t *testing.T) {
	db := testutil.NewDB(t)
	existing := testutil.CreateAdmin(t, db, "root@example.com")

	require.NoError(t, database.SeedAdmin(db, database.AdminSeed{Email: "ops@example.com", Password: "s3cret-pass"}, 4))

	got := admins(t, db)
	require.Len(t, got, 1)
	assert.Equal(t, existing.ID, got[0].ID)
}
