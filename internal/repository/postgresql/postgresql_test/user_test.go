package postgresql_test

import (
	"context"
	"os"
	"testing"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSetup *TestDatabaseSetup

func TestMain(m *testing.M) {
	ctx := context.Background()

	setup, err := NewTestDatabase(ctx)
	if err != nil {
		panic("Failed to connect to test database: " + err.Error())
	}
	testSetup = setup

	code := m.Run()
	if testSetup != nil {
		testSetup.Close()
	}
	os.Exit(code)
}

// requireDB skips the test without TEST_DATABASE_URL and starts from empty tables
func requireDB(t *testing.T) *database.DB {
	t.Helper()
	if testSetup == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, testSetup.TruncateAllTables(ctx))
	t.Cleanup(func() {
		_ = testSetup.TruncateAllTables(context.Background())
	})
	return testSetup.DB
}

// ===== USER REPOSITORY TESTS =====

func TestUserRepository_Create_Success(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	userRepo := postgresql.NewUserRepository(db)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("securepass"), bcrypt.MinCost)

	created, err := userRepo.Create(ctx, user.User{
		Email:        "admin@example.com",
		FullName:     "Admin",
		PasswordHash: string(hashedPassword),
		IsAdmin:      true,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "admin@example.com", created.Email)
	assert.True(t, created.IsAdmin)
	assert.False(t, created.CreatedAt.IsZero())

	count, err := userRepo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	userRepo := postgresql.NewUserRepository(db)

	created, err := userRepo.Create(ctx, user.User{Email: "viewer@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	retrieved, err := userRepo.GetByEmail(ctx, "viewer@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)
	assert.False(t, retrieved.IsAdmin)

	_, err = userRepo.GetByEmail(ctx, "notfound@example.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
