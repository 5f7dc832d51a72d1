package dao

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestCheckinDAOPostgres runs the ledger against a real postgres so the row
// lock and the named unique constraints are exercised.
func TestCheckinDAOPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_USER=certcheck",
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=certcheck",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	_ = resource.Expire(120)

	dsn := fmt.Sprintf("host=localhost port=%s user=certcheck password=secret dbname=certcheck sslmode=disable",
		resource.GetPort("5432/tcp"))

	var db *gorm.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
		if openErr != nil {
			return openErr
		}
		sqlDB, openErr := db.DB()
		if openErr != nil {
			return openErr
		}
		return sqlDB.Ping()
	})
	require.NoError(t, err)
	require.NoError(t, InitTables(db))

	ctx := context.Background()
	users := NewUserDAO(db)
	_, err = users.Insert(ctx, User{Email: "a@example.com", Password: "x", Name: "A"})
	require.NoError(t, err)
	_, err = users.Insert(ctx, User{Email: "a@example.com", Password: "x", Name: "B"})
	assert.ErrorIs(t, err, ErrUserEmailExists)

	checkins := NewCheckinDAO(db)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := checkins.Mutate(ctx, 1, 5, "", markDone(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&CheckinRecord{}).Where("registration_id = ?", 5).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// first-row races must not drop a toggle: 20 toggles end undone
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := checkins.Mutate(ctx, 1, 6, "", toggleBy(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	toggled, err := checkins.Find(ctx, 1, 6, "")
	require.NoError(t, err)
	assert.Equal(t, "undone", toggled.Status)
}
