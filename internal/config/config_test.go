package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "jwt-secret")
	t.Setenv("BIOTIME_URL", "http://192.168.1.51/")
	t.Setenv("BIOTIME_USER", "admin")
	t.Setenv("BIOTIME_PASS", "admin123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.51", cfg.BioTime.BaseURL)
	assert.Equal(t, 25*time.Minute, cfg.BioTime.TokenTTL)
	assert.Equal(t, 200, cfg.BioTime.PageSize)
	assert.Equal(t, "Asia/Qatar", cfg.Attendance.Timezone)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.PunchSyncInterval)
	assert.Equal(t, 10, cfg.Schedule.ReconcileAfterHour)
	assert.Equal(t, "Asia/Qatar", cfg.Location().String())
}

func TestLoad_MissingBioTimeCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BIOTIME_PASS", "")

	_, err := Load()
	assert.ErrorContains(t, err, "BIOTIME_USER and BIOTIME_PASS are required")
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PUNCH_SYNC_INTERVAL", "often")

	_, err := Load()
	assert.ErrorContains(t, err, "PUNCH_SYNC_INTERVAL")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ATTENDANCE_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.ErrorContains(t, err, "ATTENDANCE_TIMEZONE")
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, d)

	_, err = ParseClock("8.30")
	assert.Error(t, err)
}
