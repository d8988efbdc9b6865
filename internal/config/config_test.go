package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	for _, k := range []string{"PORT", "FLASK_PORT", "DEBUG", "DB_DRIVER", "DB_URL", "SESSION_TTL", "ALLOWED_ORIGIN"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10000, cfg.SessionCapacity)
	assert.Equal(t, 10*time.Second, cfg.ClassifierTimeout)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.DeepSeekBaseURL)
	assert.Equal(t, ":5000", cfg.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")
	t.Setenv("FLASK_PORT", "8081")
	t.Setenv("DEBUG", "off")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("SESSION_CAPACITY", "not-a-number")
	t.Setenv("ALLOWED_ORIGIN", "http://a.dz, http://b.dz")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/x.db", cfg.DataSource())
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10000, cfg.SessionCapacity)
	assert.Equal(t, []string{"http://a.dz", "http://b.dz"}, cfg.AllowedOrigins)
}

func TestDataSourceBuildsPostgresURL(t *testing.T) {
	cfg := Config{DBDriver: "postgres", DBHost: "db", DBPort: "5433", DBName: "product_db", DBUser: "app", DBPassword: "p@ss"}
	assert.Equal(t, "postgresql://app:p%40ss@db:5433/product_db", cfg.DataSource())

	cfg.DBURL = "postgres://override/db"
	assert.Equal(t, "postgres://override/db", cfg.DataSource())
}

func TestValidate(t *testing.T) {
	valid := Config{Port: "5000", DBDriver: "sqlite", SessionCapacity: 1, SessionTTL: time.Second, ClassifierTimeout: time.Second, ClassifierThreshold: 1}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.DBDriver = "mysql"
	bad.SessionCapacity = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
	assert.Contains(t, err.Error(), "SESSION_CAPACITY")
}
