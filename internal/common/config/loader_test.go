// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
app:
  name: "marketplace-core"
database:
  postgres:
    host: "localhost"
    port: 5432
    database: "masqani"
    user: "masqani"
  redis:
    address: "localhost:6379"
payment:
  simulate: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.App.MetricsPort)
	assert.Equal(t, 45000, cfg.Payment.Timeout)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "info", cfg.Logging.Level)

	// Fee tables default to the production schedule.
	assert.Equal(t, int64(50), cfg.Pricing.Unlock.Standard)
	assert.Equal(t, int64(100), cfg.Pricing.Unlock.Airbnb)
	assert.Equal(t, int64(100), cfg.Pricing.Unlock.Business)
	assert.Equal(t, int64(100), cfg.Pricing.Listing.Standard)
	assert.Equal(t, int64(1000), cfg.Pricing.Listing.AirbnbMonthly)
	assert.Equal(t, int64(150), cfg.Pricing.Listing.Business)
}

func TestLoadFromFileExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("DB_PASSWORD", "s3cret")

	path := writeConfigFile(t, `
database:
  postgres:
    host: "localhost"
    database: "masqani"
    user: "masqani"
    password: "${DB_PASSWORD}"
  redis:
    address: "localhost:6379"
payment:
  simulate: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
}

func TestLoadFromFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"missing postgres host",
			`
database:
  postgres:
    database: "masqani"
    user: "masqani"
  redis:
    address: "localhost:6379"
payment:
  simulate: true
`,
		},
		{
			"missing redis address",
			`
database:
  postgres:
    host: "localhost"
    database: "masqani"
    user: "masqani"
payment:
  simulate: true
`,
		},
		{
			"live gateway without base url",
			`
database:
  postgres:
    host: "localhost"
    database: "masqani"
    user: "masqani"
  redis:
    address: "localhost:6379"
payment:
  simulate: false
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			_, err := LoadFromFile(path)
			assert.Error(t, err)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 45*time.Second, GetDuration(45000))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}
