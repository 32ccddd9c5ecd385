package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	err := loadConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cnf.Server.Port)
	assert.Equal(t, DefaultDBPath, cnf.DataSource.Path)
	assert.Equal(t, CacheBackendFile, cnf.Cache.Backend)
	assert.Equal(t, DefaultUpcomingDays, cnf.Reconciliation.UpcomingDays)
	assert.Contains(t, cnf.Reconciliation.AllowedPaymentMethods, "visa")
	assert.NotContains(t, cnf.Reconciliation.AllowedPaymentMethods, "available_money")
}

func TestLoadConfigFromFileWithEnvOverride(t *testing.T) {
	file := filepath.Join(t.TempDir(), "reconciler.json")
	body := `{"server":{"port":"9000"},"reconciliation":{"allowed_payment_methods":[" VISA ","master"],"upcoming_days":14}}`
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))

	t.Setenv("RECON_DB_PATH", "/tmp/override.db")

	require.NoError(t, loadConfigFromFile(file))
	cnf, err := Fetch()
	require.NoError(t, err)

	assert.Equal(t, "9000", cnf.Server.Port)
	assert.Equal(t, "/tmp/override.db", cnf.DataSource.Path)
	assert.Equal(t, []string{"visa", "master"}, cnf.Reconciliation.AllowedPaymentMethods)
	assert.Equal(t, 14, cnf.Reconciliation.UpcomingDays)
}

func TestRedisBackendRequiresDNS(t *testing.T) {
	cnf := &Configuration{Cache: CacheConfig{Backend: "redis"}}
	err := cnf.validateAndAddDefaults()
	assert.Error(t, err)

	cnf = &Configuration{Cache: CacheConfig{Backend: "redis", RedisDNS: "localhost:6379"}}
	assert.NoError(t, cnf.validateAndAddDefaults())
}

func TestUnknownBackendRejected(t *testing.T) {
	cnf := &Configuration{Cache: CacheConfig{Backend: "memcached"}}
	assert.Error(t, cnf.validateAndAddDefaults())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cnf := &Configuration{Reconciliation: ReconciliationConfig{Timezone: "Nowhere/Land"}}
	assert.Equal(t, "UTC", cnf.Location().String())
}
