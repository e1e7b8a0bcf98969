package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/collector/bca"
	"bankstatements/internal/collector/mandiri"
	"bankstatements/internal/components/chrono"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/keychain"
	"bankstatements/internal/statement"

	"github.com/stretchr/testify/require"
)

var envNames = []string{
	"BANK_CLIENT_USER_AGENT",
	"BANK_CLIENT_IP_ADDRESS",
	"BANK_CLIENT_REQUEST_DELAY",
	"BANK_CLIENT_TIMEOUT",
	"BANK_CLIENT_DEBUG",
	"BANK_TEMP_STORAGE_PATH",
	"BANK_KEYCHAIN_SECRET",
	"BANK_DATABASE_FILE",
}

// isolate runs the test in an empty directory with none of the overrides set.
func isolate(t *testing.T) string {
	for _, name := range envNames {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := loadConfig("statements.json5")
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
	require.Equal(t, 2*time.Second, cfg.Client.Options().RequestDelay)
	require.Equal(t, 15*time.Second, cfg.Client.Options().Timeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := isolate(t)

	err := os.WriteFile(filepath.Join(dir, "statements.json5"), []byte(`{
		// collector settings
		client: { request_delay: 5 },
		collector: { mandiri: { account_hint: "giro usaha" } },
		smtp: { server: "mail.example.com", port: 587, notify: ["ops@example.com"] }
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "statements.local.json5"), []byte(`{
		keychain: { secret: "from local" }
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, ".env"), []byte("BANK_CLIENT_TIMEOUT=30\n"), 0600)
	require.NoError(t, err)
	t.Setenv("BANK_CLIENT_IP_ADDRESS", "10.0.0.1")

	cfg, err := loadConfig("statements.json5")
	require.NoError(t, err)

	require.Equal(t, 5, cfg.Client.RequestDelay)
	require.Equal(t, 30, cfg.Client.Timeout)
	require.Equal(t, "10.0.0.1", cfg.Client.IPAddress)
	require.Equal(t, defaultConfig().Client.UserAgent, cfg.Client.UserAgent)
	require.Equal(t, "giro usaha", cfg.Collector.Mandiri.AccountHint)
	require.Equal(t, 1, cfg.Collector.Mandiri.AccountIndex)
	require.Equal(t, "from local", cfg.Keychain.Secret)
	require.True(t, cfg.Smtp.Enabled())
	require.Equal(t, "<dev_state>/statements.db", cfg.Database.File)
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	isolate(t)
	t.Setenv("BANK_CLIENT_REQUEST_DELAY", "soon")

	_, err := loadConfig("statements.json5")
	require.Error(t, err)
}

func TestCollectionPeriod(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, loc)

	start, end, err := collectionPeriod(now, "", "")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), start)
	require.Equal(t, now, end)

	start, end, err = collectionPeriod(now, "2024-02-01", "2024-02-29")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), start)
	require.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, loc), end)

	_, _, err = collectionPeriod(now, "2024-03-10", "2024-03-09")
	require.Error(t, err)
	_, _, err = collectionPeriod(now, "03/10/2024", "")
	require.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	cfg := defaultConfig()
	registry := newRegistry(cfg, collector.Deps{
		Sleep: chrono.StandardSleep{},
		Tel:   &telemetry.Recorder{},
	})
	require.Equal(t, []string{bca.Name, mandiri.Name}, registry.Names())

	for _, name := range registry.Names() {
		c, err := registry.New(name)
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}
}

func testConfig(t *testing.T) Config {
	cfg := defaultConfig()
	cfg.Timezone = "UTC"
	cfg.Database.File = ":memory:"
	cfg.Collector.TempStoragePath = t.TempDir()
	return cfg
}

func TestOpenAppWithoutSecret(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	_, err := openApp(ctx, cfg, true)
	require.ErrorIs(t, err, keychain.ErrNoSecret)

	a, err := openApp(ctx, cfg, false)
	require.NoError(t, err)
	defer a.Close()

	accounts, err := a.statement.Accounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)
	require.Equal(t, cfg.Collector.TempStoragePath, a.statement.TempStoragePath())
}

func TestOpenAppRegistersAccounts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Keychain.Secret = "correct horse battery staple"

	a, err := openApp(ctx, cfg, true)
	require.NoError(t, err)
	defer a.Close()

	id, err := a.statement.RegisterAccount(ctx, a.keychain, statement.Account{
		Collector: mandiri.Name,
		Url:       "https://ib.bank-b.example",
		UserID:    "user",
		Password:  "hunter2",
	})
	require.NoError(t, err)

	accounts, err := a.statement.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, id, accounts[0].ID)
	require.NotEqual(t, "hunter2", accounts[0].Password)

	password, err := a.keychain.Decrypt(accounts[0].Password)
	require.NoError(t, err)
	require.Equal(t, "hunter2", password)
}
