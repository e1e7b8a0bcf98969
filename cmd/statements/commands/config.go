package commands

import (
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/chrono"
	"bankstatements/internal/components/db"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/configutil"
	"bankstatements/internal/notify"
)

type ClientConfig struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
	// RequestDelay and Timeout are in seconds.
	RequestDelay     int    `json:"request_delay"`
	Timeout          int    `json:"timeout"`
	DebugOutput      string `json:"debug_output"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

func (c ClientConfig) Options() collector.Options {
	return collector.Options{
		UserAgent:        c.UserAgent,
		IPAddress:        c.IPAddress,
		RequestDelay:     time.Duration(c.RequestDelay) * time.Second,
		Timeout:          time.Duration(c.Timeout) * time.Second,
		DebugOutput:      c.DebugOutput,
		CloudflareBypass: c.CloudflareBypass,
	}
}

type MandiriConfig struct {
	AccountIndex int    `json:"account_index"`
	AccountHint  string `json:"account_hint"`
}

type CollectorConfig struct {
	TempStoragePath string        `json:"temp_storage_path"`
	Mandiri         MandiriConfig `json:"mandiri"`
}

type KeychainConfig struct {
	Secret string `json:"secret"`
}

type DaemonConfig struct {
	Cron string `json:"cron"`
}

type Config struct {
	Client    ClientConfig      `json:"client"`
	Collector CollectorConfig   `json:"collector"`
	Database  db.Config         `json:"database"`
	Keychain  KeychainConfig    `json:"keychain"`
	Timezone  string            `json:"timezone"`
	Smtp      notify.SmtpConfig `json:"smtp"`
	Telemetry telemetry.Config  `json:"telemetry"`
	Daemon    DaemonConfig      `json:"daemon"`
}

func defaultConfig() Config {
	return Config{
		Client: ClientConfig{
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2883.87 Safari/537.36",
			IPAddress:    "18.96.236.10",
			RequestDelay: 2,
			Timeout:      15,
		},
		Collector: CollectorConfig{
			TempStoragePath: "<dev_state>/collector",
			Mandiri: MandiriConfig{
				AccountIndex: 1,
			},
		},
		Database: db.Config{
			File: "<dev_state>/statements.db",
		},
		Timezone: chrono.DefaultLocation,
		Daemon: DaemonConfig{
			Cron: "0 6 * * *",
		},
	}
}

func applyEnv(cfg *Config) error {
	configutil.EnvString("BANK_CLIENT_USER_AGENT", &cfg.Client.UserAgent)
	configutil.EnvString("BANK_CLIENT_IP_ADDRESS", &cfg.Client.IPAddress)
	configutil.EnvString("BANK_CLIENT_DEBUG", &cfg.Client.DebugOutput)
	configutil.EnvString("BANK_TEMP_STORAGE_PATH", &cfg.Collector.TempStoragePath)
	configutil.EnvString("BANK_KEYCHAIN_SECRET", &cfg.Keychain.Secret)
	configutil.EnvString("BANK_DATABASE_FILE", &cfg.Database.File)

	err := configutil.EnvInt("BANK_CLIENT_REQUEST_DELAY", &cfg.Client.RequestDelay)
	if err != nil {
		return err
	}
	return configutil.EnvInt("BANK_CLIENT_TIMEOUT", &cfg.Client.Timeout)
}

// loadConfig reads `name` over the defaults, a missing file leaves every option at its default.
// Environment variables (optionally from a .env file) override the file.
func loadConfig(name string) (Config, error) {
	return configutil.Load(name, defaultConfig(), applyEnv, ".env")
}
