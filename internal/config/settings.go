package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Settings are process-level overrides read from the environment. They win
// over the config file.
type Settings struct {
	ConfigPath   string `env:"ADLENS_CONFIG"`
	Profile      string `env:"ADLENS_PROFILE"`
	GraphBaseURL string `env:"ADLENS_GRAPH_BASE_URL" envDefault:"https://graph.facebook.com"`
	GraphVersion string `env:"ADLENS_GRAPH_VERSION"`
	AccessToken  string `env:"ADLENS_ACCESS_TOKEN"`
	AppSecret    string `env:"ADLENS_APP_SECRET"`

	LogLevel  string `env:"ADLENS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ADLENS_LOG_FORMAT" envDefault:"console"`

	GraphMaxRetries      int           `env:"ADLENS_GRAPH_MAX_RETRIES" envDefault:"4"`
	GraphTimeout         time.Duration `env:"ADLENS_GRAPH_TIMEOUT" envDefault:"30s"`
	PrefetchMaxWait      time.Duration `env:"ADLENS_PREFETCH_MAX_WAIT" envDefault:"2s"`
	AccountRetryAttempts int           `env:"ADLENS_ACCOUNT_RETRY_ATTEMPTS" envDefault:"10"`
	AccountRetryInterval time.Duration `env:"ADLENS_ACCOUNT_RETRY_INTERVAL" envDefault:"100ms"`

	ShutdownTimeout time.Duration `env:"ADLENS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func LoadSettings() (Settings, error) {
	settings := Settings{}
	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse environment settings: %w", err)
	}
	return settings, settings.validate()
}

// LoadSettingsFrom parses settings from an explicit environment map.
func LoadSettingsFrom(environ map[string]string) (Settings, error) {
	settings := Settings{}
	if err := env.ParseWithOptions(&settings, env.Options{Environment: environ}); err != nil {
		return Settings{}, fmt.Errorf("parse environment settings: %w", err)
	}
	return settings, settings.validate()
}

func (s Settings) validate() error {
	if s.GraphMaxRetries < 0 {
		return fmt.Errorf("ADLENS_GRAPH_MAX_RETRIES must be >= 0, got %d", s.GraphMaxRetries)
	}
	if s.AccountRetryAttempts < 0 {
		return fmt.Errorf("ADLENS_ACCOUNT_RETRY_ATTEMPTS must be >= 0, got %d", s.AccountRetryAttempts)
	}
	if s.PrefetchMaxWait < 0 {
		return fmt.Errorf("ADLENS_PREFETCH_MAX_WAIT must be >= 0, got %s", s.PrefetchMaxWait)
	}
	return nil
}
