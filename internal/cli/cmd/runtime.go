package cmd

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/bilalbayram/adlens/internal/auth"
	"github.com/bilalbayram/adlens/internal/config"
	"github.com/bilalbayram/adlens/internal/graph"
	"github.com/bilalbayram/adlens/internal/logging"
)

type Runtime struct {
	Profile *string
	Output  *string
	Debug   *bool
}

func (r Runtime) ProfileName() string {
	if r.Profile == nil {
		return ""
	}
	return *r.Profile
}

func (r Runtime) debug() bool {
	return r.Debug != nil && *r.Debug
}

// Swapped in tests.
var (
	loadSettings   = config.LoadSettings
	newSecretStore = func() auth.SecretStore { return auth.NewKeychainStore() }
)

// environment is everything a command needs after flags and ADLENS_*
// variables have been merged.
type environment struct {
	settings   config.Settings
	configPath string
	logger     *zap.Logger
}

func (r Runtime) environment() (*environment, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if profile := strings.TrimSpace(r.ProfileName()); profile != "" {
		settings.Profile = profile
	}
	if r.debug() {
		settings.LogLevel = "debug"
	}

	configPath := settings.ConfigPath
	if configPath == "" {
		configPath, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	logger, err := logging.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		return nil, err
	}
	return &environment{settings: settings, configPath: configPath, logger: logger}, nil
}

func (e *environment) authService() *auth.Service {
	return auth.NewService(e.configPath, newSecretStore())
}

func (e *environment) credentials(profile string) (auth.Credentials, error) {
	if profile == "" {
		profile = e.settings.Profile
	}
	return e.authService().ResolveCredentials(auth.Overrides{
		Profile:      profile,
		GraphVersion: e.settings.GraphVersion,
		Token:        e.settings.AccessToken,
		AppSecret:    e.settings.AppSecret,
	})
}

func (e *environment) graphClient() *graph.Client {
	client := graph.NewClient(&http.Client{Timeout: e.settings.GraphTimeout}, e.settings.GraphBaseURL)
	client.MaxRetries = e.settings.GraphMaxRetries
	client.Logger = e.logger.With(zap.String("component", "graph"))
	return client
}
