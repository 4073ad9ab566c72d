package cmd

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bilalbayram/adlens/internal/auth"
	"github.com/bilalbayram/adlens/internal/config"
)

type memorySecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memorySecrets) Set(ref string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[ref] = value
	return nil
}

func (m *memorySecrets) Get(ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[ref]
	if !ok {
		return "", errors.New("secret not found")
	}
	return value, nil
}

func (m *memorySecrets) Delete(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, ref)
	return nil
}

func testRuntime(profile string, format string) Runtime {
	debug := false
	return Runtime{Profile: &profile, Output: &format, Debug: &debug}
}

// useTestEnvironment points commands at a temp config file, an in-memory
// secret store and the given Graph base URL. It returns the config path.
func useTestEnvironment(t *testing.T, graphBaseURL string, token string) (string, *memorySecrets) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	secrets := &memorySecrets{values: map[string]string{}}
	previousSettings := loadSettings
	previousSecrets := newSecretStore
	loadSettings = func() (config.Settings, error) {
		return config.Settings{
			ConfigPath:           configPath,
			GraphBaseURL:         graphBaseURL,
			AccessToken:          token,
			LogLevel:             "error",
			LogFormat:            "json",
			GraphTimeout:         5 * time.Second,
			PrefetchMaxWait:      10 * time.Millisecond,
			AccountRetryInterval: time.Millisecond,
			ShutdownTimeout:      time.Second,
		}, nil
	}
	newSecretStore = func() auth.SecretStore { return secrets }
	t.Cleanup(func() {
		loadSettings = previousSettings
		newSecretStore = previousSecrets
	})
	return configPath, secrets
}

func saveReport(t *testing.T, configPath string, id string, saved config.Report) {
	t.Helper()
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.UpsertReport(id, saved); err != nil {
		t.Fatalf("upsert report: %v", err)
	}
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
}
