package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion       = 1
	DefaultGraphVersion = "v25.0"
)

type Profile struct {
	GraphVersion string `yaml:"graph_version"`
	AppID        string `yaml:"app_id,omitempty"`
	TokenRef     string `yaml:"token_ref"`
	AppSecretRef string `yaml:"app_secret_ref,omitempty"`
}

type Account struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

// Report is a saved report: which profile reads it, over which ad accounts,
// and which objects each tab is restricted to.
type Report struct {
	Profile     string              `yaml:"profile,omitempty"`
	Accounts    []Account           `yaml:"accounts,omitempty"`
	Attribution string              `yaml:"attribution,omitempty"`
	Selections  map[string][]string `yaml:"selections,omitempty"`
}

type Config struct {
	SchemaVersion  int                `yaml:"schema_version"`
	DefaultProfile string             `yaml:"default_profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles"`
	Reports        map[string]Report  `yaml:"reports,omitempty"`
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home directory: %w", err)
	}
	return filepath.Join(home, ".adlens", "config.yaml"), nil
}

func New() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		Profiles:      map[string]Profile{},
		Reports:       map[string]Report{},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: config file does not exist at %s", os.ErrNotExist, path)
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	if cfg.Reports == nil {
		cfg.Reports = map[string]Report{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadOrCreate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = New()
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes through a temp file and rename so readers never observe a
// partially written config.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory for %s: %w", path, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported config schema_version=%d (expected %d)", c.SchemaVersion, SchemaVersion)
	}
	if c.Profiles == nil {
		return errors.New("config profiles map is required")
	}
	for name, profile := range c.Profiles {
		if err := validateProfile(name, profile); err != nil {
			return err
		}
	}
	if c.DefaultProfile != "" {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			return fmt.Errorf("default_profile %q does not exist", c.DefaultProfile)
		}
	}
	for id, report := range c.Reports {
		if err := c.validateReport(id, report); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) ResolveProfile(name string) (string, Profile, error) {
	if c == nil {
		return "", Profile{}, errors.New("config is nil")
	}
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return "", Profile{}, errors.New("profile is required and default_profile is not configured")
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return "", Profile{}, fmt.Errorf("profile %q does not exist", name)
	}
	return name, profile, nil
}

func (c *Config) UpsertProfile(name string, profile Profile) error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Profiles == nil {
		c.Profiles = map[string]Profile{}
	}
	if profile.GraphVersion == "" {
		profile.GraphVersion = DefaultGraphVersion
	}
	if err := validateProfile(name, profile); err != nil {
		return err
	}
	c.Profiles[name] = profile
	if c.DefaultProfile == "" {
		c.DefaultProfile = name
	}
	return nil
}

func (c *Config) ResolveReport(id string) (Report, error) {
	if c == nil {
		return Report{}, errors.New("config is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Report{}, errors.New("report id is required")
	}
	report, ok := c.Reports[id]
	if !ok {
		return Report{}, fmt.Errorf("report %q does not exist", id)
	}
	return report, nil
}

func (c *Config) UpsertReport(id string, report Report) error {
	if c == nil {
		return errors.New("config is nil")
	}
	id = strings.TrimSpace(id)
	if err := c.validateReport(id, report); err != nil {
		return err
	}
	if c.Reports == nil {
		c.Reports = map[string]Report{}
	}
	c.Reports[id] = report
	return nil
}

func (c *Config) ReportIDs() []string {
	ids := make([]string, 0, len(c.Reports))
	for id := range c.Reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func validateProfile(name string, profile Profile) error {
	if name == "" {
		return errors.New("profile name cannot be empty")
	}
	if profile.GraphVersion == "" {
		return fmt.Errorf("profile %q graph_version is required", name)
	}
	if profile.TokenRef == "" {
		return fmt.Errorf("profile %q token_ref is required", name)
	}
	return nil
}

func (c *Config) validateReport(id string, report Report) error {
	if id == "" {
		return errors.New("report id cannot be empty")
	}
	if report.Profile != "" {
		if _, ok := c.Profiles[report.Profile]; !ok {
			return fmt.Errorf("report %q profile %q does not exist", id, report.Profile)
		}
	}
	for _, account := range report.Accounts {
		if strings.TrimSpace(account.ID) == "" {
			return fmt.Errorf("report %q has an account without id", id)
		}
	}
	return nil
}
