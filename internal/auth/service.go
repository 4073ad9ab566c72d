package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bilalbayram/adlens/internal/config"
)

const DefaultGraphBaseURL = "https://graph.facebook.com"

// Credentials are what a Graph API read needs.
type Credentials struct {
	Profile      string
	GraphVersion string
	Token        string
	AppSecret    string
}

// Overrides come from the environment or flags and take precedence over the
// stored profile.
type Overrides struct {
	Profile      string
	GraphVersion string
	Token        string
	AppSecret    string
}

type SetProfileInput struct {
	Profile      string
	Token        string
	AppSecret    string
	AppID        string
	GraphVersion string
	MakeDefault  bool
}

type ProfileSummary struct {
	Name         string `json:"name"`
	GraphVersion string `json:"graph_version"`
	AppID        string `json:"app_id,omitempty"`
	HasAppSecret bool   `json:"has_app_secret"`
	Default      bool   `json:"default"`
}

type Service struct {
	configPath string
	secrets    SecretStore
}

func NewService(configPath string, secrets SecretStore) *Service {
	if secrets == nil {
		secrets = NewKeychainStore()
	}
	return &Service{configPath: configPath, secrets: secrets}
}

// SetProfile stores the token (and app secret, when given) in the secret store
// and records references to them in the config file.
func (s *Service) SetProfile(input SetProfileInput) error {
	name := strings.TrimSpace(input.Profile)
	if name == "" {
		return errors.New("profile is required")
	}
	if strings.TrimSpace(input.Token) == "" {
		return errors.New("token is required")
	}

	cfg, err := config.LoadOrCreate(s.configPath)
	if err != nil {
		return err
	}

	tokenRef, err := SecretRef(name, SecretToken)
	if err != nil {
		return err
	}
	if err := s.secrets.Set(tokenRef, strings.TrimSpace(input.Token)); err != nil {
		return err
	}

	profile := config.Profile{
		GraphVersion: strings.TrimSpace(input.GraphVersion),
		AppID:        strings.TrimSpace(input.AppID),
		TokenRef:     tokenRef,
	}
	if strings.TrimSpace(input.AppSecret) != "" {
		appSecretRef, err := SecretRef(name, SecretAppSecret)
		if err != nil {
			return err
		}
		if err := s.secrets.Set(appSecretRef, strings.TrimSpace(input.AppSecret)); err != nil {
			return err
		}
		profile.AppSecretRef = appSecretRef
	}

	if err := cfg.UpsertProfile(name, profile); err != nil {
		return err
	}
	if input.MakeDefault {
		cfg.DefaultProfile = name
	}
	return config.Save(s.configPath, cfg)
}

// RemoveProfile deletes the profile and its secrets. Reports still bound to
// the profile block removal.
func (s *Service) RemoveProfile(name string) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	name, profile, err := cfg.ResolveProfile(strings.TrimSpace(name))
	if err != nil {
		return err
	}
	for _, id := range cfg.ReportIDs() {
		if cfg.Reports[id].Profile == name {
			return fmt.Errorf("profile %q is used by report %q", name, id)
		}
	}
	for _, ref := range []string{profile.TokenRef, profile.AppSecretRef} {
		if ref == "" {
			continue
		}
		if err := s.secrets.Delete(ref); err != nil {
			return err
		}
	}
	delete(cfg.Profiles, name)
	if cfg.DefaultProfile == name {
		cfg.DefaultProfile = ""
	}
	return config.Save(s.configPath, cfg)
}

// ResolveCredentials returns the credentials for a profile. An override token
// skips the config file entirely.
func (s *Service) ResolveCredentials(overrides Overrides) (Credentials, error) {
	if token := strings.TrimSpace(overrides.Token); token != "" {
		version := strings.TrimSpace(overrides.GraphVersion)
		if version == "" {
			version = config.DefaultGraphVersion
		}
		return Credentials{
			Profile:      strings.TrimSpace(overrides.Profile),
			GraphVersion: version,
			Token:        token,
			AppSecret:    strings.TrimSpace(overrides.AppSecret),
		}, nil
	}

	cfg, err := config.Load(s.configPath)
	if err != nil {
		return Credentials{}, err
	}
	name, profile, err := cfg.ResolveProfile(strings.TrimSpace(overrides.Profile))
	if err != nil {
		return Credentials{}, err
	}
	token, err := s.secrets.Get(profile.TokenRef)
	if err != nil {
		return Credentials{}, fmt.Errorf("resolve token for profile %q: %w", name, err)
	}
	appSecret := strings.TrimSpace(overrides.AppSecret)
	if appSecret == "" && profile.AppSecretRef != "" {
		appSecret, err = s.secrets.Get(profile.AppSecretRef)
		if err != nil {
			return Credentials{}, fmt.Errorf("resolve app secret for profile %q: %w", name, err)
		}
	}
	version := strings.TrimSpace(overrides.GraphVersion)
	if version == "" {
		version = profile.GraphVersion
	}
	return Credentials{
		Profile:      name,
		GraphVersion: version,
		Token:        token,
		AppSecret:    appSecret,
	}, nil
}

func (s *Service) ListProfiles() ([]ProfileSummary, error) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, err
	}
	out := make([]ProfileSummary, 0, len(cfg.Profiles))
	for name, profile := range cfg.Profiles {
		out = append(out, ProfileSummary{
			Name:         name,
			GraphVersion: profile.GraphVersion,
			AppID:        profile.AppID,
			HasAppSecret: profile.AppSecretRef != "",
			Default:      name == cfg.DefaultProfile,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
