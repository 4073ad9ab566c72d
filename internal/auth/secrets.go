package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	KeychainService = "adlens"
	SecretToken     = "token"
	SecretAppSecret = "app_secret"

	refScheme = "keychain://"
)

type SecretStore interface {
	Set(ref string, value string) error
	Get(ref string) (string, error)
	Delete(ref string) error
}

type keyringBackend interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

type systemKeyring struct{}

func (systemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

func (systemKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (systemKeyring) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

// KeychainStore keeps profile secrets in the OS keychain under
// keychain://adlens/<profile>/<kind> references.
type KeychainStore struct {
	service string
	backend keyringBackend
}

func NewKeychainStore() *KeychainStore {
	return &KeychainStore{service: KeychainService, backend: systemKeyring{}}
}

func SecretRef(profile string, kind string) (string, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return "", errors.New("profile is required for secret ref")
	}
	if !validSecretKind(kind) {
		return "", fmt.Errorf("unsupported secret kind %q", kind)
	}
	return refScheme + KeychainService + "/" + profile + "/" + kind, nil
}

func ParseSecretRef(ref string) (profile string, kind string, err error) {
	if !strings.HasPrefix(ref, refScheme) {
		return "", "", fmt.Errorf("invalid secret ref %q: expected %s prefix", ref, refScheme)
	}
	parts := strings.Split(strings.TrimPrefix(ref, refScheme), "/")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("invalid secret ref %q: expected %s<service>/<profile>/<kind>", ref, refScheme)
	}
	if parts[0] != KeychainService {
		return "", "", fmt.Errorf("invalid secret ref %q: unsupported service %q", ref, parts[0])
	}
	profile = strings.TrimSpace(parts[1])
	kind = strings.TrimSpace(parts[2])
	if profile == "" || kind == "" {
		return "", "", fmt.Errorf("invalid secret ref %q: empty profile or kind", ref)
	}
	if !validSecretKind(kind) {
		return "", "", fmt.Errorf("invalid secret ref %q: unknown kind %q", ref, kind)
	}
	return profile, kind, nil
}

func (s *KeychainStore) Set(ref string, value string) error {
	user, err := keyringUser(ref)
	if err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value cannot be empty")
	}
	if err := s.backend.Set(s.service, user, value); err != nil {
		return fmt.Errorf("keychain set %q: %w", ref, err)
	}
	return nil
}

func (s *KeychainStore) Get(ref string) (string, error) {
	user, err := keyringUser(ref)
	if err != nil {
		return "", err
	}
	value, err := s.backend.Get(s.service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("keychain secret not found for %q: %w", ref, err)
		}
		return "", fmt.Errorf("keychain get %q: %w", ref, err)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("keychain secret value is empty for %q", ref)
	}
	return value, nil
}

func (s *KeychainStore) Delete(ref string) error {
	user, err := keyringUser(ref)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(s.service, user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete %q: %w", ref, err)
	}
	return nil
}

func keyringUser(ref string) (string, error) {
	profile, kind, err := ParseSecretRef(ref)
	if err != nil {
		return "", err
	}
	return profile + ":" + kind, nil
}

func validSecretKind(kind string) bool {
	return kind == SecretToken || kind == SecretAppSecret
}
