package auth

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

type memoryKeyring struct {
	values map[string]string
}

func newMemoryKeyring() *memoryKeyring {
	return &memoryKeyring{values: map[string]string{}}
}

func (m *memoryKeyring) Set(service, user, password string) error {
	m.values[service+"::"+user] = password
	return nil
}

func (m *memoryKeyring) Get(service, user string) (string, error) {
	value, ok := m.values[service+"::"+user]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return value, nil
}

func (m *memoryKeyring) Delete(service, user string) error {
	if _, ok := m.values[service+"::"+user]; !ok {
		return keyring.ErrNotFound
	}
	delete(m.values, service+"::"+user)
	return nil
}

func TestSecretRefDeterministic(t *testing.T) {
	t.Parallel()

	ref, err := SecretRef("prod", SecretToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const expected = "keychain://adlens/prod/token"
	if ref != expected {
		t.Fatalf("unexpected ref: got=%s want=%s", ref, expected)
	}
	if _, err := SecretRef("prod", "password"); err == nil {
		t.Fatal("expected unsupported kind error")
	}
}

func TestKeychainStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := &KeychainStore{service: KeychainService, backend: newMemoryKeyring()}

	ref, err := SecretRef("staging", SecretToken)
	if err != nil {
		t.Fatalf("secret ref: %v", err)
	}
	if err := store.Set(ref, "secret-value"); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	value, err := store.Get(ref)
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if value != "secret-value" {
		t.Fatalf("unexpected secret value: got=%s want=secret-value", value)
	}
	if err := store.Delete(ref); err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	if _, err := store.Get(ref); !errors.Is(err, keyring.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(ref); err != nil {
		t.Fatalf("expected deleting a missing secret to succeed, got %v", err)
	}
}

func TestKeychainStoreRejectsEmptyValue(t *testing.T) {
	t.Parallel()

	store := &KeychainStore{service: KeychainService, backend: newMemoryKeyring()}
	if err := store.Set("keychain://adlens/prod/token", "  "); err == nil {
		t.Fatal("expected empty value error")
	}
}

func TestParseSecretRef(t *testing.T) {
	t.Parallel()

	profile, kind, err := ParseSecretRef("keychain://adlens/prod/app_secret")
	if err != nil {
		t.Fatalf("parse ref: %v", err)
	}
	if profile != "prod" || kind != SecretAppSecret {
		t.Fatalf("unexpected parse: got=%s/%s want=prod/app_secret", profile, kind)
	}
	for _, ref := range []string{
		"keychain://wrong/prod/token",
		"vault://adlens/prod/token",
		"keychain://adlens/prod",
		"keychain://adlens//token",
		"keychain://adlens/prod/cookie",
	} {
		if _, _, err := ParseSecretRef(ref); err == nil {
			t.Fatalf("expected parse error for %q", ref)
		}
	}
}
