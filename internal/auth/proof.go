package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// AppSecretProof is the hex HMAC-SHA256 of the access token keyed by the app
// secret, sent as appsecret_proof on every Graph read when a secret is set.
func AppSecretProof(accessToken string, appSecret string) (string, error) {
	switch {
	case accessToken == "":
		return "", errors.New("access token is required for appsecret_proof")
	case appSecret == "":
		return "", errors.New("app secret is required for appsecret_proof")
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
