package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashKey generates a bcrypt hash of the admin key, suitable for AUTH_KEY_HASH.
func HashKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(bytes), nil
}

// CheckKeyHash compares a key with a bcrypt hash.
func CheckKeyHash(key, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}

// Verifier checks the admin header against a bcrypt hash or a plain key.
type Verifier struct {
	plain string
	hash  string
}

// NewVerifier prefers hash when both are set.
func NewVerifier(plain, hash string) *Verifier {
	return &Verifier{plain: plain, hash: strings.TrimSpace(hash)}
}

// Enabled reports whether any key is configured. Without one every admin
// request is rejected.
func (v *Verifier) Enabled() bool {
	return v.hash != "" || v.plain != ""
}

// Check reports whether key grants admin access.
func (v *Verifier) Check(key string) bool {
	if key == "" {
		return false
	}
	if v.hash != "" {
		return CheckKeyHash(key, v.hash)
	}
	if v.plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(v.plain)) == 1
}
