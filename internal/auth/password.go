package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification. The cost is a
// field so tests can drop it to bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// newPasswordServiceWithCost creates a PasswordService with a custom cost.
func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt. Passwords longer
// than 72 bytes are rejected rather than silently truncated.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil if plaintext matches hash.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// AdminCredentials is the fixed builder email/password pair. Only the
// bcrypt hash of the password is kept after construction.
type AdminCredentials struct {
	email     string
	hash      string
	passwords *PasswordService
}

// NewAdminCredentials hashes password once. An empty email or password
// yields a checker that rejects everything.
func NewAdminCredentials(email, password string, passwords *PasswordService) (*AdminCredentials, error) {
	c := &AdminCredentials{email: email, passwords: passwords}
	if email == "" || password == "" {
		return c, nil
	}
	hash, err := passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing admin password: %w", err)
	}
	c.hash = hash
	return c, nil
}

// IsValidAdminCredential reports whether the pair matches exactly. The
// email comparison is case-sensitive and untrimmed.
func (c *AdminCredentials) IsValidAdminCredential(email, password string) bool {
	if c.hash == "" || strings.TrimSpace(email) == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(c.email)) == 1
	passOK := c.passwords.Verify(c.hash, password) == nil
	return emailOK && passOK
}
