package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/apfiles/internal/model"
)

const testSecret = "apfiles-test-secret-0123456789"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret)
	require.NoError(t, err)
	return ts
}

// signClaims signs arbitrary registered claims with ts's secret so tests
// can build tokens Generate would never produce.
func signClaims(t *testing.T, ts *TokenService, method jwt.SigningMethod, c jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString(ts.secret)
	require.NoError(t, err)
	return s
}

func TestNewTokenService_SecretLength(t *testing.T) {
	_, err := NewTokenService("too-short")
	require.Error(t, err)

	ts, err := NewTokenService("exactly-16-chars")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, ts.TTL())
}

func TestSessionToken_Subjects(t *testing.T) {
	ts := newTestTokenService(t)

	tests := []struct {
		name   string
		userID string
	}{
		{"builder", model.BuilderID},
		{"student", model.NewID()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ts.Generate(tt.userID)
			require.NoError(t, err)
			assert.Len(t, strings.Split(token, "."), 3)

			got, err := ts.Validate(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, got)
		})
	}
}

func TestSessionToken_Claims(t *testing.T) {
	ts := newTestTokenService(t)
	studentID := model.NewID()

	before := time.Now().Truncate(time.Second)
	token, err := ts.Generate(studentID)
	require.NoError(t, err)

	var c jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return ts.secret, nil })
	require.NoError(t, err)

	assert.Equal(t, studentID, c.Subject)
	assert.Equal(t, "apfiles", c.Issuer)
	require.NotNil(t, c.ExpiresAt)
	assert.WithinDuration(t, before.Add(DefaultSessionTTL), c.ExpiresAt.Time, 2*time.Second)
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	studentID := model.NewID()

	good, err := ts.Generate(studentID)
	require.NoError(t, err)
	expired, err := ts.GenerateWithDuration(studentID, -time.Minute)
	require.NoError(t, err)

	other, err := NewTokenService("another-secret-0123456789")
	require.NoError(t, err)
	foreignKey, err := other.Generate(studentID)
	require.NoError(t, err)

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"empty cookie", ""},
		{"not a jwt", "token"},
		{"expired session", expired},
		{"signature altered", good[:len(good)-4] + "AAAA"},
		{"signed by another server", foreignKey},
		{"foreign issuer", signClaims(t, ts, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: studentID, Issuer: "elsewhere", ExpiresAt: future,
		})},
		{"no expiry", signClaims(t, ts, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: studentID, Issuer: issuer,
		})},
		{"no subject", signClaims(t, ts, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer: issuer, ExpiresAt: future,
		})},
		{"HS512", signClaims(t, ts, jwt.SigningMethodHS512, jwt.RegisteredClaims{
			Subject: studentID, Issuer: issuer, ExpiresAt: future,
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestValidate_ExpiredMessage(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration(model.BuilderID, -time.Second)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.Equal(t, "auth: token expired", err.Error())
}
