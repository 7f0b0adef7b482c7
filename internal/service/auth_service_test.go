package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxpop/internal/config"
)

func testAuthService() *AuthService {
	return NewAuthService(&config.AuthConfig{JWTSecret: "test-secret", ResumeTokenTTLHours: 1})
}

func TestLoginAndValidate(t *testing.T) {
	svc := testAuthService()

	resp, err := svc.Login("admin", "password123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.OwnerID, "owner_"))

	claims, err := svc.ValidateOwnerToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.OwnerID, claims.OwnerID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := testAuthService()

	_, err := svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateOwnerTokenRejectsForgery(t *testing.T) {
	svc := testAuthService()
	other := NewAuthService(&config.AuthConfig{JWTSecret: "different-secret", ResumeTokenTTLHours: 1})

	resp, err := other.Login("admin", "password123")
	require.NoError(t, err)

	_, err = svc.ValidateOwnerToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateOwnerToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResumeTokenRoundTrip(t *testing.T) {
	svc := testAuthService()

	token, err := svc.GenerateResumeToken("sess-token-1")
	require.NoError(t, err)

	sessionToken, err := svc.ValidateResumeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-token-1", sessionToken)
}

func TestResumeTokenExpires(t *testing.T) {
	expired := NewAuthService(&config.AuthConfig{JWTSecret: "test-secret", ResumeTokenTTLHours: -1})

	token, err := expired.GenerateResumeToken("sess-token-1")
	require.NoError(t, err)

	_, err = testAuthService().ValidateResumeToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
