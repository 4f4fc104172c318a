package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateJWT(t *testing.T) {
	token, err := IssueJWT("juan@example.com", true, "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "juan@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "juan@example.com", claims.Subject)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := IssueJWT("juan@example.com", false, "test-secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateJWTExpired(t *testing.T) {
	token, err := IssueJWT("juan@example.com", false, "test-secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "test-secret")
	assert.Error(t, err)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not-a-token", "test-secret")
	assert.Error(t, err)
}
