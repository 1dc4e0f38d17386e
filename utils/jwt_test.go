package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	token, err := GenerateOperatorToken("test-secret", "alex", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseOperatorToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "alex", claims.Operator)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseOperatorTokenWrongSecret(t *testing.T) {
	token, err := GenerateOperatorToken("test-secret", "alex", time.Hour)
	require.NoError(t, err)

	_, err = ParseOperatorToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseOperatorTokenExpired(t *testing.T) {
	token, err := GenerateOperatorToken("test-secret", "alex", -time.Minute)
	require.NoError(t, err)

	_, err = ParseOperatorToken("test-secret", token)
	assert.Error(t, err)
}

func TestParseOperatorTokenGarbage(t *testing.T) {
	_, err := ParseOperatorToken("test-secret", "not.a.jwt")
	assert.Error(t, err)
}
