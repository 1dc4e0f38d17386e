package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("jane@example.com"))
	assert.Empty(t, ExtractDomain("not-an-email"))
	assert.Empty(t, ExtractDomain("a@b@c"))
}

func TestIsDisposableDomain(t *testing.T) {
	assert.True(t, IsDisposableDomain("mailinator.com"))
	assert.True(t, IsDisposableDomain("Mailinator.COM"))
	assert.True(t, IsDisposableDomain("yopmail.com"))
	assert.False(t, IsDisposableDomain("example.com"))
	assert.False(t, IsDisposableDomain(""))
}

func TestVerifyContactEmailInvalidFormat(t *testing.T) {
	result, err := VerifyContactEmail("not-an-email")
	require.NoError(t, err)
	assert.Equal(t, "invalid", result.Status)
	assert.True(t, result.IsBounceRisk)
}

func TestVerifyContactEmailTypoDomain(t *testing.T) {
	result, err := VerifyContactEmail("jane@gmai.com")
	require.NoError(t, err)
	assert.Equal(t, "invalid", result.Status)
	assert.Contains(t, result.Details, "gmail.com")
	assert.True(t, result.IsBounceRisk)
}

func TestVerifyContactEmailDisposable(t *testing.T) {
	result, err := VerifyContactEmail("temp@10minutemail.com")
	require.NoError(t, err)
	assert.Equal(t, "disposable", result.Status)
	assert.True(t, result.IsBounceRisk)
}

func TestVerifyContactEmailNormalizes(t *testing.T) {
	result, err := VerifyContactEmail("  Temp@Mailinator.Com  ")
	require.NoError(t, err)
	assert.Equal(t, "temp@mailinator.com", result.Email)
	assert.Equal(t, "disposable", result.Status)
}
