package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackingTokenDeterministic(t *testing.T) {
	a := TrackingToken("msg-123")
	b := TrackingToken("msg-123")
	assert.Equal(t, a, b)
	assert.Len(t, a, 20)
	assert.NotEqual(t, a, TrackingToken("msg-124"))
}

func TestVerifyTrackingToken(t *testing.T) {
	token := TrackingToken("msg-123")
	assert.True(t, VerifyTrackingToken("msg-123", token))
	assert.False(t, VerifyTrackingToken("msg-124", token))
	assert.False(t, VerifyTrackingToken("msg-123", "forged-token-value"))
	assert.False(t, VerifyTrackingToken("msg-123", ""))
}

func TestGenerateTrackingPixelURL(t *testing.T) {
	url := GenerateTrackingPixelURL("https://app.example.com", "msg-1")
	assert.Equal(t, "https://app.example.com/track/open/msg-1/"+TrackingToken("msg-1"), url)
}

func TestGenerateClickTrackURL(t *testing.T) {
	url := GenerateClickTrackURL("https://app.example.com", "msg-1", "https://example.com/post?a=1")
	assert.True(t, strings.HasPrefix(url, "https://app.example.com/track/click/msg-1/"+TrackingToken("msg-1")+"?url="))
	assert.Contains(t, url, "url=https%3A%2F%2Fexample.com%2Fpost%3Fa%3D1")
}

func TestInjectTrackingAddsPixel(t *testing.T) {
	body := `<p>Hi there</p>`
	out := InjectTracking(body, "https://app.example.com", "msg-1")
	assert.Contains(t, out, `<img src="https://app.example.com/track/open/msg-1/`)
	assert.Contains(t, out, `width="1" height="1"`)
}

func TestInjectTrackingSkipsPlainText(t *testing.T) {
	body := "Hi there, plain text only."
	out := InjectTracking(body, "https://app.example.com", "msg-1")
	assert.Equal(t, body, out)
}

func TestInjectTrackingRewritesLinks(t *testing.T) {
	body := `<p>See <a href="https://example.com/post">this</a></p>`
	out := InjectTracking(body, "https://app.example.com", "msg-1")
	assert.NotContains(t, out, `href="https://example.com/post"`)
	assert.Contains(t, out, `href="https://app.example.com/track/click/msg-1/`)
	assert.Contains(t, out, "url=https%3A%2F%2Fexample.com%2Fpost")
}
