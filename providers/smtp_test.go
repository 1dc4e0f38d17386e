package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessageID(t *testing.T) {
	id := newMessageID("me@agency.com")

	// bare form: brackets are added at the header only, so reply
	// matching compares like with like
	assert.False(t, strings.ContainsAny(id, "<>"))
	assert.True(t, strings.HasSuffix(id, "@agency.com"))
	assert.NotEqual(t, id, newMessageID("me@agency.com"))
}

func TestNewMessageIDWithoutHost(t *testing.T) {
	assert.True(t, strings.HasSuffix(newMessageID("no-at-sign"), "@localhost"))
}

func TestHostPart(t *testing.T) {
	assert.Equal(t, "agency.com", hostPart("me@agency.com"))
	assert.Equal(t, "localhost", hostPart("bare"))
}
