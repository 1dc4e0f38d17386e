package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"linkreach/pipeline"
)

func TestBuildRawMessageSetsMessageID(t *testing.T) {
	raw := buildRawMessage(pipeline.OutboundMessage{
		From:     "me@agency.com",
		FromName: "Agency",
		To:       "hello@example.com",
		Subject:  "Quick question",
		Body:     "<p>Hi</p>",
	}, "abc-123@agency.com")

	assert.Contains(t, raw, "Message-ID: <abc-123@agency.com>\r\n")
	assert.Contains(t, raw, "From: Agency <me@agency.com>\r\n")
	assert.Contains(t, raw, "To: hello@example.com\r\n")
	assert.Contains(t, raw, "Subject: Quick question\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>Hi</p>"))
}
