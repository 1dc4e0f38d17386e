package pipeline

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkreach/config"
)

func TestSplitDraft(t *testing.T) {
	subject, body := splitDraft("Subject: Quick question about example.com\n\nHi there,\n\nLoved your recent post.")
	assert.Equal(t, "Quick question about example.com", subject)
	assert.Equal(t, "Hi there,\n\nLoved your recent post.", body)
}

func TestSplitDraftWithoutPrefix(t *testing.T) {
	subject, body := splitDraft("A plain first line\nand the rest")
	assert.Equal(t, "A plain first line", subject)
	assert.Equal(t, "and the rest", body)
}

func TestSplitDraftSingleLine(t *testing.T) {
	subject, body := splitDraft("Subject: only a subject")
	assert.Empty(t, subject)
	assert.Empty(t, body)
}

func TestExpandTemplate(t *testing.T) {
	data := copyData{
		Domain:       "example.com",
		CampaignName: "Q3 Outreach",
		OwnerName:    "Sam",
		ContactEmail: "hello@example.com",
	}

	out, err := expandTemplate("body", "Hi, I run {{.CampaignName}} and found {{.Domain}}.", data)
	require.NoError(t, err)
	assert.Equal(t, "Hi, I run Q3 Outreach and found example.com.", out)
}

func TestExpandTemplateParseError(t *testing.T) {
	_, err := expandTemplate("subject", "broken {{.Domain", copyData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse subject template")
}

func TestExpandTemplateUnknownField(t *testing.T) {
	_, err := expandTemplate("body", "hello {{.Missing}}", copyData{})
	assert.Error(t, err)
}

func TestAIScorePattern(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Score: 85", 85, true},
		{"score - 70 out of 100", 70, true},
		{"Overall SCORE is 42.", 42, true},
		{"I'd rate this 90", 0, false},
		{"no numbers here", 0, false},
	}
	for _, tc := range tests {
		m := aiScorePattern.FindStringSubmatch(tc.in)
		if !tc.ok {
			assert.Nil(t, m, tc.in)
			continue
		}
		require.NotNil(t, m, tc.in)
		got, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestStepNamesOrdered(t *testing.T) {
	o := NewOrchestrator(nil, &config.Config{}, quietLogger(), Deps{})

	names := o.StepNames()
	require.NotEmpty(t, names)
	assert.Equal(t, "campaign_domains", names[0])
	assert.Equal(t, "cleanup", names[len(names)-1])
	assert.Contains(t, names, "reply_monitoring")
	assert.Contains(t, names, "sender_health")
}
