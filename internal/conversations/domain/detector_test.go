package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_DefaultRules(t *testing.T) {
	d := NewDefaultDetector()

	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"compensation phrase", "What is the salary range for this role?", ReasonCompensation},
		{"compensation amount", "I'd need at least 150k to move", ReasonCompensation},
		{"dollar amount", "Currently on $140,000", ReasonCompensation},
		{"legal", "I will talk to my lawyer about this", ReasonLegal},
		{"opt out", "Please remove me from your list", ReasonOptOut},
		{"not interested", "Thanks but I'm NOT interested", ReasonOptOut},
		{"human", "Can I speak to a   human please", ReasonHumanRequested},
		{"visa", "Would you offer visa sponsorship?", ReasonVisaRelocation},
		{"hostile", "This is a scam", ReasonHostile},
		{"benign", "Sure, happy to chat next week", ""},
		{"word boundary", "I am pursuing a career in assuetude", ""},
		{"sue is a word not a substring", "Tuesday works for me", ""},
		{"empty", "", ""},
		{"whitespace", "   \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Classify(tt.text)
			assert.Equal(t, tt.reason != "", got.NeedsHuman)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestDetector_FirstRuleWins(t *testing.T) {
	d := NewDefaultDetector()

	got := d.Classify("Unsubscribe me, and what's the salary anyway?")
	assert.Equal(t, ReasonCompensation, got.Reason)
}

func TestNewDetector(t *testing.T) {
	t.Run("custom rules", func(t *testing.T) {
		d, err := NewDetector([]Rule{{Reason: "competitor", Phrases: []string{"Acme Corp"}, Patterns: []string{`offer\s+from`}}})
		require.NoError(t, err)

		assert.Equal(t, "competitor", d.Classify("I'm also talking to acme corp").Reason)
		assert.Equal(t, "competitor", d.Classify("I have an OFFER from elsewhere").Reason)
		assert.False(t, d.Classify("hello").NeedsHuman)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := NewDetector([]Rule{{Reason: "bad", Patterns: []string{"("}}})
		assert.Error(t, err)
	})

	t.Run("missing reason", func(t *testing.T) {
		_, err := NewDetector([]Rule{{Phrases: []string{"x"}}})
		assert.Error(t, err)
	})

	t.Run("non-word edges", func(t *testing.T) {
		d, err := NewDetector([]Rule{{Reason: "money", Phrases: []string{"€"}}})
		require.NoError(t, err)
		assert.True(t, d.Classify("around 90.000€").NeedsHuman)
	})
}

func TestDetector_LongInput(t *testing.T) {
	d := NewDefaultDetector()
	text := strings.Repeat("fine ", 10000) + "lawsuit"
	assert.Equal(t, ReasonLegal, d.Classify(text).Reason)
}
