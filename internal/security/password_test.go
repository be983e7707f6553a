package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessPasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		score    int
		strength PasswordStrength
	}{
		{"abc", 15, StrengthWeak},
		{"", 5, StrengthWeak},
		{"abcdefgh", 40, StrengthMedium},
		{"Password1!", 75, StrengthStrong},
		{"Correct-Horse-Battery9!", 100, StrengthVeryStrong},
		{"Paaassword123!", 95, StrengthVeryStrong},
	}
	for _, tc := range cases {
		t.Run(tc.password, func(t *testing.T) {
			got := AssessPasswordStrength(tc.password)
			assert.Equal(t, tc.score, got.Score)
			assert.Equal(t, tc.strength, got.Strength)
		})
	}
}

func TestAssessPasswordStrengthSuggestions(t *testing.T) {
	got := AssessPasswordStrength("aaaa")
	assert.Contains(t, got.Suggestions, "Use at least 8 characters")
	assert.Contains(t, got.Suggestions, "Include uppercase letters")
	assert.Contains(t, got.Suggestions, "Avoid repeating characters")
	assert.NotContains(t, got.Suggestions, "Include lowercase letters")

	assert.Empty(t, AssessPasswordStrength("Correct-Horse-Battery9!").Suggestions)
}

func TestHasRepeatedRun(t *testing.T) {
	assert.False(t, hasRepeatedRun("aabbaa", 3))
	assert.True(t, hasRepeatedRun("xaaay", 3))
	assert.True(t, hasRepeatedRun("ééé", 3))
	assert.False(t, hasRepeatedRun("", 3))
}
