package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type PasswordStrength string

const (
	StrengthWeak       PasswordStrength = "weak"
	StrengthMedium     PasswordStrength = "medium"
	StrengthStrong     PasswordStrength = "strong"
	StrengthVeryStrong PasswordStrength = "very_strong"
)

const specialCharacters = `!@#$%^&*(),.?":{}|<>`

type PasswordAssessment struct {
	Score       int              `json:"score"`
	Strength    PasswordStrength `json:"strength"`
	Suggestions []string         `json:"suggestions"`
}

// AssessPasswordStrength scores a password from 0 to 100.
func AssessPasswordStrength(password string) PasswordAssessment {
	score := 0
	suggestions := []string{}
	check := func(ok bool, points int, suggestion string) {
		if ok {
			score += points
			return
		}
		suggestions = append(suggestions, suggestion)
	}

	length := utf8.RuneCountInString(password)
	check(length >= 8, 25, "Use at least 8 characters")
	check(length >= 12, 25, "Use at least 12 characters for better security")
	check(containsRune(password, unicode.IsLower), 10, "Include lowercase letters")
	check(containsRune(password, unicode.IsUpper), 10, "Include uppercase letters")
	check(containsRune(password, unicode.IsDigit), 10, "Include numbers")
	check(strings.ContainsAny(password, specialCharacters), 15, "Include special characters")
	check(!hasRepeatedRun(password, 3), 5, "Avoid repeating characters")

	return PasswordAssessment{
		Score:       score,
		Strength:    bucket(score),
		Suggestions: suggestions,
	}
}

func bucket(score int) PasswordStrength {
	switch {
	case score < 40:
		return StrengthWeak
	case score < 70:
		return StrengthMedium
	case score < 90:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}

func containsRune(s string, pred func(rune) bool) bool {
	return strings.IndexFunc(s, pred) >= 0
}

// hasRepeatedRun reports whether any character repeats n or more times in a row.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}
