package auth

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// NormalizeEmail lower-cases and trims an address. All lookups go through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// CheckPasswordStrength returns an empty string for an acceptable password
// and the user-facing reason otherwise.
func CheckPasswordStrength(password string) string {
	if len([]rune(password)) < MinPasswordLength {
		return "Senha deve ter no mínimo 8 caracteres"
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}

	switch {
	case !upper:
		return "Senha deve conter pelo menos uma letra maiúscula"
	case !lower:
		return "Senha deve conter pelo menos uma letra minúscula"
	case !digit:
		return "Senha deve conter pelo menos um número"
	}
	return ""
}
