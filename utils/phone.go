package utils

import "strings"

// MaskPhone hides the middle digits of a phone number, e.g. 138****8000.
func MaskPhone(phone string) string {
	runes := []rune(strings.TrimSpace(phone))
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n < 8:
		return string(runes[:1]) + strings.Repeat("*", n-3) + string(runes[n-2:])
	default:
		return string(runes[:3]) + strings.Repeat("*", n-7) + string(runes[n-4:])
	}
}

// IsDigits reports whether s is non-empty and made of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
