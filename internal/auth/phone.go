package auth

import (
	"strings"
	"unicode"
)

// NormalizePhone strips formatting from a phone number and prefixes
// countryCode when the number has no leading "+". The result is "+" followed
// by 8 to 15 digits.
func NormalizePhone(raw, countryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", ErrInvalidPhone
		}
	}
	phone := b.String()
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + strings.TrimPrefix(countryCode, "+") + phone
	}
	if n := len(phone) - 1; n < 8 || n > 15 {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
