package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
	// PasswordSymbols is the punctuation set a password must draw at least one character from.
	PasswordSymbols = `!@#$%^&*(),.?":{}|<>`
)

// CheckPassword enforces the password policy and returns ErrWeakPassword on violation.
func CheckPassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return ErrWeakPassword("min length 8")
	}
	if len(pw) > MaxPasswordBytes {
		return ErrWeakPassword("max length 72 bytes")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, c := range pw {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, c):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return ErrWeakPassword("needs an uppercase letter")
	case !hasLower:
		return ErrWeakPassword("needs a lowercase letter")
	case !hasDigit:
		return ErrWeakPassword("needs a digit")
	case !hasSymbol:
		return ErrWeakPassword("needs a symbol")
	}
	return nil
}
