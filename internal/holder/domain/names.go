package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	nonPhoneChars = regexp.MustCompile(`[^+\d]`)
	phonePattern  = regexp.MustCompile(`^\+\d{11}$`)
)

// SplitFullName splits "First Last" on spaces. Exactly one or two non-blank
// tokens are accepted; last is empty when only a first name is given.
func SplitFullName(fullName string) (first, last string, err error) {
	var tokens []string
	for _, tok := range strings.Split(fullName, " ") {
		if !isBlank(tok) {
			tokens = append(tokens, tok)
		}
	}

	switch len(tokens) {
	case 1:
		return tokens[0], "", nil
	case 2:
		return tokens[0], tokens[1], nil
	default:
		return "", "", fmt.Errorf(
			"%w: full name must contain only first name and last name, got %q",
			ErrValidation, fullName,
		)
	}
}

// StripPhone drops everything except digits and '+'.
func StripPhone(raw string) string {
	return nonPhoneChars.ReplaceAllString(raw, "")
}

// NormalizePhone strips formatting and checks the result is '+' followed by
// exactly 11 digits.
func NormalizePhone(raw string) (string, error) {
	phone := StripPhone(raw)
	if !phonePattern.MatchString(phone) {
		return "", fmt.Errorf(
			"%w: enter a valid phone number starting with a + and containing 11 digits",
			ErrValidation,
		)
	}
	return phone, nil
}

// EmailLogin is the canonical login for an email address.
func EmailLogin(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}

func joinNames(first, last string) []string {
	if last == "" {
		return []string{first}
	}
	return []string{first, last}
}

func fullName(first, last string) string {
	return capitalize(strings.Join(joinNames(first, last), " "))
}

func initials(first, last string) string {
	parts := joinNames(first, last)
	letters := make([]string, 0, len(parts))
	for _, p := range parts {
		r, _ := utf8.DecodeRuneInString(p)
		letters = append(letters, string(unicode.ToUpper(r)))
	}
	return strings.Join(letters, " ")
}
