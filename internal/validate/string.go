// Package validate provides input validation and sanitization for
// user-supplied strings arriving through the HTTP API.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// SanitizeHTML escapes HTML special characters to prevent XSS when values
// are echoed back in API responses rendered by clients.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeString performs both validation and HTML sanitization.
func SanitizeString(s string, constraints StringConstraints) (string, error) {
	validated, err := String(s, constraints)
	if err != nil {
		return "", err
	}
	return SanitizeHTML(validated), nil
}

var (
	locationNamePattern = regexp.MustCompile(`^[\p{L}\p{N} ,'\-\.]+$`)
	ownerIDPattern      = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
	categoryPattern     = regexp.MustCompile(`^[a-z0-9\-]+$`)
)

// LocationName validates a free-form place name used for gazetteer lookups:
// 1-120 characters, letters, numbers, spaces and common punctuation.
func LocationName(name string) (string, error) {
	return SanitizeString(name, StringConstraints{
		MinLength:      1,
		MaxLength:      120,
		AllowedPattern: locationNamePattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// OwnerID validates an owner identifier: 1-64 characters, alphanumeric
// plus dash and underscore.
func OwnerID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: ownerIDPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// Category validates a listing category slug: 1-50 characters, lowercase
// letters, digits and dashes. Input is lowercased before validation.
func Category(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	return String(category, StringConstraints{
		MinLength:      1,
		MaxLength:      50,
		AllowedPattern: categoryPattern,
		AllowEmpty:     false,
	})
}

// CountryCode validates an ISO 3166-1 alpha-2 country code. Input is
// uppercased before validation.
func CountryCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", fmt.Errorf("%w: country code must be two letters", ErrInvalidCharacters)
	}
	return code, nil
}
