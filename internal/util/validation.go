package util

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrInvalidEmail indicates the supplied address is not RFC 5322
	// compatible.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidPhone indicates the supplied number is not in E.164 form.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidURL indicates the supplied endpoint is not an absolute
	// http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// NormalizeEmail validates an email address and returns it lowercased with
// any display name stripped.
func NormalizeEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	return strings.ToLower(addr.Address), nil
}

// NormalizeE164 validates a phone number in E.164 form. Spaces and dashes
// are tolerated and removed before validation.
func NormalizeE164(value string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(value))

	if cleaned == "" {
		return "", fmt.Errorf("%w: empty number", ErrInvalidPhone)
	}
	if !e164Pattern.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q is not E.164", ErrInvalidPhone, value)
	}

	return cleaned, nil
}

// NormalizeE164List validates a list of phone numbers, requiring at least
// one entry. Duplicates are removed while preserving order.
func NormalizeE164List(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: at least one number is required", ErrInvalidPhone)
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		normalized, err := NormalizeE164(value)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	return out, nil
}

// ValidateHTTPURL ensures the value is an absolute http or https URL with a
// host component and returns it trimmed.
func ValidateHTTPURL(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return trimmed, nil
}
