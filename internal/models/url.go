package models

import (
	"errors"
	"net/url"
	"strings"
)

// URL validation errors.
var (
	ErrEmptyURL   = errors.New("url is empty")
	ErrInvalidURL = errors.New("url must be an absolute https URL")
)

// ValidateTargetURL checks that raw is an absolute https URL with a host.
// The input is expected to be trimmed by the caller.
func ValidateTargetURL(raw string) error {
	if raw == "" {
		return ErrEmptyURL
	}
	if !strings.HasPrefix(raw, "https://") || strings.ContainsAny(raw, " \t\r\n") {
		return ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "https" || u.Hostname() == "" || u.User != nil {
		return ErrInvalidURL
	}
	host := u.Hostname()
	if strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") || strings.Contains(host, "..") {
		return ErrInvalidURL
	}
	return nil
}
