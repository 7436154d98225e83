// Package profile loads the static traffic profile: blacklisted URL fragments,
// the user agents to rotate through and the request timeout.
package profile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/narvanalabs/mocktraffic/internal/models"
)

// DefaultTimeout applies when a profile does not set one.
const DefaultTimeout = 60 * time.Second

// Profile errors.
var (
	ErrMissingBlacklist  = errors.New("profile is missing blacklisted_urls")
	ErrMissingUserAgents = errors.New("profile is missing user_agents")
	ErrUnsupportedFormat = errors.New("unsupported profile format")
)

//go:embed default.json
var defaultProfile []byte

// document is the on-disk shape of a profile. Timeout is in milliseconds.
type document struct {
	BlacklistedURLs *[]string `json:"blacklisted_urls" yaml:"blacklisted_urls"`
	UserAgents      *[]string `json:"user_agents" yaml:"user_agents"`
	Timeout         *int      `json:"timeout" yaml:"timeout"`
}

// Default returns the embedded profile.
func Default() *models.Profile {
	p, err := Parse(defaultProfile, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded profile is invalid: %v", err))
	}
	return p
}

// Format is a profile encoding.
type Format string

// Supported profile encodings.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads a profile from path. An empty path returns the embedded default.
func Load(path string) (*models.Profile, error) {
	if path == "" {
		return Default(), nil
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a profile document.
func Parse(data []byte, format Format) (*models.Profile, error) {
	var doc document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if doc.BlacklistedURLs == nil {
		return nil, ErrMissingBlacklist
	}
	if doc.UserAgents == nil {
		return nil, ErrMissingUserAgents
	}

	timeout := DefaultTimeout
	if doc.Timeout != nil && *doc.Timeout > 0 {
		timeout = time.Duration(*doc.Timeout) * time.Millisecond
	}

	return &models.Profile{
		BlacklistedURLs: clean(*doc.BlacklistedURLs),
		UserAgents:      clean(*doc.UserAgents),
		Timeout:         timeout,
	}, nil
}

func clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
