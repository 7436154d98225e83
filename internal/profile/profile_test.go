package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	p := Default()
	assert.NotEmpty(t, p.UserAgents)
	assert.NotEmpty(t, p.BlacklistedURLs)
	assert.Equal(t, 60*time.Second, p.Timeout)
	assert.True(t, p.IsBlacklisted("https://stats.g.doubleclick.net/collect"))
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	doc := "blacklisted_urls:\n  - ads.example\nuser_agents:\n  - ua-one\n  - \"  \"\ntimeout: 1500\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ads.example"}, p.BlacklistedURLs)
	assert.Equal(t, []string{"ua-one"}, p.UserAgents)
	assert.Equal(t, 1500*time.Millisecond, p.Timeout)
}

func TestLoadJSONDefaultsTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"blacklisted_urls":[],"user_agents":["ua"]}`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, p.Timeout)
	assert.Empty(t, p.BlacklistedURLs)
}

func TestParseRequiresArrays(t *testing.T) {
	_, err := Parse([]byte(`{"user_agents":["ua"]}`), FormatJSON)
	assert.ErrorIs(t, err, ErrMissingBlacklist)

	_, err = Parse([]byte(`{"blacklisted_urls":[]}`), FormatJSON)
	assert.ErrorIs(t, err, ErrMissingUserAgents)

	_, err = Parse([]byte(`{not json`), FormatJSON)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("a/b/profile.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatFromPath("profile.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load("profile.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
