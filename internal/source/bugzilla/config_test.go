package bugzilla

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("username and password", func(t *testing.T) {
		cfg := Config{
			BaseURI:  "https://one.com/",
			Username: "hello",
			Password: "there",
		}
		require.NoError(t, cfg.Validate())
	})

	t.Run("username and api key", func(t *testing.T) {
		cfg := Config{
			BaseURI:  "https://one.com/",
			Username: "hello",
			APIKey:   "abc123",
		}
		require.NoError(t, cfg.Validate())
	})

	t.Run("api key without username", func(t *testing.T) {
		cfg := Config{
			BaseURI: "https://one.com/",
			APIKey:  "abc123",
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "username")
	})

	t.Run("missing base uri", func(t *testing.T) {
		cfg := Config{
			Username: "hello",
			Password: "there",
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_uri")
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg := Config{
			BaseURI:  "https://one.com/",
			Username: "hello",
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "password or api_key")
	})

	t.Run("legacy schemeless base uri", func(t *testing.T) {
		cfg := Config{
			BaseURI:  "one.com/",
			Username: "hello",
			Password: "there",
		}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "https://one.com", cfg.NormalizedBaseURI())
	})
}

func TestShowBugURL(t *testing.T) {
	cfg := Config{BaseURI: "https://one.com/"}
	assert.Equal(
		t,
		"https://one.com/show_bug.cgi?id=1234567",
		cfg.ShowBugURL(1234567),
	)

	legacy := Config{BaseURI: "one.com"}
	assert.Equal(
		t,
		"https://one.com/show_bug.cgi?id=42",
		legacy.ShowBugURL(42),
	)
}

func TestOpenStatuses(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, defaultOpenStatuses, cfg.openStatuses())

	cfg.OpenStatuses = []string{"NEW", "ASSIGNED"}
	assert.Equal(t, []string{"NEW", "ASSIGNED"}, cfg.openStatuses())
}

func TestValidateBaseURI(t *testing.T) {
	require.NoError(t, ValidateBaseURI("https://bugzilla.example.com"))
	require.NoError(t, ValidateBaseURI("bugzilla.example.com"))
	require.Error(t, ValidateBaseURI(""))
	require.Error(t, ValidateBaseURI("   "))
}
