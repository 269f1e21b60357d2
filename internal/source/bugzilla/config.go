package bugzilla

import (
	"fmt"
	"net/url"
	"strings"
)

// defaultOpenStatuses are the bug statuses fetched when the target does
// not configure its own list.
var defaultOpenStatuses = []string{
	"UNCONFIRMED",
	"NEW",
	"CONFIRMED",
	"ASSIGNED",
	"IN_PROGRESS",
	"REOPENED",
}

// Config holds the settings for a single Bugzilla target.
type Config struct {
	// BaseURI is the root URL of the Bugzilla instance. A schemeless
	// value (legacy form, e.g. "bugzilla.example.com/") is accepted and
	// treated as https.
	BaseURI string

	// Username is the Bugzilla login. Required.
	Username string

	// Password authenticates via the login endpoint. Mutually
	// exclusive with APIKey; one of the two must be set.
	Password string

	// APIKey authenticates via the api_key request parameter.
	APIKey string

	// OnlyIfAssigned restricts results to bugs assigned to this
	// username. Empty means no assignment filtering.
	OnlyIfAssigned string

	// AlsoUnassigned additionally yields unassigned bugs when
	// OnlyIfAssigned is set. It has no effect otherwise.
	AlsoUnassigned bool

	// OpenStatuses overrides the statuses fetched from the instance.
	OpenStatuses []string
}

// Validate checks that the target configuration is complete: a base URI
// plus either username+password or username+api_key.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURI) == "" {
		return fmt.Errorf("base_uri: field required")
	}

	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("username: field required")
	}

	if c.APIKey == "" && c.Password == "" {
		return fmt.Errorf("either password or api_key must be set")
	}

	return nil
}

// NormalizedBaseURI returns the base URI with a scheme (https when the
// legacy schemeless form was configured) and no trailing slash.
func (c Config) NormalizedBaseURI() string {
	base := strings.TrimSpace(c.BaseURI)
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

// ShowBugURL synthesizes the canonical bug page URL for a bug ID.
func (c Config) ShowBugURL(id int) string {
	return fmt.Sprintf("%s/show_bug.cgi?id=%d", c.NormalizedBaseURI(), id)
}

// openStatuses returns the configured open statuses, falling back to
// the defaults.
func (c Config) openStatuses() []string {
	if len(c.OpenStatuses) > 0 {
		return c.OpenStatuses
	}
	return defaultOpenStatuses
}

// ValidateBaseURI reports whether a base URI parses once normalized.
// Used by the configuration form before a target is saved.
func ValidateBaseURI(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("base URI is required")
	}
	candidate := s
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host (e.g., bugzilla.example.com)")
	}
	return nil
}
