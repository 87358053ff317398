package ciutil

import (
	"log/slog"
	"os"

	"github.com/phrazzld/scry-srs/internal/redact"
)

// Environment variables read by this package.
const (
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	// EnvScryTestDBURL is the preferred name for the integration test database.
	EnvScryTestDBURL = "SCRY_TEST_DB_URL"
	EnvDatabaseURL   = "DATABASE_URL"
)

// IsCI reports whether the process runs under a CI provider.
func IsCI() bool {
	for _, name := range []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvCircleCI} {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// GetEnvWithFallbacks returns the value of the first non-empty variable in
// names, or defaultValue. Using any name but the first logs a warning.
func GetEnvWithFallbacks(names []string, defaultValue string, logger *slog.Logger) string {
	for i, name := range names {
		val := os.Getenv(name)
		if val == "" {
			continue
		}
		if i > 0 && logger != nil {
			logger.Warn("using legacy environment variable",
				slog.String("used_var", name),
				slog.String("preferred_var", names[0]),
				slog.String("value", redact.String(val)))
		}
		return val
	}
	return defaultValue
}

// TestDatabaseURL returns the Postgres URL for integration tests, preferring
// SCRY_TEST_DB_URL over DATABASE_URL. It is empty when neither is set.
func TestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvScryTestDBURL, EnvDatabaseURL}, "", logger)
}
