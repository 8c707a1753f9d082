// Package util provides small helpers shared across packages.
package util

import (
	"regexp"
	"strings"
)

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// ' becomes '\'' (end quote, escaped quote, start quote)
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// ShellQuotePreserveTilde quotes a path but leaves a leading ~/ for the remote
// shell to expand.
func ShellQuotePreserveTilde(path string) string {
	if path == "~" {
		return "~"
	}
	if strings.HasPrefix(path, "~/") {
		return "~/" + ShellQuote(path[2:])
	}
	return ShellQuote(path)
}

var globSafe = regexp.MustCompile(`^~?[A-Za-z0-9_./*?-]+$`)

// ShellGlob renders a directory pattern like /opt/*/bin so the remote shell
// expands its wildcards. Patterns with anything beyond path characters and
// wildcards are quoted literally instead.
func ShellGlob(pattern string) string {
	if globSafe.MatchString(pattern) && !strings.HasPrefix(pattern, "-") {
		return pattern
	}
	return ShellQuotePreserveTilde(pattern)
}
