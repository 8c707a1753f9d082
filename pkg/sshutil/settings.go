package sshutil

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// settings holds resolved connection parameters for one alias.
type settings struct {
	hostname     string
	port         string
	user         string
	identityFile string

	// matchLine is the first Match directive in ~/.ssh/config, 0 if none.
	// Entries after it are invisible to the parser.
	matchLine int
	found     bool
}

func (s *settings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSettings parses alias ("name", "user@host", "host:port") and fills
// in anything ~/.ssh/config says about it. An explicit user wins over the
// config file.
func resolveSettings(alias string) *settings {
	s := &settings{
		port: "22",
		user: currentUser(),
	}

	host := alias
	explicitUser := false
	if user, rest, ok := strings.Cut(host, "@"); ok {
		s.user = user
		host = rest
		explicitUser = true
	}
	if h, port, ok := splitPort(host); ok {
		host = h
		s.port = port
	}
	s.hostname = host

	content, matchLine, err := readSSHConfig(filepath.Join(homeDir(), ".ssh", "config"))
	if err != nil {
		return s
	}
	s.matchLine = matchLine

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return s
	}

	if v, _ := cfg.Get(host, "HostName"); v != "" {
		s.hostname = v
		s.found = true
	}
	if v, _ := cfg.Get(host, "Port"); v != "" {
		s.port = v
		s.found = true
	}
	if v, _ := cfg.Get(host, "User"); v != "" {
		if !explicitUser {
			s.user = v
		}
		s.found = true
	}
	if v, _ := cfg.Get(host, "IdentityFile"); v != "" {
		s.identityFile = expandPath(v)
		s.found = true
	}

	return s
}

// splitPort splits "host:port" when everything after the last colon is digits.
func splitPort(host string) (string, string, bool) {
	i := strings.LastIndex(host, ":")
	if i == -1 || i == len(host)-1 {
		return host, "", false
	}
	for _, c := range host[i+1:] {
		if c < '0' || c > '9' {
			return host, "", false
		}
	}
	return host[:i], host[i+1:], true
}

// readSSHConfig returns the config content up to the first Match directive,
// which ssh_config can't decode, and that directive's 1-indexed line number.
func readSSHConfig(path string) ([]byte, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}
	return content, 0, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
