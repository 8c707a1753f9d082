package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
		{"$(reboot)", "'$(reboot)'"},
		{"", "''"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellQuote(tt.input))
		})
	}
}

func TestShellQuotePreserveTilde(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"~", "~"},
		{"~/.local/bin", "~/'.local/bin'"},
		{"/etc/pve/lxc/214.conf", "'/etc/pve/lxc/214.conf'"},
		{"~user/x", "'~user/x'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellQuotePreserveTilde(tt.input))
		})
	}
}

func TestShellGlob(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/opt/*/bin", "/opt/*/bin"},
		{"~/.local/bin", "~/.local/bin"},
		{"/usr/local/sbin", "/usr/local/sbin"},
		{"/srv/my dir/bin", "'/srv/my dir/bin'"},
		{"/tmp/$(id)", "'/tmp/$(id)'"},
		{"-rf", "'-rf'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellGlob(tt.input))
		})
	}
}
