// Package parse turns the loosely structured text printed by remote commands
// into typed values.
//
// Nothing here fails on odd input. A line that can't be understood is
// skipped, and a value that can't be found comes back as its zero value or
// a named sentinel. The /proc parsers are the exception: they return
// ErrMalformed and leave the fallback to the caller.
package parse

import (
	"strconv"
	"strings"
)

// State is the power state of a container or VM.
type State string

const (
	Running State = "Running"
	Stopped State = "Stopped"
	Unknown State = "Unknown"
)

// ParseRunningState inspects status output. "running" is checked before
// "stopped", so text containing both reads as Running. Matching is
// case-sensitive.
func ParseRunningState(text string) State {
	switch {
	case strings.Contains(text, "running"):
		return Running
	case strings.Contains(text, "stopped"):
		return Stopped
	default:
		return Unknown
	}
}

// ParseIDListing reads the ids from `pct list` or `qm list` output. The first
// line is a header. On every other line the first whitespace-separated token
// must be an unsigned integer; lines where it isn't are skipped. Order is
// preserved.
func ParseIDListing(text string) []uint32 {
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return []uint32{}
	}

	ids := make([]uint32, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	return ids
}

// ParseKeyValueBlock splits each line on the first sep. Keys and values are
// trimmed and surrounding double quotes are removed from values. Lines
// without sep are ignored and a later duplicate key wins.
func ParseKeyValueBlock(text, sep string) map[string]string {
	out := make(map[string]string)
	if sep == "" {
		return out
	}
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, sep)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		out[key] = value
	}
	return out
}

// ParseSystemdActive reports whether `systemctl status` output shows the
// unit as active.
func ParseSystemdActive(text string) bool {
	return strings.Contains(text, "Active: active")
}

// ParseEnabled reports whether `systemctl is-enabled` printed exactly "enabled".
func ParseEnabled(text string) bool {
	return strings.TrimSpace(text) == "enabled"
}

// ParseStatPair reads the "<size> <mtime>" output of `stat -c '%s %Y'`.
// Missing or unparseable fields are 0.
func ParseStatPair(text string) (size int64, modified int64) {
	fields := strings.Fields(text)
	if len(fields) > 0 {
		if v, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			size = v
		}
	}
	if len(fields) > 1 {
		if v, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			modified = v
		}
	}
	return size, modified
}

// FirstLine returns the first line of text without its line ending.
func FirstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimRight(line, "\r")
}

// Float reads a float from a key/value map, 0 when missing or malformed.
func Float(kv map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(kv[key], 64)
	if err != nil {
		return 0
	}
	return v
}

// Int reads an integer from a key/value map, 0 when missing or malformed.
func Int(kv map[string]string, key string) int64 {
	v, err := strconv.ParseInt(kv[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
