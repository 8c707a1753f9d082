package parse

import (
	"context"
	"strings"

	"github.com/rileyhilliard/pxd/internal/util"
)

// Prober runs one shell line somewhere and reports its stdout and whether it
// exited zero. Failures of any kind are just ok=false.
type Prober interface {
	Probe(ctx context.Context, line string) (stdout string, ok bool)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, line string) (string, bool)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, line string) (string, bool) {
	return f(ctx, line)
}

// VersionFlags are tried in order by DetectVersion.
var VersionFlags = []string{"--version", "-v", "-V", "version", "--help"}

// maxVersionLen rejects first lines too long to be a version string.
const maxVersionLen = 200

// LookPathCommand asks the remote shell where name is on $PATH.
func LookPathCommand(name string) string {
	return "command -v " + util.ShellQuote(name)
}

// FindCommand searches dir for an executable file called name and prints at
// most one match. Wildcards in dir are left for the remote shell.
func FindCommand(dir, name string) string {
	return "find " + util.ShellGlob(dir) + " -name " + util.ShellQuote(name) +
		" -type f -executable 2>/dev/null | head -1"
}

// FindBinaryFallback probes dirs in order and returns the first path found.
// The directory order is significant: earlier entries shadow later ones.
func FindBinaryFallback(ctx context.Context, p Prober, dirs []string, name string) (string, bool) {
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return "", false
		}
		out, ok := p.Probe(ctx, FindCommand(dir, name))
		if !ok {
			continue
		}
		if path := strings.TrimSpace(FirstLine(out)); path != "" {
			return path, true
		}
	}
	return "", false
}

// DetectVersion runs path with each of VersionFlags until one exits zero
// and prints a usable first line: non-empty and shorter than 200 characters.
// It returns "Unknown" when no flag produces one.
func DetectVersion(ctx context.Context, p Prober, path string) string {
	for _, flag := range VersionFlags {
		if ctx.Err() != nil {
			break
		}
		out, ok := p.Probe(ctx, util.ShellQuote(path)+" "+flag)
		if !ok {
			continue
		}
		line := strings.TrimSpace(FirstLine(out))
		if line != "" && len(line) < maxVersionLen {
			return line
		}
	}
	return string(Unknown)
}
