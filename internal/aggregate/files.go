package aggregate

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/parse"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/rileyhilliard/pxd/internal/util"
)

// ModifiedLayout formats ConfigRecord.Modified.
const ModifiedLayout = "2006-01-02 15:04:05"

// backupLayout is the timestamp in backup file names.
const backupLayout = "20060102-150405"

var binaryPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// CheckBinary looks for name on t: first on $PATH, then in the configured
// search directories. A found binary gets a version probe and an
// executable check.
func (a *Aggregator) CheckBinary(ctx context.Context, t target.Target, name string) (BinaryRecord, error) {
	if !binaryPattern.MatchString(name) {
		return BinaryRecord{}, errors.New(errors.ErrInput,
			fmt.Sprintf("Invalid binary name %q", name),
			"Pass a bare executable name like 'docker', not a path.")
	}

	res, err := a.exec(ctx, t, remote.Shell(parse.LookPathCommand(name)), a.opts.CommandTimeout)
	if err != nil {
		return BinaryRecord{}, err
	}
	if res.TimedOut {
		return BinaryRecord{}, res.Err(fmt.Sprintf("Failed to look up %s", name))
	}

	rec := BinaryRecord{Name: name, Target: t, Path: NotFound, Version: NotApply}

	found := strings.TrimSpace(parse.FirstLine(res.Stdout))
	// builtins and aliases come back without a slash
	if res.Succeeded && strings.HasPrefix(found, "/") {
		rec.Path, rec.Exists = found, true
	} else if p, ok := parse.FindBinaryFallback(ctx, a.prober(t, a.opts.CommandTimeout), a.opts.BinarySearchDirs, name); ok {
		rec.Path, rec.Exists = p, true
	}
	if !rec.Exists {
		return rec, nil
	}

	probe := a.prober(t, a.opts.EnrichmentTimeout)
	rec.Version = parse.DetectVersion(ctx, probe, rec.Path)
	_, rec.Executable = probe.Probe(ctx, "test -x "+util.ShellQuote(rec.Path))
	return rec, nil
}

// validatePath rejects paths that aren't absolute or that can't be passed
// safely on one command line.
func validatePath(p string) error {
	if !strings.HasPrefix(p, "/") || strings.ContainsAny(p, "\x00\n\r") {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("Invalid config path %q", p),
			"Pass an absolute path like /etc/nginx/nginx.conf.")
	}
	return nil
}

// configCheckCommand tests existence and permissions and stats the file
// in one round trip. Sections: exists, readable, writable, stat.
func configCheckCommand(p string) string {
	q := util.ShellQuote(p)
	return "test -f " + q + ` && echo yes || echo no; echo "---"; ` +
		"test -r " + q + ` && echo yes || echo no; echo "---"; ` +
		"test -w " + q + ` && echo yes || echo no; echo "---"; ` +
		"stat -c '%s %Y' " + q + " 2>/dev/null || true"
}

// CheckConfig inspects a file on t.
func (a *Aggregator) CheckConfig(ctx context.Context, t target.Target, p string) (ConfigRecord, error) {
	if err := validatePath(p); err != nil {
		return ConfigRecord{}, err
	}

	res, err := a.exec(ctx, t, remote.Shell(configCheckCommand(p)), a.opts.CommandTimeout)
	if err != nil {
		return ConfigRecord{}, err
	}
	if err := res.Err(fmt.Sprintf("Failed to check %s", p)); err != nil {
		return ConfigRecord{}, err
	}

	name := path.Base(p)
	if name == "/" || name == "." {
		name = string(parse.Unknown)
	}
	rec := ConfigRecord{Name: name, Path: p, Target: t, Modified: NotApply}

	sections := parse.SplitSections(res.Stdout)
	rec.Exists = parse.Section(sections, 0) == "yes"
	if !rec.Exists {
		return rec, nil
	}
	rec.Readable = parse.Section(sections, 1) == "yes"
	rec.Writable = parse.Section(sections, 2) == "yes"

	size, mod := parse.ParseStatPair(parse.Section(sections, 3))
	rec.SizeBytes = size
	rec.Modified = string(parse.Unknown)
	if mod > 0 {
		rec.ModifiedEpoch = mod
		rec.Modified = time.Unix(mod, 0).UTC().Format(ModifiedLayout)
	}
	return rec, nil
}

// ReadConfig returns the content of a file on t.
func (a *Aggregator) ReadConfig(ctx context.Context, t target.Target, p string) (string, error) {
	if err := validatePath(p); err != nil {
		return "", err
	}

	res, err := a.exec(ctx, t, remote.Argv("cat", "--", p), a.opts.CommandTimeout)
	if err != nil {
		return "", err
	}
	if !res.Succeeded && strings.Contains(res.Stderr, "No such file") {
		return "", errors.New(errors.ErrNotFound,
			fmt.Sprintf("%s does not exist on %s", p, t),
			"Check the path with: pxd config check")
	}
	if err := res.Err("Failed to read config file " + p); err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// BackupPath names the copy WriteConfig makes before overwriting p.
func BackupPath(p string, at time.Time) string {
	return p + "." + at.UTC().Format(backupLayout) + ".bak"
}

// writeCommand copies an existing file to backup, then replaces it with
// stdin. It prints the backup path when a copy was made.
func writeCommand(p, backup string) string {
	q, b := util.ShellQuote(p), util.ShellQuote(backup)
	return "set -e; if [ -f " + q + " ]; then cp -p -- " + q + " " + b + "; echo " + b + "; fi; cat > " + q
}

// WriteConfig replaces a file on t with content, keeping a timestamped
// backup of the previous version next to it.
func (a *Aggregator) WriteConfig(ctx context.Context, t target.Target, p, content string) (WriteResult, error) {
	if err := validatePath(p); err != nil {
		return WriteResult{}, err
	}

	backup := BackupPath(p, a.now())
	cmd := remote.Shell(writeCommand(p, backup)).WithStdin(content)

	res, err := a.exec(ctx, t, cmd, a.opts.CommandTimeout)
	if err != nil {
		return WriteResult{}, err
	}
	if err := res.Err("Failed to write config file " + p); err != nil {
		return WriteResult{}, err
	}

	a.cache.Invalidate(cache.KeyMaintenance)

	out := WriteResult{Path: p, Target: t, Message: fmt.Sprintf("Config file %s updated successfully", p)}
	if strings.TrimSpace(res.Stdout) != "" {
		out.Backup = backup
	}
	if out.Backup != "" {
		a.log.Info("wrote %s on %s, previous version saved as %s", p, t, out.Backup)
	} else {
		a.log.Info("wrote new file %s on %s", p, t)
	}
	return out, nil
}
