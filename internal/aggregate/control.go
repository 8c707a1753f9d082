package aggregate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/pxd/internal/cache"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/parse"
	"github.com/rileyhilliard/pxd/internal/remote"
	"github.com/rileyhilliard/pxd/internal/target"
)

// ControlTarget applies a power action to a container or VM and drops the
// cached overview and target status.
func (a *Aggregator) ControlTarget(ctx context.Context, t target.Target, op remote.Op) (ControlResult, error) {
	if !op.IsPower() {
		return ControlResult{}, errors.NewInvalidInput(fmt.Sprintf("%s is not a power action", op))
	}

	res, err := a.runner.Do(ctx, t, op, a.opts.CommandTimeout)
	if err != nil {
		return ControlResult{}, err
	}
	if err := res.Err(fmt.Sprintf("Failed to %s %s", op.Kind, strings.ToLower(t.Title()))); err != nil {
		return ControlResult{}, err
	}

	a.cache.Invalidate(cache.KeySystemOverview, t.CacheKey())
	a.log.Info("%s %s", t.Title(), op.Verb())

	return ControlResult{
		Target:  t,
		Action:  string(op.Kind),
		Message: fmt.Sprintf("%s %s successfully", t.Title(), op.Verb()),
	}, nil
}

// unitPattern accepts systemd unit names, including template instances.
var unitPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9@._:+-]*$`)

func validateUnit(name string) error {
	if !unitPattern.MatchString(name) {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("Invalid service name %q", name),
			"Use a systemd unit name like 'nginx' or 'getty@tty1'.")
	}
	return nil
}

// ServiceStatus inspects a systemd unit on t. `systemctl status` exits
// non-zero for inactive units, so only launch failures and timeouts are
// errors; the record is built from whatever the command printed.
func (a *Aggregator) ServiceStatus(ctx context.Context, t target.Target, name string) (ServiceRecord, error) {
	if err := validateUnit(name); err != nil {
		return ServiceRecord{}, err
	}

	res, err := a.exec(ctx, t, remote.Argv("systemctl", "status", "--no-pager", name), a.opts.CommandTimeout)
	if err != nil {
		return ServiceRecord{}, err
	}
	if res.TimedOut {
		return ServiceRecord{}, res.Err(fmt.Sprintf("Failed to check service %s", name))
	}
	active := parse.ParseSystemdActive(res.Stdout)

	enabled := false
	if en, err := a.exec(ctx, t, remote.Argv("systemctl", "is-enabled", name), a.opts.EnrichmentTimeout); err == nil {
		enabled = parse.ParseEnabled(en.Stdout)
	}

	status := ServiceInactive
	if active {
		status = ServiceActive
	}
	return ServiceRecord{
		Name:        name,
		Status:      status,
		Active:      active,
		Enabled:     enabled,
		Description: "Service: " + name,
		Target:      t,
	}, nil
}

// serviceActions maps allowed systemctl verbs to their past tense.
var serviceActions = map[string]string{
	"start":   "started",
	"stop":    "stopped",
	"restart": "restarted",
	"reload":  "reloaded",
	"enable":  "enabled",
	"disable": "disabled",
}

// ControlService runs `systemctl <action> <name>` on t.
func (a *Aggregator) ControlService(ctx context.Context, t target.Target, name, action string) (string, error) {
	if err := validateUnit(name); err != nil {
		return "", err
	}
	action = strings.ToLower(strings.TrimSpace(action))
	verb, ok := serviceActions[action]
	if !ok {
		return "", errors.New(errors.ErrInput,
			fmt.Sprintf("Unknown service action %q", action),
			"Use one of: start, stop, restart, reload, enable, disable.")
	}

	res, err := a.exec(ctx, t, remote.Argv("systemctl", action, name), a.opts.CommandTimeout)
	if err != nil {
		return "", err
	}
	if err := res.Err(fmt.Sprintf("Failed to %s service %s", action, name)); err != nil {
		return "", err
	}

	a.cache.Invalidate(cache.KeyMaintenance)
	a.log.Info("service %s %s on %s", name, verb, t)
	return fmt.Sprintf("Service %s %s successfully", name, verb), nil
}
