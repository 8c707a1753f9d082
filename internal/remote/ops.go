package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"github.com/rileyhilliard/pxd/internal/target"
	"github.com/rileyhilliard/pxd/internal/util"
)

// OpKind names a remote operation.
type OpKind string

const (
	OpStatus        OpKind = "status"
	OpStatusVerbose OpKind = "status_verbose"
	OpConfig        OpKind = "config"
	OpList          OpKind = "list"
	OpStart         OpKind = "start"
	OpStop          OpKind = "stop"
	OpRestart       OpKind = "restart"
	OpShutdown      OpKind = "shutdown"
	OpReset         OpKind = "reset"
	OpExec          OpKind = "exec"
)

// Op describes what to run. Everything except Exec is a management command
// that runs on the host against the target's id.
type Op struct {
	Kind OpKind
	Of   target.Kind // for List: which guests to list
	Cmd  Command     // for Exec
}

var (
	Status        = Op{Kind: OpStatus}
	StatusVerbose = Op{Kind: OpStatusVerbose}
	Config        = Op{Kind: OpConfig}
	Start         = Op{Kind: OpStart}
	Stop          = Op{Kind: OpStop}
	Restart       = Op{Kind: OpRestart}
	Shutdown      = Op{Kind: OpShutdown}
	Reset         = Op{Kind: OpReset}
)

// List lists the ids of every guest of kind (container or VM).
func List(kind target.Kind) Op { return Op{Kind: OpList, Of: kind} }

// Exec runs cmd inside the target.
func Exec(cmd Command) Op { return Op{Kind: OpExec, Cmd: cmd} }

// ParseAction maps a control action name to its Op.
func ParseAction(action string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "start":
		return Start, nil
	case "stop":
		return Stop, nil
	case "restart", "reboot":
		return Restart, nil
	case "shutdown":
		return Shutdown, nil
	case "reset":
		return Reset, nil
	default:
		suggestion := "Use one of: " + strings.Join(Actions, ", ") + "."
		if similar := util.SuggestSimilar(action, Actions, 3); len(similar) > 0 {
			suggestion = fmt.Sprintf("Did you mean '%s'? %s", similar[0], suggestion)
		}
		return Op{}, errors.New(errors.ErrInput, fmt.Sprintf("Unknown action %q", action), suggestion)
	}
}

// Actions are the names ParseAction accepts, besides the "reboot" alias.
var Actions = []string{"start", "stop", "restart", "shutdown", "reset"}

// IsPower reports whether op changes a guest's power state.
func (o Op) IsPower() bool {
	switch o.Kind {
	case OpStart, OpStop, OpRestart, OpShutdown, OpReset:
		return true
	}
	return false
}

// Verb is the past-tense word used in control messages.
func (o Op) Verb() string {
	switch o.Kind {
	case OpStart:
		return "started"
	case OpStop:
		return "stopped"
	case OpRestart:
		return "restarted"
	case OpShutdown:
		return "shut down"
	case OpReset:
		return "reset"
	default:
		return string(o.Kind)
	}
}

func (o Op) String() string {
	if o.Kind == OpList {
		return "list:" + string(o.Of)
	}
	return string(o.Kind)
}

// Runner is the single entry point for remote operations. It resolves the
// target, builds the command for op and runs it.
type Runner struct {
	exec    Executor
	addr    *target.Addresser
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewRunner creates a Runner. m may be nil.
func NewRunner(exec Executor, addr *target.Addresser, log logger.Logger, m *metrics.Metrics) *Runner {
	return &Runner{
		exec:    exec,
		addr:    addr,
		log:     logger.Named(log, "remote"),
		metrics: m,
	}
}

// Addresser returns the addresser the runner resolves targets with.
func (r *Runner) Addresser() *target.Addresser { return r.addr }

// Do runs op against t. See Executor for how errors and failed results differ.
func (r *Runner) Do(ctx context.Context, t target.Target, op Op, timeout time.Duration) (Result, error) {
	dest, cmd, err := r.plan(t, op)
	if err != nil {
		return Result{}, err
	}

	res, err := r.exec.Run(ctx, dest, cmd, timeout)

	out := outcome(res, err)
	r.metrics.ObserveRemote(op.String(), out, res.Duration)
	r.log.Debug("%s %s on %s: %s (%s)", t, op, dest, out, res.Duration.Round(time.Millisecond))
	return res, err
}

// plan turns (target, op) into a destination and command line.
func (r *Runner) plan(t target.Target, op Op) (target.Destination, Command, error) {
	host := r.addr.Resolve(target.Host())

	switch op.Kind {
	case OpExec:
		return r.addr.Resolve(t), op.Cmd, nil

	case OpList:
		tool, err := toolFor(op.Of)
		if err != nil {
			return target.Destination{}, Command{}, err
		}
		return host, Argv(tool, "list"), nil
	}

	if t.IsHost() {
		return target.Destination{}, Command{}, errors.New(errors.ErrInput,
			fmt.Sprintf("%s needs a container or VM, not the host", op),
			"Pass a container_id or vm_id.")
	}
	tool, err := toolFor(t.Kind)
	if err != nil {
		return target.Destination{}, Command{}, err
	}
	id := strconv.FormatUint(uint64(t.ID), 10)

	switch op.Kind {
	case OpStatus:
		return host, Argv(tool, "status", id), nil
	case OpStatusVerbose:
		return host, Argv(tool, "status", id, "--verbose"), nil
	case OpConfig:
		return host, Argv(tool, "config", id), nil
	case OpStart:
		return host, Argv(tool, "start", id), nil
	case OpStop:
		return host, Argv(tool, "stop", id), nil
	case OpRestart:
		return host, Argv(tool, "reboot", id), nil
	case OpShutdown:
		return host, Argv(tool, "shutdown", id), nil
	case OpReset:
		if t.Kind != target.KindVM {
			return target.Destination{}, Command{}, errors.New(errors.ErrInput,
				"reset only applies to VMs",
				"Use restart for containers.")
		}
		return host, Argv(tool, "reset", id), nil
	default:
		return target.Destination{}, Command{}, errors.New(errors.ErrInput,
			fmt.Sprintf("Unsupported operation %q", op.Kind), "")
	}
}

func toolFor(kind target.Kind) (string, error) {
	switch kind {
	case target.KindContainer:
		return "pct", nil
	case target.KindVM:
		return "qm", nil
	default:
		return "", errors.New(errors.ErrInput,
			fmt.Sprintf("No management tool for %q targets", kind), "")
	}
}
