// Package target names the places a command can run (the virtualization host,
// one of its containers, or one of its VMs) and resolves them to a route the
// remote executor understands.
package target

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/pxd/internal/errors"
)

// Kind identifies which variant a Target is.
type Kind string

const (
	KindHost      Kind = "host"
	KindContainer Kind = "container"
	KindVM        Kind = "vm"
)

// Target is an addressable entity. The zero value is the host.
type Target struct {
	Kind Kind
	ID   uint32
}

// Host returns the virtualization host target.
func Host() Target { return Target{Kind: KindHost} }

// Container returns the target for container id.
func Container(id uint32) Target { return Target{Kind: KindContainer, ID: id} }

// VM returns the target for virtual machine id.
func VM(id uint32) Target { return Target{Kind: KindVM, ID: id} }

// FromIDs builds a Target from the optional ids a request carries.
// Neither set means the host. Both set is invalid input.
func FromIDs(containerID, vmID *uint32) (Target, error) {
	switch {
	case containerID != nil && vmID != nil:
		return Target{}, errors.New(errors.ErrInput,
			"container_id and vm_id are mutually exclusive",
			"Pass at most one of container_id or vm_id.")
	case containerID != nil:
		return Container(*containerID), nil
	case vmID != nil:
		return VM(*vmID), nil
	default:
		return Host(), nil
	}
}

// Parse reads a target from text: "host", "ct:<id>", "ct/<id>",
// "container:<id>", "vm:<id>" or "qemu:<id>".
func Parse(s string) (Target, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "host" || s == "node" {
		return Host(), nil
	}

	kind, rawID, ok := strings.Cut(s, ":")
	if !ok {
		kind, rawID, ok = strings.Cut(s, "/")
	}
	if !ok {
		return Target{}, invalidTarget(s)
	}

	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return Target{}, invalidTarget(s)
	}

	switch kind {
	case "ct", "lxc", "container":
		return Container(uint32(id)), nil
	case "vm", "qemu":
		return VM(uint32(id)), nil
	default:
		return Target{}, invalidTarget(s)
	}
}

func invalidTarget(s string) error {
	return errors.New(errors.ErrInput,
		fmt.Sprintf("Can't parse target %q", s),
		"Use 'host', 'ct:<id>' or 'vm:<id>'.")
}

// IsHost reports whether t addresses the virtualization host.
func (t Target) IsHost() bool { return t.Kind == KindHost || t.Kind == "" }

// String renders t in the form Parse accepts.
func (t Target) String() string {
	switch t.Kind {
	case KindContainer:
		return fmt.Sprintf("ct:%d", t.ID)
	case KindVM:
		return fmt.Sprintf("vm:%d", t.ID)
	default:
		return "host"
	}
}

// CacheKey is the per-target detail key used by the cache.
func (t Target) CacheKey() string {
	if t.IsHost() {
		return "target:host"
	}
	return fmt.Sprintf("target:%s:%d", t.Kind, t.ID)
}

// Noun is the human word for the target kind, used in messages.
func (t Target) Noun() string {
	switch t.Kind {
	case KindContainer:
		return "container"
	case KindVM:
		return "VM"
	default:
		return "host"
	}
}

// Title names t in messages, e.g. "Container 214".
func (t Target) Title() string {
	switch t.Kind {
	case KindContainer:
		return fmt.Sprintf("Container %d", t.ID)
	case KindVM:
		return fmt.Sprintf("VM %d", t.ID)
	default:
		return "Host"
	}
}

// MarshalText encodes t as its String form, so records carry "ct:214" in JSON.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *Target) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
