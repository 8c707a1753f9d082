package target

import (
	"strconv"
	"strings"
)

// Destination is a resolved route: the SSH alias to connect to, and an
// optional prefix that moves execution into a container.
type Destination struct {
	Alias  string
	Prefix string
}

// String renders the destination the way an ssh command line would see it.
func (d Destination) String() string {
	if d.Prefix == "" {
		return d.Alias
	}
	return d.Alias + " " + d.Prefix
}

// Addresser maps targets to destinations. It is immutable after construction
// and safe for concurrent use.
type Addresser struct {
	host          string
	vmAliases     map[uint32]string
	containerExec string
}

// NewAddresser builds an Addresser. The alias table is copied.
func NewAddresser(host string, vmAliases map[uint32]string, containerExec string) *Addresser {
	aliases := make(map[uint32]string, len(vmAliases))
	for id, alias := range vmAliases {
		aliases[id] = alias
	}
	return &Addresser{
		host:          host,
		vmAliases:     aliases,
		containerExec: containerExec,
	}
}

// Resolve returns where commands for t run. It never fails: VMs without a
// dedicated alias fall back to the host.
func (a *Addresser) Resolve(t Target) Destination {
	switch t.Kind {
	case KindContainer:
		return Destination{
			Alias:  a.host,
			Prefix: strings.ReplaceAll(a.containerExec, "{id}", strconv.FormatUint(uint64(t.ID), 10)),
		}
	case KindVM:
		if alias, ok := a.vmAliases[t.ID]; ok {
			return Destination{Alias: alias}
		}
		return Destination{Alias: a.host}
	default:
		return Destination{Alias: a.host}
	}
}

// HasDedicatedAccess reports whether t is a VM with its own alias.
func (a *Addresser) HasDedicatedAccess(t Target) bool {
	if t.Kind != KindVM {
		return false
	}
	_, ok := a.vmAliases[t.ID]
	return ok
}

// HostAlias is the alias of the virtualization host.
func (a *Addresser) HostAlias() string { return a.host }
