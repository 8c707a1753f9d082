// Package catalog holds display metadata for containers and VMs and the
// list of checks behind the maintenance overview. It is a plain lookup
// table loaded from YAML; the built-in default is embedded in the binary.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/target"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Fallback names for ids with no entry.
const (
	OtherCategory = "Other"
	VMCategory    = "Virtual Machines"
)

// Entry describes one container or VM.
type Entry struct {
	ID          uint32 `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	WebUI       string `yaml:"web_ui" json:"web_ui,omitempty"`
}

// CategoryRange assigns a category to ids From..To inclusive.
type CategoryRange struct {
	Name string `yaml:"name"`
	From uint32 `yaml:"from"`
	To   uint32 `yaml:"to"`
}

// ServiceCheck is a systemd unit to inspect on a target.
type ServiceCheck struct {
	Name   string        `yaml:"name" json:"name"`
	Target target.Target `yaml:"-" json:"target"`
}

// BinaryCheck is an executable to look for on a target.
type BinaryCheck struct {
	Name   string        `yaml:"name" json:"name"`
	Target target.Target `yaml:"-" json:"target"`
}

// ConfigCheck is a file to inspect on a target.
type ConfigCheck struct {
	Path   string        `yaml:"path" json:"path"`
	Target target.Target `yaml:"-" json:"target"`
}

// Checks are the inputs to the maintenance overview, in display order.
type Checks struct {
	Services []ServiceCheck `json:"services"`
	Binaries []BinaryCheck  `json:"binaries"`
	Configs  []ConfigCheck  `json:"configs"`
}

// Catalog is immutable after Parse.
type Catalog struct {
	containers map[uint32]Entry
	vms        map[uint32]Entry
	ranges     []CategoryRange
	checks     Checks
}

// document is the YAML layout.
type document struct {
	Categories []CategoryRange `yaml:"categories"`
	Containers []Entry         `yaml:"containers"`
	VMs        []Entry         `yaml:"vms"`
	Checks     struct {
		Services []checkDoc `yaml:"services"`
		Binaries []checkDoc `yaml:"binaries"`
		Configs  []checkDoc `yaml:"configs"`
	} `yaml:"checks"`
}

type checkDoc struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Target string `yaml:"target"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't read catalog %s", path),
			"Check the 'catalog' path in your .pxd.yaml, or remove it to use the built-in catalog.")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid catalog %s", path),
			"Compare it with the built-in catalog: pxd catalog --dump")
	}
	return c, nil
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	c := &Catalog{
		containers: make(map[uint32]Entry, len(doc.Containers)),
		vms:        make(map[uint32]Entry, len(doc.VMs)),
		ranges:     doc.Categories,
	}

	for _, r := range doc.Categories {
		if r.Name == "" {
			return nil, fmt.Errorf("category range %d-%d has no name", r.From, r.To)
		}
		if r.From > r.To {
			return nil, fmt.Errorf("category %q: from %d is after to %d", r.Name, r.From, r.To)
		}
	}
	for _, e := range doc.Containers {
		if _, dup := c.containers[e.ID]; dup {
			return nil, fmt.Errorf("container %d is listed twice", e.ID)
		}
		c.containers[e.ID] = e
	}
	for _, e := range doc.VMs {
		if _, dup := c.vms[e.ID]; dup {
			return nil, fmt.Errorf("vm %d is listed twice", e.ID)
		}
		c.vms[e.ID] = e
	}

	for _, s := range doc.Checks.Services {
		t, err := checkTarget("service", s.Name, s)
		if err != nil {
			return nil, err
		}
		c.checks.Services = append(c.checks.Services, ServiceCheck{Name: s.Name, Target: t})
	}
	for _, b := range doc.Checks.Binaries {
		t, err := checkTarget("binary", b.Name, b)
		if err != nil {
			return nil, err
		}
		c.checks.Binaries = append(c.checks.Binaries, BinaryCheck{Name: b.Name, Target: t})
	}
	for _, f := range doc.Checks.Configs {
		t, err := checkTarget("config", f.Path, f)
		if err != nil {
			return nil, err
		}
		c.checks.Configs = append(c.checks.Configs, ConfigCheck{Path: f.Path, Target: t})
	}
	return c, nil
}

func checkTarget(kind, subject string, d checkDoc) (target.Target, error) {
	if subject == "" {
		return target.Target{}, fmt.Errorf("%s check on %q has no name or path", kind, d.Target)
	}
	t, err := target.Parse(d.Target)
	if err != nil {
		return target.Target{}, fmt.Errorf("%s check %q: bad target %q", kind, subject, d.Target)
	}
	return t, nil
}

// Container returns the entry for a container id.
func (c *Catalog) Container(id uint32) (Entry, bool) {
	e, ok := c.containers[id]
	return e, ok
}

// VM returns the entry for a VM id.
func (c *Catalog) VM(id uint32) (Entry, bool) {
	e, ok := c.vms[id]
	return e, ok
}

// Category returns the category whose range holds id, or "Other".
// The first matching range wins.
func (c *Catalog) Category(id uint32) string {
	for _, r := range c.ranges {
		if id >= r.From && id <= r.To {
			return r.Name
		}
	}
	return OtherCategory
}

// DescribeContainer returns the catalog entry for id, filled with generic
// values when there is none. Catalog fields always win over the generic ones.
func (c *Catalog) DescribeContainer(id uint32) Entry {
	e, ok := c.containers[id]
	if !ok {
		return Entry{
			ID:          id,
			Name:        fmt.Sprintf("Container %d", id),
			Description: "Unknown container",
			Category:    c.Category(id),
		}
	}
	if e.Category == "" {
		e.Category = c.Category(id)
	}
	return e
}

// DescribeVM is DescribeContainer for VMs. VMs with no category get
// "Virtual Machines".
func (c *Catalog) DescribeVM(id uint32) Entry {
	e, ok := c.vms[id]
	if !ok {
		return Entry{
			ID:          id,
			Name:        fmt.Sprintf("VM %d", id),
			Description: "Unknown virtual machine",
			Category:    VMCategory,
		}
	}
	if e.Category == "" {
		e.Category = VMCategory
	}
	return e
}

// Describe dispatches on the target kind. The host has no entry.
func (c *Catalog) Describe(t target.Target) (Entry, bool) {
	switch t.Kind {
	case target.KindContainer:
		return c.DescribeContainer(t.ID), true
	case target.KindVM:
		return c.DescribeVM(t.ID), true
	default:
		return Entry{}, false
	}
}

// Checks returns the maintenance check lists.
func (c *Catalog) Checks() Checks {
	return Checks{
		Services: append([]ServiceCheck(nil), c.checks.Services...),
		Binaries: append([]BinaryCheck(nil), c.checks.Binaries...),
		Configs:  append([]ConfigCheck(nil), c.checks.Configs...),
	}
}

// Dump returns the YAML of the built-in catalog, as a starting point for a
// custom one.
func Dump() []byte {
	return append([]byte(nil), defaultCatalog...)
}
