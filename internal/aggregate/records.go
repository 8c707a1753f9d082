package aggregate

import (
	"time"

	"github.com/rileyhilliard/pxd/internal/parse"
	"github.com/rileyhilliard/pxd/internal/target"
)

// StatusRecord describes one container or VM. Fields that could not be
// fetched hold zero values, or "Unknown" for strings.
type StatusRecord struct {
	ID          uint32      `json:"id"`
	Kind        target.Kind `json:"kind"`
	Name        string      `json:"name"`
	Status      parse.State `json:"status"`
	Uptime      string      `json:"uptime"`
	CPUUsage    float64     `json:"cpu_usage"`    // percent of allotted cores
	MemoryUsage float64     `json:"memory_usage"` // percent of allotted memory
	MemoryMB    int64       `json:"memory_mb"`
	Cores       int         `json:"cores"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	WebUI       string      `json:"web_ui_url,omitempty"`
	OSInfo      string      `json:"os_info,omitempty"`
}

// Target returns the target the record describes.
func (r StatusRecord) Target() target.Target {
	return target.Target{Kind: r.Kind, ID: r.ID}
}

// Service states.
const (
	ServiceActive   = "Active"
	ServiceInactive = "Inactive"
)

// ServiceRecord is the state of one systemd unit.
type ServiceRecord struct {
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	Active      bool          `json:"active"`
	Enabled     bool          `json:"enabled"`
	Description string        `json:"description"`
	Target      target.Target `json:"target"`
}

// Sentinels for binaries that were not found.
const (
	NotFound = "Not found"
	NotApply = "N/A"
)

// BinaryRecord is the result of looking for an executable.
type BinaryRecord struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Version    string        `json:"version"`
	Exists     bool          `json:"exists"`
	Executable bool          `json:"executable"`
	Target     target.Target `json:"target"`
}

// ConfigRecord is the result of inspecting a file. Modified is formatted as
// "2006-01-02 15:04:05" in UTC, "Unknown" when stat failed, or "N/A" when
// the file doesn't exist.
type ConfigRecord struct {
	Name          string        `json:"name"`
	Path          string        `json:"path"`
	Exists        bool          `json:"exists"`
	Readable      bool          `json:"readable"`
	Writable      bool          `json:"writable"`
	SizeBytes     int64         `json:"size"`
	Modified      string        `json:"modified"`
	ModifiedEpoch int64         `json:"modified_epoch,omitempty"`
	Target        target.Target `json:"target"`
}

// Network status values in HostInfo.
const (
	NetworkConnected = "Connected"
	NetworkUnknown   = "Unknown"
)

// HostInfo is the health summary of the virtualization host.
type HostInfo struct {
	DiskUsage     float64   `json:"disk_usage"`
	MemoryUsage   float64   `json:"memory_usage"`
	CPULoad       float64   `json:"cpu_load"`
	NetworkStatus string    `json:"network_status"`
	Uptime        string    `json:"uptime"`
	PVEVersion    string    `json:"pve_version"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// unknownHostInfo is what HostInfo degrades to when the host can't be read.
func unknownHostInfo(at time.Time) HostInfo {
	return HostInfo{
		NetworkStatus: NetworkUnknown,
		Uptime:        string(parse.Unknown),
		PVEVersion:    string(parse.Unknown),
		GeneratedAt:   at,
	}
}

// Performance is a point-in-time resource snapshot of the host.
type Performance struct {
	CPU         parse.CPUMetrics         `json:"cpu"`
	Memory      parse.MemoryMetrics      `json:"memory"`
	Network     []parse.NetworkInterface `json:"network"`
	Storage     []parse.StoragePool      `json:"storage"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// SystemOverview covers every discovered container and VM. Targets whose
// status could not be fetched are left out and explained in Warnings.
type SystemOverview struct {
	Containers        []StatusRecord `json:"containers"`
	VMs               []StatusRecord `json:"vms"`
	TotalContainers   int            `json:"total_containers"`
	RunningContainers int            `json:"running_containers"`
	TotalVMs          int            `json:"total_vms"`
	RunningVMs        int            `json:"running_vms"`
	Warnings          []string       `json:"warnings"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// MaintenanceOverview covers the catalog's service, binary and config
// checks plus host health. Failed checks are left out and explained in
// Warnings.
type MaintenanceOverview struct {
	Services     []ServiceRecord `json:"services"`
	Binaries     []BinaryRecord  `json:"binaries"`
	Configs      []ConfigRecord  `json:"configs"`
	SystemHealth HostInfo        `json:"system_health"`
	Warnings     []string        `json:"warnings"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// ControlResult reports a power action.
type ControlResult struct {
	Target  target.Target `json:"target"`
	Action  string        `json:"action"`
	Message string        `json:"message"`
}

// WriteResult reports a config write. Backup is empty when there was no
// previous file to copy.
type WriteResult struct {
	Path    string        `json:"path"`
	Backup  string        `json:"backup,omitempty"`
	Target  target.Target `json:"target"`
	Message string        `json:"message"`
}
