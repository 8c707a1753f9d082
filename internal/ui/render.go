package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/pxd/internal/aggregate"
)

const barWidth = 20

// Bytes formats a byte count in IEC units, "-" for unknown sizes.
func Bytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func section(title string, body string) string {
	if body == "" {
		return ""
	}
	return TitleStyle().Render(title) + "\n" + body + "\n"
}

func generated(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return MutedStyle().Render("generated "+at.Local().Format("2006-01-02 15:04:05")) + "\n"
}

// Warnings renders one line per warning, or nothing.
func Warnings(ws []string) string {
	if len(ws) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, w := range ws {
		sb.WriteString(WarningStyle().Render(SymbolWarning + " " + w))
		sb.WriteString("\n")
	}
	return sb.String()
}

func statusRows(records []aggregate.StatusRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			StateSymbol(r.Status),
			strconv.FormatUint(uint64(r.ID), 10),
			r.Name,
			string(r.Status),
			r.Uptime,
			percent(r.CPUUsage),
			percent(r.MemoryUsage),
			r.Category,
		})
	}
	return rows
}

var statusHeaders = []string{"", "ID", "Name", "Status", "Uptime", "CPU", "Mem", "Category"}

// SystemOverview renders containers and VMs as two tables followed by
// any warnings.
func SystemOverview(o aggregate.SystemOverview) string {
	var sb strings.Builder
	sb.WriteString(section(
		fmt.Sprintf("Containers (%d/%d running)", o.RunningContainers, o.TotalContainers),
		Table(statusHeaders, statusRows(o.Containers))))
	sb.WriteString(section(
		fmt.Sprintf("Virtual machines (%d/%d running)", o.RunningVMs, o.TotalVMs),
		Table(statusHeaders, statusRows(o.VMs))))
	if o.TotalContainers == 0 && o.TotalVMs == 0 {
		sb.WriteString(MutedStyle().Render("No containers or VMs found") + "\n")
	}
	sb.WriteString(Warnings(o.Warnings))
	sb.WriteString(generated(o.GeneratedAt))
	return sb.String()
}

// Status renders a single target's record.
func Status(r aggregate.StatusRecord) string {
	pairs := [][2]string{
		{"Target", r.Target().String()},
		{"Name", r.Name},
		{"Status", StateSymbol(r.Status) + " " + string(r.Status)},
		{"Uptime", r.Uptime},
		{"CPU", UsageBar(r.CPUUsage, barWidth)},
		{"Memory", UsageBar(r.MemoryUsage, barWidth)},
	}
	if r.MemoryMB > 0 {
		pairs = append(pairs, [2]string{"Allotted", fmt.Sprintf("%d MB, %d cores", r.MemoryMB, r.Cores)})
	}
	pairs = append(pairs,
		[2]string{"Category", r.Category},
		[2]string{"Description", r.Description})
	if r.WebUI != "" {
		pairs = append(pairs, [2]string{"Web UI", r.WebUI})
	}
	if r.OSInfo != "" {
		pairs = append(pairs, [2]string{"OS", r.OSInfo})
	}
	return KeyValues(pairs) + "\n"
}

// HostInfo renders the host health summary.
func HostInfo(h aggregate.HostInfo) string {
	network := Check(h.NetworkStatus == aggregate.NetworkConnected) + " " + h.NetworkStatus
	return KeyValues([][2]string{
		{"Network", network},
		{"Disk /", UsageBar(h.DiskUsage, barWidth)},
		{"Memory", UsageBar(h.MemoryUsage, barWidth)},
		{"Load", strconv.FormatFloat(h.CPULoad, 'f', 2, 64)},
		{"Uptime", h.Uptime},
		{"Version", h.PVEVersion},
	}) + "\n" + generated(h.GeneratedAt)
}

// Performance renders the CPU, memory, network and storage snapshot.
func Performance(p aggregate.Performance) string {
	var sb strings.Builder

	load := p.CPU.LoadAvg
	sb.WriteString(KeyValues([][2]string{
		{"CPU", UsageBar(p.CPU.Percent, barWidth)},
		{"Cores", strconv.Itoa(p.CPU.Cores)},
		{"Load", fmt.Sprintf("%.2f %.2f %.2f", load[0], load[1], load[2])},
		{"Memory", UsageBar(p.Memory.UsedPercent(), barWidth)},
		{"", fmt.Sprintf("%s used of %s, %s cached", Bytes(p.Memory.UsedBytes), Bytes(p.Memory.TotalBytes), Bytes(p.Memory.Cached))},
	}))
	sb.WriteString("\n")

	netRows := make([][]string, 0, len(p.Network))
	for _, n := range p.Network {
		netRows = append(netRows, []string{
			n.Name,
			Bytes(n.BytesIn),
			Bytes(n.BytesOut),
			humanize.Comma(n.PacketsIn),
			humanize.Comma(n.PacketsOut),
		})
	}
	sb.WriteString(section("Network", Table([]string{"Interface", "In", "Out", "Packets in", "Packets out"}, netRows)))

	storeRows := make([][]string, 0, len(p.Storage))
	for _, s := range p.Storage {
		storeRows = append(storeRows, []string{
			s.Name,
			s.Type,
			s.Status,
			Bytes(s.UsedBytes) + " / " + Bytes(s.TotalBytes),
			UsageBar(s.UsedPercent, 10),
		})
	}
	sb.WriteString(section("Storage", Table([]string{"Pool", "Type", "Status", "Used", "Usage"}, storeRows)))
	sb.WriteString(generated(p.GeneratedAt))
	return sb.String()
}

// Service renders one systemd unit.
func Service(s aggregate.ServiceRecord) string {
	return KeyValues([][2]string{
		{"Service", s.Name},
		{"Target", s.Target.String()},
		{"Status", Check(s.Active) + " " + s.Status},
		{"Enabled", strconv.FormatBool(s.Enabled)},
	}) + "\n"
}

// Binary renders a binary lookup.
func Binary(b aggregate.BinaryRecord) string {
	return KeyValues([][2]string{
		{"Binary", b.Name},
		{"Target", b.Target.String()},
		{"Found", Check(b.Exists)},
		{"Path", b.Path},
		{"Version", b.Version},
	}) + "\n"
}

// Config renders a config file check.
func Config(c aggregate.ConfigRecord) string {
	size := "-"
	if c.Exists {
		size = Bytes(c.SizeBytes)
	}
	return KeyValues([][2]string{
		{"Path", c.Path},
		{"Target", c.Target.String()},
		{"Exists", Check(c.Exists)},
		{"Readable", Check(c.Readable)},
		{"Writable", Check(c.Writable)},
		{"Size", size},
		{"Modified", c.Modified},
	}) + "\n"
}

// Maintenance renders the service, binary and config checks with the
// host health summary.
func Maintenance(m aggregate.MaintenanceOverview) string {
	var sb strings.Builder

	svcRows := make([][]string, 0, len(m.Services))
	for _, s := range m.Services {
		svcRows = append(svcRows, []string{Check(s.Active), s.Name, s.Target.String(), s.Status, strconv.FormatBool(s.Enabled)})
	}
	sb.WriteString(section("Services", Table([]string{"", "Service", "Target", "Status", "Enabled"}, svcRows)))

	binRows := make([][]string, 0, len(m.Binaries))
	for _, b := range m.Binaries {
		binRows = append(binRows, []string{Check(b.Exists), b.Name, b.Target.String(), b.Path, b.Version})
	}
	sb.WriteString(section("Binaries", Table([]string{"", "Binary", "Target", "Path", "Version"}, binRows)))

	cfgRows := make([][]string, 0, len(m.Configs))
	for _, c := range m.Configs {
		size := "-"
		if c.Exists {
			size = Bytes(c.SizeBytes)
		}
		cfgRows = append(cfgRows, []string{Check(c.Exists), c.Name, c.Target.String(), c.Path, size, c.Modified})
	}
	sb.WriteString(section("Configs", Table([]string{"", "Name", "Target", "Path", "Size", "Modified"}, cfgRows)))

	sb.WriteString(section("Host", HostInfo(m.SystemHealth)))
	sb.WriteString(Warnings(m.Warnings))
	return sb.String()
}
