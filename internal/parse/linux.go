package parse

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by the /proc parsers when input can't be used.
var ErrMalformed = errors.New("malformed output")

// SectionSeparator splits the output of batched commands.
const SectionSeparator = "---"

// SplitSections splits batched command output into sections separated by
// a line holding only "---". Sections are trimmed.
func SplitSections(output string) []string {
	var sections []string
	var cur strings.Builder
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimRight(line, "\r") == SectionSeparator {
			sections = append(sections, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	return append(sections, strings.TrimSpace(cur.String()))
}

// Section returns sections[i], or "" when there aren't that many.
func Section(sections []string, i int) string {
	if i < 0 || i >= len(sections) {
		return ""
	}
	return sections[i]
}

// CPUMetrics holds processor usage.
type CPUMetrics struct {
	Percent float64    `json:"percent"`
	Cores   int        `json:"cores"`
	LoadAvg [3]float64 `json:"load_avg"`
}

// MemoryMetrics holds memory usage in bytes.
type MemoryMetrics struct {
	TotalBytes int64 `json:"total"`
	UsedBytes  int64 `json:"used"`
	Available  int64 `json:"available"`
	Cached     int64 `json:"cached"`
}

// UsedPercent is used memory as a share of total, 0 when total is unknown.
func (m MemoryMetrics) UsedPercent() float64 {
	if m.TotalBytes <= 0 {
		return 0
	}
	return float64(m.TotalBytes-m.Available) / float64(m.TotalBytes) * 100
}

// NetworkInterface holds counters for one interface.
type NetworkInterface struct {
	Name       string `json:"name"`
	BytesIn    int64  `json:"bytes_in"`
	BytesOut   int64  `json:"bytes_out"`
	PacketsIn  int64  `json:"packets_in"`
	PacketsOut int64  `json:"packets_out"`
}

// StoragePool is one line of `pvesm status`.
type StoragePool struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	TotalBytes  int64   `json:"total"`
	UsedBytes   int64   `json:"used"`
	Available   int64   `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// cpuSample is the aggregate "cpu " line of /proc/stat.
type cpuSample struct {
	total int64
	idle  int64
	cores int
}

func readCPUSample(procStat string) (cpuSample, error) {
	var s cpuSample
	found := false
	scanner := bufio.NewScanner(strings.NewReader(procStat))
	for scanner.Scan() {
		line := scanner.Text()

		// cpu0, cpu1, ...
		if strings.HasPrefix(line, "cpu") && len(line) > 3 && line[3] >= '0' && line[3] <= '9' {
			s.cores++
			continue
		}
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return s, fmt.Errorf("%w: /proc/stat cpu line %q", ErrMalformed, line)
		}
		// user nice system idle iowait irq softirq steal guest guest_nice
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseInt(fields[i], 10, 64)
			if err != nil {
				return s, fmt.Errorf("%w: cpu field %d: %v", ErrMalformed, i, err)
			}
			s.total += val
			if i == 4 || i == 5 {
				s.idle += val
			}
		}
		found = true
	}
	if err := scanner.Err(); err != nil {
		return s, fmt.Errorf("%w: scanning /proc/stat: %v", ErrMalformed, err)
	}
	if !found {
		return s, fmt.Errorf("%w: no aggregate cpu line in /proc/stat", ErrMalformed)
	}
	return s, nil
}

// ParseLinuxCPU computes average usage since boot from one /proc/stat
// sample, plus load averages from /proc/loadavg when given.
func ParseLinuxCPU(procStat, procLoadavg string) (*CPUMetrics, error) {
	s, err := readCPUSample(procStat)
	if err != nil {
		return nil, err
	}
	m := &CPUMetrics{Cores: s.cores}
	if s.total > 0 {
		m.Percent = float64(s.total-s.idle) / float64(s.total) * 100
	}
	if procLoadavg != "" {
		if m.LoadAvg, err = ParseLoadAvg(procLoadavg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ParseCPUDelta computes usage between two /proc/stat samples taken a short
// interval apart, which tracks the current load rather than the boot average.
func ParseCPUDelta(before, after, procLoadavg string) (*CPUMetrics, error) {
	s1, err := readCPUSample(before)
	if err != nil {
		return nil, err
	}
	s2, err := readCPUSample(after)
	if err != nil {
		return nil, err
	}

	m := &CPUMetrics{Cores: s2.cores}
	total := s2.total - s1.total
	idle := s2.idle - s1.idle
	if total > 0 && idle >= 0 && idle <= total {
		m.Percent = float64(total-idle) / float64(total) * 100
	}
	if procLoadavg != "" {
		if m.LoadAvg, err = ParseLoadAvg(procLoadavg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ParseLoadAvg reads the first three fields of /proc/loadavg.
func ParseLoadAvg(procLoadavg string) ([3]float64, error) {
	var out [3]float64
	fields := strings.Fields(strings.TrimSpace(procLoadavg))
	if len(fields) < 3 {
		return out, fmt.Errorf("%w: /proc/loadavg %q", ErrMalformed, procLoadavg)
	}
	for i := 0; i < 3; i++ {
		val, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return out, fmt.Errorf("%w: loadavg field %d: %v", ErrMalformed, i, err)
		}
		out[i] = val
	}
	return out, nil
}

// ParseLinuxMemory parses /proc/meminfo. Values there are in kB.
func ParseLinuxMemory(procMeminfo string) (*MemoryMetrics, error) {
	var memTotal, memFree, memAvailable, buffers, cached int64
	foundFields := 0

	scanner := bufio.NewScanner(strings.NewReader(procMeminfo))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSuffix(parts[0], ":")
		val, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		valBytes := val * 1024

		switch key {
		case "MemTotal":
			memTotal = valBytes
			foundFields++
		case "MemFree":
			memFree = valBytes
			foundFields++
		case "MemAvailable":
			memAvailable = valBytes
			foundFields++
		case "Buffers":
			buffers = valBytes
			foundFields++
		case "Cached":
			cached = valBytes
			foundFields++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning /proc/meminfo: %v", ErrMalformed, err)
	}
	if foundFields < 3 {
		return nil, fmt.Errorf("%w: insufficient memory info in /proc/meminfo", ErrMalformed)
	}

	return &MemoryMetrics{
		TotalBytes: memTotal,
		Available:  memAvailable,
		Cached:     cached + buffers,
		UsedBytes:  memTotal - memFree - buffers - cached,
	}, nil
}

// ParseLinuxNetwork parses /proc/net/dev. Loopback is kept; callers filter.
func ParseLinuxNetwork(procNetDev string) ([]NetworkInterface, error) {
	interfaces := []NetworkInterface{}
	scanner := bufio.NewScanner(strings.NewReader(procNetDev))

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		// two header lines
		if lineNum <= 2 {
			continue
		}

		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		fields := strings.Fields(rest)
		// 8 receive + 8 transmit
		if len(fields) < 16 {
			continue
		}

		var vals [4]int64
		for i, idx := range []int{0, 1, 8, 9} {
			v, err := strconv.ParseInt(fields[idx], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s field %d: %v", ErrMalformed, name, idx, err)
			}
			vals[i] = v
		}

		interfaces = append(interfaces, NetworkInterface{
			Name:       name,
			BytesIn:    vals[0],
			PacketsIn:  vals[1],
			BytesOut:   vals[2],
			PacketsOut: vals[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning /proc/net/dev: %v", ErrMalformed, err)
	}
	return interfaces, nil
}

// ParseUptimeSeconds reads the first field of /proc/uptime.
func ParseUptimeSeconds(procUptime string) (int64, error) {
	fields := strings.Fields(procUptime)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty /proc/uptime", ErrMalformed)
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%w: /proc/uptime %q", ErrMalformed, procUptime)
	}
	return int64(secs), nil
}

// FormatUptime renders seconds as "3d 4h 12m", dropping leading zero units.
// Zero or negative input is Unknown.
func FormatUptime(seconds int64) string {
	if seconds <= 0 {
		return string(Unknown)
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// ParseDiskUsagePercent reads the capacity column of `df -P <path>`.
// Returns 0 when the output has no data line.
func ParseDiskUsagePercent(df string) float64 {
	lines := strings.Split(strings.TrimSpace(df), "\n")
	if len(lines) < 2 {
		return 0
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 5 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(fields[4], "%"), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseStorageListing parses `pvesm status`. Sizes there are in KiB.
// Inactive pools report "0" sizes and are kept with their status.
func ParseStorageListing(text string) []StoragePool {
	pools := []StoragePool{}
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return pools
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		pool := StoragePool{Name: fields[0], Type: fields[1], Status: fields[2]}
		pool.TotalBytes = kib(fields[3])
		pool.UsedBytes = kib(fields[4])
		pool.Available = kib(fields[5])
		if len(fields) > 6 {
			if v, err := strconv.ParseFloat(strings.TrimSuffix(fields[6], "%"), 64); err == nil {
				pool.UsedPercent = v
			}
		} else if pool.TotalBytes > 0 {
			pool.UsedPercent = float64(pool.UsedBytes) / float64(pool.TotalBytes) * 100
		}
		pools = append(pools, pool)
	}
	return pools
}

func kib(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v * 1024
}
