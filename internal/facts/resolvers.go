package facts

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Built-in resolver TTLs. Values that cannot change while the machine is up
// cache forever; the rest use the configured default.
const (
	ttlForever int64 = -1
	ttlNever   int64 = 0
)

// DefaultRegistry returns a registry with the built-in resolvers.
// defaultTTL (seconds) applies to facts that can drift while the process
// is not looking. Platform-specific facts register only where they can
// actually resolve.
func DefaultRegistry(defaultTTL int64) *Registry {
	r := NewRegistry()
	_ = r.Register(hostnameResolver{ttl: defaultTTL})
	_ = r.Register(osResolver{})
	_ = r.Register(timezoneResolver{ttl: defaultTTL})
	if runtime.GOOS == "linux" {
		_ = r.Register(kernelResolver{ttl: defaultTTL})
		_ = r.Register(uptimeResolver{})
		_ = r.Register(memoryResolver{ttl: defaultTTL})
	}
	return r
}

type hostnameResolver struct{ ttl int64 }

func (hostnameResolver) Name() string { return "hostname" }

func (r hostnameResolver) TTL() int64 { return r.ttl }

func (hostnameResolver) Resolve(_ context.Context) (Value, error) {
	name, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return String(name), nil
}

// osResolver reports the OS family and architecture. Fixed for the lifetime
// of the binary, so it caches forever.
type osResolver struct{}

func (osResolver) Name() string { return "os" }

func (osResolver) TTL() int64 { return ttlForever }

func (osResolver) Resolve(_ context.Context) (Value, error) {
	return Mapping{
		"family": String(runtime.GOOS),
		"arch":   String(runtime.GOARCH),
	}, nil
}

type timezoneResolver struct{ ttl int64 }

func (timezoneResolver) Name() string { return "timezone" }

func (r timezoneResolver) TTL() int64 { return r.ttl }

func (timezoneResolver) Resolve(_ context.Context) (Value, error) {
	zone, offset := time.Now().Zone()
	return Mapping{
		"name":           String(zone),
		"offset_seconds": Int(offset),
	}, nil
}

// kernelResolver reads the kernel release and, when it parses as a semantic
// version, breaks it into major/minor components.
type kernelResolver struct{ ttl int64 }

func (kernelResolver) Name() string { return "kernel" }

func (r kernelResolver) TTL() int64 { return r.ttl }

func (kernelResolver) Resolve(_ context.Context) (Value, error) {
	raw, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel release: %w", err)
	}
	release := strings.TrimSpace(string(raw))

	m := Mapping{"release": String(release)}
	if ver, parseErr := semver.NewVersion(release); parseErr == nil {
		m["version"] = String(fmt.Sprintf("%d.%d.%d", ver.Major(), ver.Minor(), ver.Patch()))
		m["major"] = Int(ver.Major())
		m["minor"] = Int(ver.Minor())
	}
	return m, nil
}

// uptimeResolver never caches: a cached uptime is stale the moment it is
// stored.
type uptimeResolver struct{}

func (uptimeResolver) Name() string { return "uptime" }

func (uptimeResolver) TTL() int64 { return ttlNever }

func (uptimeResolver) Resolve(_ context.Context) (Value, error) {
	raw, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return nil, fmt.Errorf("failed to read uptime: %w", err)
	}

	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return nil, fmt.Errorf("unexpected /proc/uptime content %q", string(raw))
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected /proc/uptime content %q: %w", string(raw), err)
	}

	return Mapping{
		"seconds": Int(int64(seconds)),
		"human":   String(humanDuration(int64(seconds))),
	}, nil
}

// humanDuration renders a second count compactly with at most two units,
// e.g. "30s", "5m", "2h30m", "3d2h".
func humanDuration(seconds int64) string {
	const (
		minute = 60
		hour   = 60 * minute
		day    = 24 * hour
	)

	switch {
	case seconds < minute:
		return fmt.Sprintf("%ds", seconds)
	case seconds < hour:
		return fmt.Sprintf("%dm", seconds/minute)
	case seconds < day:
		if rem := (seconds % hour) / minute; rem > 0 {
			return fmt.Sprintf("%dh%dm", seconds/hour, rem)
		}
		return fmt.Sprintf("%dh", seconds/hour)
	default:
		if rem := (seconds % day) / hour; rem > 0 {
			return fmt.Sprintf("%dd%dh", seconds/day, rem)
		}
		return fmt.Sprintf("%dd", seconds/day)
	}
}

type memoryResolver struct{ ttl int64 }

func (memoryResolver) Name() string { return "memory" }

func (r memoryResolver) TTL() int64 { return r.ttl }

func (memoryResolver) Resolve(_ context.Context) (Value, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return nil, fmt.Errorf("failed to read meminfo: %w", err)
	}
	defer func() { _ = f.Close() }()

	wanted := map[string]string{
		"MemTotal":     "total_kb",
		"MemFree":      "free_kb",
		"MemAvailable": "available_kb",
	}

	m := Mapping{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, rest, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		key, ok := wanted[name]
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if kb, parseErr := strconv.ParseInt(fields[0], 10, 64); parseErr == nil {
			m[key] = Int(kb)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
