// Package selfmetrics samples the process's own cgroup CPU/memory/disk/IO
// usage, the same way an ingestion probe would sample the host it runs on
// before shipping the numbers upstream as HEC metrics.
package selfmetrics

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Sampler tracks the deltas needed for rate-based measurements (CPU
// percent, IO throughput) across successive Sample calls. The zero value
// is ready to use; its first Sample call always reports ok=false, since a
// rate needs two points.
type Sampler struct {
	diskPath string

	lastCPU *cpuSample
	lastIO  *ioSample
}

// NewSampler returns a Sampler that resolves disk usage against the
// filesystem containing diskPath (e.g. the process's working directory).
func NewSampler(diskPath string) *Sampler {
	return &Sampler{diskPath: diskPath}
}

type cpuSample struct {
	usageUsec int64
	at        time.Time
}

type ioSample struct {
	readBytes  int64
	writeBytes int64
	at         time.Time
}

// Measurements are named CPU/memory/disk/IO gauges, ready to hand to
// hec.MultiMetric.Measurements. A nil map returned with ok=false means no
// measurement was possible yet (first call, or cgroup files unavailable).
func (s *Sampler) Sample() (measurements map[string]*float64, ok bool) {
	now := time.Now()

	usageUsec, err := readCPUUsageUsec()
	if err != nil {
		return nil, false
	}
	cores := readCPUCgroupCores()

	cur := &cpuSample{usageUsec: usageUsec, at: now}
	prev := s.lastCPU
	s.lastCPU = cur
	if prev == nil {
		return nil, false
	}
	deltaUsage := float64(cur.usageUsec-prev.usageUsec) / 1_000_000.0
	deltaTime := cur.at.Sub(prev.at).Seconds()
	if deltaTime <= 0 {
		return nil, false
	}
	cpuPct := (deltaUsage / deltaTime) * 100.0 / cores
	if cpuPct < 0 {
		cpuPct = 0
	}

	memCurrent, memTotal := readMemoryCgroup()
	diskUsed, diskTotal, diskFree := readDiskStats(s.diskPath)
	ioReadRate, ioWriteRate := s.readIORates(now)

	return floatMap(map[string]float64{
		"cpu_pct":            cpuPct,
		"mem_current_bytes":  float64(memCurrent),
		"mem_total_bytes":    float64(memTotal),
		"disk_used_bytes":    float64(diskUsed),
		"disk_total_bytes":   float64(diskTotal),
		"disk_free_bytes":    float64(diskFree),
		"io_read_bytes_sec":  float64(ioReadRate),
		"io_write_bytes_sec": float64(ioWriteRate),
	}), true
}

func floatMap(m map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

func readCPUUsageUsec() (int64, error) {
	data, err := os.ReadFile("/sys/fs/cgroup/cpu.stat")
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "usage_usec" {
			return strconv.ParseInt(fields[1], 10, 64)
		}
	}
	return 0, fmt.Errorf("usage_usec not found")
}

func readCPUCgroupCores() float64 {
	data, err := os.ReadFile("/sys/fs/cgroup/cpu.max")
	if err != nil {
		return float64(runtime.NumCPU())
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 || fields[0] == "max" {
		return float64(runtime.NumCPU())
	}
	quota, err1 := strconv.ParseFloat(fields[0], 64)
	period, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil || period <= 0 {
		return float64(runtime.NumCPU())
	}
	cores := quota / period
	if cores < 1 {
		return 1
	}
	return cores
}

func readMemoryCgroup() (current int64, total int64) {
	curBytes, err := os.ReadFile("/sys/fs/cgroup/memory.current")
	if err != nil {
		return 0, 0
	}
	current, _ = strconv.ParseInt(strings.TrimSpace(string(curBytes)), 10, 64)

	maxBytes, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return current, 0
	}
	maxStr := strings.TrimSpace(string(maxBytes))
	if maxStr == "max" {
		return current, 0
	}
	total, _ = strconv.ParseInt(maxStr, 10, 64)
	return current, total
}

func readDiskStats(path string) (used int64, total int64, free int64) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0
	}
	total = int64(stat.Blocks) * int64(stat.Bsize)
	free = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - free
	return used, total, free
}

func readProcSelfIO() (int64, int64) {
	data, err := os.ReadFile("/proc/self/io")
	if err != nil {
		return 0, 0
	}
	var readBytes, writeBytes int64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "read_bytes":
			readBytes, _ = strconv.ParseInt(fields[1], 10, 64)
		case "write_bytes":
			writeBytes, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}
	return readBytes, writeBytes
}

func (s *Sampler) readIORates(now time.Time) (int64, int64) {
	readBytes, writeBytes := readProcSelfIO()
	cur := &ioSample{readBytes: readBytes, writeBytes: writeBytes, at: now}
	prev := s.lastIO
	s.lastIO = cur
	if prev == nil {
		return 0, 0
	}
	seconds := cur.at.Sub(prev.at).Seconds()
	if seconds <= 0 {
		return 0, 0
	}
	readRate := int64(float64(cur.readBytes-prev.readBytes) / seconds)
	writeRate := int64(float64(cur.writeBytes-prev.writeBytes) / seconds)
	if readRate < 0 {
		readRate = 0
	}
	if writeRate < 0 {
		writeRate = 0
	}
	return readRate, writeRate
}
