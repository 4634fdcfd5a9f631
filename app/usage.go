package app

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// usageSample is one reading of process resource usage
type usageSample struct {
	Heap    uint64
	PeakRSS uint64
	CPU     float64
}

// String renders the sample for header lines
func (u usageSample) String() string {
	return fmt.Sprintf("Heap %s • Peak %s • CPU %5.1f%%", formatBytes(u.Heap), formatBytes(u.PeakRSS), u.CPU)
}

// usageSampler turns successive rusage readings into CPU percentages
type usageSampler struct {
	mu       sync.Mutex
	lastWall time.Time
	lastProc time.Duration
	primed   bool
}

var processUsage usageSampler

func (s *usageSampler) sample() usageSample {
	var rusage unix.Rusage
	_ = unix.Getrusage(unix.RUSAGE_SELF, &rusage)
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	out := usageSample{
		Heap:    ms.HeapAlloc,
		PeakRSS: uint64(rusage.Maxrss) * 1024, // KB to bytes
	}

	nowWall := time.Now()
	user := time.Duration(rusage.Utime.Sec)*time.Second + time.Duration(rusage.Utime.Usec)*time.Microsecond
	sys := time.Duration(rusage.Stime.Sec)*time.Second + time.Duration(rusage.Stime.Usec)*time.Microsecond
	nowProc := user + sys

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primed {
		if wallDiff := nowWall.Sub(s.lastWall); wallDiff > 0 {
			out.CPU = max((nowProc-s.lastProc).Seconds()/wallDiff.Seconds()*100, 0)
		}
	}
	s.lastWall = nowWall
	s.lastProc = nowProc
	s.primed = true
	return out
}

// logUsage records peak memory after a run
func logUsage(logger *log.Logger) {
	u := processUsage.sample()
	logger.Debug("resource usage", "heap", formatBytes(u.Heap), "peak_rss", formatBytes(u.PeakRSS))
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
