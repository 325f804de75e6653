//go:build !windows
// +build !windows

package utils

import (
	"bytes"
	"os"
	"strconv"
	"syscall"
)

type ProcessUsage struct {
	CPUSeconds float64 // user + system
	Virt       uint64
	RSS        uint64
}

// GetProcessUsage reads /proc/self/stat for memory and falls back to the
// rusage high-water mark where procfs is missing.
func GetProcessUsage() ProcessUsage {
	var ru syscall.Rusage
	_ = syscall.Getrusage(syscall.RUSAGE_SELF, &ru)

	u := ProcessUsage{
		CPUSeconds: tvSeconds(ru.Utime) + tvSeconds(ru.Stime),
		Virt:       uint64(ru.Maxrss),
		RSS:        uint64(ru.Maxrss),
	}

	stat, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return u
	}
	stats := bytes.Split(stat, []byte(" "))
	if len(stats) >= 24 {
		u.Virt, _ = strconv.ParseUint(string(stats[22]), 10, 64)
		pages, _ := strconv.ParseUint(string(stats[23]), 10, 64)
		u.RSS = pages * uint64(os.Getpagesize())
	}
	return u
}

func tvSeconds(tv syscall.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}
