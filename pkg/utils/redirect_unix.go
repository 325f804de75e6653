//go:build !windows
// +build !windows

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// RedirectStderr points stderr at a timestamped file under dir/crashlog so
// panics of a detached process are kept, and stdout at /dev/null.
func RedirectStderr(dir, prefix, suffix string) error {
	logPath := RedirectPath(filepath.Join(dir, "crashlog"), prefix, suffix, time.Now())
	if err := os.MkdirAll(filepath.Dir(logPath), os.ModePerm); err != nil {
		return err
	}
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_SYNC, 0644)
	if err != nil {
		return err
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_APPEND|os.O_WRONLY, os.ModeAppend)
	if err != nil {
		return err
	}

	if err := syscall.Dup2(int(devNull.Fd()), syscall.Stdout); err != nil {
		return err
	}
	return syscall.Dup2(int(logFile.Fd()), syscall.Stderr)
}

func RedirectPath(dir, prefix, suffix string, t time.Time) string {
	filename := fmt.Sprintf("%s%d%02d%02d-%02d%02d%02d%s", prefix, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), suffix)
	return filepath.Join(dir, filename)
}
