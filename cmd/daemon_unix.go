//go:build !windows
// +build !windows

package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	gd "github.com/sevlyar/go-daemon"

	"github.com/lambertxiao/go-formstream/pkg/config"
	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
	"github.com/lambertxiao/go-formstream/pkg/utils"
)

var waitfor_sig os.Signal

func notify_process(pid int, si os.Signal) {
	p, err := os.FindProcess(pid)
	if err != nil {
		logg.Dlog.Errorf("notify_process %v, %v", pid, err)
		return
	}
	defer p.Release()
	err = p.Signal(si)
	if err != nil {
		logg.Dlog.Errorf("notify_process %v, %v", pid, err)
		return
	}
}

// runJob runs start and then job. Without Foreground both run in a forked
// child; the parent returns once start has succeeded or failed there.
func runJob(cfg *config.Config, start func() error, job func(ctx context.Context) error) error {
	if !cfg.Foreground {
		ctx := new(gd.Context)
		d, err := ctx.Reborn()
		if err != nil {
			fmt.Println("error to fork child process", err)
			return err
		}

		var waitfor sync.WaitGroup
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
		waitfor.Add(1)
		go func() {
			waitfor_sig = <-sigs
			waitfor.Done()
		}()

		if d != nil {
			// parent process
			waitfor.Wait()

			if waitfor_sig == syscall.SIGUSR1 {
				fmt.Fprintf(os.Stderr, "started in background, pid %d\n", d.Pid)
				return nil
			}
			fmt.Println("Start Error, see log for detail")
			return types.EINVAL
		}

		// child process, release its own waiter first
		notify_process(os.Getpid(), syscall.SIGUSR1)
		waitfor.Wait()
		signal.Reset(syscall.SIGUSR1, syscall.SIGUSR2)
		defer ctx.Release()

		if err := utils.RedirectStderr(logDir(cfg), types.PANIC_LOG_PREFIX, types.PANIC_LOG_SUFFIX); err != nil {
			notify_process(os.Getppid(), syscall.SIGUSR2)
			return err
		}
	}

	if err := start(); err != nil {
		if !cfg.Foreground {
			notify_process(os.Getppid(), syscall.SIGUSR2)
		}
		logg.Dlog.Errorf("start error, %v", err)
		return err
	}
	if !cfg.Foreground {
		notify_process(os.Getppid(), syscall.SIGUSR1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	RegisterSignalHandler(cancel)
	startPprof(cfg.Pprof_port)

	err := job(ctx)
	if err != nil {
		logg.Dlog.Errorf("job error, %v", err)
		return err
	}
	logg.Dlog.Infof("succ exit")
	return nil
}

// startPprof serves the default mux on localhost, moving down one port each
// time the port is taken.
func startPprof(port int) {
	if port <= 0 {
		return
	}
	go func() {
		for ; port > 0; port-- {
			err := http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), nil)
			if err == nil {
				break
			}
			logg.Dlog.Error(err)
		}
	}()
}

func logDir(cfg *config.Config) string {
	if cfg.LogDir != "" {
		return cfg.LogDir
	}
	homedir := os.Getenv("HOME")
	if homedir == "" {
		return os.TempDir()
	}
	return filepath.Join(homedir, ".formstream")
}

// RegisterSignalHandler cancels the running upload on SIGINT or SIGTERM.
func RegisterSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s := <-sigs
		logg.Dlog.Infof("got %v, cancel upload", s)
		cancel()
	}()
}
