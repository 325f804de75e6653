package main

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

func init() {
	os.Setenv("GOTRACEBACK", "crash")

	go func() {
		for {
			time.Sleep(time.Minute * 10)
			runtime.GC()
		}
	}()
}

func main() {
	installHelp()
	app := NewApp()

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "See log for detail reason", err)
		os.Exit(1)
	}
}
