//go:build !windows && !plan9
// +build !windows,!plan9

package signalmanager

import (
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
)

func RegisterKillSignalChannel() chan os.Signal {
	killChan := make(chan os.Signal, 1)
	signal.Notify(killChan, os.Interrupt, syscall.SIGTERM)

	return killChan
}

func RegisterGoRoutineDumpSignalChannel() chan os.Signal {
	threadDumpChan := make(chan os.Signal, 1)
	signal.Notify(threadDumpChan, syscall.SIGUSR1)

	return threadDumpChan
}

func DumpGoRoutine() {
	DumpGoRoutineTo(os.Stdout)
}

// DumpGoRoutineTo writes the stacks of all goroutines to w.
func DumpGoRoutineTo(w io.Writer) {
	goRoutineProfiles := pprof.Lookup("goroutine")
	goRoutineProfiles.WriteTo(w, 2)
}
