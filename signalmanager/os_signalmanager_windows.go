//go:build windows
// +build windows

package signalmanager

import (
	"io"
	"os"
	"os/signal"
)

func RegisterKillSignalChannel() chan os.Signal {
	killChan := make(chan os.Signal, 1)
	signal.Notify(killChan, os.Interrupt)

	return killChan
}

func RegisterGoRoutineDumpSignalChannel() chan os.Signal {
	threadDumpChan := make(chan os.Signal, 1)
	return threadDumpChan
}

func DumpGoRoutine() {
	// no op
}

func DumpGoRoutineTo(w io.Writer) {
	// no op
}
