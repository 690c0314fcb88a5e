//go:build unix

package fatal

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

var fatalSignals = []os.Signal{
	unix.SIGABRT,
	unix.SIGBUS,
	unix.SIGFPE,
	unix.SIGILL,
	unix.SIGSEGV,
	unix.SIGSYS,
}

func install(handler Handler) func() {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, fatalSignals...)

	go func() {
		for {
			select {
			case sig := <-ch:
				handler(reportFor(sig))
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func reportFor(sig os.Signal) Report {
	s, ok := sig.(unix.Signal)
	if !ok {
		return Report{Kind: "signal", Message: sig.String()}
	}
	return Report{Kind: unix.SignalName(s), Message: s.String()}
}
