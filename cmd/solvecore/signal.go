package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sdboyer/constext"
)

// interruptContext returns a context that cancels with context.Canceled
// when the process receives SIGINT, joined with base via constext.Cons so
// either base's own cancellation or the signal fires the returned
// context's Done channel — mirroring the teacher's SourceMgr signal
// handling (source_manager.go UseDefaultSignalHandling/HandleSignals),
// generalized from a one-shot os.Interrupt channel to a composable
// context the solve/execute path already threads everywhere.
//
// The returned stop func deregisters the signal handler; callers should
// defer it once the interruptible region is done.
func interruptContext(base context.Context) (ctx context.Context, stop func()) {
	sigCtx, cancel := context.WithCancel(base)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-done:
		}
	}()

	joined, _ := constext.Cons(sigCtx, base)
	return joined, func() {
		close(done)
		signal.Stop(sigCh)
		cancel()
	}
}
