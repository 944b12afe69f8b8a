package sys

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownContext returns a context cancelled on the first SIGINT or SIGTERM.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// WakeChannel delivers a value for every SIGUSR1 until stop is called. Signals that
// arrive while a previous one is still pending are coalesced.
func WakeChannel() (<-chan struct{}, func()) {
	sig := make(chan os.Signal, 1)
	wake := make(chan struct{}, 1)
	done := make(chan struct{})
	signal.Notify(sig, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sig:
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()
	return wake, func() {
		signal.Stop(sig)
		close(done)
	}
}
