package harness

import (
	"time"

	"code.cloudfoundry.org/devicetest/transport"
)

// Option is used to configure a new Harness.
type Option func(*Harness)

// WithPollTimeout sets how long the worker waits on its socket per poll.
// It bounds how quickly the worker observes StopWorker.
func WithPollTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.pollTimeout = d
	}
}

// WithIdleInterval sets how long the worker sleeps after an empty poll.
func WithIdleInterval(d time.Duration) Option {
	return func(h *Harness) {
		h.idleInterval = d
	}
}

// WithWaitInterval sets how often SleepUntilWorkerReceives reads the
// counter.
func WithWaitInterval(d time.Duration) Option {
	return func(h *Harness) {
		h.waitInterval = d
	}
}

// WithContextOptions configures the messaging context created by
// Initialize.
func WithContextOptions(opts ...transport.ContextOption) Option {
	return func(h *Harness) {
		h.contextOpts = append(h.contextOpts, opts...)
	}
}

// WithHealthRegistrar reports the workerReceivedCount, activeClients and
// clientFailures gauges to r.
func WithHealthRegistrar(r HealthRegistrar) Option {
	return func(h *Harness) {
		h.health = r
	}
}

// WithClientErrorHandler sets the function client failures are handed to.
// It is called from the client goroutine. The default logs the failure.
func WithClientErrorHandler(f func(id int, err error)) Option {
	return func(h *Harness) {
		h.clientErr = f
	}
}
