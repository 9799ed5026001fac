package harness

import (
	"fmt"
	"log"
	"time"

	"code.cloudfoundry.org/devicetest/transport"
)

// StartClient runs one client in its own goroutine: it connects a client
// socket to the frontend, sleeps delay and then calls DoClient. Failures are
// handed to the client error handler and never reach the caller.
func (h *Harness) StartClient(id int, delay time.Duration) {
	ctx := h.Context()

	go func() {
		h.health.Inc("activeClients")
		defer h.health.Dec("activeClients")

		if err := h.runClient(ctx, id, delay); err != nil {
			h.health.Inc("clientFailures")
			h.clientErr(id, err)
		}
	}()
}

func (h *Harness) runClient(ctx *transport.Context, id int, delay time.Duration) error {
	if ctx == nil {
		return ErrNotInitialized
	}

	s, err := h.b.CreateClientSocket(ctx)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	defer s.Close()

	if err := s.Connect(Frontend); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if delay > 0 {
		time.Sleep(delay)
	}

	return h.b.DoClient(id, s)
}

// SleepUntilWorkerReceives waits until the worker consumed exactly messages
// or maxWait elapsed. It reports whether the count was reached. A timeout
// is logged and otherwise left for the caller to assert on.
func (h *Harness) SleepUntilWorkerReceives(messages uint64, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)

	for h.received.Load() != messages {
		if !time.Now().Before(deadline) {
			log.Printf("Max wait time exceeded for worker messages")
			return false
		}

		time.Sleep(h.waitInterval)
	}

	return true
}
