package harness

import (
	"context"
	"log"
	"time"

	"code.cloudfoundry.org/devicetest/transport"
)

// runWorker connects the worker socket and consumes messages until ctx is
// cancelled. The connect result is sent on ready. done is closed once the
// socket is released.
func (h *Harness) runWorker(
	ctx context.Context,
	tctx *transport.Context,
	ready chan<- error,
	done chan<- struct{},
) {
	defer close(done)

	s, err := h.connectWorker(tctx)
	ready <- err
	if err != nil {
		return
	}

	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("Worker: failed to close socket: %s", err)
		}
	}()

	for ctx.Err() == nil {
		ok, err := s.Poll(h.pollTimeout)
		if err != nil {
			log.Printf("Worker: poll failed: %s", err)
			return
		}

		if !ok {
			time.Sleep(h.idleInterval)
			continue
		}

		h.b.DoWork(s)
		n := h.received.Add(1)
		h.health.Set("workerReceivedCount", float64(n))
	}
}

func (h *Harness) connectWorker(tctx *transport.Context) (Socket, error) {
	s, err := h.b.CreateWorkerSocket(tctx)
	if err != nil {
		return nil, err
	}

	if err := s.Connect(Backend); err != nil {
		_ = s.Close()
		return nil, err
	}

	if c, ok := h.b.(WorkerConnector); ok {
		if err := c.WorkerAfterConnect(s); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	return s, nil
}
