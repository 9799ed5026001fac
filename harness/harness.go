// Package harness drives a message routing device through synthetic client
// and worker sockets and counts what arrives on the worker side.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/devicetest/transport"
)

// Endpoint addresses shared by the device, the worker and every client.
const (
	Frontend = "inproc://frontend"
	Backend  = "inproc://backend"
)

var (
	// ErrNotInitialized is returned by operations that need a running
	// harness before Initialize succeeded.
	ErrNotInitialized = errors.New("harness is not initialized")

	// ErrWorkerStopped is returned by StopWorker after the first call.
	ErrWorkerStopped = errors.New("worker already stopped")
)

// Socket is the capability the harness needs from a transport socket.
type Socket interface {
	Connect(addr string) error
	Poll(timeout time.Duration) (bool, error)
	Send(msg plumbing.Message) error
	Recv() (plumbing.Message, error)
	Close() error
}

// Device is a device under test.
type Device interface {
	Start()
	Stop()
}

// Behavior supplies the test specific parts of a harness.
type Behavior interface {
	CreateDevice(ctx *transport.Context) (Device, error)
	CreateWorkerSocket(ctx *transport.Context) (Socket, error)
	CreateClientSocket(ctx *transport.Context) (Socket, error)

	// SetupTest runs after the context is created and before the device.
	SetupTest()

	// DoWork consumes one ready message from the worker socket.
	DoWork(s Socket)

	// DoClient performs the send sequence of one client.
	DoClient(id int, s Socket) error
}

// WorkerConnector may be implemented by a Behavior to prepare the worker
// socket after it connected to the backend.
type WorkerConnector interface {
	WorkerAfterConnect(s Socket) error
}

// HealthRegistrar records harness health gauges.
type HealthRegistrar interface {
	Set(name string, value float64)
	Inc(name string)
	Dec(name string)
}

// Harness owns the messaging context, the device under test and the worker
// loop of one test suite.
type Harness struct {
	b Behavior

	pollTimeout  time.Duration
	idleInterval time.Duration
	waitInterval time.Duration
	contextOpts  []transport.ContextOption
	health       HealthRegistrar
	clientErr    func(id int, err error)

	received atomic.Uint64

	mu      sync.Mutex
	ctx     *transport.Context
	device  Device
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New creates a Harness for the given Behavior. Each provided Option will
// manipulate the Harness behavior.
func New(b Behavior, opts ...Option) *Harness {
	h := &Harness{
		b:            b,
		pollTimeout:  time.Millisecond,
		idleInterval: time.Millisecond,
		waitInterval: time.Millisecond,
		health:       nopHealth{},
		clientErr: func(id int, err error) {
			log.Printf("Client %d: %s", id, err)
		},
	}

	for _, o := range opts {
		o(h)
	}

	return h
}

// Initialize creates the messaging context, builds and starts the device
// and starts the worker. It returns once the worker socket is connected to
// the backend, so clients started afterwards always have a live route.
func (h *Harness) Initialize() error {
	h.received.Store(0)

	ctx, err := transport.NewContext(h.contextOpts...)
	if err != nil {
		return fmt.Errorf("failed to create context: %w", err)
	}

	h.b.SetupTest()

	device, err := h.b.CreateDevice(ctx)
	if err != nil {
		ctx.Close()
		return fmt.Errorf("failed to create device: %w", err)
	}
	device.Start()

	workerCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan error, 1)
	done := make(chan struct{})
	go h.runWorker(workerCtx, ctx, ready, done)

	if err := <-ready; err != nil {
		cancel()
		<-done
		ctx.Close()
		return fmt.Errorf("failed to start worker: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = ctx
	h.device = device
	h.cancel = cancel
	h.done = done
	h.stopped = false

	log.Print("Harness: initialized")

	return nil
}

// Cleanup terminates the messaging context. Sockets that are still in use,
// including the worker's and those of running clients, fail from then on.
// It does not wait for the worker or the clients.
func (h *Harness) Cleanup() {
	h.mu.Lock()
	ctx := h.ctx
	h.mu.Unlock()

	if ctx == nil {
		return
	}

	if err := ctx.Close(); err != nil {
		log.Printf("Harness: failed to close context: %s", err)
	}
}

// StopWorker cancels the worker and blocks until it has released its
// socket. It may only be called once per Initialize.
func (h *Harness) StopWorker() error {
	h.mu.Lock()
	if h.done == nil {
		h.mu.Unlock()
		return ErrNotInitialized
	}
	if h.stopped {
		h.mu.Unlock()
		return ErrWorkerStopped
	}
	h.stopped = true
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	cancel()
	<-done

	return nil
}

// WorkerReceiveCount returns the number of messages the worker consumed.
func (h *Harness) WorkerReceiveCount() uint64 {
	return h.received.Load()
}

// Context returns the messaging context, or nil before Initialize.
func (h *Harness) Context() *transport.Context {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ctx
}

// Device returns the device under test, or nil before Initialize.
func (h *Harness) Device() Device {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.device
}

type nopHealth struct{}

func (nopHealth) Set(string, float64) {}
func (nopHealth) Inc(string)          {}
func (nopHealth) Dec(string)          {}
