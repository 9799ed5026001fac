package devices

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/devicetest/transport"
)

// Device relays messages between a frontend and a backend socket.
type Device struct {
	name     string
	frontend *transport.Socket
	backend  *transport.Socket
	bidi     bool

	forwarded atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewQueue creates a request/reply broker. Requests arriving on the ROUTER
// frontend are load balanced over the DEALER backend and replies are routed
// back to the requester.
func NewQueue(ctx *transport.Context, frontend, backend string) (*Device, error) {
	return newDevice(ctx, "queue", transport.Router, frontend, transport.Dealer, backend, true)
}

// NewForwarder creates a publish/subscribe relay. Everything published to
// the SUB frontend is republished on the PUB backend.
func NewForwarder(ctx *transport.Context, frontend, backend string) (*Device, error) {
	d, err := newDevice(ctx, "forwarder", transport.Sub, frontend, transport.Pub, backend, false)
	if err != nil {
		return nil, err
	}

	if err := d.frontend.Subscribe(""); err != nil {
		d.close()
		return nil, err
	}

	return d, nil
}

// NewStreamer creates a pipeline relay from the PULL frontend to the PUSH
// backend.
func NewStreamer(ctx *transport.Context, frontend, backend string) (*Device, error) {
	return newDevice(ctx, "streamer", transport.Pull, frontend, transport.Push, backend, false)
}

func newDevice(
	ctx *transport.Context,
	name string,
	ft transport.SocketType,
	faddr string,
	bt transport.SocketType,
	baddr string,
	bidi bool,
) (*Device, error) {
	f, err := ctx.NewSocket(ft)
	if err != nil {
		return nil, err
	}

	b, err := ctx.NewSocket(bt)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	d := &Device{
		name:     name,
		frontend: f,
		backend:  b,
		bidi:     bidi,
	}

	if err := f.Bind(faddr); err != nil {
		d.close()
		return nil, fmt.Errorf("%s frontend: %w", name, err)
	}

	if err := b.Bind(baddr); err != nil {
		d.close()
		return nil, fmt.Errorf("%s backend: %w", name, err)
	}

	return d, nil
}

// Start launches the relay goroutines. Calls after the first do nothing.
func (d *Device) Start() {
	d.startOnce.Do(func() {
		d.run(d.frontend, d.backend)
		if d.bidi {
			d.run(d.backend, d.frontend)
		}
	})
}

// Stop closes both sockets and waits for the relay goroutines to exit.
// Calls after the first do nothing.
func (d *Device) Stop() {
	d.stopOnce.Do(func() {
		d.close()
		d.wg.Wait()
	})
}

// Forwarded returns the number of messages relayed in either direction.
func (d *Device) Forwarded() uint64 {
	return d.forwarded.Load()
}

func (d *Device) run(from, to *transport.Socket) {
	r := NewRepeater(
		func(msg plumbing.Message) error {
			if err := to.Send(msg); err != nil {
				return err
			}
			d.forwarded.Add(1)
			return nil
		},
		from.Recv,
	)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		err := r.Start()
		if !errors.Is(err, transport.ErrSocketClosed) && !errors.Is(err, transport.ErrContextTerminated) {
			log.Printf("Device %s: %s relay stopped: %s", d.name, from.Type(), err)
		}
	}()
}

func (d *Device) close() {
	_ = d.frontend.Close()
	_ = d.backend.Close()
}
