package app

import (
	"fmt"
	"log"
	"time"

	"code.cloudfoundry.org/devicetest/devices"
	"code.cloudfoundry.org/devicetest/harness"
	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/devicetest/plumbing/batching"
	"code.cloudfoundry.org/devicetest/transport"
)

// Devices the probe can run against.
const (
	DeviceQueue     = "queue"
	DeviceForwarder = "forwarder"
	DeviceStreamer  = "streamer"
)

type deviceFactory func(ctx *transport.Context, frontend, backend string) (*devices.Device, error)

// behavior sends a fixed number of messages per client through one device
// and reports what the worker receives in batches.
type behavior struct {
	device     deviceFactory
	clientType transport.SocketType
	workerType transport.SocketType
	messages   int

	batcher *batching.MessageBatcher
}

// NewBehavior returns the harness behavior for the named device. Every
// client sends messages messages. The worker logs its progress once per
// batch of batchSize messages or once per interval, whichever comes first.
func NewBehavior(
	device string,
	messages int,
	batchSize int,
	interval time.Duration,
) (harness.Behavior, error) {
	b := &behavior{
		messages: messages,
		batcher: batching.NewMessageBatcher(
			batchSize,
			interval,
			batching.MessageWriterFunc(func(batch []plumbing.Message) {
				log.Printf("Worker: received %d messages", len(batch))
			}),
		),
	}

	switch device {
	case DeviceQueue:
		b.device = devices.NewQueue
		b.clientType = transport.Req
		b.workerType = transport.Rep
		return b, nil
	case DeviceStreamer:
		b.device = devices.NewStreamer
		b.clientType = transport.Push
		b.workerType = transport.Pull
		return b, nil
	case DeviceForwarder:
		b.device = devices.NewForwarder
		b.clientType = transport.Pub
		b.workerType = transport.Sub
		return &subscribingBehavior{behavior: b}, nil
	}

	return nil, fmt.Errorf("unknown device %q", device)
}

func (b *behavior) CreateDevice(ctx *transport.Context) (harness.Device, error) {
	d, err := b.device(ctx, harness.Frontend, harness.Backend)
	if err != nil {
		return nil, err
	}

	return d, nil
}

func (b *behavior) CreateWorkerSocket(ctx *transport.Context) (harness.Socket, error) {
	return b.socket(ctx, b.workerType)
}

func (b *behavior) CreateClientSocket(ctx *transport.Context) (harness.Socket, error) {
	return b.socket(ctx, b.clientType)
}

func (b *behavior) SetupTest() {}

func (b *behavior) DoWork(s harness.Socket) {
	msg, err := s.Recv()
	if err != nil {
		log.Printf("Worker: failed to receive: %s", err)
		return
	}

	if b.workerType == transport.Rep {
		if err := s.Send(msg); err != nil {
			log.Printf("Worker: failed to reply: %s", err)
		}
	}

	b.batcher.Write(msg)
}

func (b *behavior) DoClient(id int, s harness.Socket) error {
	for i := 0; i < b.messages; i++ {
		msg := plumbing.NewStringMessage(fmt.Sprintf("client-%d", id), fmt.Sprintf("%d", i))
		if err := s.Send(msg); err != nil {
			return fmt.Errorf("failed to send message %d: %w", i, err)
		}

		if b.clientType != transport.Req {
			continue
		}

		if _, err := s.Recv(); err != nil {
			return fmt.Errorf("failed to receive reply %d: %w", i, err)
		}
	}

	return nil
}

func (b *behavior) socket(ctx *transport.Context, t transport.SocketType) (harness.Socket, error) {
	s, err := ctx.NewSocket(t)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// subscribingBehavior subscribes the worker to every topic once it is
// connected.
type subscribingBehavior struct {
	*behavior
}

func (b *subscribingBehavior) WorkerAfterConnect(s harness.Socket) error {
	sub, ok := s.(*transport.Socket)
	if !ok {
		return fmt.Errorf("cannot subscribe %T", s)
	}

	return sub.Subscribe("")
}
