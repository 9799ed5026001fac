package transport

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/devicetest/diodes"
	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/go-pubsub"
	"github.com/google/uuid"
)

const (
	stateOpen int32 = iota
	stateClosed
	stateTerminated
)

// balancedShard is the shard every pipe of a load balancing socket joins so
// each published message reaches exactly one of them.
const balancedShard = "balanced"

// Socket is an in-process messaging socket. Send may be called from any
// number of goroutines. Poll and Recv must only be called by one goroutine
// at a time, as must the Req/Rep send/receive sequence.
type Socket struct {
	id  string
	typ SocketType
	ctx *Context

	state atomic.Int32
	inbox *diodes.ManyToOneEnvelope

	// fanout distributes outbound messages to the pipes subscribed to it.
	fanout *pubsub.PubSub

	mu     sync.Mutex
	pipes  map[string]*pipe
	topics map[string]struct{}

	// owned by the reading goroutine
	pending       *plumbing.Envelope
	awaitingReply bool
	reply         *replyRoute
}

type replyRoute struct {
	pipeID   string
	envelope plumbing.Message
}

func newSocket(c *Context, t SocketType) *Socket {
	return &Socket{
		id:     uuid.New().String(),
		typ:    t,
		ctx:    c,
		inbox:  diodes.NewManyToOneEnvelope(c.diodeSize, c.alerter),
		fanout: pubsub.New(),
		pipes:  make(map[string]*pipe),
		topics: make(map[string]struct{}),
	}
}

// ID returns the unique identity of the socket.
func (s *Socket) ID() string {
	return s.id
}

// Type returns the messaging pattern of the socket.
func (s *Socket) Type() SocketType {
	return s.typ
}

// Bind makes the socket reachable under addr. Other sockets from the same
// Context may then Connect to it.
func (s *Socket) Bind(addr string) error {
	if err := s.err(); err != nil {
		return err
	}

	return s.ctx.bind(addr, s)
}

// Connect attaches the socket to the socket bound under addr.
func (s *Socket) Connect(addr string) error {
	if err := s.err(); err != nil {
		return err
	}

	remote, err := s.ctx.lookup(addr)
	if err != nil {
		return err
	}

	if !compatible(s.typ, remote.typ) {
		return fmt.Errorf("%w: %s to %s", ErrIncompatibleSockets, s.typ, remote.typ)
	}

	return attach(s, remote)
}

// Subscribe adds a topic prefix filter to a Sub socket. The empty topic
// matches every message.
func (s *Socket) Subscribe(topic string) error {
	if err := s.err(); err != nil {
		return err
	}
	if s.typ != Sub {
		return fmt.Errorf("%w: subscribe on %s", ErrNotSupported, s.typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic] = struct{}{}

	return nil
}

// Unsubscribe removes a topic prefix filter from a Sub socket.
func (s *Socket) Unsubscribe(topic string) error {
	if err := s.err(); err != nil {
		return err
	}
	if s.typ != Sub {
		return fmt.Errorf("%w: unsubscribe on %s", ErrNotSupported, s.typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topic)

	return nil
}

// Poll waits up to timeout for a message to become readable. It reports
// false when the timeout lapses without one.
func (s *Socket) Poll(timeout time.Duration) (bool, error) {
	if err := s.err(); err != nil {
		return false, err
	}
	if !s.typ.canRecv() {
		return false, fmt.Errorf("%w: poll on %s", ErrNotSupported, s.typ)
	}

	deadline := time.Now().Add(timeout)
	for {
		if s.pending != nil {
			return true, nil
		}

		if e, ok := s.inbox.TryNext(); ok {
			s.pending = e
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		if remaining > s.ctx.pollInterval {
			remaining = s.ctx.pollInterval
		}
		time.Sleep(remaining)

		if err := s.err(); err != nil {
			return false, err
		}
	}
}

// Send writes a message according to the socket type.
func (s *Socket) Send(msg plumbing.Message) error {
	if err := s.err(); err != nil {
		return err
	}
	if !s.typ.canSend() {
		return fmt.Errorf("%w: send on %s", ErrNotSupported, s.typ)
	}
	if len(msg) == 0 {
		return ErrEmptyMessage
	}

	switch s.typ {
	case Pub:
		// Messages without subscribers are dropped.
		s.fanout.Publish(msg.Clone(), rootOnly)
		return nil
	case Push, Dealer:
		return s.sendBalanced(msg.Clone())
	case Req:
		if s.awaitingReply {
			return fmt.Errorf("%w: REQ must receive a reply before sending", ErrInvalidState)
		}
		if err := s.sendBalanced(prepend([]byte{}, msg)); err != nil {
			return err
		}
		s.awaitingReply = true
		return nil
	case Rep:
		if s.reply == nil {
			return fmt.Errorf("%w: REP must receive a request before replying", ErrInvalidState)
		}
		route := s.reply
		s.reply = nil

		p, ok := s.pipe(route.pipeID)
		if !ok {
			// requester went away
			return nil
		}
		p.send(append(route.envelope.Clone(), msg.Clone()...))
		return nil
	case Router:
		p, ok := s.pipe(string(msg[0]))
		if !ok {
			return nil
		}
		p.send(msg[1:].Clone())
		return nil
	}

	return fmt.Errorf("%w: send on %s", ErrNotSupported, s.typ)
}

// Recv blocks until a message is available and returns it according to the
// socket type.
func (s *Socket) Recv() (plumbing.Message, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	if !s.typ.canRecv() {
		return nil, fmt.Errorf("%w: recv on %s", ErrNotSupported, s.typ)
	}
	if s.typ == Req && !s.awaitingReply {
		return nil, fmt.Errorf("%w: REQ must send a request before receiving", ErrInvalidState)
	}
	if s.typ == Rep && s.reply != nil {
		return nil, fmt.Errorf("%w: REP must reply before receiving", ErrInvalidState)
	}

	for {
		ready, err := s.Poll(s.ctx.pollInterval)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}

		e := s.pending
		s.pending = nil

		if msg, ok := s.accept(e); ok {
			return msg, nil
		}
	}
}

// accept unwraps an inbound envelope. It reports false for messages the
// socket type discards.
func (s *Socket) accept(e *plumbing.Envelope) (plumbing.Message, bool) {
	msg := e.Message

	switch s.typ {
	case Router:
		return prepend([]byte(e.PipeID), msg), true
	case Req:
		if len(msg) < 2 || len(msg[0]) != 0 {
			log.Printf("Dropping malformed reply on %s socket %s", s.typ, s.id)
			return nil, false
		}
		s.awaitingReply = false
		return msg[1:], true
	case Rep:
		for i, f := range msg {
			if len(f) != 0 {
				continue
			}
			if i == len(msg)-1 {
				break
			}
			s.reply = &replyRoute{
				pipeID:   e.PipeID,
				envelope: msg[:i+1],
			}
			return msg[i+1:], true
		}
		log.Printf("Dropping malformed request on %s socket %s", s.typ, s.id)
		return nil, false
	}

	return msg, true
}

// Close detaches the socket from all peers and releases its endpoints.
func (s *Socket) Close() error {
	if !s.state.CompareAndSwap(stateOpen, stateClosed) {
		return s.err()
	}

	s.ctx.remove(s)
	s.detachAll()

	return nil
}

func (s *Socket) terminate() {
	if s.state.CompareAndSwap(stateOpen, stateTerminated) {
		s.detachAll()
	}
}

func (s *Socket) err() error {
	switch s.state.Load() {
	case stateClosed:
		return ErrSocketClosed
	case stateTerminated:
		return ErrContextTerminated
	}
	return nil
}

func (s *Socket) sendBalanced(msg plumbing.Message) error {
	s.mu.Lock()
	n := len(s.pipes)
	s.mu.Unlock()

	if n == 0 {
		return ErrNoPeers
	}

	s.fanout.Publish(msg, rootOnly)
	return nil
}

func (s *Socket) deliver(p *pipe, msg plumbing.Message) {
	if s.err() != nil {
		return
	}

	if s.typ == Sub && !s.matches(msg) {
		return
	}

	s.inbox.Set(&plumbing.Envelope{
		PipeID:  p.id,
		Message: msg,
	})
}

func (s *Socket) matches(msg plumbing.Message) bool {
	topic := string(msg[0])

	s.mu.Lock()
	defer s.mu.Unlock()

	for t := range s.topics {
		if strings.HasPrefix(topic, t) {
			return true
		}
	}
	return false
}

func (s *Socket) pipe(id string) (*pipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipes[id]
	return p, ok
}

func prepend(frame []byte, msg plumbing.Message) plumbing.Message {
	m := make(plumbing.Message, 0, len(msg)+1)
	m = append(m, frame)
	return append(m, msg.Clone()...)
}

// rootOnly publishes to every subscription registered without a path.
func rootOnly(data interface{}) pubsub.Paths {
	return pubsub.Paths(func(idx int, data interface{}) (path uint64, nextTraverser pubsub.TreeTraverser, ok bool) {
		return 0, nil, false
	})
}
