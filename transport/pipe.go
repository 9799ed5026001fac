package transport

import (
	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/go-pubsub"
	"github.com/google/uuid"
)

// pipe is one end of a connection between two sockets. The id of a pipe is
// the identity its owner sees for the remote socket.
type pipe struct {
	id          string
	local       *Socket
	remote      *pipe
	unsubscribe func()
}

// send delivers msg to the socket on the other end.
func (p *pipe) send(msg plumbing.Message) {
	p.remote.local.deliver(p.remote, msg)
}

func attach(a, b *Socket) error {
	pa := &pipe{id: uuid.New().String(), local: a}
	pb := &pipe{id: uuid.New().String(), local: b}
	pa.remote = pb
	pb.remote = pa

	if err := b.addPipe(pb); err != nil {
		return err
	}

	if err := a.addPipe(pa); err != nil {
		b.removePipe(pb.id)
		return err
	}

	return nil
}

func (s *Socket) addPipe(p *pipe) error {
	switch {
	case s.typ == Pub:
		p.unsubscribe = s.fanout.Subscribe(subscription(p))
	case s.typ.balanced():
		p.unsubscribe = s.fanout.Subscribe(
			subscription(p),
			pubsub.WithShardID(balancedShard),
		)
	}

	s.mu.Lock()
	if err := s.err(); err != nil {
		s.mu.Unlock()
		p.detach()
		return err
	}
	s.pipes[p.id] = p
	s.mu.Unlock()

	return nil
}

func (s *Socket) removePipe(id string) {
	s.mu.Lock()
	p, ok := s.pipes[id]
	delete(s.pipes, id)
	s.mu.Unlock()

	if ok {
		p.detach()
	}
}

func (s *Socket) detachAll() {
	s.mu.Lock()
	pipes := s.pipes
	s.pipes = make(map[string]*pipe)
	s.mu.Unlock()

	for _, p := range pipes {
		p.detach()
		p.remote.local.removePipe(p.remote.id)
	}
}

func (p *pipe) detach() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

func subscription(p *pipe) pubsub.Subscription {
	return func(data interface{}) {
		p.send(data.(plumbing.Message))
	}
}
