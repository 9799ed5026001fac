package transport

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	gendiodes "code.cloudfoundry.org/go-diodes"
)

const scheme = "inproc://"

// Context is the messaging environment every socket is created from. It owns
// the endpoint namespace. Closing the Context terminates all of its sockets.
type Context struct {
	diodeSize    int
	pollInterval time.Duration
	alerter      gendiodes.Alerter

	mu        sync.Mutex
	endpoints map[string]*Socket
	sockets   map[*Socket]struct{}
	closed    bool
}

// ContextOption is used to configure a new Context.
type ContextOption func(*Context)

// WithDiodeSize sets the number of messages each socket inbox can hold
// before unread messages are overwritten.
func WithDiodeSize(size int) ContextOption {
	return func(c *Context) {
		c.diodeSize = size
	}
}

// WithPollInterval sets how long Poll sleeps between checks of an empty
// inbox.
func WithPollInterval(d time.Duration) ContextOption {
	return func(c *Context) {
		c.pollInterval = d
	}
}

// WithDropAlerter sets the alerter invoked when a socket inbox overwrites
// unread messages.
func WithDropAlerter(a gendiodes.Alerter) ContextOption {
	return func(c *Context) {
		c.alerter = a
	}
}

// NewContext creates a Context with the given options.
func NewContext(opts ...ContextOption) (*Context, error) {
	c := &Context{
		diodeSize:    1000,
		pollInterval: 100 * time.Microsecond,
		alerter: gendiodes.AlertFunc(func(missed int) {
			log.Printf("Dropped %d messages", missed)
		}),
		endpoints: make(map[string]*Socket),
		sockets:   make(map[*Socket]struct{}),
	}

	for _, o := range opts {
		o(c)
	}

	if c.diodeSize <= 0 {
		return nil, fmt.Errorf("invalid diode size: %d", c.diodeSize)
	}

	if c.pollInterval <= 0 {
		return nil, fmt.Errorf("invalid poll interval: %s", c.pollInterval)
	}

	if c.alerter == nil {
		return nil, fmt.Errorf("drop alerter must not be nil")
	}

	return c, nil
}

// NewSocket creates a socket of the given type bound to this Context.
func (c *Context) NewSocket(t SocketType) (*Socket, error) {
	if !t.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSocketType, int(t))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrContextTerminated
	}

	s := newSocket(c, t)
	c.sockets[s] = struct{}{}

	return s, nil
}

// Close terminates every socket created from the Context. Operations on
// those sockets return ErrContextTerminated afterwards. Calling Close more
// than once is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	sockets := make([]*Socket, 0, len(c.sockets))
	for s := range c.sockets {
		sockets = append(sockets, s)
	}
	c.sockets = make(map[*Socket]struct{})
	c.endpoints = make(map[string]*Socket)
	c.mu.Unlock()

	for _, s := range sockets {
		s.terminate()
	}

	return nil
}

// Terminated reports whether Close has been called.
func (c *Context) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *Context) bind(addr string, s *Socket) error {
	if err := validateAddr(addr); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrContextTerminated
	}

	if _, ok := c.endpoints[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}
	c.endpoints[addr] = s

	return nil
}

func (c *Context) lookup(addr string) (*Socket, error) {
	if err := validateAddr(addr); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrContextTerminated
	}

	s, ok := c.endpoints[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, addr)
	}

	return s, nil
}

// remove forgets the socket and every endpoint bound to it.
func (c *Context) remove(s *Socket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sockets, s)
	for addr, bound := range c.endpoints {
		if bound == s {
			delete(c.endpoints, addr)
		}
	}
}

func validateAddr(addr string) error {
	if !strings.HasPrefix(addr, scheme) || len(addr) == len(scheme) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}
