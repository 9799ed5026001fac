package harness_test

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"code.cloudfoundry.org/devicetest/devices"
	"code.cloudfoundry.org/devicetest/harness"
	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/devicetest/transport"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Harness", func() {
	var (
		behavior *spyBehavior
		health   *SpyHealthRegistrar
		failures *spyClientErrors
		h        *harness.Harness
	)

	BeforeEach(func() {
		behavior = newSpyBehavior()
		health = newSpyHealthRegistrar()
		failures = newSpyClientErrors()
		h = harness.New(
			behavior,
			harness.WithHealthRegistrar(health),
			harness.WithClientErrorHandler(failures.handle),
			harness.WithContextOptions(transport.WithPollInterval(50*time.Microsecond)),
		)
	})

	AfterEach(func() {
		h.Cleanup()
	})

	Context("when initialized", func() {
		BeforeEach(func() {
			Expect(h.Initialize()).To(Succeed())
		})

		It("counts a single client message", func() {
			h.StartClient(0, 0)

			Expect(h.SleepUntilWorkerReceives(1, 2*time.Second)).To(BeTrue())
			Expect(h.WorkerReceiveCount()).To(Equal(uint64(1)))
			Expect(behavior.worked()).To(ConsistOf("client-0"))
		})

		It("counts concurrent clients regardless of order", func() {
			for i := 0; i < 5; i++ {
				h.StartClient(i, 0)
			}

			Expect(h.SleepUntilWorkerReceives(5, 5*time.Second)).To(BeTrue())
			Expect(h.WorkerReceiveCount()).To(Equal(uint64(5)))
			Expect(behavior.worked()).To(ConsistOf(
				"client-0", "client-1", "client-2", "client-3", "client-4",
			))
		})

		It("never decreases the count", func() {
			for i := 0; i < 20; i++ {
				h.StartClient(i, time.Duration(i)*time.Millisecond)
			}

			var last uint64
			Consistently(func() bool {
				n := h.WorkerReceiveCount()
				ok := n >= last && n <= 20
				last = n
				return ok
			}, 100*time.Millisecond, time.Millisecond).Should(BeTrue())

			Expect(h.SleepUntilWorkerReceives(20, 5*time.Second)).To(BeTrue())
		})

		It("stops the worker without any clients", func() {
			done := make(chan error, 1)
			go func() {
				done <- h.StopWorker()
			}()

			Eventually(done).Should(Receive(BeNil()))
			Expect(h.WorkerReceiveCount()).To(BeZero())
			Expect(behavior.workerClosed()).To(BeTrue())
		})

		It("stops the worker only once", func() {
			Expect(h.StopWorker()).To(Succeed())
			Expect(h.StopWorker()).To(MatchError(harness.ErrWorkerStopped))
		})

		It("times out while a delayed client has not sent", func() {
			h.StartClient(0, 500*time.Millisecond)

			Expect(h.SleepUntilWorkerReceives(1, 100*time.Millisecond)).To(BeFalse())
			Expect(h.WorkerReceiveCount()).To(BeZero())

			Expect(h.SleepUntilWorkerReceives(1, 2*time.Second)).To(BeTrue())
			Expect(h.WorkerReceiveCount()).To(Equal(uint64(1)))
		})

		It("returns from a wait no earlier than maxWait", func() {
			start := time.Now()
			Expect(h.SleepUntilWorkerReceives(1, 50*time.Millisecond)).To(BeFalse())

			elapsed := time.Since(start)
			Expect(elapsed).To(BeNumerically(">=", 50*time.Millisecond))
			Expect(elapsed).To(BeNumerically("<", 500*time.Millisecond))
		})

		It("returns from a wait promptly once the count is reached", func() {
			h.StartClient(0, 0)
			Expect(h.SleepUntilWorkerReceives(1, 2*time.Second)).To(BeTrue())

			start := time.Now()
			Expect(h.SleepUntilWorkerReceives(1, 10*time.Second)).To(BeTrue())
			Expect(time.Since(start)).To(BeNumerically("<", 100*time.Millisecond))
		})

		It("does not resolve a wait once the count overshoots", func() {
			h.StartClient(0, 0)
			h.StartClient(1, 0)
			Expect(h.SleepUntilWorkerReceives(2, 2*time.Second)).To(BeTrue())

			Expect(h.SleepUntilWorkerReceives(1, 20*time.Millisecond)).To(BeFalse())
		})

		It("hands client failures to the error handler", func() {
			behavior.setClientErr(errors.New("send failed"))
			h.StartClient(7, 0)

			Eventually(failures.ids).Should(ConsistOf(7))
			Expect(failures.errs()[0]).To(MatchError("send failed"))
			Eventually(func() float64 {
				return health.Get("clientFailures")
			}).Should(Equal(1.0))
		})

		It("reports health gauges", func() {
			h.StartClient(0, 0)
			Expect(h.SleepUntilWorkerReceives(1, 2*time.Second)).To(BeTrue())

			Eventually(func() float64 {
				return health.Get("workerReceivedCount")
			}).Should(Equal(1.0))
			Eventually(func() float64 {
				return health.Get("activeClients")
			}).Should(BeZero())
			Expect(health.Get("clientFailures")).To(BeZero())
		})

		It("runs setup before creating the device", func() {
			Expect(behavior.calls()).To(Equal([]string{
				"SetupTest",
				"CreateDevice",
				"CreateWorkerSocket",
			}))
			Expect(h.Context()).ToNot(BeNil())
			Expect(h.Device()).ToNot(BeNil())
		})

		It("tolerates cleanup with clients in flight", func() {
			h.StartClient(0, 100*time.Millisecond)
			h.Cleanup()
			h.Cleanup()

			Eventually(failures.errs).Should(ConsistOf(
				MatchError(transport.ErrContextTerminated),
			))
			Expect(h.Context().Terminated()).To(BeTrue())

			done := make(chan error, 1)
			go func() {
				done <- h.StopWorker()
			}()
			Eventually(done).Should(Receive(BeNil()))
		})
	})

	Context("when not initialized", func() {
		It("refuses to stop the worker", func() {
			Expect(h.StopWorker()).To(MatchError(harness.ErrNotInitialized))
		})

		It("reports clients as failed", func() {
			h.StartClient(3, 0)

			Eventually(failures.errs).Should(ConsistOf(
				MatchError(harness.ErrNotInitialized),
			))
		})

		It("does nothing on cleanup", func() {
			h.Cleanup()
			Expect(h.Context()).To(BeNil())
		})
	})

	Describe("Initialize", func() {
		It("propagates device construction failures", func() {
			behavior.deviceErr = errors.New("no device")

			err := h.Initialize()
			Expect(err).To(MatchError(behavior.deviceErr))
			Expect(behavior.calls()).To(Equal([]string{"SetupTest", "CreateDevice"}))
		})

		It("propagates worker connect failures", func() {
			behavior.workerType = transport.Sub

			Expect(h.Initialize()).To(MatchError(transport.ErrIncompatibleSockets))
			Expect(behavior.workerClosed()).To(BeTrue())
		})

		It("propagates invalid context options", func() {
			h = harness.New(behavior, harness.WithContextOptions(transport.WithDiodeSize(0)))

			Expect(h.Initialize()).ToNot(Succeed())
			Expect(behavior.calls()).To(BeEmpty())
		})

		It("calls the after connect hook on the worker socket", func() {
			c := &connectingBehavior{spyBehavior: behavior}
			h = harness.New(c)
			Expect(h.Initialize()).To(Succeed())

			Expect(c.connected).ToNot(BeNil())
			Expect(behavior.calls()).To(ContainElement("CreateWorkerSocket"))
		})

		It("propagates after connect hook failures", func() {
			c := &connectingBehavior{
				spyBehavior: behavior,
				err:         errors.New("hook failed"),
			}
			h = harness.New(c)

			Expect(h.Initialize()).To(MatchError(c.err))
			Expect(behavior.workerClosed()).To(BeTrue())
		})
	})
})

type spyBehavior struct {
	deviceErr  error
	workerType transport.SocketType

	mu        sync.Mutex
	called    []string
	work      []string
	clientErr error
	worker    *transport.Socket
}

func newSpyBehavior() *spyBehavior {
	return &spyBehavior{
		workerType: transport.Pull,
	}
}

func (s *spyBehavior) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called = append(s.called, name)
}

func (s *spyBehavior) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.called...)
}

func (s *spyBehavior) worked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.work...)
}

func (s *spyBehavior) setClientErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientErr = err
}

func (s *spyBehavior) workerClosed() bool {
	s.mu.Lock()
	w := s.worker
	s.mu.Unlock()

	if w == nil {
		return false
	}
	_, err := w.Poll(0)
	return errors.Is(err, transport.ErrSocketClosed)
}

func (s *spyBehavior) CreateDevice(ctx *transport.Context) (harness.Device, error) {
	s.record("CreateDevice")
	if s.deviceErr != nil {
		return nil, s.deviceErr
	}
	return devices.NewStreamer(ctx, harness.Frontend, harness.Backend)
}

func (s *spyBehavior) CreateWorkerSocket(ctx *transport.Context) (harness.Socket, error) {
	s.record("CreateWorkerSocket")
	w, err := ctx.NewSocket(s.workerType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.worker = w
	s.mu.Unlock()

	return w, nil
}

func (s *spyBehavior) CreateClientSocket(ctx *transport.Context) (harness.Socket, error) {
	return ctx.NewSocket(transport.Push)
}

func (s *spyBehavior) SetupTest() {
	s.record("SetupTest")
}

func (s *spyBehavior) DoWork(sock harness.Socket) {
	msg, err := sock.Recv()
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.work = append(s.work, msg.Strings()...)
}

func (s *spyBehavior) DoClient(id int, sock harness.Socket) error {
	s.mu.Lock()
	err := s.clientErr
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return sock.Send(plumbing.NewStringMessage("client-" + strconv.Itoa(id)))
}

type connectingBehavior struct {
	*spyBehavior
	err       error
	connected harness.Socket
}

func (c *connectingBehavior) WorkerAfterConnect(s harness.Socket) error {
	c.connected = s
	return c.err
}

type SpyHealthRegistrar struct {
	mu     sync.Mutex
	values map[string]float64
}

func newSpyHealthRegistrar() *SpyHealthRegistrar {
	return &SpyHealthRegistrar{
		values: make(map[string]float64),
	}
}

func (s *SpyHealthRegistrar) Set(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

func (s *SpyHealthRegistrar) Inc(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name]++
}

func (s *SpyHealthRegistrar) Dec(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name]--
}

func (s *SpyHealthRegistrar) Get(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

type spyClientErrors struct {
	mu      sync.Mutex
	idList  []int
	errList []error
}

func newSpyClientErrors() *spyClientErrors {
	return &spyClientErrors{}
}

func (s *spyClientErrors) handle(id int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idList = append(s.idList, id)
	s.errList = append(s.errList, err)
}

func (s *spyClientErrors) ids() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.idList...)
}

func (s *spyClientErrors) errs() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errList...)
}
