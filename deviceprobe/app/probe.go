package app

import (
	"context"
	"log"

	"code.cloudfoundry.org/devicetest/harness"
	"code.cloudfoundry.org/devicetest/healthendpoint"
	"code.cloudfoundry.org/devicetest/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// Result summarizes a probe run.
type Result struct {
	Expected uint64
	Received uint64
	TimedOut bool
}

// Probe runs a fixed load of clients through one device and counts what
// arrives at the worker.
type Probe struct {
	c      *Config
	health harness.HealthRegistrar
}

// ProbeOption is used to configure a new Probe.
type ProbeOption func(*Probe)

// WithHealthRegistrar returns a ProbeOption that reports the harness health
// gauges to r.
func WithHealthRegistrar(r harness.HealthRegistrar) ProbeOption {
	return func(p *Probe) {
		p.health = r
	}
}

// NewProbe creates a new Probe with the given options.
func NewProbe(c *Config, opts ...ProbeOption) *Probe {
	p := &Probe{c: c}

	for _, o := range opts {
		o(p)
	}

	return p
}

// Run initializes the harness, starts every client and waits for the worker
// to receive all messages. Cancelling ctx ends the wait early and Run then
// returns the partial result together with the context error.
func (p *Probe) Run(ctx context.Context) (Result, error) {
	b, err := NewBehavior(
		p.c.Device,
		p.c.MessagesPerClient,
		p.c.ReportBatchSize,
		p.c.ReportInterval,
	)
	if err != nil {
		return Result{}, err
	}

	opts := []harness.Option{
		harness.WithContextOptions(transport.WithDiodeSize(p.c.DiodeSize)),
	}
	if p.health != nil {
		opts = append(opts, harness.WithHealthRegistrar(p.health))
	}

	h := harness.New(b, opts...)
	if err := h.Initialize(); err != nil {
		return Result{}, err
	}
	defer h.Cleanup()

	log.Printf("Probe: starting %d clients against %s", p.c.Clients, p.c.Device)
	for i := 0; i < p.c.Clients; i++ {
		h.StartClient(i, p.c.ClientDelay)
	}

	expected := uint64(p.c.Clients * p.c.MessagesPerClient)
	reached := make(chan bool, 1)
	go func() {
		reached <- h.SleepUntilWorkerReceives(expected, p.c.MaxWait)
	}()

	var ok bool
	select {
	case ok = <-reached:
	case <-ctx.Done():
	}

	if err := h.StopWorker(); err != nil {
		return Result{}, err
	}

	res := Result{
		Expected: expected,
		Received: h.WorkerReceiveCount(),
		TimedOut: !ok,
	}

	return res, ctx.Err()
}

// NewHealthRegistrar registers the harness health gauges with r.
func NewHealthRegistrar(r prometheus.Registerer) *healthendpoint.Registrar {
	return healthendpoint.New(r, map[string]prometheus.Gauge{
		// Number of messages the worker consumed
		"workerReceivedCount": prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "devicetest",
				Subsystem: "probe",
				Name:      "workerReceivedCount",
				Help:      "Number of messages the worker consumed",
			},
		),
		// Number of running clients
		"activeClients": prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "devicetest",
				Subsystem: "probe",
				Name:      "activeClients",
				Help:      "Number of running clients",
			},
		),
		// Number of clients that failed
		"clientFailures": prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "devicetest",
				Subsystem: "probe",
				Name:      "clientFailures",
				Help:      "Number of clients that failed",
			},
		),
	})
}
