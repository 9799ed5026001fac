package healthendpoint

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

// Registrar maintains a fixed set of named health gauges.
type Registrar struct {
	gauges map[string]prometheus.Gauge
}

// New registers every gauge with the given prometheus Registerer.
func New(registrar prometheus.Registerer, gauges map[string]prometheus.Gauge) *Registrar {
	for _, c := range gauges {
		registrar.MustRegister(c)
	}

	return &Registrar{
		gauges: gauges,
	}
}

func (h *Registrar) Set(name string, value float64) {
	h.gauge("set", name).Set(value)
}

func (h *Registrar) Inc(name string) {
	h.gauge("inc", name).Inc()
}

func (h *Registrar) Dec(name string) {
	h.gauge("dec", name).Dec()
}

func (h *Registrar) Add(name string, delta float64) {
	h.gauge("add", name).Add(delta)
}

func (h *Registrar) gauge(op, name string) prometheus.Gauge {
	c, ok := h.gauges[name]
	if !ok {
		log.Panicf("%s called for unknown health metric: %s", op, name)
	}

	return c
}
