package diodes

import (
	"code.cloudfoundry.org/devicetest/plumbing"

	gendiodes "code.cloudfoundry.org/go-diodes"
)

// ManyToOneEnvelope diode is optimal for many writers and a single
// reader. It is the inbox every socket reads from.
type ManyToOneEnvelope struct {
	d *gendiodes.ManyToOne
}

// NewManyToOneEnvelope initializes a diode of the given size. The alerter is
// invoked with the number of envelopes that were overwritten before they
// could be read.
func NewManyToOneEnvelope(size int, alerter gendiodes.Alerter) *ManyToOneEnvelope {
	return &ManyToOneEnvelope{
		d: gendiodes.NewManyToOne(size, alerter),
	}
}

// Set inserts the given envelope into the diode. It never blocks.
func (d *ManyToOneEnvelope) Set(data *plumbing.Envelope) {
	d.d.Set(gendiodes.GenericDataType(data))
}

// TryNext returns the next envelope to be read from the diode. If the diode
// is empty it returns nil and false.
func (d *ManyToOneEnvelope) TryNext() (*plumbing.Envelope, bool) {
	data, ok := d.d.TryNext()
	if !ok {
		return nil, ok
	}

	return (*plumbing.Envelope)(data), true
}
