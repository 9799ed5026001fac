package devices

import (
	"log"

	"code.cloudfoundry.org/devicetest/plumbing"
)

// Repeater connects a reader to a writer.
type Repeater struct {
	r Reader
	w Writer
}

// Reader reads messages. An error ends the repeater.
type Reader func() (plumbing.Message, error)

// Writer writes messages.
type Writer func(plumbing.Message) error

// NewRepeater is the constructor for Repeater.
func NewRepeater(w Writer, r Reader) *Repeater {
	return &Repeater{
		r: r,
		w: w,
	}
}

// Start blocks while transmitting data from the reader to the writer. It
// returns the error that ended the reader. Messages the writer fails on are
// dropped.
func (r *Repeater) Start() error {
	for {
		msg, err := r.r()
		if err != nil {
			return err
		}

		if err := r.w(msg); err != nil {
			log.Printf("Dropping message: %s", err)
		}
	}
}
