package plumbing

import (
	"io"
	"os"
	"time"
)

// LogWriter prefixes every write with an RFC3339 timestamp with nanosecond
// precision. A zero LogWriter writes to stderr.
type LogWriter struct {
	Out io.Writer
	Now func() time.Time
}

func (writer LogWriter) Write(bytes []byte) (int, error) {
	now := time.Now
	if writer.Now != nil {
		now = writer.Now
	}
	out := io.Writer(os.Stderr)
	if writer.Out != nil {
		out = writer.Out
	}

	str := now().UTC().Format("2006-01-02T15:04:05.000000000Z") + " " + string(bytes)
	return io.WriteString(out, str)
}
