package batching

import (
	"time"

	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/go-batching"
)

// MessageBatcher batches messages.
type MessageBatcher struct {
	*batching.Batcher
}

// MessageWriter is used to submit the completed batch of messages. The batch
// may be partial if the interval lapsed instead of filling the batch.
type MessageWriter interface {
	// Write submits the batch.
	Write(batch []plumbing.Message)
}

// MessageWriterFunc is an adapter to allow ordinary functions to be a
// MessageWriter.
type MessageWriterFunc func(batch []plumbing.Message)

// Write implements MessageWriter.
func (f MessageWriterFunc) Write(batch []plumbing.Message) {
	f(batch)
}

// NewMessageBatcher creates a new MessageBatcher.
func NewMessageBatcher(size int, interval time.Duration, writer MessageWriter) *MessageBatcher {
	genWriter := batching.WriterFunc(func(batch []interface{}) {
		msgBatch := make([]plumbing.Message, 0, len(batch))
		for _, element := range batch {
			msgBatch = append(msgBatch, element.(plumbing.Message))
		}
		writer.Write(msgBatch)
	})
	return &MessageBatcher{
		Batcher: batching.NewBatcher(size, interval, genWriter),
	}
}

// Write stores data to the batch. It will not submit the batch to the writer
// until either the batch has been filled, or the interval has lapsed. NOTE:
// Write is *not* thread safe and should be called by the same goroutine that
// calls Flush.
func (b *MessageBatcher) Write(data plumbing.Message) {
	b.Batcher.Write(data)
}
