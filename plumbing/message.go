package plumbing

// Message is a multipart payload moved between sockets. Each element is a
// single frame.
type Message [][]byte

// NewMessage builds a Message from the given frames.
func NewMessage(frames ...[]byte) Message {
	return Message(frames)
}

// NewStringMessage builds a Message with one frame per string.
func NewStringMessage(frames ...string) Message {
	m := make(Message, 0, len(frames))
	for _, f := range frames {
		m = append(m, []byte(f))
	}
	return m
}

// Strings returns the frames of the message as strings.
func (m Message) Strings() []string {
	s := make([]string, 0, len(m))
	for _, f := range m {
		s = append(s, string(f))
	}
	return s
}

// Clone returns a deep copy of the message. Receivers of a cloned message
// can not observe later writes to the original frames.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}

	c := make(Message, len(m))
	for i, f := range m {
		c[i] = append([]byte(nil), f...)
	}
	return c
}

// Envelope is a Message along with the ID of the pipe it arrived on.
type Envelope struct {
	PipeID  string
	Message Message
}
