package transport

import "fmt"

// SocketType selects the messaging pattern of a socket.
type SocketType int

const (
	Push SocketType = iota + 1
	Pull
	Pub
	Sub
	Req
	Rep
	Dealer
	Router
)

var socketTypeNames = map[SocketType]string{
	Push:   "PUSH",
	Pull:   "PULL",
	Pub:    "PUB",
	Sub:    "SUB",
	Req:    "REQ",
	Rep:    "REP",
	Dealer: "DEALER",
	Router: "ROUTER",
}

func (t SocketType) String() string {
	if n, ok := socketTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("SocketType(%d)", int(t))
}

func (t SocketType) valid() bool {
	_, ok := socketTypeNames[t]
	return ok
}

// canSend reports whether the type has an outbound path at all.
func (t SocketType) canSend() bool {
	return t != Pull && t != Sub
}

// canRecv reports whether the type has an inbound path at all.
func (t SocketType) canRecv() bool {
	return t != Push && t != Pub
}

// balanced types deliver every outbound message to exactly one peer.
func (t SocketType) balanced() bool {
	return t == Push || t == Dealer || t == Req
}

var peers = map[SocketType][]SocketType{
	Push:   {Pull},
	Pull:   {Push},
	Pub:    {Sub},
	Sub:    {Pub},
	Req:    {Rep, Router},
	Rep:    {Req, Dealer},
	Dealer: {Rep, Router, Dealer},
	Router: {Req, Dealer, Router},
}

func compatible(a, b SocketType) bool {
	for _, t := range peers[a] {
		if t == b {
			return true
		}
	}
	return false
}
