package common

import (
	"sync/atomic"
	"time"
)

// NonceSource issues strictly increasing nonces for authenticated requests.
//
// Exchanges reject any authenticated request whose nonce is not greater than
// the last one seen for the credential set ("Nonce must be greater"), so all
// callers sharing one API key must draw from the same source. Next is a
// single atomic increment and is safe for concurrent use; no two in-flight
// requests can observe the same or reordered values from one source.
type NonceSource struct {
	last atomic.Int64
}

// NewNonceSource creates a nonce source seeded from the wall clock in
// microseconds, so nonces keep increasing across process restarts as long
// as the process issues fewer than one request per microsecond.
func NewNonceSource() *NonceSource {
	ns := &NonceSource{}
	ns.last.Store(time.Now().UnixMicro())
	return ns
}

// Next returns a nonce strictly greater than every nonce previously
// returned by this source.
func (ns *NonceSource) Next() int64 {
	return ns.last.Add(1)
}
