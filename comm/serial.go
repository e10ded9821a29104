package comm

import (
	"sync"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// Serial makes a transport safe for concurrent use by serializing exchanges
type Serial struct {
	mu sync.Mutex
	t  nios.Transport
}

// NewSerial wraps t.  Wrapping a *Serial returns it unchanged.
func NewSerial(t nios.Transport) *Serial {
	if s, ok := t.(*Serial); ok {
		return s
	}
	return &Serial{t: t}
}

// Exchange sends req and waits for its response while holding the lock
func (s *Serial) Exchange(req nios.Frame) (nios.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Exchange(req)
}
