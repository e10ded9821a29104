package comm

import (
	"io"
	"sync"
	"time"
)

// CreationFunc is a function which returns a new connection to the bridge.
// A closure should be used to encapsulate the variables needed.
type CreationFunc func() (io.ReadWriteCloser, error)

// Pool holds up to maxSize connections which are closed once all of them
// have sat idle for the timeout, and reopened as needed.  It is concurrent
// safe.  Pools must be created with NewPool.
type Pool struct {
	maxSize int
	timeout time.Duration
	maker   CreationFunc

	// slots holds one token per connection that may exist
	slots chan struct{}

	mu      sync.Mutex
	idle    []io.ReadWriteCloser
	onLease int
	timer   *time.Timer
}

// NewPool creates a new pool
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	if maxSize < 1 {
		maxSize = 1
	}
	p := &Pool{
		maxSize: maxSize,
		timeout: timeout,
		maker:   maker,
		slots:   make(chan struct{}, maxSize),
	}
	for i := 0; i < maxSize; i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Get retrieves a connection, blocking until one is available if all are in
// use.  The caller has exclusive use of it until it is handed back with Put,
// or discarded with Destroy if it has gone bad.
//
// If the error from Get is not nil, nothing may be returned to the pool.
func (p *Pool) Get() (io.ReadWriter, error) {
	<-p.slots

	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.onLease++
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.maker()
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}
	p.mu.Lock()
	p.onLease++
	p.mu.Unlock()
	return c, nil
}

// Put restores a connection to the pool
func (p *Pool) Put(rw io.ReadWriter) {
	p.mu.Lock()
	p.idle = append(p.idle, rw.(io.ReadWriteCloser))
	p.onLease--
	if p.onLease == 0 && p.timeout > 0 {
		p.timer = time.AfterFunc(p.timeout, p.reclaim)
	}
	p.mu.Unlock()
	p.slots <- struct{}{}
}

// Destroy immediately closes a connection owned by the pool.  This should
// be used instead of Put if the connection has gone bad.
func (p *Pool) Destroy(rw io.ReadWriter) {
	rw.(io.ReadWriteCloser).Close()
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
	p.slots <- struct{}{}
}

// Size returns the number of connections in the pool, or given out from it
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle) + p.onLease
}

// Active returns the number of connections currently given out
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLease
}

// reclaim closes idle connections if none were leased since the timer started
func (p *Pool) reclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onLease > 0 {
		return
	}
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
	p.timer = nil
}

// Close closes every idle connection.  Leased connections are unaffected.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	var err error
	for _, c := range p.idle {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	p.idle = nil
	return err
}
