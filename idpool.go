package orpheus

import (
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// newID returns a fresh random 128-bit id rendered as 32 lowercase hex
// characters.
func newID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// idPool keeps a channel of pre-generated ids to amortize generation cost
// under bursty span creation.
type idPool struct {
	ids    chan string
	stopCh chan struct{}
	mu     sync.Mutex
	closed bool
}

func newIDPool(capacity int) *idPool {
	p := &idPool{
		ids:    make(chan string, capacity),
		stopCh: make(chan struct{}),
	}
	go p.refill()
	return p
}

// get returns a pooled id, falling back to direct generation when the pool
// is empty.
func (p *idPool) get() string {
	select {
	case id := <-p.ids:
		return id
	default:
		return newID()
	}
}

func (p *idPool) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		case p.ids <- newID():
		}
	}
}

// close shuts the refill goroutine down. Idempotent.
func (p *idPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}
