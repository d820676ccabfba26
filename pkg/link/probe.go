package link

import (
	"sync"
	"time"
)

// probe remembers when the last ping left so the matching pong can be timed.
type probe struct {
	mu     sync.Mutex
	sentAt time.Time
}

func (p *probe) sent(t time.Time) {
	p.mu.Lock()
	p.sentAt = t
	p.mu.Unlock()
}

// received returns the round trip of the outstanding ping. A pong with no
// ping outstanding is ignored.
func (p *probe) received(t time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sentAt.IsZero() {
		return 0, false
	}
	rtt := t.Sub(p.sentAt)
	p.sentAt = time.Time{}
	if rtt < 0 {
		rtt = 0
	}
	return rtt, true
}
