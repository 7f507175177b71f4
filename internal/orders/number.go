package orders

import (
	"strconv"
	"sync"
	"time"
)

const orderNumberPrefix = "ORD-"

// numberGenerator issues ORD-<unix millis> numbers that never repeat within
// the process, even when two orders land in the same millisecond.
type numberGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newNumberGenerator(now func() time.Time) *numberGenerator {
	if now == nil {
		now = time.Now
	}
	return &numberGenerator{now: now}
}

func (g *numberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	millis := g.now().UnixMilli()
	if millis <= g.last {
		millis = g.last + 1
	}
	g.last = millis
	return orderNumberPrefix + strconv.FormatInt(millis, 10)
}
