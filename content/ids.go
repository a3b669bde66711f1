package content

import (
	"sync/atomic"

	"github.com/eringen/gitpress/clock"
)

// idSource hands out millisecond timestamps that never repeat within the
// process, so two thoughts created in the same millisecond still get
// distinct, increasing ids.
type idSource struct {
	clock clock.Clock
	last  atomic.Int64
}

func (s *idSource) nextMillis() int64 {
	now := s.clock.Now().UnixMilli()
	for {
		last := s.last.Load()
		next := max(now, last+1)
		if s.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
