package sightings

import (
	"strconv"
	"sync/atomic"
	"time"
)

// idGenerator issues time derived ids that never repeat within a process,
// even when several are requested in the same millisecond.
type idGenerator struct {
	last atomic.Int64
}

func (g *idGenerator) next(now time.Time) string {
	ms := now.UnixMilli()
	for {
		prev := g.last.Load()
		n := ms
		if n <= prev {
			n = prev + 1
		}
		if g.last.CompareAndSwap(prev, n) {
			return strconv.FormatInt(n, 10)
		}
	}
}

// observe raises the floor to an id issued earlier, possibly by a previous
// run. Ids that are not decimal are ignored.
func (g *idGenerator) observe(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}
	for {
		prev := g.last.Load()
		if n <= prev || g.last.CompareAndSwap(prev, n) {
			return
		}
	}
}

var localIDs idGenerator
