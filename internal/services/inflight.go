package services

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"finhouse/internal/core"
)

// InflightGroup collapses concurrent bill resolutions sharing a key into one
// call. An entry lives only while its call runs, failures included.
type InflightGroup struct {
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

func NewInflightGroup() *InflightGroup {
	return &InflightGroup{}
}

// Do runs fn unless a call for key is already in flight, in which case it
// waits for that call and returns its result.
func (g *InflightGroup) Do(key string, fn func() (core.Bill, error)) (core.Bill, error) {
	ran := false
	v, err, _ := g.group.Do(key, func() (any, error) {
		ran = true
		return fn()
	})
	if ran {
		g.misses.Add(1)
	} else {
		g.hits.Add(1)
	}
	bill, _ := v.(core.Bill)
	return bill, err
}

// Hits counts calls that joined an in-flight call.
func (g *InflightGroup) Hits() int64 { return g.hits.Load() }

// Misses counts calls that ran their own function.
func (g *InflightGroup) Misses() int64 { return g.misses.Load() }

// Forget drops key so the next call runs fresh even if one is in flight.
func (g *InflightGroup) Forget(key string) { g.group.Forget(key) }

// Reset zeroes the counters.
func (g *InflightGroup) Reset() {
	g.hits.Store(0)
	g.misses.Store(0)
}
