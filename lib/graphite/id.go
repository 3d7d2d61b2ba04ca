package graphite

import (
	"sync/atomic"
	"time"
)

// IDGenerator - generates the message ids, unique while the process lives
type IDGenerator struct {
	last int64
}

// NewIDGenerator - creates a generator seeded with the current time in nanoseconds
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		last: time.Now().UnixNano(),
	}
}

// Next - returns the next id
func (g *IDGenerator) Next() int64 {
	return atomic.AddInt64(&g.last, 1)
}
