// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mockable provides the block clock every component reads "now"
// and the current block height from.
package mockable

import (
	"sync"
	"time"
)

// Clock tracks the timestamp and height of the block being executed.
// Unless frozen with Set or Advance it follows wall time.
// It is safe for concurrent use.
type Clock struct {
	mu     sync.RWMutex
	faked  bool
	time   time.Time
	height uint64
}

// Set the time on the clock
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faked = true
	c.time = t
}

// Sync this clock with global time
func (c *Clock) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faked = false
}

// SetHeight sets the current block height.
func (c *Clock) SetHeight(height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = height
}

// Advance moves the clock forward by d and the height by blocks. The clock
// stays frozen afterwards.
func (c *Clock) Advance(d time.Duration, blocks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.faked {
		c.time = time.Now()
		c.faked = true
	}
	c.time = c.time.Add(d)
	c.height += blocks
}

// Time returns the time on this clock
func (c *Clock) Time() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.faked {
		return c.time
	}
	return time.Now()
}

// Unix returns the unix timestamp on this clock.
func (c *Clock) Unix() uint64 {
	unix := max(c.Time().Unix(), 0)
	return uint64(unix)
}

// Height returns the current block height.
func (c *Clock) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}
