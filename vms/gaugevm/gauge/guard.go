// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gauge

import "sync"

// guard rejects nested entry into the gauge's mutating operations, e.g.
// from a token that calls back into the gauge during a transfer.
type guard struct {
	lock   sync.Mutex
	locked bool
}

// acquire takes the guard. The returned func releases it and must be
// called on every path.
func (g *guard) acquire() (func(), error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.locked {
		return nil, ErrReentrant
	}
	g.locked = true
	return func() {
		g.lock.Lock()
		g.locked = false
		g.lock.Unlock()
	}, nil
}
