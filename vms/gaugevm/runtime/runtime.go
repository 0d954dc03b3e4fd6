// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime executes component calls as all-or-nothing transactions
// against a shared versioned database.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/vegauge/utils/timer/mockable"
)

const defaultEventBufferSize = 1024

var ErrNestedSimulation = errors.New("cannot simulate inside a transaction")

// Observer is notified about finished transactions and emitted events.
type Observer interface {
	Executed(op string, err error)
	Emitted(contract ids.ShortID, name string)
}

// Event is a log entry emitted by a component during a committed call.
type Event struct {
	Height    uint64            `json:"height"`
	Timestamp uint64            `json:"timestamp"`
	Contract  ids.ShortID       `json:"contract"`
	Name      string            `json:"name"`
	Fields    map[string]string `json:"fields"`
}

// Runtime serializes nothing by itself. Callers must not invoke it from
// more than one goroutine at a time; the VM lock provides that.
type Runtime struct {
	log      log.Logger
	clock    *mockable.Clock
	db       *versiondb.Database
	observer Observer

	depth   int
	pending []Event

	eventsLock sync.RWMutex
	events     []Event
	maxEvents  int
}

// New wraps db in a versioned database. Committed transactions are written
// through to db.
func New(db database.Database, clock *mockable.Clock, logger log.Logger) *Runtime {
	return &Runtime{
		log:       logger,
		clock:     clock,
		db:        versiondb.New(db),
		maxEvents: defaultEventBufferSize,
	}
}

// SetObserver installs o. A nil observer disables notifications.
func (r *Runtime) SetObserver(o Observer) {
	r.observer = o
}

// SetEventBufferSize bounds the number of committed events kept for
// queries.
func (r *Runtime) SetEventBufferSize(n int) {
	r.eventsLock.Lock()
	defer r.eventsLock.Unlock()
	r.maxEvents = n
	r.trimEvents()
}

// DB returns the namespace of one component.
func (r *Runtime) DB(prefix string) database.Database {
	return prefixdb.New([]byte(prefix), r.db)
}

func (r *Runtime) Log() log.Logger {
	return r.log
}

func (r *Runtime) Clock() *mockable.Clock {
	return r.clock
}

// Now returns the timestamp of the block being executed.
func (r *Runtime) Now() uint64 {
	return r.clock.Unix()
}

// Height returns the number of the block being executed.
func (r *Runtime) Height() uint64 {
	return r.clock.Height()
}

// InTransaction reports whether a call is executing.
func (r *Runtime) InTransaction() bool {
	return r.depth > 0
}

// Atomic runs fn as a transaction. The outermost call commits every write
// made by fn and by nested calls if fn succeeds and discards all of them
// otherwise. Nested calls join the outer transaction.
func (r *Runtime) Atomic(ctx context.Context, op string, fn func() error) error {
	if r.depth == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	r.depth++
	err := fn()
	r.depth--
	if r.depth > 0 {
		return err
	}

	if err != nil {
		r.abort(op, err)
		return err
	}
	if err := r.db.Commit(); err != nil {
		r.abort(op, err)
		return fmt.Errorf("couldn't commit %s: %w", op, err)
	}
	r.publish()
	if r.observer != nil {
		r.observer.Executed(op, nil)
	}
	return nil
}

// Simulate runs fn and discards its writes and events, whatever the
// outcome. It is used to answer queries that need a checkpoint first.
func (r *Runtime) Simulate(ctx context.Context, fn func() error) error {
	if r.depth > 0 {
		return ErrNestedSimulation
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.depth++
	err := fn()
	r.depth--
	r.db.Abort()
	r.pending = nil
	return err
}

// Emit records an event of the running transaction. fields are key/value
// pairs.
func (r *Runtime) Emit(contract ids.ShortID, name string, fields ...any) {
	e := Event{
		Height:    r.Height(),
		Timestamp: r.Now(),
		Contract:  contract,
		Name:      name,
		Fields:    make(map[string]string, len(fields)/2),
	}
	for i := 0; i+1 < len(fields); i += 2 {
		e.Fields[fmt.Sprint(fields[i])] = fmt.Sprint(fields[i+1])
	}
	r.pending = append(r.pending, e)
	r.log.Debug(name, append([]any{"contract", contract}, fields...)...)
}

// Events returns up to limit of the most recent committed events, oldest
// first. A non-positive limit returns all buffered events.
func (r *Runtime) Events(limit int) []Event {
	r.eventsLock.RLock()
	defer r.eventsLock.RUnlock()

	start := 0
	if limit > 0 && limit < len(r.events) {
		start = len(r.events) - limit
	}
	out := make([]Event, len(r.events)-start)
	copy(out, r.events[start:])
	return out
}

func (r *Runtime) abort(op string, err error) {
	r.db.Abort()
	r.pending = nil
	r.log.Debug("transaction reverted", "op", op, "error", err)
	if r.observer != nil {
		r.observer.Executed(op, err)
	}
}

func (r *Runtime) publish() {
	pending := r.pending
	r.pending = nil

	if r.observer != nil {
		for _, e := range pending {
			r.observer.Emitted(e.Contract, e.Name)
		}
	}

	r.eventsLock.Lock()
	defer r.eventsLock.Unlock()
	r.events = append(r.events, pending...)
	r.trimEvents()
}

func (r *Runtime) trimEvents() {
	if r.maxEvents > 0 && len(r.events) > r.maxEvents {
		r.events = append([]Event(nil), r.events[len(r.events)-r.maxEvents:]...)
	}
}
