// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vegauge/utils/timer/mockable"
)

var errTest = errors.New("non-nil error")

type recorder struct {
	executed map[string]int
	failed   map[string]int
	emitted  []string
}

func (r *recorder) Executed(op string, err error) {
	if err != nil {
		r.failed[op]++
		return
	}
	r.executed[op]++
}

func (r *recorder) Emitted(_ ids.ShortID, name string) {
	r.emitted = append(r.emitted, name)
}

func newTestRuntime(t *testing.T) (*Runtime, database.Database, *recorder) {
	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_000_000, 0))
	clock.SetHeight(5)

	base := memdb.New()
	rt := New(base, clock, log.NoLog{})
	rec := &recorder{executed: map[string]int{}, failed: map[string]int{}}
	rt.SetObserver(rec)
	t.Cleanup(func() { _ = base.Close() })
	return rt, base, rec
}

func TestAtomicCommit(t *testing.T) {
	require := require.New(t)

	rt, base, rec := newTestRuntime(t)
	db := rt.DB("c")
	contract := ids.GenerateTestShortID()

	err := rt.Atomic(context.Background(), "put", func() error {
		rt.Emit(contract, "Put", "key", "k")
		return db.Put([]byte("k"), []byte("v"))
	})
	require.NoError(err)

	it := base.NewIterator()
	require.True(it.Next())
	require.Equal([]byte("v"), it.Value())
	it.Release()

	got, err := db.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), got)

	events := rt.Events(0)
	require.Len(events, 1)
	require.Equal("Put", events[0].Name)
	require.Equal("k", events[0].Fields["key"])
	require.Equal(uint64(1_000_000), events[0].Timestamp)
	require.Equal(uint64(5), events[0].Height)
	require.Equal(1, rec.executed["put"])
	require.Equal([]string{"Put"}, rec.emitted)
}

func TestAtomicAbort(t *testing.T) {
	require := require.New(t)

	rt, _, rec := newTestRuntime(t)
	db := rt.DB("c")

	err := rt.Atomic(context.Background(), "outer", func() error {
		require.NoError(db.Put([]byte("a"), []byte{1}))
		return rt.Atomic(context.Background(), "inner", func() error {
			require.True(rt.InTransaction())
			require.NoError(db.Put([]byte("b"), []byte{2}))
			rt.Emit(ids.ShortEmpty, "Inner")
			return errTest
		})
	})
	require.ErrorIs(err, errTest)
	require.False(rt.InTransaction())

	for _, key := range []string{"a", "b"} {
		_, err := db.Get([]byte(key))
		require.ErrorIs(err, database.ErrNotFound)
	}
	require.Empty(rt.Events(0))
	require.Equal(1, rec.failed["outer"])
	require.Zero(rec.failed["inner"])
}

func TestNestedCommitIsDeferred(t *testing.T) {
	require := require.New(t)

	rt, _, rec := newTestRuntime(t)
	db := rt.DB("c")

	err := rt.Atomic(context.Background(), "outer", func() error {
		require.NoError(rt.Atomic(context.Background(), "inner", func() error {
			return db.Put([]byte("b"), []byte{2})
		}))
		return errTest
	})
	require.ErrorIs(err, errTest)

	_, err = db.Get([]byte("b"))
	require.ErrorIs(err, database.ErrNotFound)
	require.Zero(rec.executed["inner"])
}

func TestSimulateDiscards(t *testing.T) {
	require := require.New(t)

	rt, _, _ := newTestRuntime(t)
	db := rt.DB("c")

	var seen []byte
	err := rt.Simulate(context.Background(), func() error {
		if err := db.Put([]byte("k"), []byte("v")); err != nil {
			return err
		}
		var err error
		seen, err = db.Get([]byte("k"))
		return err
	})
	require.NoError(err)
	require.Equal([]byte("v"), seen)

	_, err = db.Get([]byte("k"))
	require.ErrorIs(err, database.ErrNotFound)

	err = rt.Atomic(context.Background(), "outer", func() error {
		return rt.Simulate(context.Background(), func() error { return nil })
	})
	require.ErrorIs(err, ErrNestedSimulation)
}

func TestCanceledContext(t *testing.T) {
	require := require.New(t)

	rt, _, _ := newTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := rt.Atomic(ctx, "noop", func() error {
		called = true
		return nil
	})
	require.ErrorIs(err, context.Canceled)
	require.False(called)
}

func TestEventBuffer(t *testing.T) {
	require := require.New(t)

	rt, _, _ := newTestRuntime(t)
	rt.SetEventBufferSize(2)

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(rt.Atomic(context.Background(), "emit", func() error {
			rt.Emit(ids.ShortEmpty, name)
			return nil
		}))
	}

	events := rt.Events(0)
	require.Len(events, 2)
	require.Equal("B", events[0].Name)
	require.Equal("C", events[1].Name)

	events = rt.Events(1)
	require.Len(events, 1)
	require.Equal("C", events[0].Name)
}
