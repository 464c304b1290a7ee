package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventQueueOrdering(t *testing.T) {
	q := NewEventQueue()
	require.True(t, q.IsEmpty())

	for _, ts := range []float64{15, 5, 20, 1, 10} {
		q.Push(Record{Timestamp: ts}, nil)
	}
	require.Equal(t, 5, q.Len())

	expected := []float64{1, 5, 10, 15, 20}
	for i, want := range expected {
		rec, _, ok := q.Pop()
		require.True(t, ok, "expected record at position %d", i)
		require.Equal(t, want, rec.Timestamp)
	}
	_, _, ok := q.Pop()
	require.False(t, ok)
}

func TestEventQueueTiesKeepPushOrder(t *testing.T) {
	q := NewEventQueue()
	q.Push(Record{Timestamp: 7, Path: "first"}, nil)
	q.Push(Record{Timestamp: 7, Path: "second"}, nil)
	q.Push(Record{Timestamp: 7, Path: "third"}, nil)

	for _, want := range []string{"first", "second", "third"} {
		rec, _, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, rec.Path)
	}
}

func TestEventQueuePeekAndClear(t *testing.T) {
	q := NewEventQueue()
	q.Push(Record{Timestamp: 3}, nil)
	q.Push(Record{Timestamp: 1}, nil)

	rec, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, 1.0, rec.Timestamp)
	require.Equal(t, 2, q.Len(), "peek must not consume")

	q.Clear()
	require.True(t, q.IsEmpty())
	_, ok = q.Peek()
	require.False(t, ok)
}
