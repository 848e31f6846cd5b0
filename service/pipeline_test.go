package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slabpool/domain/event"
	"slabpool/infra/overflow"
	"slabpool/infra/ring"
	"slabpool/infra/sequence"
	"slabpool/pool"
)

type fakePublisher struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, ev *event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, append([]byte(nil), ev.Payload...))
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestPipeline(
	t *testing.T,
	capacity uint64,
	ringSize uint64,
) (*Pipeline, *fakePublisher, *overflow.Journal, *pool.Pool[event.Event]) {
	t.Helper()

	p, err := pool.New[event.Event](capacity, func(e *event.Event) { e.Reset() })
	require.NoError(t, err)
	t.Cleanup(p.Close)

	j, err := overflow.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	pub := &fakePublisher{}
	pipe := NewPipeline(p, ring.New[*pool.Handle[event.Event]](ringSize), j, pub, sequence.New(0), nil)
	return pipe, pub, j, p
}

func TestSubmitPublishesAndReleases(t *testing.T) {
	pipe, pub, _, p := newTestPipeline(t, 4, 8)

	ctx, cancel := context.WithCancel(context.Background())
	pipe.Start(ctx)

	for i := 0; i < 3; i++ {
		if _, err := pipe.Submit([]byte("k"), []byte{byte(i)}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	require.Eventually(t, func() bool { return pub.count() == 3 },
		2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return p.Available() == 4 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-pipe.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("publish worker did not stop")
	}
}

func TestPoolExhaustionSpills(t *testing.T) {
	pipe, _, j, _ := newTestPipeline(t, 1, 8)
	// Worker not started: the first submit parks in the ring and
	// holds the only slot.

	seq1, err := pipe.Submit(nil, []byte("first"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq1)

	seq2, err := pipe.Submit(nil, []byte("second"))
	require.NoError(t, err)

	rec, err := j.Get(seq2)
	require.NoError(t, err)
	require.Equal(t, overflow.StatePending, rec.State)
	require.Equal(t, []byte("second"), rec.Payload)
}

func TestRingFullSpills(t *testing.T) {
	pipe, _, j, p := newTestPipeline(t, 4, 1)

	_, err := pipe.Submit(nil, []byte("a"))
	require.NoError(t, err)

	seq2, err := pipe.Submit(nil, []byte("b"))
	require.NoError(t, err)

	// The second event's slot must have been given back.
	require.Equal(t, uint64(3), p.Available())

	rec, err := j.Get(seq2)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), rec.Payload)
}

func TestPublishFailureSpills(t *testing.T) {
	pipe, pub, j, p := newTestPipeline(t, 4, 8)
	pub.err = errors.New("broker down")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipe.Start(ctx)

	seq, err := pipe.Submit(nil, []byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := j.Get(seq)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return p.Available() == 4 },
		2*time.Second, 5*time.Millisecond)
}
