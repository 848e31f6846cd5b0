package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type heldSlot struct {
	v *int
	h *Handle[int]
}

// poolMachine models the free list as two layers: freed slots (a LIFO
// stack of known pointers, reused top-first) sitting above the virgin
// slots that have never been claimed.
type poolMachine struct {
	p      *Pool[int]
	freed  []*int // known freed slots, last element on top
	virgin int    // never-claimed slots below them
	held   []heldSlot
}

func (m *poolMachine) init(t *rapid.T) {
	capacity := rapid.Uint64Range(1, 8).Draw(t, "capacity")
	p, err := New[int](capacity, nil)
	require.NoError(t, err)
	m.p = p
	m.virgin = int(capacity)
}

func (m *poolMachine) isLive(v *int) bool {
	for _, s := range m.held {
		if s.v == v {
			return true
		}
	}
	return false
}

func (m *poolMachine) Construct(t *rapid.T) {
	x := rapid.Int().Draw(t, "x")
	h := m.p.Construct(x)
	v := h.Value()

	switch {
	case len(m.freed) > 0:
		top := m.freed[len(m.freed)-1]
		require.Equal(t, top, v, "reuse must pop the last freed slot")
		m.freed = m.freed[:len(m.freed)-1]
	case m.virgin > 0:
		require.NotNil(t, v)
		require.False(t, m.isLive(v), "virgin claim returned a live slot")
		m.virgin--
	default:
		require.Nil(t, v, "construct must report exhaustion")
		return
	}

	require.Equal(t, x, *v)
	m.held = append(m.held, heldSlot{v: v, h: &h})
}

func (m *poolMachine) Release(t *rapid.T) {
	if len(m.held) == 0 {
		t.Skip("nothing held")
	}
	n := rapid.IntRange(0, len(m.held)-1).Draw(t, "victim")
	s := m.held[n]
	m.held = append(m.held[:n], m.held[n+1:]...)
	s.h.Release()
	m.freed = append(m.freed, s.v)
}

func (m *poolMachine) Check(t *rapid.T) {
	free := uint64(len(m.freed) + m.virgin)
	require.Equal(t, free, m.p.Available())
	require.Equal(t, m.p.Capacity()-free, uint64(len(m.held)))
}

func TestPoolStateMachine(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m poolMachine
		m.init(t)
		t.Repeat(rapid.StateMachineActions(&m))
	})
}
