package ksm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFree_UnmanagedFrame(t *testing.T) {
	m := newMachine(t)
	a := m.spawn(t, 3, text("suelta"))
	pa := a.pa(0)

	require.NoError(t, m.engine.Free(pa, 3, 0))
	assert.Equal(t, 1, m.mem.freed[pa])
}

func TestFree_CandidateIsUnregistered(t *testing.T) {
	m := newMachine(t)
	a := m.spawn(t, 3, text("candidata"))
	m.scan(t, caller)
	pa := a.pa(0)

	require.NoError(t, m.engine.Free(pa+100, 3, 50))

	assert.Empty(t, m.engine.registry.UnstableNodes())
	assert.Equal(t, 1, m.mem.freed[pa])
	assert.NoError(t, m.engine.Verify())
}

func TestFree_CandidateWithAnotherOwnerPoisons(t *testing.T) {
	m := newMachine(t)
	a := m.spawn(t, 3, text("candidata"))
	m.scan(t, caller)

	cerr := recoverConsistency(t, func() {
		m.engine.Free(a.pa(0), 4, 0)
	})
	assert.Equal(t, "free", cerr.Op)
	assert.Zero(t, m.mem.freed[a.pa(0)])

	_, err := m.engine.Scan(m, caller)
	assert.ErrorIs(t, err, ErrPoisoned)
}

func TestFree_SharedFrameReleasedExactlyOnce(t *testing.T) {
	m := newMachine(t)
	a, b := shareD(t, m)
	shared := a.pa(0)

	require.NoError(t, m.engine.Free(shared, 3, 0))
	assert.Zero(t, m.mem.freed[shared])
	node, _, ok := m.engine.registry.Stable(shared)
	require.True(t, ok)
	assert.Equal(t, 1, node.RefCount)
	assert.Equal(t, []ReverseMapping{{PID: 4, VA: 0}}, node.Reverse)
	require.NoError(t, m.engine.Verify())

	require.NoError(t, m.engine.Free(b.pa(0), 4, 0))
	assert.Equal(t, 1, m.mem.freed[shared])
	_, _, ok = m.engine.registry.Stable(shared)
	assert.False(t, ok)
	assert.NoError(t, m.engine.Verify())
}

func TestFree_ZeroPageOnlyLosesCount(t *testing.T) {
	m := newMachine(t)
	m.spawn(t, 3, fill(0))
	m.spawn(t, 4, fill(0))
	m.scan(t, caller)

	require.NoError(t, m.engine.Free(m.zero, 3, 0))
	require.NoError(t, m.engine.Free(m.zero, 4, 0))
	require.NoError(t, m.engine.Free(m.zero, 5, 0))

	sentinel := m.engine.registry.Sentinel()
	assert.Equal(t, m.zero, sentinel.PA)
	assert.Zero(t, sentinel.RefCount)
	assert.Zero(t, m.mem.freed[m.zero])
	assert.NoError(t, m.engine.Verify())
}

func TestFree_UnknownMappingOnSharedFramePoisons(t *testing.T) {
	m := newMachine(t)
	a, _ := shareD(t, m)

	cerr := recoverConsistency(t, func() {
		m.engine.Free(a.pa(0), 3, 0x5000)
	})
	assert.Equal(t, "free", cerr.Op)
	assert.Contains(t, cerr.Error(), "mapeo inverso")
}

func TestFree_RemovedNodeKeepsOthersReachable(t *testing.T) {
	m := newMachine(t)
	m.spawn(t, 3, text("uno"), text("dos"))
	m.spawn(t, 4, text("uno"), text("dos"))
	m.scan(t, caller)
	require.Len(t, m.engine.registry.StableNodes(), 3)

	first := m.engine.registry.StableNodes()[1]
	require.NoError(t, m.engine.Free(first.PA, 3, first.Reverse[0].VA))
	require.NoError(t, m.engine.Free(first.PA, 4, first.Reverse[0].VA))

	nodes := m.engine.registry.StableNodes()
	require.Len(t, nodes, 2)
	assert.True(t, nodes[0].Zero)
	assert.Equal(t, 2, nodes[1].RefCount)
	assert.NoError(t, m.engine.Verify())
}
