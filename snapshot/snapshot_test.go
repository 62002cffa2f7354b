package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/types"
)

func TestBuilderStructuralSharing(t *testing.T) {
	base := Empty()
	b := NewBuilder(base)
	id1 := types.ConceptId{1}
	id2 := types.ConceptId{2}
	b.PutConcept(types.ConceptNode{ID: id1, Strength: 1})
	b.PutConcept(types.ConceptNode{ID: id2, Strength: 2})
	b.MarkSequence(5)
	snap1 := b.Build(1000)

	require.Equal(t, 2, snap1.Len())
	require.Equal(t, uint64(5), snap1.Sequence)

	// A second build from snap1 that only touches id1 should leave id2
	// reachable and unaffected in both snapshots (structural sharing).
	b2 := NewBuilder(snap1)
	b2.PutConcept(types.ConceptNode{ID: id1, Strength: 99})
	b2.MarkSequence(6)
	snap2 := b2.Build(2000)

	require.Equal(t, 2, snap2.Len())
	c1, ok := snap2.Get(id1)
	require.True(t, ok)
	require.Equal(t, float32(99), c1.Strength)

	c1Old, ok := snap1.Get(id1)
	require.True(t, ok)
	require.Equal(t, float32(1), c1Old.Strength, "original snapshot must be unaffected by later builder")

	c2, ok := snap2.Get(id2)
	require.True(t, ok)
	require.Equal(t, float32(2), c2.Strength)
}

func TestBuilderDeleteConcept(t *testing.T) {
	b := NewBuilder(Empty())
	id := types.ConceptId{7}
	b.PutConcept(types.ConceptNode{ID: id, Neighbors: []types.ConceptId{{8}}})
	snap1 := b.Build(0)
	require.Equal(t, 1, snap1.EdgeCount)

	b2 := NewBuilder(snap1)
	b2.DeleteConcept(id)
	snap2 := b2.Build(0)

	require.Equal(t, 0, snap2.Len())
	require.Equal(t, 0, snap2.EdgeCount)
	_, ok := snap2.Get(id)
	require.False(t, ok)

	_, ok = snap1.Get(id)
	require.True(t, ok, "deleting from builder must not mutate base snapshot")
}

func TestEmptySnapshot(t *testing.T) {
	s := Empty()
	require.Equal(t, 0, s.Len())
	_, ok := s.Get(types.ConceptId{1})
	require.False(t, ok)
}
