package memory

import (
	"golang.org/x/exp/slices"

	"github.com/sutradb/sutra/snapshot"
	"github.com/sutradb/sutra/types"
)

// applyEntry folds one WriteEntry into an in-progress snapshot build,
// exactly per the apply rules in spec.md §4.4. It is shared between two
// callers: the WAL replay fold at New() (building the initial snapshot
// before the reconciler ever runs) and the reconciler's ApplyFunc once
// steady-state operation begins, so the two never drift apart.
//
// Apply is purely in-memory and, per spec.md §4.4, "cannot fail" — any
// inconsistency here is a programmer error. The error return exists only
// so reconciler.ApplyFunc's signature stays uniform; every path below
// returns nil.
func applyEntry(b *snapshot.Builder, entry types.WriteEntry) error {
	switch entry.Kind {
	case types.WriteAddConcept:
		c := entry.Concept.Clone()
		c.AccessCount = 0
		b.PutConcept(c)

	case types.WriteAddAssociation:
		applyAddAssociation(b, entry.Association)

	case types.WriteUpdateStrength:
		if c, ok := b.Get(entry.TargetID); ok {
			c = c.Clone()
			c.Strength = entry.NewValue
			b.PutConcept(c)
		}

	case types.WriteRecordAccess:
		if c, ok := b.Get(entry.TargetID); ok {
			c = c.Clone()
			c.LastAccessed = entry.Timestamp
			c.AccessCount++
			b.PutConcept(c)
		}

	case types.WriteDeleteConcept:
		applyDeleteConcept(b, entry.TargetID)

	case types.WriteBatchMarker:
		// advisory only; no state change.
	}
	return nil
}

// applyAddAssociation appends rec to the source's associations/neighbors
// and mirrors a reversed copy onto the target, so I2 (bidirectional
// edges) holds for every pair of concepts that both exist at apply time.
// A concept absent from the snapshot is skipped for its side only,
// exactly as spec.md §4.4 specifies.
func applyAddAssociation(b *snapshot.Builder, rec types.AssociationRecord) {
	if src, ok := b.Get(rec.SourceID); ok {
		src = src.Clone()
		addNeighborDedup(&src, rec)
		b.PutConcept(src)
	}
	if rec.TargetID == rec.SourceID {
		return
	}
	if dst, ok := b.Get(rec.TargetID); ok {
		dst = dst.Clone()
		mirrored := rec
		mirrored.SourceID, mirrored.TargetID = rec.TargetID, rec.SourceID
		addNeighborDedup(&dst, mirrored)
		b.PutConcept(dst)
	}
}

// addNeighborDedup appends rec to c's Associations unconditionally (two
// learn_association calls with identical endpoints are allowed to leave
// two association records, per the idempotence law in spec.md §8) but
// only adds rec.TargetID to c.Neighbors if it isn't already present,
// since Neighbors is the traversal/query surface and must not grow
// unboundedly from a repeated write.
func addNeighborDedup(c *types.ConceptNode, rec types.AssociationRecord) {
	c.Associations = append(c.Associations, rec)
	if slices.Contains(c.Neighbors, rec.TargetID) {
		return
	}
	c.Neighbors = append(c.Neighbors, rec.TargetID)
}

// applyDeleteConcept removes id from the map and purges every reference
// to it from every other concept's Neighbors/Associations (I3). This is
// O(n) in the number of concepts per delete, as spec.md §9 notes;
// batching deletes within one reconciliation cycle amortizes the cost.
func applyDeleteConcept(b *snapshot.Builder, id types.ConceptId) {
	b.DeleteConcept(id)

	var toUpdate []types.ConceptNode
	b.ForEach(func(_ types.ConceptId, c types.ConceptNode) {
		if removeBackReferences(&c, id) {
			toUpdate = append(toUpdate, c)
		}
	})
	for _, c := range toUpdate {
		b.PutConcept(c)
	}
}

// removeBackReferences strips every reference to target from c's
// Neighbors and Associations. It filters Associations independently of
// Neighbors rather than assuming the two stay index-aligned, since
// addNeighborDedup can leave Associations holding more entries for a
// target than Neighbors does (the permitted duplicate case in the
// idempotence law, spec.md §8). Reports whether anything changed.
func removeBackReferences(c *types.ConceptNode, target types.ConceptId) bool {
	changed := false

	neighbors := c.Neighbors[:0:0]
	for _, n := range c.Neighbors {
		if n == target {
			changed = true
			continue
		}
		neighbors = append(neighbors, n)
	}
	c.Neighbors = neighbors

	assocs := c.Associations[:0:0]
	for _, a := range c.Associations {
		if a.TargetID == target {
			changed = true
			continue
		}
		assocs = append(assocs, a)
	}
	c.Associations = assocs

	return changed
}
