package types

import "github.com/sutradb/sutra/semantic"

// ConceptNode is the unit of knowledge (§3.1). It owns its content buffer
// and optional embedding; associations and neighbor ordering are tracked
// alongside it so read-path traversal never has to consult a second index.
type ConceptNode struct {
	ID      ConceptId
	Content []byte    // opaque payload, immutable after creation
	Vector  []float32 // optional; nil if this concept has no embedding

	Strength   float32 // set at creation, replaced by UpdateStrength
	Confidence float32 // set at creation

	AccessCount  uint32
	LastAccessed uint64 // microseconds since epoch
	Created      uint64 // microseconds since epoch

	// Neighbors is the ordered list of outgoing edge targets. It is kept
	// distinct from Associations so that neighbor-order traversal (BFS,
	// find_path) doesn't need to rebuild an index from the association
	// slice on every query.
	Neighbors []ConceptId

	// Associations holds the full edge record for every applied outgoing
	// association, in apply order. A repeated association adds a record
	// here but no second Neighbors entry, so the two slices are not
	// index-aligned.
	Associations []AssociationRecord

	// Semantic is nil until a classifier runs over Content; concepts
	// created without analysis carry no semantic metadata at all.
	Semantic *semantic.Metadata
}

// Clone returns a copy suitable for the reconciler's clone-before-apply
// step. Content, Vector, Neighbors and Associations are copied; Semantic is
// copied one level deep, so its CausalRelations slice and pointer fields
// are shared with the original.
func (c ConceptNode) Clone() ConceptNode {
	out := c
	if c.Content != nil {
		out.Content = append([]byte(nil), c.Content...)
	}
	if c.Vector != nil {
		out.Vector = append([]float32(nil), c.Vector...)
	}
	if c.Neighbors != nil {
		out.Neighbors = append([]ConceptId(nil), c.Neighbors...)
	}
	if c.Associations != nil {
		out.Associations = append([]AssociationRecord(nil), c.Associations...)
	}
	if c.Semantic != nil {
		m := *c.Semantic
		out.Semantic = &m
	}
	return out
}

// AddNeighbor appends a new outgoing association, keeping Neighbors and
// Associations in lockstep. It does not deduplicate; callers (learn_association)
// are responsible for upsert semantics.
func (c *ConceptNode) AddNeighbor(rec AssociationRecord) {
	c.Neighbors = append(c.Neighbors, rec.TargetID)
	c.Associations = append(c.Associations, rec)
}

// RemoveNeighbor deletes the association targeting id, if present, keeping
// both slices in lockstep. Reports whether anything was removed.
func (c *ConceptNode) RemoveNeighbor(id ConceptId) bool {
	for i, n := range c.Neighbors {
		if n == id {
			c.Neighbors = append(c.Neighbors[:i], c.Neighbors[i+1:]...)
			c.Associations = append(c.Associations[:i], c.Associations[i+1:]...)
			return true
		}
	}
	return false
}
