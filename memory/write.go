package memory

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/sutradb/sutra/types"
)

// LearnConcept inserts or overwrites the concept id with content and an
// optional vector (spec.md §4.7). A vector whose length doesn't match the
// store's configured dimension is rejected (I4): the concept is still
// learned, just without a vector, and types.ErrDimensionMismatch is
// logged as a warning rather than returned — the write itself succeeds.
func (m *Memory) LearnConcept(id types.ConceptId, content []byte, vector []float32, strength, confidence float32) (uint64, error) {
	stop := m.lat.start(opLearn)
	defer stop()

	if vector != nil && len(vector) != m.cfg.VectorDimension {
		level.Warn(m.logger).Log("msg", "vector dimension mismatch, learning without vector",
			"concept", id.String(), "got", len(vector), "want", m.cfg.VectorDimension, "err", types.ErrDimensionMismatch)
		vector = nil
	}

	ts := nowUs()
	c := types.ConceptNode{
		ID:           id,
		Content:      content,
		Vector:       vector,
		Strength:     strength,
		Confidence:   confidence,
		Created:      ts,
		LastAccessed: ts,
	}
	if len(content) > 0 {
		meta := m.sem.Analyze(string(content))
		c.Semantic = &meta
	}

	return m.appendWrite(types.NewAddConcept(c))
}

// LearnText is a convenience wrapper over LearnConcept for callers that
// have an Embedder configured: it derives the vector from content via
// ctx, then learns the concept exactly as LearnConcept would. Returns
// types.ErrInvalidConfig if no Embedder was configured, since that is a
// construction-time mistake, not a per-call one.
func (m *Memory) LearnText(ctx context.Context, id types.ConceptId, content []byte, strength, confidence float32) (uint64, error) {
	if m.cfg.Embedder == nil {
		return 0, fmt.Errorf("no embedder configured: %w", types.ErrInvalidConfig)
	}
	vector, err := m.cfg.Embedder.Embed(ctx, string(content))
	if err != nil {
		return 0, fmt.Errorf("embed content: %w", err)
	}
	return m.LearnConcept(id, content, vector, strength, confidence)
}

// LearnAssociation records a directed, typed edge between two concepts
// (spec.md §4.7). Bidirectionality (I2) is established at apply time, not
// here: the coordinator only ever appends one AssociationRecord to the
// write plane, and applyEntry mirrors it onto both endpoints if they
// exist when the entry is applied.
func (m *Memory) LearnAssociation(source, target types.ConceptId, assocType types.AssociationType, confidence float32) (uint64, error) {
	stop := m.lat.start(opLearn)
	defer stop()

	rec := types.NewAssociationRecord(source, target, assocType, confidence, nowUs())
	return m.appendWrite(types.NewAddAssociation(rec))
}

// UpdateStrength sets concept id's strength to a new value.
func (m *Memory) UpdateStrength(id types.ConceptId, strength float32) (uint64, error) {
	stop := m.lat.start(opLearn)
	defer stop()

	return m.appendWrite(types.NewUpdateStrength(id, strength, nowUs()))
}

// RecordAccess bumps concept id's access_count and last_accessed. Per the
// resolved open question in spec.md §3, this is safe to replay more than
// once — access counts are advisory telemetry, not an invariant-bearing
// value.
func (m *Memory) RecordAccess(id types.ConceptId) (uint64, error) {
	stop := m.lat.start(opLearn)
	defer stop()

	return m.appendWrite(types.NewRecordAccess(id, nowUs()))
}

// DeleteConcept removes concept id and every other concept's reference to
// it (I3), once the entry is applied.
func (m *Memory) DeleteConcept(id types.ConceptId) (uint64, error) {
	stop := m.lat.start(opLearn)
	defer stop()

	return m.appendWrite(types.NewDeleteConcept(id))
}
