// Package semantic implements the deterministic, regex-based content
// classifier described in spec.md §4.8: given a concept's text content, it
// assigns a primary semantic type, a domain, temporal bounds, causal
// relations, negation scope, and a confidence score. It never touches
// storage and has no bearing on any of the engine's invariants — it is a
// downstream annotation layer only.
package semantic

// Type is the primary semantic classification of a piece of content.
type Type uint8

const (
	TypeEntity Type = iota
	TypeRule
	TypeTemporal
	TypeNegation
	TypeCausal
	TypeCondition
	TypeQuantitative
	TypeDefinitional
	TypeEvent
)

func (t Type) String() string {
	switch t {
	case TypeRule:
		return "rule"
	case TypeTemporal:
		return "temporal"
	case TypeNegation:
		return "negation"
	case TypeCausal:
		return "causal"
	case TypeCondition:
		return "condition"
	case TypeQuantitative:
		return "quantitative"
	case TypeDefinitional:
		return "definitional"
	case TypeEvent:
		return "event"
	default:
		return "entity"
	}
}

// Domain is the detected subject-matter domain of a piece of content.
type Domain uint8

const (
	DomainGeneral Domain = iota
	DomainMedical
	DomainLegal
	DomainFinancial
	DomainTechnical
	DomainScientific
	DomainBusiness
)

func (d Domain) String() string {
	switch d {
	case DomainMedical:
		return "medical"
	case DomainLegal:
		return "legal"
	case DomainFinancial:
		return "financial"
	case DomainTechnical:
		return "technical"
	case DomainScientific:
		return "scientific"
	case DomainBusiness:
		return "business"
	default:
		return "general"
	}
}

// TemporalRelation is how a piece of content relates to the timestamp it
// mentions.
type TemporalRelation uint8

const (
	TemporalAt TemporalRelation = iota
	TemporalBefore
	TemporalAfter
	TemporalDuring
	TemporalBetween
)

// TemporalBounds captures an extracted time reference and its relation.
type TemporalBounds struct {
	StartUnix *int64 // seconds since epoch; nil if unknown
	EndUnix   *int64
	Relation  TemporalRelation
}

// CausalType distinguishes the flavor of a detected causal relation.
type CausalType uint8

const (
	CausalDirect CausalType = iota
	CausalEnabling
	CausalPreventing
)

// CausalRelation is one detected cause/effect pattern match.
type CausalRelation struct {
	Type       CausalType
	Strength   float32
	Confidence float32
}

// NegationType distinguishes explicit negation from exception clauses.
type NegationType uint8

const (
	NegationExplicit NegationType = iota
	NegationException
)

// NegationScope describes the extent of a detected negation. The analyzer
// leaves NegatedConceptIDs empty, and nothing else in this module fills it.
type NegationScope struct {
	NegatedConceptIDs []string // hex concept ids, populated by the caller
	Confidence        float32
	Type              NegationType
}

// Metadata is the complete output of analyzing one piece of content.
type Metadata struct {
	SemanticType           Type
	Domain                 Domain
	TemporalBounds         *TemporalBounds
	CausalRelations        []CausalRelation
	Negation               *NegationScope
	ClassificationConfidence float32
}
