package semantic

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeClassifiesRuleAndMedicalDomain(t *testing.T) {
	a := NewAnalyzer()
	m := a.Analyze("Patients must complete the consent form before treatment.")
	require.Equal(t, TypeRule, m.SemanticType)
	require.Equal(t, DomainMedical, m.Domain)
}

func TestAnalyzeExtractsTemporalYear(t *testing.T) {
	a := NewAnalyzer()
	m := a.Analyze("The merger closed after the audit in 2021.")
	require.NotNil(t, m.TemporalBounds)
	require.Equal(t, TemporalAfter, m.TemporalBounds.Relation)
	require.NotNil(t, m.TemporalBounds.StartUnix)
}

func TestAnalyzeDefaultsToEntity(t *testing.T) {
	a := NewAnalyzer()
	m := a.Analyze("a small red ball")
	require.Equal(t, TypeEntity, m.SemanticType)
	require.Equal(t, DomainGeneral, m.Domain)
}

func TestAnalyzeDetectsCausalRelations(t *testing.T) {
	a := NewAnalyzer()
	m := a.Analyze("Excess humidity causes corrosion and prevents proper sealing.")
	require.Equal(t, TypeCausal, m.SemanticType)
	require.NotEmpty(t, m.CausalRelations)
}

func TestAddDomainPatternInfluencesDetection(t *testing.T) {
	a := NewAnalyzer()
	a.AddDomainPattern(DomainTechnical, regexp.MustCompile(`(?i)\bkubernetes\b`))
	a.AddDomainPattern(DomainTechnical, regexp.MustCompile(`(?i)\bkubernetes\b`))
	m := a.Analyze("kubernetes kubernetes kubernetes deployment rollout")
	require.Equal(t, DomainTechnical, m.Domain)
}

func TestConfidenceBoundedByOne(t *testing.T) {
	a := NewAnalyzer()
	long := ""
	for i := 0; i < 60; i++ {
		long += "must shall required mandatory "
	}
	m := a.Analyze(long)
	require.LessOrEqual(t, m.ClassificationConfidence, float32(1.0))
	require.GreaterOrEqual(t, m.ClassificationConfidence, float32(0.5))
}
