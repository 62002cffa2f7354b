package semantic

import (
	"regexp"
	"strconv"
	"strings"
)

// Analyzer classifies concept content into SemanticMetadata (spec.md
// §4.8). It is stateless except for caller-registered custom domain
// patterns, grounded directly on
// original_source/.../semantic/analyzer.rs: a table of compiled regexes
// scored per category, highest score wins. A tie goes to the category
// declared first; with no match at all the result is Entity/General.
type Analyzer struct {
	customPatterns map[Domain][]*regexp.Regexp
}

// NewAnalyzer builds an Analyzer with no custom domain patterns.
func NewAnalyzer() *Analyzer {
	return &Analyzer{customPatterns: make(map[Domain][]*regexp.Regexp)}
}

// AddDomainPattern registers an additional regex that counts toward domain
// detection for the given domain, alongside the built-in patterns.
func (a *Analyzer) AddDomainPattern(domain Domain, pattern *regexp.Regexp) {
	a.customPatterns[domain] = append(a.customPatterns[domain], pattern)
}

// Analyze extracts the complete SemanticMetadata for a piece of content.
func (a *Analyzer) Analyze(text string) Metadata {
	semType := a.classifyType(text)
	domain := a.detectDomain(text)

	var negation *NegationScope
	if semType == TypeNegation {
		negation = a.extractNegation(text)
	}

	return Metadata{
		SemanticType:             semType,
		Domain:                   domain,
		TemporalBounds:           a.extractTemporal(text),
		CausalRelations:          a.extractCausal(text),
		Negation:                 negation,
		ClassificationConfidence: a.calculateConfidence(text, semType),
	}
}

func (a *Analyzer) classifyType(text string) Type {
	scores := make(map[Type]float32)

	if patterns.ruleModal.MatchString(text) {
		scores[TypeRule] += 3.0
	}
	if patterns.ruleConditional.MatchString(text) {
		scores[TypeRule] += 2.5
	}
	if patterns.ruleImperative.MatchString(text) {
		scores[TypeRule] += 2.0
	}

	if patterns.temporalAfter.MatchString(text) || patterns.temporalBefore.MatchString(text) {
		scores[TypeTemporal] += 2.0
	}
	if patterns.temporalDuring.MatchString(text) || patterns.temporalBetween.MatchString(text) {
		scores[TypeTemporal] += 1.5
	}

	if patterns.negationExplicit.MatchString(text) {
		scores[TypeNegation] += 2.0
	}
	if patterns.negationException.MatchString(text) {
		scores[TypeNegation] += 2.5
	}

	if patterns.causalDirect.MatchString(text) {
		scores[TypeCausal] += 2.5
	}
	if patterns.causalEnabling.MatchString(text) || patterns.causalPreventing.MatchString(text) {
		scores[TypeCausal] += 2.0
	}

	if patterns.conditionIf.MatchString(text) {
		scores[TypeCondition] += 2.0
	}
	if patterns.conditionWhen.MatchString(text) || patterns.conditionUnless.MatchString(text) {
		scores[TypeCondition] += 1.5
	}

	if patterns.quantitativeNumber.MatchString(text) || patterns.quantitativePercentage.MatchString(text) {
		scores[TypeQuantitative] += 1.0
	}
	if patterns.quantitativeMeasurement.MatchString(text) {
		scores[TypeQuantitative] += 1.5
	}

	if patterns.definitionalIsA.MatchString(text) {
		scores[TypeDefinitional] += 1.5
	}
	if patterns.definitionalDefinedAs.MatchString(text) {
		scores[TypeDefinitional] += 2.0
	}

	if patterns.eventPast.MatchString(text) || patterns.eventFuture.MatchString(text) {
		scores[TypeEvent] += 1.5
	}
	if patterns.eventOngoing.MatchString(text) {
		scores[TypeEvent] += 1.0
	}

	best := TypeEntity
	var bestScore float32
	for t := TypeEntity; t <= TypeEvent; t++ {
		if s := scores[t]; s > bestScore {
			bestScore = s
			best = t
		}
	}
	return best
}

// extractTemporal pulls a 4-digit year out of text and pairs it with
// whichever temporal relation pattern matched, defaulting to At. Returns
// nil if no year is present.
func (a *Analyzer) extractTemporal(text string) *TemporalBounds {
	loc := patterns.year.FindString(text)
	if loc == "" {
		return nil
	}
	year, err := strconv.ParseInt(loc, 10, 64)
	if err != nil {
		return nil
	}
	// Approximate Unix timestamp for the start of the year, mirroring the
	// original analyzer's (year - 1970) * 365 * 24 * 3600 calculation.
	startUnix := (year - 1970) * 365 * 24 * 3600

	relation := TemporalAt
	switch {
	case patterns.temporalAfter.MatchString(text):
		relation = TemporalAfter
	case patterns.temporalBefore.MatchString(text):
		relation = TemporalBefore
	case patterns.temporalDuring.MatchString(text):
		relation = TemporalDuring
	case patterns.temporalBetween.MatchString(text):
		relation = TemporalBetween
	}

	return &TemporalBounds{StartUnix: &startUnix, Relation: relation}
}

func (a *Analyzer) extractCausal(text string) []CausalRelation {
	var out []CausalRelation
	if patterns.causalDirect.MatchString(text) {
		out = append(out, CausalRelation{Type: CausalDirect, Strength: 0.7, Confidence: 0.8})
	}
	if patterns.causalEnabling.MatchString(text) {
		out = append(out, CausalRelation{Type: CausalEnabling, Strength: 0.5, Confidence: 0.7})
	}
	if patterns.causalPreventing.MatchString(text) {
		out = append(out, CausalRelation{Type: CausalPreventing, Strength: 0.6, Confidence: 0.75})
	}
	return out
}

func (a *Analyzer) detectDomain(text string) Domain {
	scores := make(map[Domain]int)
	add := func(d Domain, re *regexp.Regexp) {
		if n := len(re.FindAllStringIndex(text, -1)); n > 0 {
			scores[d] += n
		}
	}
	add(DomainMedical, patterns.domainMedical)
	add(DomainLegal, patterns.domainLegal)
	add(DomainFinancial, patterns.domainFinancial)
	add(DomainTechnical, patterns.domainTechnical)
	add(DomainScientific, patterns.domainScientific)
	add(DomainBusiness, patterns.domainBusiness)

	for d, res := range a.customPatterns {
		for _, re := range res {
			add(d, re)
		}
	}

	best := DomainGeneral
	bestCount := 0
	for d := DomainGeneral; d <= DomainBusiness; d++ {
		if c := scores[d]; c > bestCount {
			bestCount = c
			best = d
		}
	}
	return best
}

func (a *Analyzer) extractNegation(text string) *NegationScope {
	switch {
	case patterns.negationExplicit.MatchString(text):
		return &NegationScope{Type: NegationExplicit, Confidence: 0.8}
	case patterns.negationException.MatchString(text):
		return &NegationScope{Type: NegationException, Confidence: 0.8}
	default:
		return nil
	}
}

func (a *Analyzer) calculateConfidence(text string, semType Type) float32 {
	wordCount := len(strings.Fields(text))
	lengthFactor := float32(wordCount) / 50.0
	if lengthFactor > 1 {
		lengthFactor = 1
	}

	var matches int
	switch semType {
	case TypeRule:
		matches = countMatches(text, patterns.ruleModal, patterns.ruleConditional, patterns.ruleImperative)
	case TypeTemporal:
		matches = countMatches(text, patterns.temporalAfter, patterns.temporalBefore, patterns.temporalDuring)
	case TypeNegation:
		matches = countMatches(text, patterns.negationExplicit, patterns.negationException)
	case TypeCausal:
		matches = countMatches(text, patterns.causalDirect, patterns.causalEnabling, patterns.causalPreventing)
	default:
		matches = 1
	}
	patternFactor := float32(matches) / 3.0
	if patternFactor > 1 {
		patternFactor = 1
	}

	return 0.5 + lengthFactor*0.25 + patternFactor*0.25
}

func countMatches(text string, res ...*regexp.Regexp) int {
	total := 0
	for _, re := range res {
		total += len(re.FindAllStringIndex(text, -1))
	}
	return total
}
