package semantic

import "regexp"

// patternSet is the compiled regex table used by the classifier. Patterns
// are case-insensitive word-boundary matches, mirroring the original
// rule-based analyzer's category table.
type patternSet struct {
	temporalAfter   *regexp.Regexp
	temporalBefore  *regexp.Regexp
	temporalDuring  *regexp.Regexp
	temporalBetween *regexp.Regexp

	ruleModal       *regexp.Regexp
	ruleConditional *regexp.Regexp
	ruleImperative  *regexp.Regexp

	negationExplicit  *regexp.Regexp
	negationException *regexp.Regexp

	causalDirect     *regexp.Regexp
	causalEnabling   *regexp.Regexp
	causalPreventing *regexp.Regexp

	conditionIf     *regexp.Regexp
	conditionWhen   *regexp.Regexp
	conditionUnless *regexp.Regexp

	quantitativeNumber      *regexp.Regexp
	quantitativePercentage  *regexp.Regexp
	quantitativeMeasurement *regexp.Regexp

	definitionalIsA       *regexp.Regexp
	definitionalDefinedAs *regexp.Regexp

	eventPast    *regexp.Regexp
	eventFuture  *regexp.Regexp
	eventOngoing *regexp.Regexp

	domainMedical    *regexp.Regexp
	domainLegal      *regexp.Regexp
	domainFinancial  *regexp.Regexp
	domainTechnical  *regexp.Regexp
	domainScientific *regexp.Regexp
	domainBusiness   *regexp.Regexp

	year *regexp.Regexp
}

func mustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

var patterns = &patternSet{
	temporalAfter:   mustCompile(`(?i)\b(after|following|subsequent to|later than|post)\b`),
	temporalBefore:  mustCompile(`(?i)\b(before|prior to|preceding|earlier than|pre)\b`),
	temporalDuring:  mustCompile(`(?i)\b(during|throughout|while|in the course of)\b`),
	temporalBetween: mustCompile(`(?i)\b(between)\b`),

	ruleModal:       mustCompile(`(?i)\b(must|shall|should|ought to|required|mandatory|obligatory)\b`),
	ruleConditional: mustCompile(`(?i)\b(if\s+\w+\s+then|when\s+\w+\s+must)\b`),
	ruleImperative:  mustCompile(`(?i)^(do not|never|always|ensure|verify|confirm|check)\s+\w+`),

	negationExplicit:  mustCompile(`(?i)\b(not|no|never|none|nothing|neither|nor)\b`),
	negationException: mustCompile(`(?i)\b(except|unless|excluding|other than|but not|save for)\b`),

	causalDirect:     mustCompile(`(?i)\b(causes?|leads? to|results? in|triggers?|produces?|brings about)\b`),
	causalEnabling:   mustCompile(`(?i)\b(enables?|allows?|permits?|facilitates?|makes? possible)\b`),
	causalPreventing: mustCompile(`(?i)\b(prevents?|stops?|blocks?|inhibits?|prohibits?)\b`),

	conditionIf:     mustCompile(`(?i)\b(if|provided that|given that|assuming)\b`),
	conditionWhen:   mustCompile(`(?i)\b(when|whenever|once|as soon as)\b`),
	conditionUnless: mustCompile(`(?i)\b(unless|except if|only if)\b`),

	quantitativeNumber:      mustCompile(`\b\d+(\.\d+)?\s*(million|billion|thousand|hundred|dozen)?\b`),
	quantitativePercentage:  mustCompile(`\b\d+(\.\d+)?%|\bpercent\b`),
	quantitativeMeasurement: mustCompile(`\b\d+(\.\d+)?\s*(kg|lb|meter|mile|liter|gallon|USD|EUR|GBP)\b`),

	definitionalIsA:       mustCompile(`(?i)\b(is a|are|represents?|means?|refers? to)\b`),
	definitionalDefinedAs: mustCompile(`(?i)\b(defined as|definition of|classified as|categorized as)\b`),

	eventPast:    mustCompile(`(?i)\b(occurred|happened|took place|was|were)\b`),
	eventFuture:  mustCompile(`(?i)\b(will occur|will happen|scheduled|planned)\b`),
	eventOngoing: mustCompile(`(?i)\b(is occurring|is happening|ongoing|in progress)\b`),

	domainMedical:    mustCompile(`(?i)\b(patient|diagnosis|treatment|symptom|disease|medical|clinical|hospital|doctor|nurse|therapy|medication|surgical)\b`),
	domainLegal:      mustCompile(`(?i)\b(law|legal|court|statute|regulation|compliance|contract|liability|plaintiff|defendant|attorney|judge)\b`),
	domainFinancial:  mustCompile(`(?i)\b(financial|investment|revenue|profit|cost|budget|portfolio|asset|liability|equity|dividend|interest rate)\b`),
	domainTechnical:  mustCompile(`(?i)\b(system|software|hardware|algorithm|API|database|server|network|protocol|architecture|deployment)\b`),
	domainScientific: mustCompile(`(?i)\b(experiment|hypothesis|research|study|analysis|data|measurement|observation|theory|methodology)\b`),
	domainBusiness:   mustCompile(`(?i)\b(business|company|organization|management|strategy|operations|marketing|sales|customer|stakeholder)\b`),

	year: mustCompile(`\b(19|20)\d{2}\b`),
}
