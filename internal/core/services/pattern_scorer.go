package services

import (
	"fmt"
	"regexp"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
)

// patternTier groups compiled patterns that raise the score to at least
// raiseTo when matched. Tiers are evaluated in order, highest first, and the
// resulting score is the maximum across all matches, not a sum.
type patternTier struct {
	name     string
	raiseTo  int
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+expr))
	}
	return compiled
}

// PatternScorer evaluates scene descriptions against static keyword tiers.
// It is a pure function of its input and safe for concurrent use.
type PatternScorer struct {
	tiers      []patternTier
	mitigators []*regexp.Regexp
}

// NewPatternScorer builds the scorer with the built-in pattern table.
func NewPatternScorer() *PatternScorer {
	return &PatternScorer{
		tiers: []patternTier{
			{
				name:    "critical",
				raiseTo: 5,
				patterns: compileAll(
					`\b(gun|rifle|pistol|shotgun|firearm|weapon)s?\b`,
					`\b(knife|knives|machete|crowbar)\b`,
					`\b(fight(ing)?|assault(ing)?|attack(ing|ed)?|violence|violent)\b`,
					`\b(fire|flames?|smoke|burning|explosion)\b`,
					`break(ing)?[ -]?in|broke[ -]?in|forc(ed|ing) (entry|open|the door)|smash(ed|ing) (a |the )?(window|door|glass)`,
					`\bintrud(er|ers|ing)\b|\bintrusion\b`,
				),
			},
			{
				name:    "high",
				raiseTo: 4,
				patterns: compileAll(
					`\bunauthorized\b|\btrespass(ing|er)?\b|restricted (area|zone)`,
					`suspicious (person|people|individual|figure|man|woman|behavior|activity)`,
					`climbing (over )?(a |the )?(fence|wall|gate|barrier)`,
					`\b(masked|ski mask|balaclava)\b|covering (his|her|their) face`,
					`\b(lurking|prowling|hiding)\b|crouch(ed|ing) (behind|near|next to)`,
				),
			},
			{
				name:    "medium",
				raiseTo: 3,
				patterns: compileAll(
					`unattended (bag|package|backpack|box|object)|abandoned (bag|package|vehicle)`,
					`late at night|after (business )?hours|middle of the night`,
					`running away|fleeing|sprint(ing)? (away|from)`,
					`\b(unusual|strange|odd|out of place)\b`,
					`pacing (back and forth|around)|circling (the|a) (building|property|lot)`,
				),
			},
		},
		mitigators: compileAll(
			`\buniform(ed)?\b`,
			`\bbadge\b|\bid card\b|\blanyard\b`,
			`\bauthorized\b|\bpermitted\b|\bscheduled\b`,
			`\bdelivery\b|\bcourier\b|\bmail(man| carrier)?\b|\bpostal\b`,
			`\bfamily\b|\bresident\b|\bneighbor\b|child(ren)? playing`,
			`security guard|police officer|maintenance (worker|crew)`,
		),
	}
}

// Score evaluates the text against every tier, takes the maximum raise, then
// applies mitigation once at the end. The result is always in [1, 5]:
// mitigation subtracts one point per mitigating match but never drops the
// score below 1.
func (s *PatternScorer) Score(text string) domain.PatternResult {
	maxScore := 1
	var reasons []string

	for _, tier := range s.tiers {
		for _, p := range tier.patterns {
			match := p.FindString(text)
			if match == "" {
				continue
			}
			if tier.raiseTo > maxScore {
				maxScore = tier.raiseTo
			}
			reasons = append(reasons, fmt.Sprintf("%s indicator: %q", tier.name, match))
		}
	}

	mitigations := 0
	for _, p := range s.mitigators {
		if p.MatchString(text) {
			mitigations++
		}
	}
	if mitigations > 0 {
		maxScore -= mitigations
		if maxScore < 1 {
			maxScore = 1
		}
		reasons = append(reasons, fmt.Sprintf("%d mitigating indicator(s) present", mitigations))
	}

	return domain.PatternResult{Score: maxScore, Reasons: reasons}
}
