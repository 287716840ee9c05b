package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"
	"github.com/blaketylerfullerton/aerialintelligence/pkg/circuitbreaker"

	"go.uber.org/zap"
)

const contextPromptTemplate = `Analyze this scene for safety and security threats.
Scene description: %s
Respond with exactly three lines:
THREAT_LEVEL: one of NONE, LOW, MEDIUM, HIGH, CRITICAL
CONFIDENCE: an integer from 0 to 100
REASON: a short explanation`

var (
	levelTokenRe = regexp.MustCompile(`THREAT_LEVEL:\s*(NONE|LOW|MEDIUM|HIGH|CRITICAL)`)
	confidenceRe = regexp.MustCompile(`CONFIDENCE:\s*(\d{1,3})`)
	reasonRe     = regexp.MustCompile(`REASON:\s*(.+)`)
)

// fallbackVocabulary is scanned when the reply carries no structured level
// token. Score = min(distinct matches + 1, 5).
var fallbackVocabulary = []string{
	"suspicious", "threat", "danger", "weapon", "break",
	"intrude", "unauthorized", "steal", "vandal", "alarm",
}

var levelScores = map[string]int{
	"CRITICAL": 5,
	"HIGH":     4,
	"MEDIUM":   3,
	"LOW":      2,
	"NONE":     1,
}

// ContextScorer asks the vision service for a second, scene-aware opinion.
// It is advisory: every failure mode degrades to a zero score so the pattern
// scorer's result stands alone.
type ContextScorer struct {
	vision  ports.VisionService
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

// NewContextScorer creates a contextual scorer backed by the vision service.
func NewContextScorer(vision ports.VisionService, logger *zap.SugaredLogger) *ContextScorer {
	return &ContextScorer{
		vision:  vision,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

// Score sends the safety-analysis prompt and parses the structured reply.
func (s *ContextScorer) Score(ctx context.Context, description, imagePath string) domain.ContextResult {
	prompt := fmt.Sprintf(contextPromptTemplate, description)

	var reply string
	err := s.breaker.Execute(ctx, func() error {
		var callErr error
		reply, callErr = s.vision.Describe(ctx, imagePath, prompt)
		return callErr
	})
	if err != nil {
		s.logger.Warnw("contextual analysis unavailable, degrading to pattern-only score",
			"error", err,
		)
		return domain.ContextResult{
			Score:   0,
			Factors: []string{fmt.Sprintf("contextual analysis unavailable: %v", err)},
		}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.ContextResult{
			Score:   0,
			Factors: []string{"contextual analysis returned an empty reply"},
		}
	}

	if m := levelTokenRe.FindStringSubmatch(reply); m != nil {
		return s.parseStructured(reply, m[1])
	}
	return s.scanVocabulary(reply)
}

func (s *ContextScorer) parseStructured(reply, levelToken string) domain.ContextResult {
	factors := []string{fmt.Sprintf("ai threat level: %s", levelToken)}

	if m := confidenceRe.FindStringSubmatch(reply); m != nil {
		if conf, err := strconv.Atoi(m[1]); err == nil {
			// Models occasionally report confidence above the asked-for range.
			if conf > 100 {
				conf = 100
			}
			factors = append(factors, fmt.Sprintf("ai confidence: %d", conf))
		}
	}
	if m := reasonRe.FindStringSubmatch(reply); m != nil {
		factors = append(factors, fmt.Sprintf("ai reason: %s", strings.TrimSpace(m[1])))
	}

	return domain.ContextResult{Score: levelScores[levelToken], Factors: factors}
}

func (s *ContextScorer) scanVocabulary(reply string) domain.ContextResult {
	lowered := strings.ToLower(reply)
	matches := 0
	for _, word := range fallbackVocabulary {
		if strings.Contains(lowered, word) {
			matches++
		}
	}

	score := matches + 1
	if score > 5 {
		score = 5
	}
	return domain.ContextResult{
		Score: score,
		Factors: []string{
			fmt.Sprintf("unstructured reply, keyword scan matched %d security term(s)", matches),
		},
	}
}
