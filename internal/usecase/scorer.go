package usecase

import (
	"fmt"
	"strings"

	"github.com/freshcheck/backend/internal/domain"
)

// Score thresholds shared by the status tiers and display colors
const (
	baselineScore      = 50
	excellentThreshold = 75
	goodThreshold      = 50
	poorThreshold      = 25

	minScore = 0
	maxScore = 100
)

// Display colors, one per status tier
const (
	ColorExcellent = "#2ecc71"
	ColorGood      = "#94d82d"
	ColorPoor      = "#ffd43b"
	ColorBad       = "#ff6b6b"
)

// Scoring profile names accepted by ScoringConfigForProfile
const (
	ProfileStandard = "standard"
	ProfileStrict   = "strict"
)

// OrganicLabel is the labels_tags entry that earns the organic bonus
const OrganicLabel = "en:organic"

// ScoringConfig holds the weights of the health score heuristic.
// All adjustments are applied to a baseline of 50 and clamped once at the end.
type ScoringConfig struct {
	// GradeDeltas maps a lowercase Nutri-Score grade to its adjustment
	GradeDeltas map[string]int

	// AdditivePenalty is subtracted per additive; AdditivePenaltyCap bounds the total (0 = uncapped)
	AdditivePenalty    int
	AdditivePenaltyCap int

	// NovaPenalties maps a NOVA group to the points it subtracts
	NovaPenalties map[int]int

	OrganicBonus int

	// When NutrientLevelFallback is set and the grade is absent, each "high" level among
	// FallbackNutrients subtracts HighLevelPenalty
	NutrientLevelFallback bool
	HighLevelPenalty      int
	FallbackNutrients     []string
}

// DefaultScoringConfig returns the weights the product page has always shown:
// grade and additives only, no processing penalty, additives uncapped
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		GradeDeltas:     defaultGradeDeltas(),
		AdditivePenalty: 5,
		OrganicBonus:    10,
	}
}

// StrictScoringConfig adds the NOVA penalty, caps the additive penalty at 25 and
// penalizes high nutrient levels when the Nutri-Score is missing
func StrictScoringConfig() ScoringConfig {
	cfg := DefaultScoringConfig()
	cfg.AdditivePenaltyCap = 25
	cfg.NovaPenalties = map[int]int{3: 5, 4: 15}
	cfg.NutrientLevelFallback = true
	cfg.HighLevelPenalty = 10
	cfg.FallbackNutrients = []string{
		domain.NutrientSugars,
		domain.NutrientSalt,
		domain.NutrientSaturatedFat,
		domain.NutrientFat,
	}
	return cfg
}

// ScoringConfigForProfile resolves a configured profile name
func ScoringConfigForProfile(profile string) (ScoringConfig, error) {
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "", ProfileStandard:
		return DefaultScoringConfig(), nil
	case ProfileStrict:
		return StrictScoringConfig(), nil
	default:
		return ScoringConfig{}, fmt.Errorf("%w: unknown scoring profile %q", domain.ErrInvalidRequest, profile)
	}
}

func defaultGradeDeltas() map[string]int {
	return map[string]int{
		"a": 45,
		"b": 25,
		"c": 5,
		"d": -15,
		"e": -30,
	}
}

// Scorer computes health scores. It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	config ScoringConfig
}

// NewScorer creates a scorer with the given weights
func NewScorer(config ScoringConfig) *Scorer {
	if config.GradeDeltas == nil {
		config.GradeDeltas = defaultGradeDeltas()
	}
	return &Scorer{config: config}
}

// Score maps a product to its 0-100 score and status tier. A nil product scores 0 (Bad).
func (s *Scorer) Score(product *domain.Product) domain.ScoreResult {
	if product == nil {
		return domain.ScoreResult{Score: minScore, Status: domain.StatusBad}
	}

	score := baselineScore
	score += s.gradeAdjustment(product)
	score -= s.additivePenalty(product)
	score -= s.novaPenalty(product)
	if product.HasLabel(OrganicLabel) {
		score += s.config.OrganicBonus
	}

	score = clamp(score, minScore, maxScore)
	return domain.ScoreResult{Score: score, Status: StatusForScore(score)}
}

func (s *Scorer) gradeAdjustment(product *domain.Product) int {
	grade := product.Grade()
	if grade != "" {
		return s.config.GradeDeltas[grade]
	}
	if !s.config.NutrientLevelFallback {
		return 0
	}

	penalty := 0
	for _, nutrient := range s.config.FallbackNutrients {
		if product.NutrientLevel(nutrient) == domain.LevelHigh {
			penalty += s.config.HighLevelPenalty
		}
	}
	return -penalty
}

func (s *Scorer) additivePenalty(product *domain.Product) int {
	penalty := product.AdditiveCount() * s.config.AdditivePenalty
	if s.config.AdditivePenaltyCap > 0 && penalty > s.config.AdditivePenaltyCap {
		return s.config.AdditivePenaltyCap
	}
	return penalty
}

func (s *Scorer) novaPenalty(product *domain.Product) int {
	if product.NovaGroup == nil || s.config.NovaPenalties == nil {
		return 0
	}
	return s.config.NovaPenalties[*product.NovaGroup]
}

// StatusForScore returns the tier of a clamped score
func StatusForScore(score int) domain.Status {
	switch {
	case score >= excellentThreshold:
		return domain.StatusExcellent
	case score >= goodThreshold:
		return domain.StatusGood
	case score >= poorThreshold:
		return domain.StatusPoor
	default:
		return domain.StatusBad
	}
}

// ScoreColor returns the hex display color for a score, on the same cut points as StatusForScore
func ScoreColor(score int) string {
	switch StatusForScore(score) {
	case domain.StatusExcellent:
		return ColorExcellent
	case domain.StatusGood:
		return ColorGood
	case domain.StatusPoor:
		return ColorPoor
	default:
		return ColorBad
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
