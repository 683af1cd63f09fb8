package models

import "github.com/Gobusters/ectolinq"

// MatchStrategy selects which payee fields take part in a comparison.
type MatchStrategy string

const (
	MatchStrategyNameOnly      MatchStrategy = "name_only"
	MatchStrategyContactOnly   MatchStrategy = "contact_only"
	MatchStrategyComprehensive MatchStrategy = "comprehensive"
)

func (s MatchStrategy) IsValid() bool {
	switch s {
	case MatchStrategyNameOnly, MatchStrategyContactOnly, MatchStrategyComprehensive:
		return true
	}
	return false
}

func (s MatchStrategy) ComparesName() bool {
	return s == MatchStrategyNameOnly || s == MatchStrategyComprehensive
}

func (s MatchStrategy) ComparesContact() bool {
	return s == MatchStrategyContactOnly || s == MatchStrategyComprehensive
}

// DetectionMode selects the matching logic.
type DetectionMode string

const (
	// DetectionModeSimple uses the raw edit-distance scorer.
	DetectionModeSimple DetectionMode = "simple"
	// DetectionModeML uses merchant-aware similarity over canonical keys.
	DetectionModeML DetectionMode = "ml"
	// DetectionModeLLM refines ml candidates through the semantic gateway.
	DetectionModeLLM DetectionMode = "llm"
	// DetectionModeLLMDirect sends every pair to the semantic gateway.
	DetectionModeLLMDirect DetectionMode = "llm_direct"
)

func (m DetectionMode) IsValid() bool {
	switch m {
	case DetectionModeSimple, DetectionModeML, DetectionModeLLM, DetectionModeLLMDirect:
		return true
	}
	return false
}

// MerchantAware reports whether names are compared through canonical merchant keys.
func (m DetectionMode) MerchantAware() bool {
	return m != DetectionModeSimple
}

type MatchType string

const (
	MatchTypeExact      MatchType = "exact"
	MatchTypeFuzzy      MatchType = "fuzzy"
	MatchTypeNormalized MatchType = "normalized"
	MatchTypeSemantic   MatchType = "semantic"
)

// SimilarityEvidence is one field-level reason two payees look alike.
type SimilarityEvidence struct {
	Field          string    `json:"field"`
	PrimaryValue   string    `json:"primary_value"`
	DuplicateValue string    `json:"duplicate_value"`
	MatchType      MatchType `json:"match_type"`
	Confidence     float64   `json:"confidence"`
}

type RecommendedAction string

const (
	RecommendedActionMerge  RecommendedAction = "merge"
	RecommendedActionReview RecommendedAction = "review"
	RecommendedActionIgnore RecommendedAction = "ignore"
)

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

const (
	// MergeActionThreshold is the score at which a group is recommended for merging.
	MergeActionThreshold = 0.95
	// ReviewActionThreshold is the score at which a group is recommended for review.
	ReviewActionThreshold = 0.8
)

// ActionFor maps an aggregate score to a recommended action and risk level.
func ActionFor(score float64) (RecommendedAction, RiskLevel) {
	switch {
	case score >= MergeActionThreshold:
		return RecommendedActionMerge, RiskLevelLow
	case score >= ReviewActionThreshold:
		return RecommendedActionReview, RiskLevelMedium
	default:
		return RecommendedActionIgnore, RiskLevelHigh
	}
}

// DuplicateGroup is a primary payee and the payees detected as its duplicates.
type DuplicateGroup struct {
	PrimaryPayeeID    int64                `json:"primary_payee_id"`
	DuplicatePayeeIDs []int64              `json:"duplicate_payee_ids"`
	SimilarityScore   float64              `json:"similarity_score"`
	Evidence          []SimilarityEvidence `json:"evidence"`
	RecommendedAction RecommendedAction    `json:"recommended_action"`
	RiskLevel         RiskLevel            `json:"risk_level"`
	// PairScores holds the score of each primary/duplicate pair, keyed by duplicate id.
	PairScores map[int64]float64 `json:"pair_scores,omitempty"`
}

// SetScore clamps and records score, then derives action and risk from it.
func (g *DuplicateGroup) SetScore(score float64) {
	g.SimilarityScore = Clamp(score)
	g.RecommendedAction, g.RiskLevel = ActionFor(g.SimilarityScore)
}

// HasDuplicate reports whether id is already one of the group's duplicates.
func (g *DuplicateGroup) HasDuplicate(id int64) bool {
	return ectolinq.Contains(g.DuplicatePayeeIDs, id)
}

// DetectionResult is the output of a duplicate detection run.
type DetectionResult struct {
	Groups      []DuplicateGroup `json:"groups"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
	PayeeCount  int              `json:"payee_count"`
	Mode        DetectionMode    `json:"detection_mode"`
	Strategy    MatchStrategy    `json:"strategy"`
	Threshold   float64          `json:"threshold"`
	Cached      bool             `json:"cached"`
}

// Clamp bounds a confidence to [0,1].
func Clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
