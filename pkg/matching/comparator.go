package matching

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

const (
	// NameFloor is the lowest fuzzy name similarity reported as evidence.
	NameFloor = 0.7
	// MinPhoneDigits is the shortest digit string treated as a comparable phone number.
	MinPhoneDigits = 7

	keyWeight   = 0.6
	brandWeight = 0.4
	// phonetic agreement of brand tokens lifts the brand score to at least this
	phoneticBrandScore = 0.9
)

// Comparator produces field-level similarity evidence for a pair of payees.
type Comparator struct {
	scorer *Scorer
}

func NewComparator(scorer *Scorer) *Comparator {
	if scorer == nil {
		scorer = NewScorer()
	}
	return &Comparator{scorer: scorer}
}

// Compare returns the evidence that a and b are the same payee. a is reported as the
// primary side. The result is empty when nothing matches.
func (c *Comparator) Compare(a, b *models.Payee, strategy models.MatchStrategy, mode models.DetectionMode) []models.SimilarityEvidence {
	var evidence []models.SimilarityEvidence

	if strategy.ComparesName() {
		if ev, ok := c.compareName(a.Name, b.Name, mode); ok {
			evidence = append(evidence, ev)
		}
	}

	if strategy.ComparesContact() {
		if ev, ok := compareEmail(a.Email, b.Email); ok {
			evidence = append(evidence, ev)
		}
		if ev, ok := comparePhone(a.Phone, b.Phone); ok {
			evidence = append(evidence, ev)
		}
		if ev, ok := compareWebsite(a.Website, b.Website); ok {
			evidence = append(evidence, ev)
		}
	}

	return evidence
}

func (c *Comparator) compareName(a, b string, mode models.DetectionMode) (models.SimilarityEvidence, bool) {
	ta, tb := strings.TrimSpace(a), strings.TrimSpace(b)
	if ta == "" || tb == "" {
		return models.SimilarityEvidence{}, false
	}

	ev := models.SimilarityEvidence{Field: "name", PrimaryValue: a, DuplicateValue: b}

	if strings.EqualFold(ta, tb) {
		ev.MatchType = models.MatchTypeExact
		ev.Confidence = 1.0
		return ev, true
	}

	var score float64
	if mode.MerchantAware() {
		var sameKey bool
		score, sameKey = c.MerchantSimilarity(ta, tb)
		if sameKey {
			ev.MatchType = models.MatchTypeNormalized
			ev.Confidence = 1.0
			return ev, true
		}
	} else {
		score = c.scorer.Levenshtein(strings.ToLower(ta), strings.ToLower(tb))
	}

	if score < NameFloor {
		return models.SimilarityEvidence{}, false
	}
	ev.MatchType = models.MatchTypeFuzzy
	ev.Confidence = models.Clamp(score)
	return ev, true
}

// MerchantSimilarity scores two raw merchant names. sameKey is true when both reduce to the
// same canonical key, in which case score is 1.
func (c *Comparator) MerchantSimilarity(a, b string) (score float64, sameKey bool) {
	keyA, keyB := normalizers.NormalizeMerchant(a), normalizers.NormalizeMerchant(b)
	if keyA != "" && keyA == keyB {
		return 1.0, true
	}

	raw := c.scorer.Levenshtein(strings.ToLower(a), strings.ToLower(b))
	keyScore := c.scorer.Levenshtein(keyA, keyB)

	brandA, brandB := normalizers.BrandToken(keyA), normalizers.BrandToken(keyB)
	brand := c.scorer.JaroWinkler(brandA, brandB)
	if brand < phoneticBrandScore && c.scorer.PhoneticMatch(brandA, brandB) {
		brand = phoneticBrandScore
	}

	return models.Clamp(max(raw, keyWeight*keyScore+brandWeight*brand)), false
}

func compareEmail(a, b string) (models.SimilarityEvidence, bool) {
	na, nb := normalizers.NormalizeEmail(a), normalizers.NormalizeEmail(b)
	if na == "" || na != nb {
		return models.SimilarityEvidence{}, false
	}
	return models.SimilarityEvidence{
		Field:          "email",
		PrimaryValue:   a,
		DuplicateValue: b,
		MatchType:      models.MatchTypeExact,
		Confidence:     1.0,
	}, true
}

func comparePhone(a, b string) (models.SimilarityEvidence, bool) {
	na, nb := normalizers.NormalizePhone(a), normalizers.NormalizePhone(b)
	if len(na) < MinPhoneDigits || na != nb {
		return models.SimilarityEvidence{}, false
	}
	return models.SimilarityEvidence{
		Field:          "phone",
		PrimaryValue:   a,
		DuplicateValue: b,
		MatchType:      models.MatchTypeNormalized,
		Confidence:     1.0,
	}, true
}

func compareWebsite(a, b string) (models.SimilarityEvidence, bool) {
	na, nb := normalizers.NormalizeWebsite(a), normalizers.NormalizeWebsite(b)
	if na == "" || na != nb {
		return models.SimilarityEvidence{}, false
	}
	return models.SimilarityEvidence{
		Field:          "website",
		PrimaryValue:   a,
		DuplicateValue: b,
		MatchType:      models.MatchTypeNormalized,
		Confidence:     1.0,
	}, true
}
