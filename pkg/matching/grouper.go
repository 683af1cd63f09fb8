package matching

import (
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Grouper clusters payees into duplicate groups keyed by their chosen primary.
//
// Every unordered pair is compared, so a run is O(n²) comparisons. Tenants hold hundreds of
// payees; larger sets need a blocking prefilter before this pass.
type Grouper struct {
	comparator *Comparator
}

func NewGrouper(comparator *Comparator) *Grouper {
	if comparator == nil {
		comparator = NewComparator(nil)
	}
	return &Grouper{comparator: comparator}
}

// GroupStats describes the work done by one Group call.
type GroupStats struct {
	PairsEvaluated int
	PairsMatched   int
}

// PairKey is the canonical key of an unordered payee pair.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// AggregateScore is the mean evidence confidence, or false when there is no evidence.
func AggregateScore(evidence []models.SimilarityEvidence) (float64, bool) {
	if len(evidence) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, ev := range evidence {
		sum += models.Clamp(ev.Confidence)
	}
	return models.Clamp(sum / float64(len(evidence))), true
}

// Group compares every pair of payees and returns the groups whose aggregate score reaches
// threshold. Groups never overlap: payees joined by a chain of matches share one group.
func (g *Grouper) Group(payees []*models.Payee, threshold float64, strategy models.MatchStrategy, mode models.DetectionMode) ([]models.DuplicateGroup, GroupStats) {
	var stats GroupStats
	seen := make(map[string]bool)
	builder := NewGroupBuilder()

	for i := 0; i < len(payees); i++ {
		for j := i + 1; j < len(payees); j++ {
			a, b := payees[i], payees[j]
			if a.ID == b.ID {
				continue
			}
			key := PairKey(a.ID, b.ID)
			if seen[key] {
				continue
			}
			seen[key] = true

			primary, duplicate := ChoosePrimary(a, b)
			stats.PairsEvaluated++
			evidence := g.comparator.Compare(primary, duplicate, strategy, mode)
			score, ok := AggregateScore(evidence)
			if !ok || score < threshold {
				continue
			}
			stats.PairsMatched++

			builder.Add(primary, duplicate, score, evidence)
		}
	}

	return builder.Groups(), stats
}

type groupLink struct {
	primaryID   int64
	duplicateID int64
	score       float64
	evidence    []models.SimilarityEvidence
}

// GroupBuilder folds matched pairs into disjoint duplicate groups.
//
// A payee belongs to at most one group. When a match touches a payee that another group
// already holds, the two groups become one, so a payee consumed as a duplicate is never the
// primary of a second group. The primary of each group is its most complete member, with
// ties going to the member seen first.
type GroupBuilder struct {
	parent map[int64]int64
	payees map[int64]*models.Payee
	order  []int64
	links  []groupLink
}

func NewGroupBuilder() *GroupBuilder {
	return &GroupBuilder{
		parent: make(map[int64]int64),
		payees: make(map[int64]*models.Payee),
	}
}

// Add records a match between primary and duplicate.
func (b *GroupBuilder) Add(primary, duplicate *models.Payee, score float64, evidence []models.SimilarityEvidence) {
	if primary == nil || duplicate == nil || primary.ID == duplicate.ID {
		return
	}
	b.track(primary)
	b.track(duplicate)
	b.union(primary.ID, duplicate.ID)
	b.links = append(b.links, groupLink{
		primaryID:   primary.ID,
		duplicateID: duplicate.ID,
		score:       models.Clamp(score),
		evidence:    evidence,
	})
}

// Groups returns the groups built so far, ordered by the first appearance of any member.
func (b *GroupBuilder) Groups() []models.DuplicateGroup {
	if len(b.links) == 0 {
		return nil
	}

	var roots []int64
	members := make(map[int64][]*models.Payee)
	for _, id := range b.order {
		root := b.find(id)
		if !ectolinq.Contains(roots, root) {
			roots = append(roots, root)
		}
		members[root] = append(members[root], b.payees[id])
	}

	groups := make([]models.DuplicateGroup, len(roots))
	byRoot := make(map[int64]int, len(roots))
	for i, root := range roots {
		primary := members[root][0]
		for _, p := range members[root][1:] {
			primary, _ = ChoosePrimary(primary, p)
		}
		group := models.DuplicateGroup{
			PrimaryPayeeID: primary.ID,
			PairScores:     make(map[int64]float64),
		}
		for _, p := range members[root] {
			if p.ID != primary.ID && !group.HasDuplicate(p.ID) {
				group.DuplicatePayeeIDs = append(group.DuplicatePayeeIDs, p.ID)
			}
		}
		groups[i] = group
		byRoot[root] = i
	}

	best := make([]float64, len(groups))
	for _, link := range b.links {
		idx := byRoot[b.find(link.primaryID)]
		group := &groups[idx]
		group.Evidence = append(group.Evidence, link.evidence...)
		for _, id := range []int64{link.primaryID, link.duplicateID} {
			if id != group.PrimaryPayeeID && link.score > group.PairScores[id] {
				group.PairScores[id] = link.score
			}
		}
		best[idx] = max(best[idx], link.score)
	}
	for i := range groups {
		groups[i].SetScore(best[i])
	}
	return groups
}

func (b *GroupBuilder) track(p *models.Payee) {
	if _, ok := b.parent[p.ID]; ok {
		return
	}
	b.parent[p.ID] = p.ID
	b.payees[p.ID] = p
	b.order = append(b.order, p.ID)
}

func (b *GroupBuilder) find(id int64) int64 {
	for b.parent[id] != id {
		b.parent[id] = b.parent[b.parent[id]]
		id = b.parent[id]
	}
	return id
}

func (b *GroupBuilder) union(a, c int64) {
	ra, rc := b.find(a), b.find(c)
	if ra != rc {
		b.parent[rc] = ra
	}
}
