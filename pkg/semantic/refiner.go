package semantic

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	RefinementBatchSize = 10
	DirectBatchSize     = 15
)

// Refiner confirms or rejects candidate pairs through a Gateway.
//
// Batches run one after another. A batch that fails to call or parse is recorded in its
// diagnostic and never stops the batches after it.
type Refiner struct {
	gateway Gateway
	prompts Prompts
	logger  ectologger.Logger
	now     func() time.Time
}

func NewRefiner(gateway Gateway, prompts Prompts, logger ectologger.Logger) *Refiner {
	if gateway == nil {
		gateway = Disabled{}
	}
	return &Refiner{
		gateway: gateway,
		prompts: prompts,
		logger:  logger,
		now:     time.Now,
	}
}

// Availability reports whether the underlying gateway can take calls.
func (r *Refiner) Availability(ctx context.Context) Availability {
	return r.gateway.IsAvailable(ctx)
}

type pairRef struct {
	primary   *models.Payee
	duplicate *models.Payee
	heuristic float64
}

type batchOutcome struct {
	diagnostic models.Diagnostic
	// verdicts by batch-local index. nil when the batch failed.
	verdicts map[int]models.PairVerdict
}

// Refine re-scores heuristic groups. Pairs the gateway confirms at or above threshold keep
// their place with the gateway's confidence, rejected pairs are dropped, and pairs from a
// failed batch keep their heuristic score. When the gateway is unavailable the groups are
// returned unchanged with a single diagnostic.
func (r *Refiner) Refine(ctx context.Context, groups []models.DuplicateGroup, payeesByID map[int64]*models.Payee, threshold float64) ([]models.DuplicateGroup, []models.Diagnostic, error) {
	ctx, span := tracing.StartSpan(ctx, "semantic.Refiner.Refine")
	defer span.End()

	log := r.logger.WithContext(ctx)

	var pairs []pairRef
	for _, group := range groups {
		primary, ok := payeesByID[group.PrimaryPayeeID]
		if !ok {
			continue
		}
		for _, dupID := range group.DuplicatePayeeIDs {
			duplicate, ok := payeesByID[dupID]
			if !ok {
				continue
			}
			heuristic, ok := group.PairScores[dupID]
			if !ok {
				heuristic = group.SimilarityScore
			}
			pairs = append(pairs, pairRef{primary: primary, duplicate: duplicate, heuristic: heuristic})
		}
	}
	if len(pairs) == 0 {
		return groups, nil, nil
	}

	avail := r.gateway.IsAvailable(ctx)
	if !avail.Available {
		log.WithField("missing", avail.Missing).Warn("Semantic gateway unavailable, keeping heuristic groups")
		return groups, []models.Diagnostic{r.unavailableDiagnostic(models.DetectionModeLLM, avail)}, nil
	}

	diagnostics := make([]models.Diagnostic, 0, batchCount(len(pairs), RefinementBatchSize))
	builder := matching.NewGroupBuilder()
	fallbackEvidence := make(map[int64]bool)
	evidenceByPrimary := make(map[int64][]models.SimilarityEvidence, len(groups))
	for _, group := range groups {
		evidenceByPrimary[group.PrimaryPayeeID] = group.Evidence
	}

	for batchIndex, start := 0, 0; start < len(pairs); batchIndex, start = batchIndex+1, start+RefinementBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, diagnostics, err
		}
		batch := pairs[start:min(start+RefinementBatchSize, len(pairs))]
		outcome := r.runBatch(ctx, models.DetectionModeLLM, batchIndex, avail, batch, true)
		diagnostics = append(diagnostics, outcome.diagnostic)

		for i, pair := range batch {
			verdict, ok := outcome.verdicts[i]
			if !ok {
				// failed batch or a pair the reply skipped
				primaryID := pair.primary.ID
				var evidence []models.SimilarityEvidence
				if !fallbackEvidence[primaryID] {
					evidence = evidenceByPrimary[primaryID]
					fallbackEvidence[primaryID] = true
				}
				builder.Add(pair.primary, pair.duplicate, pair.heuristic, evidence)
				continue
			}
			if !confirmed(verdict, threshold) {
				continue
			}
			confidence := models.Clamp(verdict.Confidence)
			builder.Add(pair.primary, pair.duplicate, confidence,
				[]models.SimilarityEvidence{semanticEvidence(pair.primary, pair.duplicate, confidence)})
		}
	}

	rebuilt := builder.Groups()

	log.WithFields(map[string]any{
		"pairs":   len(pairs),
		"batches": len(diagnostics),
		"groups":  len(rebuilt),
	}).Info("Semantic refinement complete")

	return rebuilt, diagnostics, nil
}

// Direct asks the gateway about every pair of payees and builds groups only from confirmed
// matches. The primary of each pair is the more complete payee. An unavailable gateway
// yields no groups and a single diagnostic.
func (r *Refiner) Direct(ctx context.Context, payees []*models.Payee, threshold float64) ([]models.DuplicateGroup, []models.Diagnostic, error) {
	ctx, span := tracing.StartSpan(ctx, "semantic.Refiner.Direct")
	defer span.End()

	log := r.logger.WithContext(ctx)

	avail := r.gateway.IsAvailable(ctx)
	if !avail.Available {
		log.WithField("missing", avail.Missing).Warn("Semantic gateway unavailable, direct detection skipped")
		return nil, []models.Diagnostic{r.unavailableDiagnostic(models.DetectionModeLLMDirect, avail)}, nil
	}

	seen := make(map[string]bool)
	var pairs []pairRef
	for i := 0; i < len(payees); i++ {
		for j := i + 1; j < len(payees); j++ {
			a, b := payees[i], payees[j]
			if a.ID == b.ID {
				continue
			}
			key := matching.PairKey(a.ID, b.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			primary, duplicate := matching.ChoosePrimary(a, b)
			pairs = append(pairs, pairRef{primary: primary, duplicate: duplicate})
		}
	}

	diagnostics := make([]models.Diagnostic, 0, batchCount(len(pairs), DirectBatchSize))
	builder := matching.NewGroupBuilder()

	for batchIndex, start := 0, 0; start < len(pairs); batchIndex, start = batchIndex+1, start+DirectBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, diagnostics, err
		}
		batch := pairs[start:min(start+DirectBatchSize, len(pairs))]
		outcome := r.runBatch(ctx, models.DetectionModeLLMDirect, batchIndex, avail, batch, false)
		diagnostics = append(diagnostics, outcome.diagnostic)

		for i, pair := range batch {
			verdict, ok := outcome.verdicts[i]
			if !ok || !confirmed(verdict, threshold) {
				continue
			}
			confidence := models.Clamp(verdict.Confidence)
			builder.Add(pair.primary, pair.duplicate, confidence,
				[]models.SimilarityEvidence{semanticEvidence(pair.primary, pair.duplicate, confidence)})
		}
	}

	groups := builder.Groups()

	log.WithFields(map[string]any{
		"pairs":   len(pairs),
		"batches": len(diagnostics),
		"groups":  len(groups),
	}).Info("Direct semantic detection complete")

	return groups, diagnostics, nil
}

func (r *Refiner) runBatch(ctx context.Context, mode models.DetectionMode, batchIndex int, avail Availability, batch []pairRef, withHeuristic bool) batchOutcome {
	ctx, span := tracing.StartSpan(ctx, "semantic.Refiner.runBatch")
	defer span.End()

	candidates := make([]models.PairCandidate, len(batch))
	for i, pair := range batch {
		candidates[i] = models.PairCandidate{
			Index:            i,
			PrimaryID:        pair.primary.ID,
			DuplicateID:      pair.duplicate.ID,
			PrimaryName:      pair.primary.Name,
			DuplicateName:    pair.duplicate.Name,
			PrimaryContact:   contactSummary(pair.primary),
			DuplicateContact: contactSummary(pair.duplicate),
		}
		if withHeuristic {
			candidates[i].HeuristicScore = pair.heuristic
		}
	}

	diag := models.Diagnostic{
		Timestamp:  r.now().UTC(),
		Mode:       mode,
		BatchIndex: batchIndex,
		Provider:   avail.Provider,
		Model:      avail.Model,
		Pairs:      candidates,
	}
	outcome := batchOutcome{}
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"mode":        string(mode),
		"batch_index": batchIndex,
		"pairs":       len(batch),
	})

	prompt, err := r.prompts.Render(mode, candidates)
	if err != nil {
		diag.Status = models.DiagnosticStatusFailed
		diag.Error = err.Error()
		outcome.diagnostic = diag
		metrics.GatewayBatchesTotal.WithLabelValues(string(mode), string(diag.Status)).Inc()
		return outcome
	}
	diag.Prompt = prompt

	started := time.Now()
	raw, err := r.gateway.Complete(ctx, prompt)
	elapsed := time.Since(started)
	diag.DurationMs = elapsed.Milliseconds()
	metrics.GatewayBatchDuration.WithLabelValues(avail.Provider).Observe(elapsed.Seconds())
	diag.RawResponse = raw

	switch {
	case err != nil:
		callErr := models.NewExternalCallError(batchIndex, err)
		log.WithError(callErr).Warn("Semantic gateway call failed")
		diag.Status = models.DiagnosticStatusFailed
		diag.Error = callErr.Error()
	default:
		parsed, parseErr := ParseJSON[models.BatchResponse](raw)
		if parseErr != nil {
			log.WithError(parseErr).Warn("Semantic gateway reply could not be parsed")
			diag.Status = models.DiagnosticStatusFailed
			diag.ParseError = parseErr.Error()
			break
		}
		diag.Status = models.DiagnosticStatusSuccess
		diag.Parsed = &parsed
		outcome.verdicts = make(map[int]models.PairVerdict, len(parsed.Pairs))
		for _, verdict := range parsed.Pairs {
			if verdict.Index < 0 || verdict.Index >= len(batch) {
				continue
			}
			if _, dup := outcome.verdicts[verdict.Index]; dup {
				continue
			}
			outcome.verdicts[verdict.Index] = verdict
		}
		if len(outcome.verdicts) < len(batch) {
			log.Warnf("Semantic gateway answered %d of %d pairs", len(outcome.verdicts), len(batch))
		}
	}

	metrics.GatewayBatchesTotal.WithLabelValues(string(mode), string(diag.Status)).Inc()
	outcome.diagnostic = diag
	return outcome
}

func (r *Refiner) unavailableDiagnostic(mode models.DetectionMode, avail Availability) models.Diagnostic {
	metrics.GatewayBatchesTotal.WithLabelValues(string(mode), string(models.DiagnosticStatusUnavailable)).Inc()
	return models.Diagnostic{
		Timestamp:     r.now().UTC(),
		Mode:          mode,
		Status:        models.DiagnosticStatusUnavailable,
		Provider:      avail.Provider,
		Model:         avail.Model,
		Error:         unavailableError(avail).Error(),
		MissingConfig: avail.Missing,
	}
}

func confirmed(v models.PairVerdict, threshold float64) bool {
	return v.IsMatch && models.Clamp(v.Confidence) >= threshold
}

func semanticEvidence(primary, duplicate *models.Payee, confidence float64) models.SimilarityEvidence {
	return models.SimilarityEvidence{
		Field:          "name",
		PrimaryValue:   primary.Name,
		DuplicateValue: duplicate.Name,
		MatchType:      models.MatchTypeSemantic,
		Confidence:     confidence,
	}
}

func contactSummary(p *models.Payee) string {
	var parts []string
	for _, v := range []string{p.Email, p.Phone, p.Website} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func batchCount(n, size int) int {
	return (n + size - 1) / size
}
