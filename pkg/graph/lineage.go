// Package graph records payee merge lineage in a Neo4j/Memgraph database over Bolt
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config locates the lineage store.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// LineageService stores (:Payee)-[:MERGED_INTO]->(:Payee) edges so the history of a
// surviving payee can be traced after its duplicates are soft-deleted.
type LineageService struct {
	driver neo4j.DriverWithContext
	logger ectologger.Logger
}

// Connect opens a Bolt driver and fails unless the store answers.
func Connect(ctx context.Context, cfg Config, logger ectologger.Logger) (*LineageService, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(fmt.Sprintf("bolt://%s:%d", cfg.Host, cfg.Port), auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach graph database: %w", err)
	}

	return &LineageService{
		driver: driver,
		logger: logger,
	}, nil
}

// Ping reports whether the lineage store is reachable.
func (s *LineageService) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *LineageService) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

const recordMergeCypher = `
	MERGE (s:Payee {id: $surviving_id, tenant_id: $tenant_id})
	WITH s
	UNWIND $merged_ids AS merged_id
	MERGE (m:Payee {id: merged_id, tenant_id: $tenant_id})
	SET m.deleted_at = $merged_at
	MERGE (m)-[r:MERGED_INTO]->(s)
	SET r.merged_at = $merged_at
`

// RecordMerge links every merged payee to the surviving one.
func (s *LineageService) RecordMerge(ctx context.Context, tenantID string, survivingID int64, mergedIDs []int64, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.RecordMerge")
	defer span.End()

	if len(mergedIDs) == 0 {
		return nil
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":          tenantID,
		"surviving_payee_id": survivingID,
		"merged":             len(mergedIDs),
	})

	_, err := neo4j.ExecuteQuery(ctx, s.driver, recordMergeCypher, map[string]any{
		"tenant_id":    tenantID,
		"surviving_id": survivingID,
		"merged_ids":   mergedIDs,
		"merged_at":    at.UTC().Format(time.RFC3339),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithWritersRouting())
	if err != nil {
		log.WithError(err).Error("Failed to record merge lineage")
		return fmt.Errorf("failed to record merge lineage: %w", err)
	}

	log.Debug("Recorded merge lineage")
	return nil
}

const mergedIntoCypher = `
	MATCH (m:Payee {tenant_id: $tenant_id})-[:MERGED_INTO*1..]->(s:Payee {id: $id, tenant_id: $tenant_id})
	RETURN DISTINCT m.id AS id
	ORDER BY id
`

// MergedInto returns every payee id folded into id, directly or through earlier merges.
func (s *LineageService) MergedInto(ctx context.Context, tenantID string, id int64) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.LineageService.MergedInto")
	defer span.End()

	result, err := neo4j.ExecuteQuery(ctx, s.driver, mergedIntoCypher, map[string]any{
		"tenant_id": tenantID,
		"id":        id,
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("failed to read merge lineage: %w", err)
	}

	ids := make([]int64, 0, len(result.Records))
	for _, record := range result.Records {
		if v, ok := record.AsMap()["id"].(int64); ok {
			ids = append(ids, v)
		}
	}
	return ids, nil
}
