package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Store executes queries against the social graph.
type Store struct {
	driver neo4j.DriverWithContext
}

// New creates a new Store.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// Explain dry-runs a query with Neo4j's EXPLAIN directive. The query is
// planned but not executed, so syntax errors surface without touching data.
func (s *Store) Explain(ctx context.Context, cypher string) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, "EXPLAIN "+cypher, nil)
	if err != nil {
		return classify(err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// ExecuteRead dry-validates the query, then runs it in a read session and
// returns each record flattened to a map.
func (s *Store) ExecuteRead(ctx context.Context, cypher string) ([]map[string]any, error) {
	if err := s.Explain(ctx, cypher); err != nil {
		return nil, err
	}

	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, classify(err)
	}

	var rows []map[string]any
	for result.Next(ctx) {
		rows = append(rows, flattenRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// EnsureConstraints creates the uniqueness constraints the loader relies on.
func (s *Store) EnsureConstraints(ctx context.Context) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	for _, label := range []string{"User", "Post", "FactCheck"} {
		cypher := fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", label)
		if _, err := sess.Run(ctx, cypher, nil); err != nil {
			return classify(err)
		}
	}
	return nil
}

// MergeUser creates or updates a User node.
func (s *Store) MergeUser(ctx context.Context, u domain.User) error {
	return s.mergeNode(ctx, "User", u.ID, UserToMap(u))
}

// MergePost creates or updates a Post node.
func (s *Store) MergePost(ctx context.Context, p domain.Post) error {
	return s.mergeNode(ctx, "Post", p.ID, PostToMap(p))
}

// MergeFactCheck creates or updates a FactCheck node.
func (s *Store) MergeFactCheck(ctx context.Context, f domain.FactCheck) error {
	return s.mergeNode(ctx, "FactCheck", f.ID, FactCheckToMap(f))
}

func (s *Store) mergeNode(ctx context.Context, label, id string, props map[string]any) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props", label)
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id, "props": props})
	return classify(err)
}

// LinkCreated merges a (User)-[:CREATED]->(Post) relationship.
func (s *Store) LinkCreated(ctx context.Context, userID, postID string) error {
	return s.link(ctx, "User", userID, domain.RelCreated, "Post", postID, nil)
}

// LinkVerifiedBy merges a (Post)-[:VERIFIED_BY]->(FactCheck) relationship.
func (s *Store) LinkVerifiedBy(ctx context.Context, postID, factCheckID string) error {
	return s.link(ctx, "Post", postID, domain.RelVerifiedBy, "FactCheck", factCheckID, nil)
}

// LinkShared merges a (User)-[:SHARED]->(Post) relationship pointing at the
// original post. relID deduplicates re-shares of the same post by the same user.
func (s *Store) LinkShared(ctx context.Context, userID, postID, relID string) error {
	return s.link(ctx, "User", userID, domain.RelShared, "Post", postID, map[string]any{"id": relID})
}

func (s *Store) link(ctx context.Context, fromLabel, fromID, relType, toLabel, toID string, relProps map[string]any) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a:%s {id: $from}), (b:%s {id: $to})
		 MERGE (a)-[r:%s]->(b)`, fromLabel, toLabel, relType)
	params := map[string]any{"from": fromID, "to": toID}
	if relProps != nil {
		cypher += " SET r += $props"
		params["props"] = relProps
	}
	_, err := sess.Run(ctx, cypher, params)
	return classify(err)
}

// Close shuts down the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// flattenRecord converts a record to a map, unwrapping graph entities to
// their property maps so rows serialize cleanly.
func flattenRecord(rec *neo4j.Record) map[string]any {
	out := make(map[string]any, len(rec.Keys))
	for i, key := range rec.Keys {
		out[key] = flattenValue(rec.Values[i])
	}
	return out
}

func flattenValue(v any) any {
	switch val := v.(type) {
	case dbtype.Node:
		return val.Props
	case dbtype.Relationship:
		return val.Props
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = flattenValue(item)
		}
		return out
	default:
		return v
	}
}

// classify wraps driver errors with the domain sentinels the pipeline
// branches on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		if strings.Contains(neoErr.Code, "Statement") || strings.Contains(neoErr.Code, "Schema") {
			return fmt.Errorf("%w: %v", domain.ErrMalformedQuery, err)
		}
	}
	return err
}
