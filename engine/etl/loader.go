// Package etl imports the social-media dataset into the graph: JSON node
// files, uniqueness constraints, and relationships derived from node
// references.
package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/fn"
)

// Dataset holds the decoded node files.
type Dataset struct {
	Users      []domain.User
	Posts      []domain.Post
	FactChecks []domain.FactCheck
}

// Relationship is one derived graph edge.
type Relationship struct {
	FromID string
	Type   string
	ToID   string
	RelID  string // set for SHARED edges only
}

// Stats summarizes one import run.
type Stats struct {
	Users         int
	Posts         int
	FactChecks    int
	Relationships int
	Skipped       int
}

// GraphWriter is the subset of the graph store the loader needs.
type GraphWriter interface {
	EnsureConstraints(ctx context.Context) error
	MergeUser(ctx context.Context, u domain.User) error
	MergePost(ctx context.Context, p domain.Post) error
	MergeFactCheck(ctx context.Context, f domain.FactCheck) error
	LinkCreated(ctx context.Context, userID, postID string) error
	LinkVerifiedBy(ctx context.Context, postID, factCheckID string) error
	LinkShared(ctx context.Context, userID, postID, relID string) error
}

// LoadDataset reads users.json, posts.json, and factchecks.json from dir.
func LoadDataset(dir string) (*Dataset, error) {
	var ds Dataset
	if err := readJSONFile(filepath.Join(dir, "users.json"), &ds.Users); err != nil {
		return nil, err
	}
	if err := readJSONFile(filepath.Join(dir, "posts.json"), &ds.Posts); err != nil {
		return nil, err
	}
	if err := readJSONFile(filepath.Join(dir, "factchecks.json"), &ds.FactChecks); err != nil {
		return nil, err
	}
	return &ds, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// DeriveRelationships computes the edges implied by node references:
// CREATED from author_id, VERIFIED_BY from fact_check_id, and SHARED from
// shared_post_id. A SHARED edge runs from the re-sharing post's author to
// the original post. Edges whose endpoints are missing from the dataset are
// dropped and counted.
func DeriveRelationships(ds *Dataset) (rels []Relationship, skipped int) {
	userIDs := make(map[string]bool, len(ds.Users))
	for _, u := range ds.Users {
		userIDs[u.ID] = true
	}
	postIDs := make(map[string]bool, len(ds.Posts))
	for _, p := range ds.Posts {
		postIDs[p.ID] = true
	}
	checkIDs := make(map[string]bool, len(ds.FactChecks))
	for _, f := range ds.FactChecks {
		checkIDs[f.ID] = true
	}

	for _, p := range ds.Posts {
		if userIDs[p.AuthorID] {
			rels = append(rels, Relationship{FromID: p.AuthorID, Type: domain.RelCreated, ToID: p.ID})
		} else {
			skipped++
		}
		if p.FactCheckID != "" {
			if checkIDs[p.FactCheckID] {
				rels = append(rels, Relationship{FromID: p.ID, Type: domain.RelVerifiedBy, ToID: p.FactCheckID})
			} else {
				skipped++
			}
		}
		if p.SharedPostID != "" {
			if postIDs[p.SharedPostID] && userIDs[p.AuthorID] {
				rels = append(rels, Relationship{
					FromID: p.AuthorID,
					Type:   domain.RelShared,
					ToID:   p.SharedPostID,
					RelID:  uuid.NewString(),
				})
			} else {
				skipped++
			}
		}
	}
	return rels, skipped
}

// Loader imports a dataset through a GraphWriter.
type Loader struct {
	store   GraphWriter
	workers int
	retry   fn.RetryOpts
	logger  *slog.Logger
}

// NewLoader creates a Loader. workers bounds node-merge concurrency.
func NewLoader(store GraphWriter, workers int, logger *slog.Logger) *Loader {
	if workers < 1 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		store:   store,
		workers: workers,
		retry:   fn.DefaultRetry,
		logger:  logger,
	}
}

// Run imports the dataset: constraints, then nodes in parallel, then
// relationships. Node merges are idempotent so a failed run can be repeated.
func (l *Loader) Run(ctx context.Context, ds *Dataset) (Stats, error) {
	stats := Stats{
		Users:      len(ds.Users),
		Posts:      len(ds.Posts),
		FactChecks: len(ds.FactChecks),
	}

	if err := l.store.EnsureConstraints(ctx); err != nil {
		return stats, fmt.Errorf("ensure constraints: %w", err)
	}

	if err := mergeAll(ctx, l, ds.Users, l.store.MergeUser); err != nil {
		return stats, fmt.Errorf("merge users: %w", err)
	}
	if err := mergeAll(ctx, l, ds.Posts, l.store.MergePost); err != nil {
		return stats, fmt.Errorf("merge posts: %w", err)
	}
	if err := mergeAll(ctx, l, ds.FactChecks, l.store.MergeFactCheck); err != nil {
		return stats, fmt.Errorf("merge fact checks: %w", err)
	}

	rels, skipped := DeriveRelationships(ds)
	stats.Skipped = skipped
	if skipped > 0 {
		l.logger.Warn("dropped relationships with missing endpoints", "count", skipped)
	}
	for _, rel := range rels {
		if err := l.link(ctx, rel); err != nil {
			return stats, fmt.Errorf("link %s %s->%s: %w", rel.Type, rel.FromID, rel.ToID, err)
		}
		stats.Relationships++
	}

	l.logger.Info("import complete",
		"users", stats.Users,
		"posts", stats.Posts,
		"fact_checks", stats.FactChecks,
		"relationships", stats.Relationships,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// mergeAll merges nodes concurrently, each with retry, and returns the first
// failure.
func mergeAll[T any](ctx context.Context, l *Loader, items []T, merge func(context.Context, T) error) error {
	results := fn.ParMapResult(items, l.workers, func(item T) fn.Result[struct{}] {
		return fn.Retry(ctx, l.retry, func(ctx context.Context) fn.Result[struct{}] {
			if err := merge(ctx, item); err != nil {
				return fn.Err[struct{}](err)
			}
			return fn.Ok(struct{}{})
		})
	})
	_, err := fn.Collect(results).Unwrap()
	return err
}

func (l *Loader) link(ctx context.Context, rel Relationship) error {
	op := func(ctx context.Context) fn.Result[struct{}] {
		var err error
		switch rel.Type {
		case domain.RelCreated:
			err = l.store.LinkCreated(ctx, rel.FromID, rel.ToID)
		case domain.RelVerifiedBy:
			err = l.store.LinkVerifiedBy(ctx, rel.FromID, rel.ToID)
		case domain.RelShared:
			err = l.store.LinkShared(ctx, rel.FromID, rel.ToID, rel.RelID)
		default:
			err = fmt.Errorf("unknown relationship type %q", rel.Type)
		}
		if err != nil {
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	}
	_, err := fn.Retry(ctx, l.retry, op).Unwrap()
	return err
}
