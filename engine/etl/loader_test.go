package etl

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/fn"
)

type fakeWriter struct {
	mu          sync.Mutex
	constraints int
	users       []string
	posts       []string
	checks      []string
	links       []string
	failMerges  int // fail this many merge calls before succeeding
}

func (w *fakeWriter) EnsureConstraints(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.constraints++
	return nil
}

func (w *fakeWriter) mergeID(ids *[]string, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failMerges > 0 {
		w.failMerges--
		return errors.New("transient merge failure")
	}
	*ids = append(*ids, id)
	return nil
}

func (w *fakeWriter) MergeUser(_ context.Context, u domain.User) error {
	return w.mergeID(&w.users, u.ID)
}

func (w *fakeWriter) MergePost(_ context.Context, p domain.Post) error {
	return w.mergeID(&w.posts, p.ID)
}

func (w *fakeWriter) MergeFactCheck(_ context.Context, f domain.FactCheck) error {
	return w.mergeID(&w.checks, f.ID)
}

func (w *fakeWriter) addLink(kind, from, to string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.links = append(w.links, kind+":"+from+"->"+to)
	return nil
}

func (w *fakeWriter) LinkCreated(_ context.Context, userID, postID string) error {
	return w.addLink(domain.RelCreated, userID, postID)
}

func (w *fakeWriter) LinkVerifiedBy(_ context.Context, postID, factCheckID string) error {
	return w.addLink(domain.RelVerifiedBy, postID, factCheckID)
}

func (w *fakeWriter) LinkShared(_ context.Context, userID, postID, relID string) error {
	if relID == "" {
		return errors.New("missing rel id")
	}
	return w.addLink(domain.RelShared, userID, postID)
}

func sampleDataset() *Dataset {
	return &Dataset{
		Users: []domain.User{
			{ID: "u1", Name: "Ana", Username: "ana"},
			{ID: "u2", Name: "Ben", Username: "ben"},
		},
		Posts: []domain.Post{
			{ID: "p1", Content: "original story", AuthorID: "u1", FactCheckID: "f1"},
			{ID: "p2", Content: "re-share", AuthorID: "u2", SharedPostID: "p1"},
		},
		FactChecks: []domain.FactCheck{
			{ID: "f1", Status: "False", Comments: "debunked"},
		},
	}
}

func fastLoader(w GraphWriter) *Loader {
	l := NewLoader(w, 2, slog.New(slog.DiscardHandler))
	l.retry = fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	return l
}

func TestDeriveRelationships(t *testing.T) {
	rels, skipped := DeriveRelationships(sampleDataset())
	if skipped != 0 {
		t.Fatalf("skipped = %d, want 0", skipped)
	}

	var got []string
	sharedRelIDs := make(map[string]bool)
	for _, r := range rels {
		got = append(got, r.Type+":"+r.FromID+"->"+r.ToID)
		if r.Type == domain.RelShared {
			if r.RelID == "" {
				t.Error("SHARED edge missing rel id")
			}
			sharedRelIDs[r.RelID] = true
		} else if r.RelID != "" {
			t.Errorf("%s edge carries rel id %q", r.Type, r.RelID)
		}
	}
	sort.Strings(got)
	want := []string{
		"CREATED:u1->p1",
		"CREATED:u2->p2",
		"SHARED:u2->p1",
		"VERIFIED_BY:p1->f1",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("edge %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeriveRelationshipsSkipsMissingEndpoints(t *testing.T) {
	ds := sampleDataset()
	ds.Posts = append(ds.Posts,
		domain.Post{ID: "p3", AuthorID: "ghost"},
		domain.Post{ID: "p4", AuthorID: "u1", SharedPostID: "nope"},
		domain.Post{ID: "p5", AuthorID: "u1", FactCheckID: "nope"},
	)

	rels, skipped := DeriveRelationships(ds)
	if skipped != 3 {
		t.Fatalf("skipped = %d, want 3", skipped)
	}
	for _, r := range rels {
		if r.ToID == "nope" || r.FromID == "ghost" {
			t.Errorf("edge with missing endpoint survived: %+v", r)
		}
	}
}

func TestLoaderRun(t *testing.T) {
	w := &fakeWriter{}
	stats, err := fastLoader(w).Run(context.Background(), sampleDataset())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if w.constraints != 1 {
		t.Errorf("constraints ensured %d times, want 1", w.constraints)
	}
	if stats.Users != 2 || stats.Posts != 2 || stats.FactChecks != 1 {
		t.Errorf("node stats %+v", stats)
	}
	if stats.Relationships != 4 || stats.Skipped != 0 {
		t.Errorf("relationship stats %+v", stats)
	}
	if len(w.users) != 2 || len(w.posts) != 2 || len(w.checks) != 1 {
		t.Errorf("merged users=%v posts=%v checks=%v", w.users, w.posts, w.checks)
	}
	if len(w.links) != 4 {
		t.Errorf("links = %v", w.links)
	}
}

func TestLoaderRetriesTransientMergeFailure(t *testing.T) {
	w := &fakeWriter{failMerges: 1}
	stats, err := fastLoader(w).Run(context.Background(), sampleDataset())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(w.users) != 2 {
		t.Errorf("merged users = %v, want both after retry", w.users)
	}
	if stats.Relationships != 4 {
		t.Errorf("relationships = %d, want 4", stats.Relationships)
	}
}

func TestLoaderStopsOnPersistentFailure(t *testing.T) {
	w := &fakeWriter{failMerges: 100}
	_, err := fastLoader(w).Run(context.Background(), sampleDataset())
	if err == nil {
		t.Fatal("expected error from persistent merge failure")
	}
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"users.json":      `[{"id": "u1", "name": "Ana", "username": "ana", "followers": 10}]`,
		"posts.json":      `[{"id": "p1", "content": "hi", "author_id": "u1", "tags": ["news"]}]`,
		"factchecks.json": `[{"id": "f1", "status": "False"}]`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ds, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Users) != 1 || ds.Users[0].Username != "ana" {
		t.Errorf("users = %+v", ds.Users)
	}
	if len(ds.Posts) != 1 || ds.Posts[0].Tags[0] != "news" {
		t.Errorf("posts = %+v", ds.Posts)
	}
	if len(ds.FactChecks) != 1 || ds.FactChecks[0].Status != "False" {
		t.Errorf("factchecks = %+v", ds.FactChecks)
	}

	if _, err := LoadDataset(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}
