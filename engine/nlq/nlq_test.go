package nlq

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/llm"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/metrics"
)

type fakeExecutor struct {
	rows    []map[string]any
	err     error
	queries []string
}

func (f *fakeExecutor) ExecuteRead(_ context.Context, cypher string) ([]map[string]any, error) {
	f.queries = append(f.queries, cypher)
	return f.rows, f.err
}

type fakeCompleter struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

type fakeEvents struct {
	events []QueryEvent
}

func (f *fakeEvents) PublishQueryEvent(_ context.Context, ev QueryEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func testOptions() Options {
	return Options{Now: func() time.Time { return anchor }}
}

func newTestService(ex Executor, c llm.Completer, opts Options) *Service {
	return New(ex, c, opts, slog.New(slog.DiscardHandler))
}

func TestAskHappyPath(t *testing.T) {
	ex := &fakeExecutor{rows: []map[string]any{
		{"p.id": "p1", "p.shares": int64(500)},
		{"p.id": "p2", "p.shares": int64(300)},
	}}
	c := &fakeCompleter{out: "MATCH (p:Post) WHERE p.shares > 100 RETURN p.id, p.shares"}
	svc := newTestService(ex, c, testOptions())

	ans, err := svc.Ask(context.Background(), "show me viral posts")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Fallback {
		t.Error("fallback used despite healthy completer")
	}
	if len(ans.Failures) != 0 {
		t.Errorf("unexpected failures: %v", ans.Failures)
	}
	if len(ans.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(ans.Rows))
	}
	if ans.Query != "MATCH (p:Post) WHERE p.shares > 100 RETURN p.id, p.shares" {
		t.Errorf("unexpected query %q", ans.Query)
	}
	// Two completions per request: generation and summarization.
	if len(c.prompts) != 2 {
		t.Fatalf("got %d completions, want 2", len(c.prompts))
	}
	if !strings.Contains(c.prompts[1], "p1") {
		t.Error("summarizer did not receive the serialized rows")
	}
	if ans.Result != c.out {
		t.Errorf("result %q, want completion output", ans.Result)
	}
}

func TestAskFallbackWhenCompleterDown(t *testing.T) {
	ex := &fakeExecutor{rows: []map[string]any{{"p.id": "p1"}}}
	c := &fakeCompleter{err: domain.ErrBackendUnavailable}
	opts := testOptions()
	svc := newTestService(ex, c, opts)

	ans, err := svc.Ask(context.Background(), "most viral posts this week")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !ans.Fallback {
		t.Error("expected fallback path")
	}
	if !strings.Contains(ans.Query, "p.shares > 100") {
		t.Errorf("expected viral fallback, got %q", ans.Query)
	}
	if ans.Result == "" {
		t.Error("result empty despite executed fallback")
	}
	found := false
	for _, f := range ans.Failures {
		if f.Stage == "generate_query" && f.Kind == KindBackendUnavailable {
			found = true
		}
	}
	if !found {
		t.Errorf("missing generate_query backend failure, got %v", ans.Failures)
	}
}

func TestAskFallbackOnlyWithoutCompleter(t *testing.T) {
	ex := &fakeExecutor{rows: []map[string]any{{"u.name": "ana"}}}
	svc := newTestService(ex, nil, testOptions())

	ans, err := svc.Ask(context.Background(), "who shared the story?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !ans.Fallback {
		t.Error("expected fallback without completer")
	}
	// No failure recorded: skipping an unconfigured backend is not a fault.
	if len(ans.Failures) != 0 {
		t.Errorf("unexpected failures: %v", ans.Failures)
	}
	if !strings.Contains(ans.Result, "ana") {
		t.Errorf("result %q should carry the serialized rows", ans.Result)
	}
}

func TestAskExecutorError(t *testing.T) {
	ex := &fakeExecutor{err: domain.ErrBackendUnavailable}
	svc := newTestService(ex, nil, testOptions())

	ans, err := svc.Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Result, "query execution failed") {
		t.Fatalf("result %q should describe the execution failure", ans.Result)
	}
	found := false
	for _, f := range ans.Failures {
		if f.Stage == "execute_query" && f.Kind == KindBackendUnavailable {
			found = true
		}
	}
	if !found {
		t.Errorf("missing execute_query failure, got %v", ans.Failures)
	}
}

func TestAskRejectsMutatingCompletion(t *testing.T) {
	ex := &fakeExecutor{}
	c := &fakeCompleter{out: "MATCH (p:Post) DETACH DELETE p"}
	svc := newTestService(ex, c, testOptions())

	ans, err := svc.Ask(context.Background(), "delete everything")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ex.queries) != 0 {
		t.Fatalf("mutating query reached the executor: %v", ex.queries)
	}
	found := false
	for _, f := range ans.Failures {
		if f.Stage == "execute_query" && f.Kind == KindUnsafeQuery {
			found = true
		}
	}
	if !found {
		t.Errorf("missing unsafe_query failure, got %v", ans.Failures)
	}
}

func TestAskValidatesQuestion(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, nil, testOptions())

	if _, err := svc.Ask(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyQuestion) {
		t.Errorf("blank question: got %v, want ErrEmptyQuestion", err)
	}
	long := strings.Repeat("x", domain.MaxQuestionLen+1)
	if _, err := svc.Ask(context.Background(), long); !errors.Is(err, domain.ErrQuestionTooLong) {
		t.Errorf("long question: got %v, want ErrQuestionTooLong", err)
	}
}

func TestAskSummarizerDegradesToRows(t *testing.T) {
	ex := &fakeExecutor{rows: []map[string]any{{"p.id": "p9"}}}
	calls := 0
	c := &stepCompleter{step: func(prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "MATCH (p:Post) RETURN p.id", nil
		}
		return "", errors.New("summarizer offline")
	}}
	svc := New(ex, c, testOptions(), slog.New(slog.DiscardHandler))

	ans, err := svc.Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Result, "p9") {
		t.Errorf("result %q should degrade to serialized rows", ans.Result)
	}
	found := false
	for _, f := range ans.Failures {
		if f.Stage == "summarize" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing summarize failure, got %v", ans.Failures)
	}
}

func TestAskShareQuestionThreeRows(t *testing.T) {
	ex := &fakeExecutor{rows: []map[string]any{
		{"u.name": "Ana", "p.content": "COVID variant detected"},
		{"u.name": "Ben", "p.content": "COVID variant detected"},
		{"u.name": "Cai", "p.content": "COVID variant detected"},
	}}
	c := &fakeCompleter{out: "MATCH (u:User)-[:SHARED]->(p:Post) WHERE toLower(p.content) CONTAINS 'covid variant' RETURN u.name, p.content LIMIT 5"}
	svc := newTestService(ex, c, testOptions())

	ans, err := svc.Ask(context.Background(), "Who shared the COVID variant news?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(ans.Rows))
	}
	// The summarizer must see all three serialized rows.
	summaryPrompt := c.prompts[len(c.prompts)-1]
	for _, name := range []string{"Ana", "Ben", "Cai"} {
		if !strings.Contains(summaryPrompt, name) {
			t.Errorf("summarizer prompt missing row for %s", name)
		}
	}
	if ans.Result == "" {
		t.Error("empty result")
	}
}

type stepCompleter struct {
	step func(prompt string) (string, error)
}

func (s *stepCompleter) Complete(_ context.Context, prompt string) (string, error) {
	return s.step(prompt)
}

func TestAskPublishesEventAndCounts(t *testing.T) {
	ev := &fakeEvents{}
	reg := metrics.New()
	opts := testOptions()
	opts.Events = ev
	opts.Registry = reg
	ex := &fakeExecutor{rows: []map[string]any{{"p.id": "p1"}}}
	svc := newTestService(ex, nil, opts)

	if _, err := svc.Ask(context.Background(), "viral posts"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ev.events) != 1 {
		t.Fatalf("got %d events, want 1", len(ev.events))
	}
	got := ev.events[0]
	if got.Question != "viral posts" || !got.Fallback || got.Rows != 1 {
		t.Errorf("unexpected event %+v", got)
	}
	out := reg.Render()
	if !strings.Contains(out, "nlq_requests_total 1") {
		t.Errorf("requests counter missing from render:\n%s", out)
	}
	if !strings.Contains(out, "nlq_fallback_total 1") {
		t.Errorf("fallback counter missing from render:\n%s", out)
	}
}
