// Package nlq orchestrates the natural-language-to-Cypher pipeline.
// It resolves date phrases in the question, builds a generation prompt,
// obtains a Cypher query from the completion backend (or a canned fallback),
// validates and executes it against the graph, and summarizes the rows.
package nlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/fn"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/llm"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/metrics"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/resilience"
)

// Executor runs a read-only Cypher query and returns flattened rows.
type Executor interface {
	ExecuteRead(ctx context.Context, cypher string) ([]map[string]any, error)
}

// EventPublisher receives a QueryEvent after each completed pipeline run.
type EventPublisher interface {
	PublishQueryEvent(ctx context.Context, ev QueryEvent) error
}

// QueryEvent describes one completed pipeline run.
type QueryEvent struct {
	Question   string `json:"question"`
	Query      string `json:"query"`
	Fallback   bool   `json:"fallback"`
	Rows       int    `json:"rows"`
	Failures   int    `json:"failures"`
	DurationMS int64  `json:"duration_ms"`
}

// FailureKind classifies a stage failure so callers can branch on it.
type FailureKind string

const (
	KindBackendUnavailable FailureKind = "backend_unavailable"
	KindMalformedQuery     FailureKind = "malformed_query"
	KindUnsafeQuery        FailureKind = "unsafe_query"
	KindInternal           FailureKind = "internal"
)

// StageFailure records a failure that was absorbed at a stage boundary.
type StageFailure struct {
	Stage   string      `json:"stage"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// State is the accumulating pipeline state for one request. It is private
// to that request and discarded once the answer is returned.
type State struct {
	Question      string
	Filters       DateFilters
	Prompt        string
	RawCompletion string
	Query         string
	Fallback      bool
	Rows          []map[string]any
	RowsText      string
	Summary       string
	Failures      []StageFailure
}

// Answer is the structured response from the pipeline.
type Answer struct {
	Result   string           `json:"result"`
	Query    string           `json:"query"`
	Rows     []map[string]any `json:"rows,omitempty"`
	Fallback bool             `json:"fallback"`
	Failures []StageFailure   `json:"failures,omitempty"`
}

// Options configures the pipeline behaviour.
type Options struct {
	// Now supplies the clock used for date-phrase resolution.
	Now func() time.Time
	// Breaker guards the completion backend. Nil disables the breaker.
	Breaker *resilience.Breaker
	// Registry receives pipeline metrics. Nil disables metrics.
	Registry *metrics.Registry
	// Events receives query events. Nil disables eventing.
	Events EventPublisher
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Now:     time.Now,
		Breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

// Service is the pipeline orchestrator. All external dependencies are
// injected; the service owns no connection lifecycle.
type Service struct {
	executor  Executor
	completer llm.Completer // nil means fallback-only operation
	opts      Options
	logger    *slog.Logger
}

// New creates a pipeline Service.
func New(executor Executor, completer llm.Completer, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		executor:  executor,
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// Ask runs the full pipeline for a user question. Stage failures are
// absorbed into the answer; the only errors returned are for input the API
// layer should already have rejected.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}

	start := s.opts.Now()
	s.count("nlq_requests_total", "Total pipeline requests.")

	pipeline := fn.Pipeline(
		s.stage("build_prompt", s.buildPrompt),
		s.stage("generate_query", s.generateQuery),
		s.stage("execute_query", s.executeQuery),
		s.stage("summarize", s.summarize),
	)

	st, _ := pipeline(ctx, &State{Question: question}).Unwrap()
	if st.Summary == "" {
		st.Summary = "No results found."
	}

	elapsed := s.opts.Now().Sub(start)
	if s.opts.Registry != nil {
		s.opts.Registry.Histogram("nlq_pipeline_duration_seconds", "Pipeline wall time.", nil).Observe(elapsed.Seconds())
	}
	s.publish(ctx, st, elapsed)
	s.logger.Info("pipeline done",
		"question_len", len(question),
		"fallback", st.Fallback,
		"rows", len(st.Rows),
		"failures", len(st.Failures),
		"duration", elapsed,
	)

	return &Answer{
		Result:   st.Summary,
		Query:    st.Query,
		Rows:     st.Rows,
		Fallback: st.Fallback,
		Failures: st.Failures,
	}, nil
}

// stage wraps a stage function with tracing and failure absorption: an error
// is recorded on the state and the pipeline continues with whatever the
// stage produced so far.
func (s *Service) stage(name string, f fn.Stage[*State, *State]) fn.Stage[*State, *State] {
	return fn.OrElse(fn.TracedStage(name, f), func(_ context.Context, st *State, err error) *State {
		s.fail(st, name, err)
		return st
	})
}

// fail records a stage failure on the state.
func (s *Service) fail(st *State, stage string, err error) {
	kind := classifyFailure(err)
	st.Failures = append(st.Failures, StageFailure{
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
	})
	s.count(metrics.WithLabels("nlq_stage_failures_total", "stage", stage), "Failures absorbed per stage.")
	s.logger.Warn("stage failed", "stage", stage, "kind", kind, "err", err)
}

func classifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, domain.ErrBackendUnavailable), errors.Is(err, resilience.ErrCircuitOpen):
		return KindBackendUnavailable
	case errors.Is(err, domain.ErrMalformedQuery):
		return KindMalformedQuery
	case errors.Is(err, domain.ErrUnsafeQuery):
		return KindUnsafeQuery
	default:
		return KindInternal
	}
}

// --- stages ---

func (s *Service) buildPrompt(_ context.Context, st *State) fn.Result[*State] {
	st.Filters = ResolveDateFilters(st.Question, s.opts.Now())
	st.Prompt = BuildPrompt(st.Question, st.Filters)
	return fn.Ok(st)
}

func (s *Service) generateQuery(ctx context.Context, st *State) fn.Result[*State] {
	if s.completer != nil {
		out, err := s.complete(ctx, st.Prompt)
		if err == nil {
			st.RawCompletion = out
			st.Query = ExtractQuery(out)
			return fn.Ok(st)
		}
		// Backend faults select the fallback instead of failing the request.
		s.fail(st, "generate_query", err)
	}

	st.Query = FallbackQuery(st.Question)
	st.Fallback = true
	s.count("nlq_fallback_total", "Requests answered via canned fallback queries.")
	return fn.Ok(st)
}

func (s *Service) executeQuery(ctx context.Context, st *State) fn.Result[*State] {
	if err := CheckReadOnly(st.Query); err != nil {
		st.RowsText = fmt.Sprintf("query rejected: %v", err)
		return fn.Err[*State](err)
	}

	rows, err := s.executor.ExecuteRead(ctx, st.Query)
	if err != nil {
		st.RowsText = fmt.Sprintf("query execution failed: %v", err)
		return fn.Err[*State](err)
	}

	st.Rows = rows
	st.RowsText = serializeRows(rows)
	return fn.Ok(st)
}

func (s *Service) summarize(ctx context.Context, st *State) fn.Result[*State] {
	if s.completer == nil {
		st.Summary = st.RowsText
		return fn.Ok(st)
	}

	prompt := fmt.Sprintf(
		"Summarize the following graph query results and describe them in plain language:\n\n%s",
		st.RowsText)
	out, err := s.complete(ctx, prompt)
	if err != nil {
		s.fail(st, "summarize", err)
		st.Summary = st.RowsText
		return fn.Ok(st)
	}
	st.Summary = out
	return fn.Ok(st)
}

// complete calls the completion backend through the breaker when configured.
// Completion faults are reported as backend unavailability.
func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	call := func(ctx context.Context) (string, error) {
		out, err := s.completer.Complete(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
		}
		return out, nil
	}
	if s.opts.Breaker == nil {
		return call(ctx)
	}
	var out string
	err := s.opts.Breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = call(ctx)
		return err
	})
	return out, err
}

// serializeRows renders rows as JSON for the summarizer and for transport.
func serializeRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "[]"
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Sprint(rows)
	}
	return string(data)
}

func (s *Service) count(name, help string) {
	if s.opts.Registry != nil {
		s.opts.Registry.Counter(name, help).Inc()
	}
}

func (s *Service) publish(ctx context.Context, st *State, elapsed time.Duration) {
	if s.opts.Events == nil {
		return
	}
	ev := QueryEvent{
		Question:   st.Question,
		Query:      st.Query,
		Fallback:   st.Fallback,
		Rows:       len(st.Rows),
		Failures:   len(st.Failures),
		DurationMS: elapsed.Milliseconds(),
	}
	if err := s.opts.Events.PublishQueryEvent(ctx, ev); err != nil {
		s.logger.Warn("query event publish failed", "err", err)
	}
}
