// Package main implements the PulseGraph API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/domain"
	"github.com/PulseGraphAI/pulsegraph-mvp/engine/graph"
	"github.com/PulseGraphAI/pulsegraph-mvp/engine/nlq"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/llm"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/metrics"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/mid"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/natsutil"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/repo"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/resilience"
)

// querySubject is the NATS subject query events are published on.
const querySubject = "pulsegraph.queries"

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	LLMProvider   string // ollama, openai, or none
	OllamaURL     string
	OllamaModel   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	NATSURL       string // empty disables eventing
	APISecret     string // empty disables auth
	CORSOrigin    string
	RateLimit     float64
	RateBurst     int
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		Neo4jURL:      envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		LLMProvider:   envOr("LLM_PROVIDER", "ollama"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envOr("OLLAMA_MODEL", "llama3.2"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		NATSURL:       os.Getenv("NATS_URL"),
		APISecret:     os.Getenv("API_SECRET"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		RateLimit:     envFloat("RATE_LIMIT", 10),
		RateBurst:     envInt("RATE_BURST", 20),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	store := graph.New(driver)

	// --- Completion backend ---
	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}
	if completer == nil {
		logger.Warn("no completion backend configured, serving fallback queries only")
	}

	// --- Optional NATS eventing ---
	opts := nlq.DefaultOptions()
	opts.Registry = metrics.New()
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		opts.Events = &natsEvents{nc: nc}
	}

	svc := nlq.New(store, completer, opts, logger)

	posts := repo.NewNeo4jRepo[domain.Post, string](
		driver,
		"Post",
		graph.PostToMap,
		postFromRecord,
	)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/query", handleQuery(svc, logger))
	mux.HandleFunc("GET /api/posts", handleListPosts(posts))
	mux.HandleFunc("GET /api/posts/{id}", handleGetPost(posts))
	mux.Handle("GET /metrics", opts.Registry.Handler())

	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateLimit, Burst: cfg.RateBurst})
	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("pulsegraph-api"),
		mid.CORS(cfg.CORSOrigin),
		mid.Auth(cfg.APISecret),
		mid.Throttle(limiter.Allow),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// newCompleter selects the completion backend. "none" disables generation
// and the pipeline answers from canned fallback queries.
func newCompleter(cfg Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case "ollama":
		return llm.NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil
	case "openai":
		return llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
}

func handleQuery(svc *nlq.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		answer, err := svc.Ask(r.Context(), req.Question)
		if err != nil {
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("query pipeline failed", "err", err)
			writeJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(answer)
	}
}

func handleListPosts(posts repo.Repository[domain.Post, string]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := repo.ListOpts{
			Offset: intQuery(r, "offset", 0),
			Limit:  intQuery(r, "limit", 20),
		}
		items, err := posts.List(r.Context(), opts)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "graph unavailable")
			return
		}
		if items == nil {
			items = []domain.Post{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"posts": items})
	}
}

func handleGetPost(posts repo.Repository[domain.Post, string]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := posts.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "post not found")
				return
			}
			writeJSONError(w, http.StatusBadGateway, "graph unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func intQuery(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

// postFromRecord extracts a Post from a repository query record.
func postFromRecord(rec *neo4j.Record) (domain.Post, error) {
	node, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "n")
	if err != nil {
		return domain.Post{}, fmt.Errorf("extract post node: %w", err)
	}
	return graph.PostFromProps(node.Props), nil
}

// --- Event publishing ---

// natsEvents publishes query events to NATS.
type natsEvents struct {
	nc *nats.Conn
}

func (n *natsEvents) PublishQueryEvent(ctx context.Context, ev nlq.QueryEvent) error {
	return natsutil.Publish(ctx, n.nc, querySubject, ev)
}
