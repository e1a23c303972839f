// Package main implements the PulseGraph dataset loader. It reads the JSON
// node files from a data directory, writes nodes and derived relationships
// into Neo4j, and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/etl"
	"github.com/PulseGraphAI/pulsegraph-mvp/engine/graph"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	dataDir := flag.String("data", "./data", "directory containing users.json, posts.json, factchecks.json")
	workers := flag.Int("workers", 4, "concurrent node merges")
	flag.Parse()

	if err := run(*dataDir, *workers, logger); err != nil {
		logger.Error("import failed", "err", err)
		os.Exit(1)
	}
}

func run(dataDir string, workers int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uri := envOr("NEO4J_URL", "neo4j://localhost:7687")
	user := envOr("NEO4J_USER", "neo4j")
	pass := envOr("NEO4J_PASS", "password")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	ds, err := etl.LoadDataset(dataDir)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded",
		"dir", dataDir,
		"users", len(ds.Users),
		"posts", len(ds.Posts),
		"fact_checks", len(ds.FactChecks),
	)

	loader := etl.NewLoader(graph.New(driver), workers, logger)
	stats, err := loader.Run(ctx, ds)
	if err != nil {
		return err
	}

	fmt.Printf("imported %d users, %d posts, %d fact checks, %d relationships (%d skipped)\n",
		stats.Users, stats.Posts, stats.FactChecks, stats.Relationships, stats.Skipped)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
