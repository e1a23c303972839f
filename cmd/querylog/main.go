// Package main implements the PulseGraph query log collector. It subscribes
// to query events on NATS and appends them as JSON lines to a log file, one
// event per line, for offline analysis of question traffic and fallback
// rates.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/PulseGraphAI/pulsegraph-mvp/engine/nlq"
	"github.com/PulseGraphAI/pulsegraph-mvp/pkg/natsutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	subject := flag.String("subject", "pulsegraph.queries", "query event subject")
	outPath := flag.String("out", "queries.jsonl", "output file, one JSON event per line")
	flag.Parse()

	if err := run(*natsURL, *subject, *outPath, logger); err != nil {
		logger.Error("collector exited with error", "err", err)
		os.Exit(1)
	}
}

func run(natsURL, subject, outPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", outPath, err)
	}
	defer out.Close()

	var mu sync.Mutex
	sub, err := natsutil.Subscribe(nc, subject, func(_ context.Context, ev nlq.QueryEvent) {
		line, err := json.Marshal(ev)
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := out.Write(append(line, '\n')); err != nil {
			logger.Error("write event", "err", err)
		}
		logger.Info("query event",
			"fallback", ev.Fallback,
			"rows", ev.Rows,
			"failures", ev.Failures,
			"duration_ms", ev.DurationMS,
		)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	logger.Info("query log collector started", "subject", subject, "out", outPath)
	<-ctx.Done()
	return nil
}
