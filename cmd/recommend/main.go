// Package main is an interactive destination lookup: it reads destination
// names from stdin and prints the recommendation for each.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/WessleyAI/wayfarer/engine/decision"
	"github.com/WessleyAI/wayfarer/engine/embed"
	"github.com/WessleyAI/wayfarer/engine/semantic"
	"github.com/WessleyAI/wayfarer/pkg/config"
)

const prompt = "Enter a destination name: "

type recommender interface {
	Recommend(ctx context.Context, query string) (decision.Decision, error)
}

func main() {
	query := flag.String("query", "", "look up a single destination and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	// Logs go to stderr so stdout stays the conversation.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *query); err != nil {
		logger.Error("recommend failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, query string) error {
	embedder, err := embed.FromConfig(ctx, cfg.Embed, nil, logger)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	defer embedder.Close()

	index, err := semantic.Open(ctx, cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	defer index.Close()

	opts := decision.DefaultOptions()
	opts.Threshold = float32(cfg.Retrieval.Threshold)
	opts.Namespace = cfg.Retrieval.Namespace
	rec, err := decision.NewRecommender(embedder, index, opts, logger)
	if err != nil {
		return err
	}

	if query != "" {
		return answer(ctx, rec, query, os.Stdout)
	}
	return loop(ctx, rec, os.Stdin, os.Stdout, logger)
}

// loop prompts until EOF, "quit" or "exit". Lookup errors are reported and
// the loop continues.
func loop(ctx context.Context, rec recommender, in io.Reader, out io.Writer, logger *slog.Logger) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		if err := answer(ctx, rec, line, out); err != nil {
			logger.Warn("lookup failed", "query", line, "err", err)
			fmt.Fprintf(out, "Lookup failed: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func answer(ctx context.Context, rec recommender, query string, out io.Writer) error {
	d, err := rec.Recommend(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, d.String())
	return nil
}
