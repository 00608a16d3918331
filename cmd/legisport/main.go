// Copyright 2025 Openlexica
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openlexica/legisport"
	"github.com/openlexica/legisport/ai"
	"github.com/openlexica/legisport/core"
	"github.com/openlexica/legisport/deliver"
	"github.com/openlexica/legisport/resolver"
	"github.com/openlexica/legisport/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "legisport",
		Usage: "Resumable ingestion pipeline for the UK legislation corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Crawl, parse and deliver documents for type/year combinations",
				Action: ingestCommand,
				Flags:  append(comboFlags(), ingestFlags()...),
			},
			{
				Name:   "ingest-local",
				Usage:  "Run the pipeline against an offline snapshot directory",
				Action: ingestLocalCommand,
				Flags: append(append(comboFlags(), ingestFlags()...),
					&cli.StringFlag{
						Name:     "snapshot",
						Usage:    "Directory mirroring the source site layout",
						Required: true,
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show checkpoint progress for every attempted combination",
				Action: statusCommand,
				Flags: []cli.Flag{
					dbFlag(),
				},
			},
			{
				Name:   "reset-checkpoint",
				Usage:  "Erase progress for one combination so it is reprocessed",
				Action: resetCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Document type code, e.g. ukpga",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "year",
						Usage:    "Calendar year",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
}

func comboFlags() []cli.Flag {
	return []cli.Flag{
		dbFlag(),
		&cli.StringSliceFlag{
			Name:     "type",
			Usage:    "Document type code to ingest (repeatable), e.g. ukpga",
			Required: true,
		},
		&cli.IntFlag{
			Name:     "from-year",
			Usage:    "First calendar year to ingest",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "to-year",
			Usage: "Last calendar year to ingest (defaults to from-year)",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: "Restrict yielded identifiers to this sub-type within the listing",
		},
	}
}

func ingestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "source-url",
			Usage: "Base URL of the legislation source",
			Value: "https://www.legislation.gov.uk",
		},
		&cli.StringFlag{
			Name:  "store-url",
			Usage: "Batch upsert endpoint of the downstream document store",
		},
		&cli.StringFlag{
			Name:    "store-api-key",
			Usage:   "API key for the downstream store",
			EnvVars: []string{"LEGISPORT_STORE_API_KEY"},
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Deliver into an in-process store and discard it on exit",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.BoolFlag{
			Name:  "no-embed",
			Usage: "Deliver records without vectors",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent identifiers in flight",
			Value: 4,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Stop after dispatching this many identifiers (0 for no limit)",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Provision records per upsert batch",
			Value: 128,
		},
		&cli.IntFlag{
			Name:  "doc-batch-size",
			Usage: "Full-document records per upsert batch",
			Value: 16,
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "Global source request ceiling, requests per second",
			Value: 4,
		},
		&cli.DurationFlag{
			Name:  "cache-ttl",
			Usage: "How long fetched responses are served from the cache",
			Value: 24 * time.Hour,
		},
	}
}

func ingestCommand(c *cli.Context) error {
	return runPipeline(c, nil)
}

func ingestLocalCommand(c *cli.Context) error {
	return runPipeline(c, []legisport.PipelineOption{
		legisport.WithSnapshotDir(c.String("snapshot")),
	})
}

// runPipeline assembles a Pipeline from the flags and runs the
// requested combinations.
func runPipeline(c *cli.Context, extra []legisport.PipelineOption) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	requests, err := buildRequests(c)
	if err != nil {
		return err
	}

	store, err := buildStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []legisport.PipelineOption{
		legisport.WithSourceURL(c.String("source-url")),
		legisport.WithRateLimit(c.Float64("rate-limit")),
		legisport.WithCacheTTL(c.Duration("cache-ttl")),
		legisport.WithWorkers(c.Int("workers")),
		legisport.WithLimit(c.Int("limit")),
		legisport.WithBatchSizes(c.Int("doc-batch-size"), c.Int("batch-size")),
		legisport.WithAIConfig(ai.NewConfig(
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
		)),
	}
	if c.Bool("no-embed") {
		opts = append(opts, legisport.WithoutEmbedding())
	}
	opts = append(opts, extra...)

	pipeline, err := legisport.NewPipeline(c.String("db"), store, opts...)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer pipeline.Close()

	summary, runErr := pipeline.Run(ctx, requests)
	fmt.Fprint(os.Stderr, summary.String())
	if runErr != nil {
		return fmt.Errorf("run stopped early: %w", runErr)
	}
	return nil
}

// buildStore picks the downstream store: HTTP when configured, an
// in-process throwaway store for dry runs.
func buildStore(c *cli.Context) (deliver.UpsertStore, error) {
	if c.Bool("dry-run") {
		return deliver.NewMemoryStore(), nil
	}
	endpoint := c.String("store-url")
	if endpoint == "" {
		return nil, fmt.Errorf("either --store-url or --dry-run is required")
	}
	return deliver.NewHTTPStore(endpoint, c.String("store-api-key"), slog.Default()), nil
}

// buildRequests expands the type and year flags into combinations.
func buildRequests(c *cli.Context) ([]resolver.Request, error) {
	from := c.Int("from-year")
	to := c.Int("to-year")
	if to == 0 {
		to = from
	}
	if to < from {
		return nil, fmt.Errorf("to-year %d precedes from-year %d", to, from)
	}

	filter := core.DocType(c.String("filter"))

	var requests []resolver.Request
	for _, raw := range c.StringSlice("type") {
		docType := core.DocType(strings.TrimSpace(raw))
		if err := core.ValidateDocType(docType); err != nil {
			return nil, err
		}
		for year := from; year <= to; year++ {
			requests = append(requests, resolver.Request{Type: docType, Year: year, Filter: filter})
		}
	}
	return requests, nil
}

func statusCommand(c *cli.Context) error {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	checkpoints := badger.NewCheckpointRepository(backend)
	defer checkpoints.Close()

	records, err := checkpoints.ListCheckpoints(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no checkpoints recorded")
		return nil
	}

	for _, rec := range records {
		state := "in progress"
		if rec.IsComplete() {
			state = "complete"
		}
		fmt.Printf("%s/%d: %s: %d candidates, %d completed, %d failed, %d retryable (updated %s)\n",
			rec.Type, rec.Year, state,
			rec.Meta.Candidates, len(rec.Completed), len(rec.Failed), len(rec.Retryable),
			rec.Meta.UpdatedAt.Format(time.RFC3339))
		for ident, reason := range rec.Failed {
			fmt.Printf("  failed: %s: %s\n", ident, reason)
		}
	}
	return nil
}

func resetCommand(c *cli.Context) error {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	docType := core.DocType(c.String("type"))
	if err := core.ValidateDocType(docType); err != nil {
		return err
	}
	year := c.Int("year")

	checkpoints := badger.NewCheckpointRepository(backend)
	defer checkpoints.Close()

	if err := checkpoints.ClearCheckpoint(context.Background(), docType, year); err != nil {
		return err
	}
	fmt.Printf("checkpoint cleared for %s/%d\n", docType, year)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
