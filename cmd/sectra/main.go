// Copyright 2026 Corvid Labs
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
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	sectra "github.com/corvid-labs/sectra"
	"github.com/corvid-labs/sectra/ai"
	"github.com/corvid-labs/sectra/ai/openai"
	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/ingestion"
	"github.com/corvid-labs/sectra/reembed"
)

func main() {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to the store directory",
		Required: true,
	}
	keyFlag := &cli.StringFlag{
		Name:     "key",
		Aliases:  []string{"k"},
		Usage:    "Source key, e.g. bia-1985",
		Required: true,
	}

	app := &cli.App{
		Name:  "sectra",
		Usage: "Sectioned-corpus knowledge store",
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
				Usage:  "Ingest a source text with its extraction records",
				Action: ingestCommand,
				Flags: []cli.Flag{
					dbFlag, keyFlag,
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name of the source",
					},
					&cli.StringFlag{
						Name:  "domain",
						Usage: "Domain tag, e.g. statute, educational",
						Value: "statute",
					},
					&cli.StringFlag{
						Name:     "text",
						Usage:    "Path to the raw source text file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "records",
						Usage:    "Path to the extraction records JSON file",
						Required: true,
					},
				},
			},
			{
				Name:   "extract",
				Usage:  "Run the record extractor on a text file, writing records JSON to stdout",
				Action: extractCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "text",
						Usage:    "Path to the raw source text file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "extractor-host",
						Usage: "Extraction service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "extractor-model",
						Usage:    "Extraction model name",
						Required: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the store",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
			{
				Name:   "tree",
				Usage:  "Print a source's section tree",
				Action: treeCommand,
				Flags:  []cli.Flag{dbFlag, keyFlag},
			},
			{
				Name:   "sections",
				Usage:  "List the entities and relationships of a section subtree",
				Action: sectionsCommand,
				Flags: []cli.Flag{
					dbFlag, keyFlag,
					&cli.StringFlag{
						Name:  "path",
						Usage: "Section path prefix; empty selects the whole source",
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Compute and attach embeddings for every stored record",
				Action: embedCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedder calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "renormalize",
				Usage:  "Rebuild alias clusters under the current normalization settings",
				Action: renormalizeCommand,
				Flags:  []cli.Flag{dbFlag},
			},
			{
				Name:   "stats",
				Usage:  "Show record counts per source",
				Action: statsCommand,
				Flags:  []cli.Flag{dbFlag},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openStore(c *cli.Context) (*sectra.Store, error) {
	store, err := sectra.Open(c.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	text, err := os.ReadFile(c.String("text"))
	if err != nil {
		return fmt.Errorf("failed to read source text: %w", err)
	}

	recordData, err := os.ReadFile(c.String("records"))
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	var records ai.ExtractionBatch
	if err := json.Unmarshal(recordData, &records); err != nil {
		return fmt.Errorf("failed to parse records: %w", err)
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	desc := ingestion.SourceDescriptor{
		Key:    c.String("key"),
		Name:   c.String("name"),
		Domain: c.String("domain"),
	}
	report, err := store.IngestSource(ctx, desc, string(text), &records)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingested %s: %d sections, %d entities, %d relationships\n",
		desc.Key, report.Sections, report.Entities, report.Relationships)
	if report.Unsectioned > 0 {
		fmt.Printf("  %d records fell outside all sections\n", report.Unsectioned)
	}
	for _, rejected := range report.Rejected {
		fmt.Printf("  rejected %v\n", rejected)
	}
	for _, warning := range report.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	return nil
}

func extractCommand(c *cli.Context) error {
	text, err := os.ReadFile(c.String("text"))
	if err != nil {
		return fmt.Errorf("failed to read source text: %w", err)
	}

	cfg := ai.NewConfig(
		ai.WithExtractorHost(c.String("extractor-host")),
		ai.WithExtractorModel(c.String("extractor-model")),
	)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	extractor, err := openai.NewRecordExtractor(cfg)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	batch, err := extractor.ExtractRecords(context.Background(), string(text))
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(batch)
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Search(context.Background(), query, nil, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, result := range results {
		switch result.Kind {
		case core.KindEntity:
			fmt.Printf("%2d. [%.3f] entity/%s  %s\n",
				i+1, result.Score, result.Entity.Category, result.Entity.Text)
		case core.KindRelationship:
			fmt.Printf("%2d. [%.3f] relationship/%s  %s\n",
				i+1, result.Score, result.Relationship.Category, result.Relationship.SearchText())
		}
	}
	return nil
}

func treeCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	src, err := store.FindSourceByKey(ctx, c.String("key"))
	if err != nil {
		return fmt.Errorf("failed to find source: %w", err)
	}
	tree, err := store.SectionTree(ctx, src.Id)
	if err != nil {
		return fmt.Errorf("failed to load section tree: %w", err)
	}

	var print func(ids []core.ID, indent string)
	print = func(ids []core.ID, indent string) {
		for _, id := range ids {
			sec := tree.Section(id)
			marker := ""
			if sec.Synthetic {
				marker = " (synthetic)"
			}
			fmt.Printf("%s%s [%d,%d)%s\n", indent, sec.Label(), sec.Start, sec.End, marker)
			print(tree.Children(id), indent+"  ")
		}
	}
	print(tree.Children(0), "")
	return nil
}

func sectionsCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	src, err := store.FindSourceByKey(ctx, c.String("key"))
	if err != nil {
		return fmt.Errorf("failed to find source: %w", err)
	}
	scoped, err := store.QueryBySectionRange(ctx, src.Id, c.String("path"))
	if err != nil {
		return fmt.Errorf("section query failed: %w", err)
	}

	for _, sec := range scoped.Sections {
		fmt.Printf("%s\n", sec.Path)
	}
	fmt.Printf("%d sections, %d entities, %d relationships\n",
		len(scoped.Sections), len(scoped.Entities), len(scoped.Relationships))
	for _, ent := range scoped.Entities {
		fmt.Printf("  entity/%s  %s\n", ent.Category, ent.Text)
	}
	for _, rel := range scoped.Relationships {
		fmt.Printf("  relationship/%s  %s\n", rel.Category, rel.SearchText())
	}
	return nil
}

func embedCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}
	embedder, err := openai.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	repos := store.Repositories()
	reembedder, err := reembed.NewReembedder(
		repos.Sources, repos.Entities, repos.Relationships, store, embedder, reembedConfig, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Store: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	return nil
}

func renormalizeCommand(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.RenormalizeAliases(context.Background()); err != nil {
		return fmt.Errorf("renormalization failed: %w", err)
	}
	fmt.Println("Alias clusters renormalized.")
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	sources, err := store.Sources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}
	if len(sources) == 0 {
		fmt.Println("Store is empty.")
		return nil
	}
	for _, src := range sources {
		stats, err := store.Stats(ctx, src.Key)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s %3d sections %4d entities %4d relationships  ingested %s\n",
			src.Key, stats.Sections, stats.Entities, stats.Relationships,
			src.IngestedAt.Format(time.RFC3339))
	}
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
