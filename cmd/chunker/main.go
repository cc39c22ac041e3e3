package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/passage-assistant/internal/bootstrap"
	"github.com/kirillkom/passage-assistant/internal/config"
	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/observability/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		workID  string
		index   bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "chunker",
		Short: "Chunk normalized works into child and parent passages",
		Long: `Reads every manifest, extracts blocks from the matching normalized HTML
document and writes child/parent JSONL exports plus a run log.

Use --work to chunk a single work and --index to embed and upsert the
children of every successfully chunked work.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.Load()
			if workers > 0 {
				cfg.ChunkWorkers = workers
			}
			logging.Install("chunker", cfg.LogLevel)

			app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
			if err != nil {
				slog.Error("bootstrap_failed", "error", err)
				return err
			}
			defer app.Close()

			entries, err := runChunk(ctx, app, workID)
			if err != nil {
				slog.Error("chunk_failed", "error", err)
			}
			if index {
				if indexErr := runIndex(ctx, app, entries); indexErr != nil && err == nil {
					err = indexErr
				}
			}
			if printErr := printSummary(cmd.OutOrStdout(), entries); printErr != nil && err == nil {
				err = printErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&workID, "work", "", "Chunk only the work with this id")
	cmd.Flags().BoolVar(&index, "index", false, "Embed and index chunked works")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel documents (overrides CHUNK_WORKERS)")

	return cmd
}

func runChunk(ctx context.Context, app *bootstrap.App, workID string) ([]domain.RunEntry, error) {
	if workID == "" {
		return app.Chunker.Run(ctx)
	}
	entry, err := app.Chunker.ChunkWork(ctx, workID)
	return []domain.RunEntry{entry}, err
}

func runIndex(ctx context.Context, app *bootstrap.App, entries []domain.RunEntry) error {
	var failed int
	for _, entry := range entries {
		if entry.Status != domain.RunStatusOK {
			continue
		}
		if _, err := app.Indexer.IndexWork(ctx, entry.WorkID); err != nil {
			failed++
			slog.Error("index_work_failed", "work_id", entry.WorkID, "error", err)
			if ctx.Err() != nil {
				return err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("indexing failed for %d works", failed)
	}
	return nil
}

func printSummary(w io.Writer, entries []domain.RunEntry) error {
	if entries == nil {
		entries = []domain.RunEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(entries)
}
