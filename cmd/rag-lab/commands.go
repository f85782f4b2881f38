package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rag-lab/server/config"
	"github.com/rag-lab/server/internal/db"
	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/logger"
	"github.com/rag-lab/server/internal/server"
	"github.com/rag-lab/server/internal/sqlite"
	"github.com/rag-lab/server/internal/tui"
)

var (
	queryJSON   bool
	searchLimit int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var embedCmd = &cobra.Command{
	Use:   "embed [document-id]",
	Short: "Extract, chunk and embed a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmbed,
}

var queryCmd = &cobra.Command{
	Use:   "query [collection-id] [question...]",
	Short: "Answer a question from a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQuery,
}

var searchCmd = &cobra.Command{
	Use:   "search [collection-id] [query...]",
	Short: "List the chunks most similar to a query",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the Ollama server and embedding model",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats [collection-id]",
	Short: "Count documents, chunks and embeddings in a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var chatCmd = &cobra.Command{
	Use:   "chat [collection-id]",
	Short: "Chat with a collection in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default processing.top_k)")

	rootCmd.AddCommand(serveCmd, migrateCmd, embedCmd, queryCmd, searchCmd, statusCmd, statsCmd, chatCmd)
}

// setup loads config and builds the app for a command.
func setup(ctx context.Context, withGenerator bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg, newLogger(cfg), withGenerator)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Deps{
		Library:     a.library,
		Ingestor:    a.processor,
		Querier:     a.query,
		ModelStatus: a.modelStatus,
		Ping:        a.store.Ping,
		StaticDir:   a.cfg.Server.StaticDir,
	}, a.logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(a.cfg.Addr()) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := db.New(ctx, cfg.Database.ConnectionString, poolOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()
		n, err := pg.Migrate(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Applied %d migration(s)\n", n)
	default:
		store, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		cmd.Printf("Database ready at %s\n", store.Path())
	}
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.processor.EmbedDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	cmd.Printf("Embedded %d chunk(s) with %d dimensions\n", result.ChunksCreated, result.Dimensions)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.query.Query(cmd.Context(), strings.Join(args[1:], " "), args[0])
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Answer)
	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, s := range answer.Sources {
			cmd.Printf("  - %s: %s\n", s.DocumentName, s.Excerpt)
		}
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	hits, err := a.retriever.Search(cmd.Context(), strings.Join(args[1:], " "), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, h := range hits {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, h.DocumentName, h.Distance)
		cmd.Printf("      %s\n", oneLine(h.Content, 100))
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	status := a.modelStatus(cmd.Context())
	if !status.Available {
		cmd.Printf("Ollama unavailable: %s\n", status.Reason)
		return errors.New("models unavailable")
	}
	cmd.Printf("Ollama ready at %s with %s\n", a.cfg.Ollama.BaseURL, strings.Join(status.Models, ", "))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.library.Stats(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Documents:  %d\nChunks:     %d\nEmbeddings: %d\n", stats.Documents, stats.Chunks, stats.Embeddings)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The chat owns the terminal, so logs go to a file next to the config.
	logPath := filepath.Join(config.Dir(), "chat.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	a, err := buildApp(cmd.Context(), cfg, logger.New(cfg.Logging.Level, "json", logFile), true)
	if err != nil {
		return err
	}
	defer a.Close()

	title := args[0]
	collections, err := a.library.ListCollections(cmd.Context())
	if err != nil {
		return err
	}
	found := false
	for _, c := range collections {
		if c.ID == args[0] {
			title, found = c.Name, true
			break
		}
	}
	if !found {
		return fmt.Errorf("collection %s: %w", args[0], domain.ErrNotFound)
	}

	return tui.Run(tui.New(a.query, args[0], title, a.cfg.Generation.Timeout))
}

// oneLine collapses whitespace and truncates s to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
