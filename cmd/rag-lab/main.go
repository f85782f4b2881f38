// Command rag-lab ingests documents into collections and answers questions
// grounded in them, over HTTP or from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/rag-lab/server/config"
	"github.com/rag-lab/server/internal/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "rag-lab",
	Short: "Retrieval-augmented question answering over your documents",
	Long: `rag-lab stores uploaded documents in collections, splits them into
overlapping chunks, embeds the chunks with Ollama and answers questions from
the most similar chunks with a chat model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.rag-lab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *log.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}
