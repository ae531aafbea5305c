package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"tokenchat/internal/config"
	"tokenchat/internal/llm"
	"tokenchat/internal/provider"
	"tokenchat/internal/session"
	"tokenchat/internal/store"
)

var flagDataDir string

var rootCmd = &cobra.Command{
	Use:   "tokenchat",
	Short: "PIN-gated local chat client for pay-per-token LLM APIs",
	Long: "Chat with OpenRouter or DeepSeek models from the terminal.\n" +
		"Your API key is stored locally behind a short PIN, and every turn's\n" +
		"token usage and cost is tracked.",
	RunE: runChat,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "db", "d", "", "Database file path")
}

// dbPath resolves the database location: flag, then config, then default.
func dbPath(cfg config.Config) string {
	if flagDataDir != "" {
		return flagDataDir
	}
	if cfg.General.DataDir != "" {
		return cfg.General.DataDir
	}
	return store.DefaultPath()
}

// openStore loads config and opens the database.
func openStore() (config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	st, err := store.Open(dbPath(cfg))
	if err != nil {
		return cfg, nil, err
	}
	return cfg, st, nil
}

// newPipeline builds a session pipeline whose clients honor the
// configured endpoint overrides.
func newPipeline(cfg config.Config, st *store.Store) *session.Pipeline {
	factory := func(p provider.Provider, apiKey string) session.ChatClient {
		c := llm.NewClient(p, apiKey)
		if base := cfg.Endpoints.BaseURLFor(p); base != "" {
			c = c.WithBaseURL(base)
		}
		return c
	}
	return session.New(st, factory, session.Options{
		HistoryLimit: cfg.General.HistoryLimit,
		DefaultModel: cfg.General.DefaultModel,
	})
}
