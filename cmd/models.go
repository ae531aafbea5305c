package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tokenchat/internal/cli"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the provider's model catalog",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	pl := newPipeline(cfg, st)
	if err := pl.Init(cmd.Context()); err != nil {
		return err
	}
	if !pl.Authenticated() {
		fmt.Println("\n  No API key configured. Run `tokenchat setup` first.")
		return nil
	}

	models := pl.Models()
	if len(models) == 0 {
		fmt.Println("\n  Model list unavailable right now.")
		return nil
	}

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		rows = append(rows, []string{
			m.ID,
			perMTok(m.PromptPrice),
			perMTok(m.CompletionPrice),
			contextLabel(m.ContextLength),
		})
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("MODELS  %d available", len(models))))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Model", "Prompt $/MTok", "Completion $/MTok", "Context"},
		Rows:    rows,
	}))
	fmt.Println()
	fmt.Printf("  Balance: %s\n", cli.FormatBalance(pl.Balance()))
	return nil
}

// perMTok converts a per-token price string to a dollars-per-million
// display value. Unknown prices render as a dash.
func perMTok(price string) string {
	v, err := strconv.ParseFloat(price, 64)
	if err != nil || v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", v*1_000_000)
}

func contextLabel(n int64) string {
	if n <= 0 {
		return "-"
	}
	return cli.FormatTokens(n)
}
