package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"tokenchat/internal/cli"
)

var flagStatsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics for the stored chat history",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "Emit the combined export payload as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// The export combines persisted totals with the (process-local)
	// session analytics; from this command the session part is empty.
	export := newPipeline(cfg, st).ExportHistory()

	if flagStatsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(export)
	}

	stats := export.Persisted
	fmt.Println()
	fmt.Println(cli.RenderTitle("CHAT HISTORY"))
	fmt.Println()
	fmt.Printf("  Messages: %s   Tokens: %s\n",
		cli.FormatNumber(int64(stats.TotalMessages)),
		cli.FormatTokens(stats.TotalTokens),
	)

	if len(stats.PerModel) == 0 {
		fmt.Println("\n  No model replies recorded yet.")
		return nil
	}

	models := lo.Keys(stats.PerModel)
	sort.Strings(models)

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		mu := stats.PerModel[m]
		rows = append(rows, []string{
			m,
			cli.FormatNumber(int64(mu.Messages)),
			cli.FormatTokens(mu.Tokens),
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Model", "Replies", "Tokens"},
		Rows:    rows,
	}))
	return nil
}
