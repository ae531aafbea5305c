package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var flagResetCredential bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear chat history (and optionally the stored key)",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&flagResetCredential, "credential", false, "Also remove the stored API key and PIN")
	rootCmd.AddCommand(resetCmd)
}

func runReset(_ *cobra.Command, _ []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	prompt := "Delete all chat history?"
	if flagResetCredential {
		prompt = "Delete all chat history AND the stored API key?"
	}

	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(prompt).Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("  Nothing deleted.")
		return nil
	}

	if err := st.ClearMessages(); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	fmt.Println("  Chat history cleared.")

	if flagResetCredential {
		if err := st.ClearCredential(); err != nil {
			return fmt.Errorf("clearing credential: %w", err)
		}
		fmt.Println("  Stored key removed. Run `tokenchat setup` to add a new one.")
	}
	return nil
}
