package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tokenchat/internal/auth"
	"tokenchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat view",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cred, err := st.GetCredential()
	if err != nil {
		return err
	}
	if cred == nil {
		fmt.Println("\n  No API key configured. Run `tokenchat setup` first.")
		return nil
	}

	if err := verifyPIN(auth.NewGate(st)); err != nil {
		return err
	}

	pl := newPipeline(cfg, st)
	if err := pl.Init(cmd.Context()); err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewChat(pl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat TUI: %w", err)
	}
	return nil
}
