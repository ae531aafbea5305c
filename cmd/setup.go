package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"tokenchat/internal/auth"
	"tokenchat/internal/cli"
	"tokenchat/internal/provider"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Store an API key behind a new PIN",
	Long: "Classifies the key by prefix, probes the provider's billing endpoint,\n" +
		"and on success stores the key locally guarded by a fresh 4-digit PIN.\n" +
		"The PIN is shown exactly once.",
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if cred, err := st.GetCredential(); err == nil && cred != nil {
		fmt.Printf("\n  A key is already stored (%s, %s).\n", cli.MaskKey(cred.APIKey), cred.Provider)
		fmt.Println("  Continuing will replace it and issue a new PIN.")
	}

	var rawKey string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("API key").
			Description("OpenRouter (sk-or-...) or DeepSeek (sk-...)").
			EchoMode(huh.EchoModePassword).
			Value(&rawKey).
			Validate(func(s string) error {
				if _, err := provider.Classify(s); err != nil {
					return errors.New("key matches neither provider's prefix")
				}
				return nil
			}),
	))
	if err := form.Run(); err != nil {
		return err
	}
	rawKey = strings.TrimSpace(rawKey)

	p, err := provider.Classify(rawKey)
	if err != nil {
		return err
	}

	gate := auth.NewGate(st)
	if base := cfg.Endpoints.BaseURLFor(p); base != "" {
		gate = gate.WithBaseURL(base)
	}

	secret, err := gate.Setup(cmd.Context(), rawKey)
	if err != nil {
		if errors.Is(err, auth.ErrKeyRejected) {
			return fmt.Errorf("the provider rejected this key; check it and try again")
		}
		return err
	}

	fmt.Println()
	fmt.Printf("  Key stored for %s.\n", p)
	fmt.Println()
	fmt.Printf("  Your PIN: %s\n", secret)
	fmt.Println()
	fmt.Println("  Write it down. It is not stored anywhere and cannot be recovered;")
	fmt.Println("  losing it means running setup again with your API key.")
	fmt.Println()

	return nil
}

// verifyPIN prompts for the PIN and checks it against the stored
// verifier, allowing a few attempts.
func verifyPIN(gate *auth.Gate) error {
	for attempt := 1; attempt <= 3; attempt++ {
		var pin string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("PIN").
				Description("4-digit PIN issued at setup").
				EchoMode(huh.EchoModePassword).
				CharLimit(4).
				Value(&pin),
		))
		if err := form.Run(); err != nil {
			return err
		}

		ok, err := gate.VerifySecret(strings.TrimSpace(pin))
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		fmt.Printf("  Wrong PIN (%d/3).\n", attempt)
	}
	return errors.New("too many wrong PIN attempts")
}
