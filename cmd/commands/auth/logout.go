package auth

import (
	"fmt"
	"strings"

	"imageroller/internal/services/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout <provider>",
		Short: "Remove a stored API token for a provider",
		Long: `Remove a stored API token for a provider from the local keychain.

Example:
  imageroller auth logout hetzner`,
		Args:         cobra.ExactArgs(1),
		RunE:         runLogout,
		SilenceUsage: true,
	}

	return cmd
}

func runLogout(cmd *cobra.Command, args []string) error {
	provider := strings.TrimSpace(args[0])
	if provider == "" {
		return fmt.Errorf("provider is required")
	}

	store := auth.DefaultStore()
	if err := store.DeleteToken(provider); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed token for provider %s\n", provider)
	return nil
}
