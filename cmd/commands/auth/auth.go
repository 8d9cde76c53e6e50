package auth

import (
	"github.com/spf13/cobra"
)

// providerNames lists the providers tokens can be stored for.
var providerNames = []string{"hetzner"}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication for providers",
		Long: `Manage authentication for providers.

Use this command group to store API tokens securely in the OS
keychain. For unattended runs, pass a credentials file to
"imageroller roll -a" instead.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}
