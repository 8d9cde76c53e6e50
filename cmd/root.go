package cmd

import (
	"os"

	authcmd "imageroller/cmd/commands/auth"
	"imageroller/cmd/commands/check"
	"imageroller/cmd/commands/history"
	"imageroller/cmd/commands/roll"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "imageroller",
		Short: "Roll per-server snapshot images under a retention policy",
		Long: `imageroller keeps a bounded, fresh set of snapshot images for each
configured cloud server. Every run creates a new image per server,
waits for it to become available, then prunes the oldest images past
the server's retention rule. A server is never left without at least
one usable image.

Supported providers: Hetzner.

Quick start:
  imageroller auth login hetzner     # Store your API token
  imageroller check -c config.yaml   # Validate the configuration
  imageroller roll -c config.yaml    # Run one rolling pass
  imageroller history list           # Inspect past runs`,
	}

	cmd.AddCommand(roll.NewCommand())
	cmd.AddCommand(check.NewCommand())
	cmd.AddCommand(history.NewCommand())
	cmd.AddCommand(authcmd.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	var root = rootCmd()
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
