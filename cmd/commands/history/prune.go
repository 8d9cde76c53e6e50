package history

import (
	"fmt"
	"strings"

	"imageroller/internal/config"
	"imageroller/internal/runlog"

	"github.com/spf13/cobra"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete run entries older than a duration",
		Long: `Delete run entries older than a duration.

Examples:
  imageroller history prune --older-than 30d
  imageroller history prune --older-than 72h`,
		RunE:         runPrune,
		SilenceUsage: true,
	}

	cmd.Flags().String("older-than", "", "Remove entries older than this duration (e.g. 30d, 72h)")

	return cmd
}

func runPrune(cmd *cobra.Command, args []string) error {
	olderThanRaw, _ := cmd.Flags().GetString("older-than")
	olderThanRaw = strings.TrimSpace(olderThanRaw)
	if olderThanRaw == "" {
		return fmt.Errorf("--older-than is required")
	}

	olderThan, err := config.ParseDuration(olderThanRaw)
	if err != nil {
		return err
	}
	if olderThan <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	repo, err := runlog.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	removed, err := repo.Prune(olderThan)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run entr(y/ies).\n", removed)
	return nil
}
