package history

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"imageroller/internal/runlog"
	"imageroller/internal/util"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent run entries",
		Long: `List recent run entries stored locally, one per server pass.

Examples:
  imageroller history list
  imageroller history list --limit 50
  imageroller history list --server web-1
  imageroller history list -o json`,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 25, "Number of entries to display")
	cmd.Flags().String("server", "", "Filter by server ID")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	filter, _ := cmd.Flags().GetString("server")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = "table"
	}

	repo, err := runlog.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	var entries []runlog.Entry
	if filter != "" {
		entries, err = repo.ListByServer(filter, limit)
	} else {
		entries, err = repo.List(limit)
	}
	if err != nil {
		return err
	}

	if output == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}
	if output != "table" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No run entries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSERVER\tOUTCOME\tCREATED\tDELETED\tDURATION\tDETAIL")
	fmt.Fprintln(w, "----\t------\t-------\t-------\t-------\t--------\t------")
	for _, entry := range entries {
		timeStr := entry.Timestamp.Local().Format("2006-01-02 15:04:05")
		server := entry.ServerName
		if server == "" {
			server = entry.ServerID
		}
		created := entry.CreatedImage
		if created == "" {
			created = "-"
		}
		deleted := fmt.Sprintf("%d", entry.DeletedCount)
		if entry.FailedDeletes > 0 {
			deleted = fmt.Sprintf("%d (+%d failed)", entry.DeletedCount, entry.FailedDeletes)
		}
		detail := util.Truncate(entry.Detail, 60)
		if detail == "" {
			detail = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			timeStr,
			server,
			entry.Outcome,
			created,
			deleted,
			formatDuration(entry.DurationMs),
			detail,
		)
	}
	w.Flush()
	return nil
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
