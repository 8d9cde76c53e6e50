package check

import (
	"fmt"
	"text/tabwriter"

	"imageroller/internal/config"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file without contacting the provider.

Examples:
  imageroller check -c config.yaml`,
		RunE:         runCheck,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("config", "c", "", "Path to the run configuration file (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration OK: provider %s, %d server(s), concurrency %d\n",
		cfg.Provider, len(cfg.Servers), cfg.Concurrency)
	fmt.Fprintf(out, "Poll every %s, deadline %s, request timeout %s\n\n",
		cfg.PollInterval.Std(), cfg.PollDeadline.Std(), cfg.RequestTimeout.Std())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tID\tRETENTION")
	fmt.Fprintln(w, "------\t--\t---------")
	for _, spec := range cfg.Servers {
		fmt.Fprintf(w, "%s\t%s\t%s\n", spec.DisplayName(), spec.ID, spec.Retention())
	}
	return w.Flush()
}
