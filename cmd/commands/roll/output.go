package roll

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"imageroller/internal/roller"
	"imageroller/internal/util"
)

// passView is the serializable shape of one server's pass, flattening
// the error values RunResult keeps as plain errors.
type passView struct {
	Server     string   `json:"server"`
	Outcome    string   `json:"outcome"`
	Created    string   `json:"created,omitempty"`
	Deleted    []string `json:"deleted,omitempty"`
	FailedDel  []string `json:"failed_deletions,omitempty"`
	Anomalies  []string `json:"anomalies,omitempty"`
	TimedOut   bool     `json:"timed_out,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

type reportView struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Failed     bool       `json:"failed"`
	Passes     []passView `json:"passes"`
}

func viewOf(report roller.Report) reportView {
	view := reportView{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Failed:     report.Failed(),
	}
	for _, res := range report.Results {
		pass := passView{
			Server:     res.ServerName,
			Outcome:    string(res.Classification),
			TimedOut:   res.TimedOut,
			DryRun:     res.DryRun,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Created != nil {
			pass.Created = res.Created.Name
		}
		for _, d := range res.Deletions {
			if d.Failed() {
				pass.FailedDel = append(pass.FailedDel, d.Image.Name)
			} else {
				pass.Deleted = append(pass.Deleted, d.Image.Name)
			}
		}
		for _, a := range res.Anomalies {
			pass.Anomalies = append(pass.Anomalies, a.Name)
		}
		if err := res.Error(); err != nil {
			pass.Error = err.Error()
		}
		view.Passes = append(view.Passes, pass)
	}
	return view
}

func renderJSON(out io.Writer, report roller.Report) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(viewOf(report))
}

func renderTable(out io.Writer, report roller.Report) error {
	view := viewOf(report)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tOUTCOME\tCREATED\tDELETED\tDURATION\tDETAIL")
	fmt.Fprintln(w, "------\t-------\t-------\t-------\t--------\t------")
	for _, pass := range view.Passes {
		outcome := pass.Outcome
		if pass.DryRun {
			outcome += " (dry run)"
		}
		created := pass.Created
		if created == "" {
			created = "-"
		}
		detail := pass.Error
		if detail == "" && pass.TimedOut {
			detail = "image still pending at deadline"
		}
		if detail == "" && len(pass.Anomalies) > 0 {
			detail = fmt.Sprintf("%d stuck image(s)", len(pass.Anomalies))
		}
		if detail == "" {
			detail = "-"
		}
		detail = util.Truncate(detail, 60)

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			pass.Server,
			outcome,
			created,
			len(pass.Deleted),
			formatDuration(pass.DurationMs),
			detail,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRun %s: %d server(s) in %s\n",
		view.RunID, len(view.Passes),
		formatDuration(view.FinishedAt.Sub(view.StartedAt).Milliseconds()))
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
