package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var runHeaders = []string{"ID", "JOB", "STATUS", "TRIGGER", "FORCE", "CREATED"}

func runRow(r *RunResponse) []string {
	return []string{r.ID, r.Job, r.Status, r.Trigger, strconv.FormatBool(r.Force), r.CreatedAt}
}

// NewRunCmd создаёт группу команд для управления sync runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage sync runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Job, "job", "", "Filter by job")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show sync run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			printRunDetails(out, run)
			return nil
		},
	}
}

func newRunWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Wait until a sync run finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deadline := time.Now().Add(timeout)
			status := ""
			for {
				run, err := client.GetRun(args[0])
				if err != nil {
					return err
				}
				if run.Status != status {
					status = run.Status
					out.Success(fmt.Sprintf("Run %s: %s", run.ID, run.Status))
				}
				if isTerminal(run.Status) {
					printRunDetails(out, run)
					if run.Status == "FAILED" {
						return fmt.Errorf("run failed: %s", run.Error)
					}
					return nil
				}
				if time.Now().After(deadline) {
					return fmt.Errorf("run %s still %s after %s", run.ID, run.Status, timeout)
				}

				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up after this long")

	return cmd
}

func printRunDetails(out *Output, run *RunResponse) {
	duration := ""
	if run.DurationMs > 0 {
		duration = (time.Duration(run.DurationMs) * time.Millisecond).String()
	}
	out.Print(
		[]string{"ID", "JOB", "STATUS", "TRIGGER", "DURATION", "ERROR", "CREATED"},
		[][]string{{run.ID, run.Job, run.Status, run.Trigger, duration, run.Error, run.CreatedAt}},
		run,
	)
}

func isTerminal(status string) bool {
	return status == "SUCCEEDED" || status == "FAILED"
}
