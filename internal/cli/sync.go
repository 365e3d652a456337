package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSyncCmd создаёт команду синхронизации с YNAB.
//
//	ynab sync transactions --force
//	ynab sync payees --queue
func NewSyncCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var force bool
	var queue bool

	cmd := &cobra.Command{
		Use:   "sync JOB",
		Short: "Sync data from YNAB",
		Long: `Sync data from YNAB.

Jobs: accounts, categories, payees, month-summaries, month-details,
transactions, transaction-rels, savings, card-payments.

By default the job runs synchronously and the result is printed.
With --queue the run is handed to the workers and its ID is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if queue {
				run, err := client.CreateRun(CreateRunRequest{Job: args[0], Force: force, Trigger: "cli"})
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run queued: %s", run.ID))
				out.Print(runHeaders, [][]string{runRow(run)}, run)
				return nil
			}

			result, raw, err := client.Sync(args[0], force)
			if err != nil {
				return err
			}
			if out.IsJSON() {
				out.RawJSON(raw)
				return nil
			}
			out.Print(
				[]string{"JOB", "SKIPPED", "CREATED", "UPDATED", "MESSAGE"},
				[][]string{{
					result.Job, strconv.FormatBool(result.Skipped),
					strconv.Itoa(result.Created), strconv.Itoa(result.Updated), result.Message,
				}},
				result,
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore delta sync state and refetch everything")
	cmd.Flags().BoolVar(&queue, "queue", false, "Queue the run for the workers instead of waiting")

	return cmd
}
