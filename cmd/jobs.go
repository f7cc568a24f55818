package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/internal/store"
)

var (
	jobsStatus string
	jobsLimit  int
	jobsOffset int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List research jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(jobsStatus),
			Limit:  jobsLimit,
			Offset: jobsOffset,
		})
		if err != nil {
			return eris.Wrap(err, "list jobs")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 0, "max jobs to return")
	jobsCmd.Flags().IntVar(&jobsOffset, "offset", 0, "offset into the result list")
	rootCmd.AddCommand(jobsCmd)
}
