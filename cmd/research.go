package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-research/internal/model"
)

var (
	researchName        string
	researchCompany     string
	researchRole        string
	researchIntent      string
	researchCredibility string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research one person and print the resulting hooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		input := model.JobInput{
			Recipient: model.Recipient{
				Name:    researchName,
				Company: researchCompany,
				Role:    researchRole,
			},
			Intent:      researchIntent,
			Credibility: researchCredibility,
		}
		if err := input.Validate(); err != nil {
			return err
		}

		job, err := env.Store.CreateJob(ctx, input)
		if err != nil {
			return eris.Wrap(err, "create job")
		}

		if err := env.Pipeline.Run(ctx, job.ID); err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		job, err = env.Store.GetJob(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "load result")
		}

		zap.L().Info("research complete",
			zap.String("job_id", job.ID),
			zap.Int("hooks", len(job.Hooks)),
			zap.String("fallback_mode", string(job.FallbackMode)),
			zap.Bool("partial", job.Partial),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchName, "name", "", "recipient full name (required)")
	researchCmd.Flags().StringVar(&researchCompany, "company", "", "recipient company (required)")
	researchCmd.Flags().StringVar(&researchRole, "role", "", "recipient role")
	researchCmd.Flags().StringVar(&researchIntent, "intent", "", "outreach intent")
	researchCmd.Flags().StringVar(&researchCredibility, "credibility", "", "sender credibility statement")
	_ = researchCmd.MarkFlagRequired("name")
	_ = researchCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(researchCmd)
}
