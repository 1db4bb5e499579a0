package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of an Oracle ESS job",
	Args:  requireArg("job-id"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		status, err := screens.NewJobStatus(a.client, a.log).Check(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		a.out.header("Job Status")
		return a.out.job(status)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
