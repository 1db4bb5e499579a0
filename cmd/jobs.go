package cmd

import (
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List Oracle ESS jobs",
}

var jobsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "List the most recent ESS jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		jobs, err := a.client.LatestESSJobs(cmd.Context())
		if err != nil {
			return err
		}
		a.out.header("Latest ESS Jobs")
		return a.out.essJobs(jobs)
	},
}

var jobsFlowCmd = &cobra.Command{
	Use:   "flow <flow-id>",
	Short: "List the requests spawned by an ESS flow",
	Args:  requireArg("flow-id"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		flow, err := a.client.FlowRequests(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.out.emit(flow, func() {
			a.out.header("Flow " + args[0])
			a.out.essJobs(flow.All)
			if flow.AutoInvoiceReportID != "" {
				a.out.field("Report request", flow.AutoInvoiceReportID)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsLatestCmd, jobsFlowCmd)
}
