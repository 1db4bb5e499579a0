// =============================================================================
// FBDI Workflow - Process Command
// =============================================================================
//
// This file defines the 'process' command, which sends an FBDI archive
// through the three Oracle sub-steps in a single backend call.
//
// COMMAND USAGE:
//   fbdi process --archive Acme_AR_FBDI.zip [flags]
//
// FLAGS:
//   --archive        : The FBDI archive to process (required)
//   --business-unit  : AutoInvoice business unit (default from config)
//   --batch-source   : AutoInvoice batch source (default from config)
//   --gl-date        : GL date, YYYY-MM-DD (default today)
//   --report         : Download the AutoInvoice execution report on success
//
// PROCESSING PIPELINE (backend-owned):
//   1. Upload the archive to Oracle Content Management
//   2. Load the interface tables
//   3. Run AutoInvoice import
//
// The step list shown while waiting is simulated; the real outcome of each
// step is printed when the backend answers.
//
// =============================================================================

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// processArchive is the path of the archive to send.
var processArchive string

// processReport downloads the execution report after a successful run.
var processReport bool

var processParams paramFlags

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Upload an FBDI archive to Oracle and run AutoInvoice",
	Long: `The process command sends an FBDI archive to the backend, which uploads it
to Oracle Content Management, loads the interface tables and runs AutoInvoice
import.

A step that finishes with WARNING counts as a success. On failure the
failing step, its job ID and status are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		return runProcessCommand(cmd, a)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processArchive, "archive", "a", "", "FBDI archive (.zip) to process")
	processCmd.Flags().BoolVar(&processReport, "report", false, "Download the AutoInvoice execution report on success")
	processParams.register(processCmd)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcessCommand(cmd *cobra.Command, a *app) error {
	var archive api.Upload
	if processArchive != "" {
		var err error
		if archive, err = api.LoadUpload(processArchive); err != nil {
			return err
		}
	}

	set := a.newSet(types.SessionConfig{})
	defer set.Close()

	sub := screens.Submission{
		Archive: archive,
		Params:  processParams.params(set.Process.DefaultParams()),
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	a.out.header("Process FBDI")
	a.out.info("Business unit %s, batch source %q, GL date %s", sub.Params.BusinessUnit, sub.Params.BatchSource, sub.Params.GLDate)

	result, err := a.watchProcessing(cmd.Context(), set.Process, func(ctx context.Context) (*types.ProcessingResult, error) {
		return set.Process.Submit(ctx, sub)
	})
	if err != nil {
		return err
	}

	a.out.success("FBDI processing completed")
	if err := a.out.processing(result); err != nil {
		return err
	}

	if processReport {
		path, err := set.Process.DownloadReport(cmd.Context())
		if err != nil {
			return err
		}
		a.out.success("Execution report saved to %s", path)
	}
	return nil
}
