// =============================================================================
// FBDI Workflow - Oracle Command
// =============================================================================
//
// Single Oracle operations, for driving the import one step at a time.
// Requires features.stepwise_operations.
//
// COMMAND USAGE:
//   fbdi oracle upload-ucm <archive> [--document-account ...]
//   fbdi oracle load-interface [--ess-parameters ...]
//   fbdi oracle autoinvoice [--business-unit ... --batch-source ... --gl-date ...]
//   fbdi oracle autoinvoice-report [--ess-parameters ...]
//   fbdi oracle complete --file data.xlsx --project Acme --env DEV
//
// =============================================================================

package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// autoInvoiceReportName is the file the import-and-report call is saved as.
const autoInvoiceReportName = "AutoInvoice_Import_Report.pdf"

var (
	oracleDocumentAccount string
	oracleESSParameters   string
	oracleParams          paramFlags
	oracleSession         sessionFlags
	oracleCompleteParams  paramFlags
)

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Run single Oracle import operations",
}

// stepwise loads the app and checks the stepwise operations feature.
func stepwise(cmd *cobra.Command) (*app, error) {
	a, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	if !a.cfg.Features.StepwiseOperations {
		return nil, errFeatureDisabled("stepwise_operations")
	}
	return a, nil
}

func (a *app) submitted(title string, result *api.SubmitResult) error {
	return a.out.emit(result, func() {
		a.out.success("%s", title)
		if result.Message != "" {
			a.out.field("Message", result.Message)
		}
		if result.DocumentID != "" {
			a.out.field("Document ID", result.DocumentID)
		}
		if result.JobID != "" {
			a.out.field("Job ID", result.JobID)
		}
	})
}

var oracleUploadCmd = &cobra.Command{
	Use:   "upload-ucm <archive>",
	Short: "Upload an FBDI archive to Oracle Content Management",
	Args:  requireArg("archive"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := stepwise(cmd)
		if err != nil {
			return err
		}
		archive, err := api.LoadUpload(args[0])
		if err != nil {
			return err
		}
		account := oracleDocumentAccount
		if account == "" {
			account = a.cfg.Process.DocumentAccount
		}
		result, err := a.client.UploadToUCM(cmd.Context(), archive, account)
		if err != nil {
			return err
		}
		return a.submitted("Uploaded to UCM", result)
	},
}

var oracleLoadCmd = &cobra.Command{
	Use:   "load-interface",
	Short: "Submit the Load Interface File for Import job",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := stepwise(cmd)
		if err != nil {
			return err
		}
		result, err := a.client.LoadInterface(cmd.Context(), essParameters(a))
		if err != nil {
			return err
		}
		return a.submitted("Interface load submitted", result)
	},
}

var oracleAutoInvoiceCmd = &cobra.Command{
	Use:   "autoinvoice",
	Short: "Submit the AutoInvoice import job",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := stepwise(cmd)
		if err != nil {
			return err
		}
		params := oracleParams.params(a.cfg.BusinessParams(time.Now()))
		if err := types.ValidateBusinessParams(params); err != nil {
			return err
		}
		result, err := a.client.AutoInvoiceImport(cmd.Context(), params)
		if err != nil {
			return err
		}
		return a.submitted("AutoInvoice import submitted", result)
	},
}

var oracleReportCmd = &cobra.Command{
	Use:   "autoinvoice-report",
	Short: "Run AutoInvoice import and download its report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := stepwise(cmd)
		if err != nil {
			return err
		}
		data, err := a.client.AutoInvoiceImportReport(cmd.Context(), essParameters(a))
		if err != nil {
			return err
		}
		path, err := a.files.SaveArtifact(autoInvoiceReportName, data)
		if err != nil {
			return err
		}
		a.out.success("Report saved to %s", path)
		return nil
	},
}

var oracleCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Generate, upload, load and import in one backend call",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := stepwise(cmd)
		if err != nil {
			return err
		}
		session := oracleSession.config()
		if err := types.ValidateSession(session); err != nil {
			return err
		}
		params := oracleCompleteParams.params(a.cfg.BusinessParams(time.Now()))
		if err := types.ValidateBusinessParams(params); err != nil {
			return err
		}
		raw, err := api.LoadUpload(session.SourceFile)
		if err != nil {
			return err
		}

		jobs, err := a.client.CompleteWorkflow(cmd.Context(), session, raw, params)
		if err != nil {
			return err
		}
		return a.out.emit(jobs, func() {
			a.out.success("Workflow submitted")
			a.out.field("Document ID", jobs.DocumentID)
			a.out.field("Interface job", jobs.InterfaceJobID)
			a.out.field("AutoInvoice job", jobs.AutoInvoiceJobID)
		})
	},
}

func essParameters(a *app) string {
	if oracleESSParameters != "" {
		return oracleESSParameters
	}
	return a.cfg.Process.ESSParameters
}

func init() {
	rootCmd.AddCommand(oracleCmd)
	oracleCmd.AddCommand(oracleUploadCmd, oracleLoadCmd, oracleAutoInvoiceCmd, oracleReportCmd, oracleCompleteCmd)

	oracleUploadCmd.Flags().StringVar(&oracleDocumentAccount, "document-account", "", "UCM document account (default from config)")
	for _, c := range []*cobra.Command{oracleLoadCmd, oracleReportCmd} {
		c.Flags().StringVar(&oracleESSParameters, "ess-parameters", "", "ESS job parameters (default from config)")
	}
	oracleParams.register(oracleAutoInvoiceCmd)
	oracleSession.register(oracleCompleteCmd)
	oracleCompleteParams.register(oracleCompleteCmd)
}
