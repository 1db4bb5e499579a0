// =============================================================================
// FBDI Workflow - Recon Command
// =============================================================================
//
// COMMAND USAGE:
//   fbdi recon [--request-id 468083]      predefined variant
//   fbdi recon --raw-file data.xlsx        upload variant
//
// The variant comes from recon.source; --raw-file selects the upload variant
// for this invocation. The report is downloaded unless --no-download is set.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

var (
	reconRequestID  string
	reconRawFile    string
	reconNoDownload bool
)

var reconCmd = &cobra.Command{
	Use:   "recon",
	Short: "Generate and download the reconciliation report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		opts := screens.OptionsFromConfig(a.cfg)
		if reconRequestID != "" {
			opts.Recon.RequestID = reconRequestID
		}
		rawPath := reconRawFile
		if rawPath != "" {
			opts.Recon.Source = config.ReconUpload
		} else if opts.Recon.Source == config.ReconUpload {
			rawPath = a.cfg.Recon.RawFile
		}

		var raw api.Upload
		if rawPath != "" {
			if raw, err = api.LoadUpload(rawPath); err != nil {
				return err
			}
		}

		set := a.newSetWith(types.SessionConfig{}, opts)
		defer set.Close()

		a.out.header("Reconciliation")
		if opts.Recon.Source == config.ReconPredefined {
			a.out.info("Request ID %s", set.Recon.RequestID())
		}
		result, err := set.Recon.Generate(cmd.Context(), raw)
		if err != nil {
			return err
		}
		a.out.success("Reconciliation report generated successfully")
		if err := a.out.recon(result); err != nil {
			return err
		}

		if reconNoDownload {
			return nil
		}
		path, err := set.Recon.Download(cmd.Context())
		if err != nil {
			return err
		}
		a.out.success("Report saved to %s", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconCmd)
	reconCmd.Flags().StringVar(&reconRequestID, "request-id", "", "AutoInvoice request ID (default from config)")
	reconCmd.Flags().StringVar(&reconRawFile, "raw-file", "", "Raw data workbook; selects the upload variant")
	reconCmd.Flags().BoolVar(&reconNoDownload, "no-download", false, "Do not download the report")
}
