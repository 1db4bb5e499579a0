// =============================================================================
// FBDI Workflow - Preview Command
// =============================================================================
//
// COMMAND USAGE:
//   fbdi preview --file data.xlsx --project Acme --env DEV [--type AR]
//                [--export mappings.xlsx]
//
// Sends the raw workbook to the backend and prints how each template column
// is fed. With --export the mapping table is also written as a workbook.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"
)

var previewFlags sessionFlags

// previewExport is the optional .xlsx path for the mapping table.
var previewExport string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview the column mappings for a raw workbook",
	Long: `Preview sends the raw workbook and Session Config to the backend and lists
every template column with the raw column mapped onto it.

Nothing is generated or uploaded to Oracle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		set := a.newSet(previewFlags.config())
		defer set.Close()

		a.out.header("Column Mapping Preview")
		entries, err := set.Preview.Submit(cmd.Context(), previewFlags.config())
		if err != nil {
			return err
		}
		if err := a.out.mappings(entries); err != nil {
			return err
		}

		if previewExport != "" {
			if err := set.Preview.Export(previewExport); err != nil {
				return err
			}
			a.out.success("Mappings exported to %s", previewExport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewFlags.register(previewCmd)
	previewCmd.Flags().StringVar(&previewExport, "export", "", "Also write the mapping table to this .xlsx file")
}
