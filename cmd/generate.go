// =============================================================================
// FBDI Workflow - Generate Command
// =============================================================================
//
// COMMAND USAGE:
//   fbdi generate --file data.xlsx --project Acme --env DEV [--type AR]
//
// Generates the FBDI archive and saves it to the output directory as
// {project}_{type}_FBDI.zip.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"
)

var generateFlags sessionFlags

type generateOutput struct {
	FileName string `yaml:"file_name"`
	Path     string `yaml:"path"`
	Bytes    int    `yaml:"bytes"`
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the FBDI archive for a raw workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		set := a.newSet(generateFlags.config())
		defer set.Close()

		a.out.header("Generate FBDI")
		pkg, err := set.Generate.Submit(cmd.Context(), generateFlags.config())
		if err != nil {
			return err
		}
		path, err := set.Generate.Download()
		if err != nil {
			return err
		}

		return a.out.emit(generateOutput{FileName: pkg.FileName, Path: path, Bytes: pkg.Size()}, func() {
			a.out.success("FBDI file generated successfully")
			a.out.field("File", pkg.FileName)
			a.out.field("Saved to", path)
			a.out.field("Size", pkg.Size())
		})
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateFlags.register(generateCmd)
}
