// =============================================================================
// FBDI Workflow - Mappings Command
// =============================================================================
//
// COMMAND USAGE:
//   fbdi mappings generate --template t.xlsx --raw data.xlsx [--table] [--only]
//   fbdi mappings view
//   fbdi mappings test-db
//   fbdi mappings clear --yes
//
// 'generate' builds an FBDI file from an explicit template workbook instead
// of a template type. The stored mapping table commands need
// features.mapping_store.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
)

var (
	mappingsTemplate string
	mappingsRaw      string
	mappingsTable    bool
	mappingsOnly     bool
	mappingsYes      bool
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Template-based generation and the stored mapping table",
}

// =============================================================================
// GENERATE
// =============================================================================

var mappingsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an FBDI file from a template workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		if mappingsTemplate == "" || mappingsRaw == "" {
			return errors.New("--template and --raw are required")
		}
		template, err := api.LoadUpload(mappingsTemplate)
		if err != nil {
			return err
		}
		raw, err := api.LoadUpload(mappingsRaw)
		if err != nil {
			return err
		}

		if mappingsOnly {
			result, err := a.client.GenerateMappingsOnly(cmd.Context(), template, raw)
			if err != nil {
				return err
			}
			return a.out.emit(result, func() {
				a.out.success("Mappings generated")
				a.out.field("Successful", result.SuccessfulMappings)
				a.out.field("Failed", result.FailedMappings)
				if result.Message != "" {
					a.out.field("Message", result.Message)
				}
			})
		}

		data, err := a.client.GenerateFromTemplate(cmd.Context(), template, raw, mappingsTable)
		if err != nil {
			return err
		}
		path, err := a.files.SaveArtifact(templateOutputName(template.Name), data)
		if err != nil {
			return err
		}
		return a.out.emit(generateOutput{FileName: filepath.Base(path), Path: path, Bytes: len(data)}, func() {
			a.out.success("FBDI file saved to %s", path)
		})
	},
}

// templateOutputName names the archive generated from a template workbook.
func templateOutputName(template string) string {
	stem := strings.TrimSuffix(filepath.Base(template), filepath.Ext(template))
	return stem + "_FBDI.zip"
}

// =============================================================================
// STORED MAPPINGS
// =============================================================================

// mappingStore loads the app and checks the mapping store feature.
func mappingStore(cmd *cobra.Command) (*app, error) {
	a, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	if !a.cfg.Features.MappingStore {
		return nil, errFeatureDisabled("mapping_store")
	}
	return a, nil
}

var mappingsViewCmd = &cobra.Command{
	Use:   "view",
	Short: "List the stored column mappings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := mappingStore(cmd)
		if err != nil {
			return err
		}
		rows, err := a.client.ViewMappings(cmd.Context())
		if err != nil {
			return err
		}
		return a.out.emit(rows, func() {
			if len(rows) == 0 {
				a.out.warn("No stored mappings")
				return
			}
			headerColor.Fprintf(a.out.out, "%-6s %-8s %-30s %-30s %s\n", "ID", "Module", "Template Column", "Raw Column", "Status")
			for _, r := range rows {
				fmt.Fprintf(a.out.out, "%-6d %-8s %-30s %-30s %s\n", r.ID, r.FBDIModule, r.TemplateColumn, r.RawColumn, r.Status)
			}
		})
	},
}

var mappingsTestDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Check the backend mapping database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := mappingStore(cmd)
		if err != nil {
			return err
		}
		status, err := a.client.TestDB(cmd.Context())
		if err != nil {
			return err
		}
		return a.out.emit(status, func() {
			a.out.field("Status", colourStatus(status.Status))
			a.out.field("Tables", status.TableCount)
			a.out.field("Mappings", status.MappingCount)
			if status.Message != "" {
				a.out.field("Message", status.Message)
			}
		})
	},
}

var mappingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := mappingStore(cmd)
		if err != nil {
			return err
		}
		if !mappingsYes {
			return errors.New("refusing to clear the mapping table without --yes")
		}
		msg, err := a.client.ClearMappings(cmd.Context())
		if err != nil {
			return err
		}
		a.out.success("%s", msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.AddCommand(mappingsGenerateCmd, mappingsViewCmd, mappingsTestDBCmd, mappingsClearCmd)

	mappingsGenerateCmd.Flags().StringVar(&mappingsTemplate, "template", "", "Oracle template workbook (.xlsx or .xlsm)")
	mappingsGenerateCmd.Flags().StringVar(&mappingsRaw, "raw", "", "Raw data workbook (.xlsx)")
	mappingsGenerateCmd.Flags().BoolVar(&mappingsTable, "table", false, "Use the stored mapping table")
	mappingsGenerateCmd.Flags().BoolVar(&mappingsOnly, "only", false, "Only generate and store the mappings")

	mappingsClearCmd.Flags().BoolVar(&mappingsYes, "yes", false, "Confirm deleting every stored mapping")
}
