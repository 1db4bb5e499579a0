// =============================================================================
// FBDI Workflow - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   fbdi version
//
// OUTPUT:
//   FBDI Workflow
//   Version:    1.0.0
//   Build Date: 2025-01-01
//   Go Version: go1.24.0
//
// =============================================================================

package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================
// These variables are set at build time using ldflags:
//   go build -ldflags "-X 'github.com/ginjaninja78/fbdi-workflow/cmd.Version=1.0.0'"

// Version is the application version.
var Version = "1.0.0"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

type versionInfo struct {
	Version   string `yaml:"version"`
	BuildDate string `yaml:"build_date"`
	GoVersion string `yaml:"go_version"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newPrinter(cmd.OutOrStdout(), outputFormat)
		if err != nil {
			return err
		}
		info := versionInfo{Version: Version, BuildDate: BuildDate, GoVersion: runtime.Version()}
		return out.emit(info, func() {
			headerColor.Fprintln(out.out, "FBDI Workflow")
			out.field("Version", info.Version)
			out.field("Build Date", info.BuildDate)
			out.field("Go Version", info.GoVersion)
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
