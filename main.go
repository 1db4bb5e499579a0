// =============================================================================
// FBDI Workflow - Main Entry Point
// =============================================================================
//
// This is the main entry point for the FBDI workflow CLI. It delegates
// command execution to the cmd package.
//
// USAGE:
//   fbdi run         - Generate, process and reconcile in one session
//   fbdi preview     - Preview the column mappings of a raw workbook
//   fbdi serve       - Start the local workflow console
//   fbdi version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/                 : CLI command definitions (Cobra)
//   - internal/workflow    : session store and stage machine
//   - internal/screens     : per-screen controllers
//   - internal/api         : typed FBDI backend client
//   - internal/server      : local HTTP console (Fiber)
//   - pkg/utils            : output files and run summaries
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/fbdi-workflow/cmd"
)

func main() {
	cmd.Execute()
}
