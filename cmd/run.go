// =============================================================================
// FBDI Workflow - Run Command
// =============================================================================
//
// This file defines the 'run' command, which walks one session through the
// whole workflow the way a user would click through the screens.
//
// COMMAND USAGE:
//   fbdi run --file data.xlsx --project Acme --env DEV [flags]
//
// SEQUENCE:
//   1. Preview the column mappings (skipped with --skip-preview)
//   2. Generate the archive and save it to the output directory
//   3. Continue to processing
//   4. Process the archive (automatically when features.auto_process is on)
//   5. Download the execution report (--report)
//   6. Continue to reconciliation
//   7. Generate and download the reconciliation report
//
// A run summary is written to the output directory whether or not the run
// succeeds.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var runFlags sessionFlags

var runParams paramFlags

// runSkipPreview skips the mapping preview.
var runSkipPreview bool

// runReport downloads the AutoInvoice execution report after processing.
var runReport bool

// errNotStarted is returned when automatic processing declined to start.
var errNotStarted = errors.New("processing did not start")

type runOutput struct {
	RunID      string                  `yaml:"run_id"`
	Stage      string                  `yaml:"stage"`
	Mappings   string                  `yaml:"mappings,omitempty"`
	Processing *types.ProcessingResult `yaml:"processing,omitempty"`
	Recon      *types.ReconResult      `yaml:"recon,omitempty"`
	Artifacts  []string                `yaml:"artifacts"`
	Summary    string                  `yaml:"summary"`
}

// =============================================================================
// RUN COMMAND DEFINITION
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole workflow: generate, process and reconcile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		return runWorkflow(cmd.Context(), a)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags.register(runCmd)
	runParams.register(runCmd)
	runCmd.Flags().BoolVar(&runSkipPreview, "skip-preview", false, "Skip the column mapping preview")
	runCmd.Flags().BoolVar(&runReport, "report", false, "Download the AutoInvoice execution report")
}

// =============================================================================
// MAIN WORKFLOW FUNCTION
// =============================================================================

func runWorkflow(ctx context.Context, a *app) (err error) {
	session := runFlags.config()
	if err := types.ValidateSession(session); err != nil {
		return err
	}

	set := a.newSet(session)
	defer set.Close()

	out := runOutput{RunID: uuid.NewString()[:8]}
	summary := utils.RunSummary{
		RunID:     out.RunID,
		StartTime: time.Now(),
		Session:   session,
	}

	// record runs fn as one named step of the summary.
	record := func(name string, fn func() (string, error)) error {
		start := time.Now()
		detail, err := fn()
		rec := utils.StepRecord{Name: name, Status: "OK", Detail: detail, Duration: time.Since(start)}
		if err != nil {
			rec.Status = "FAILED"
			rec.Detail = err.Error()
		}
		summary.Steps = append(summary.Steps, rec)
		return err
	}

	defer func() {
		summary.EndTime = time.Now()
		summary.Stage = string(set.Store.Stage())
		if err != nil {
			summary.Error = err.Error()
		}
		path, werr := a.files.WriteRunSummary(summary)
		if werr != nil {
			a.log.Warn("failed to write run summary", "error", werr)
			return
		}
		out.Summary = path
		out.Stage = summary.Stage
		if err == nil {
			err = a.out.emit(out, func() {
				a.out.field("Run summary", path)
			})
		} else {
			a.out.info("Run summary: %s", path)
		}
	}()

	a.log.Info("workflow run started", "run_id", out.RunID, "project", session.ProjectName, "template", session.TemplateType)

	// Step 1: preview.
	if !runSkipPreview {
		a.out.header("Step 1: Column Mapping Preview")
		if err := record("preview", func() (string, error) {
			entries, err := set.Preview.Submit(ctx, session)
			if err != nil {
				return "", err
			}
			out.Mappings = types.MappingSummary(entries)
			if a.out.format != formatYAML {
				a.out.info(out.Mappings)
			}
			return out.Mappings, nil
		}); err != nil {
			return err
		}
	}

	// Step 2: generate and save the archive.
	a.out.header("Step 2: Generate FBDI")
	if err := record("generate", func() (string, error) {
		if _, err := set.Generate.Submit(ctx, session); err != nil {
			return "", err
		}
		path, err := set.Generate.Download()
		if err != nil {
			return "", err
		}
		out.Artifacts = append(out.Artifacts, path)
		summary.Artifacts = append(summary.Artifacts, path)
		a.out.success("Saved %s", path)
		return path, nil
	}); err != nil {
		return err
	}

	// Step 3: continue to processing.
	if err := set.Generate.Continue(); err != nil {
		return err
	}
	a.out.info(set.Navigator.StepIndicator())

	// Step 4: process.
	a.out.header("Step 3: Process FBDI")
	if err := record("process", func() (string, error) {
		result, err := a.watchProcessing(ctx, set.Process, processSubmitter(a.cfg, set))
		if err != nil {
			return "", err
		}
		out.Processing = result
		return fmt.Sprintf("AutoInvoice job %s", result.AutoInvoice.JobID), nil
	}); err != nil {
		return err
	}
	a.out.success("FBDI processing completed")

	// Step 5: execution report.
	if runReport {
		if err := record("report", func() (string, error) {
			path, err := set.Process.DownloadReport(ctx)
			if err != nil {
				return "", err
			}
			out.Artifacts = append(out.Artifacts, path)
			summary.Artifacts = append(summary.Artifacts, path)
			a.out.success("Execution report saved to %s", path)
			return path, nil
		}); err != nil {
			return err
		}
	}

	// Step 6: continue to reconciliation.
	if err := set.Process.Continue(); err != nil {
		return err
	}
	a.out.info(set.Navigator.StepIndicator())

	// Step 7: reconcile.
	a.out.header("Step 4: Reconciliation")
	if err := record("recon", func() (string, error) {
		var raw api.Upload
		if set.Recon.Source() == config.ReconUpload {
			var err error
			if raw, err = api.LoadUpload(session.SourceFile); err != nil {
				return "", err
			}
		}
		result, err := set.Recon.Generate(ctx, raw)
		if err != nil {
			return "", err
		}
		out.Recon = result
		path, err := set.Recon.Download(ctx)
		if err != nil {
			return "", err
		}
		out.Artifacts = append(out.Artifacts, path)
		summary.Artifacts = append(summary.Artifacts, path)
		return fmt.Sprintf("%d of %d matched", result.MatchedRecords, result.TotalRecords), nil
	}); err != nil {
		return err
	}

	if a.out.format != formatYAML {
		a.out.success("Reconciliation report generated successfully")
		a.out.recon(out.Recon)
	}
	a.log.Info("workflow run completed", "run_id", out.RunID)
	return nil
}

// processSubmitter starts processing automatically when the feature is on
// and no parameter was overridden; otherwise it submits explicitly.
func processSubmitter(cfg *config.Config, set *screens.Set) func(context.Context) (*types.ProcessingResult, error) {
	if cfg.Features.AutoProcess && !runParams.changed() {
		return func(ctx context.Context) (*types.ProcessingResult, error) {
			started, result, err := set.Process.AutoStart(ctx)
			if !started && err == nil {
				return nil, errNotStarted
			}
			return result, err
		}
	}

	pkg := set.Generate.Package()
	sub := screens.Submission{Params: runParams.params(set.Process.DefaultParams())}
	if pkg != nil {
		sub.Archive = api.Upload{Name: pkg.FileName, Data: pkg.Payload}
	}
	return func(ctx context.Context) (*types.ProcessingResult, error) {
		return set.Process.Submit(ctx, sub)
	}
}
