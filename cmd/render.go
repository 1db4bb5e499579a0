// =============================================================================
// FBDI Workflow - Output Rendering
// =============================================================================
//
// Commands print through a printer. In text mode results are written as
// coloured, aligned lines; in yaml mode the result value itself is encoded
// and progress messages go to stderr so stdout stays parseable.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

const (
	formatText = "text"
	formatYAML = "yaml"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed)
	faintColor   = color.New(color.Faint)
)

type printer struct {
	out    io.Writer
	msg    io.Writer
	format string
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	switch strings.ToLower(format) {
	case formatText:
		return &printer{out: out, msg: out, format: formatText}, nil
	case formatYAML:
		return &printer{out: out, msg: os.Stderr, format: formatYAML}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text or yaml)", format)
}

// emit writes v as YAML, or calls text in text mode.
func (p *printer) emit(v any, text func()) error {
	if p.format != formatYAML {
		text()
		return nil
	}
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}

func (p *printer) header(title string) {
	headerColor.Fprintf(p.msg, "=== %s ===\n", title)
}

func (p *printer) field(label string, value any) {
	fmt.Fprintf(p.out, "  %-16s %v\n", label+":", value)
}

func (p *printer) success(format string, args ...any) {
	successColor.Fprintf(p.msg, "✓ "+format+"\n", args...)
}

func (p *printer) warn(format string, args ...any) {
	warnColor.Fprintf(p.msg, "! "+format+"\n", args...)
}

func (p *printer) info(format string, args ...any) {
	fmt.Fprintf(p.msg, format+"\n", args...)
}

// =============================================================================
// STATUS COLOURS
// =============================================================================

func statusColor(status string) *color.Color {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case types.StatusSucceeded, "SUCCESS":
		return successColor
	case types.StatusWarning, types.StatusRunning:
		return warnColor
	case types.StatusFailed, types.StatusError:
		return failColor
	}
	return faintColor
}

func colourStatus(status string) string {
	if status == "" {
		status = "-"
	}
	return statusColor(status).Sprint(status)
}

// =============================================================================
// RESULTS
// =============================================================================

func (p *printer) mappings(entries []types.MappingEntry) error {
	return p.emit(entries, func() {
		if len(entries) == 0 {
			p.warn("No mappings returned")
			return
		}
		width := len("Template Column")
		for _, e := range entries {
			if len(e.TemplateColumn) > width {
				width = len(e.TemplateColumn)
			}
		}
		headerColor.Fprintf(p.out, "%-*s  %s\n", width, "Template Column", "Source Column")
		for _, e := range entries {
			if e.Mapped {
				fmt.Fprintf(p.out, "%-*s  %s\n", width, e.TemplateColumn, successColor.Sprint(e.SourceColumn))
			} else {
				fmt.Fprintf(p.out, "%-*s  %s\n", width, e.TemplateColumn, warnColor.Sprint(types.NotMapped))
			}
		}
		fmt.Fprintln(p.out)
		p.info(types.MappingSummary(entries))
	})
}

func (p *printer) processing(result *types.ProcessingResult) error {
	return p.emit(result, func() {
		p.field("Upload", colourStatus(result.Upload.Status))
		p.field("Document ID", result.Upload.DocumentID)
		p.field("Interface", colourStatus(result.Interface.Status))
		p.field("Interface job", result.Interface.JobID)
		p.field("AutoInvoice", colourStatus(result.AutoInvoice.Status))
		p.field("AutoInvoice job", result.AutoInvoice.JobID)
	})
}

// steps prints the step views whose state changed since the last call.
// Nothing is printed in yaml mode.
func (p *printer) steps(views []screens.StepView, shown map[types.Step]screens.StepState) {
	if p.format == formatYAML {
		return
	}
	for _, v := range views {
		if shown[v.Step] == v.State {
			continue
		}
		shown[v.Step] = v.State
		switch v.State {
		case screens.StepActive:
			warnColor.Fprintf(p.msg, "  … %s\n", v.Label)
		case screens.StepDone:
			line := "  ✓ " + v.Label
			if v.Status != "" {
				line += " (" + v.Status + ")"
			}
			successColor.Fprintln(p.msg, line)
		case screens.StepFailed:
			failColor.Fprintf(p.msg, "  ✗ %s\n", v.Label)
		}
	}
}

func (p *printer) recon(result *types.ReconResult) error {
	return p.emit(result, func() {
		p.field("Total records", result.TotalRecords)
		p.field("Matched", result.MatchedRecords)
		p.field("Unmatched", result.UnmatchedRecords())
		p.field("Match", fmt.Sprintf("%.2f%%", result.MatchPercentage))
		if result.FileName != "" {
			p.field("Report", result.FileName)
		}
	})
}

func (p *printer) job(status *api.JobStatus) error {
	return p.emit(status, func() {
		p.field("Job ID", status.JobID)
		p.field("Status", colourStatus(status.Status))
		if status.StartTime != "" {
			p.field("Started", status.StartTime)
		}
		if status.EndTime != "" {
			p.field("Ended", status.EndTime)
		}
		if status.ErrorMessage != "" {
			p.field("Error", failColor.Sprint(status.ErrorMessage))
		}
	})
}

func (p *printer) essJobs(jobs []api.ESSJob) error {
	return p.emit(jobs, func() {
		if len(jobs) == 0 {
			p.warn("No jobs found")
			return
		}
		headerColor.Fprintf(p.out, "%-12s %-12s %-12s %s\n", "Request", "Parent", "Status", "Job")
		for _, j := range jobs {
			fmt.Fprintf(p.out, "%-12s %-12s %-12s %s\n", j.RequestID, j.ParentID, colourStatus(j.Status), j.JobName)
		}
	})
}

// =============================================================================
// ERRORS
// =============================================================================

// printError writes err with the details its type carries.
func printError(w io.Writer, err error) {
	var (
		ve *types.ValidationError
		se *api.StepError
		ae *api.APIError
	)
	switch {
	case errors.As(err, &ve):
		failColor.Fprintf(w, "Error: %s\n", ve.Message)
		for _, f := range ve.Fields {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	case errors.As(err, &se) && se.IsNetwork():
		failColor.Fprintf(w, "Error: could not reach the FBDI backend\n")
		fmt.Fprintf(w, "  %s\n", se.Message)
	case errors.As(err, &se):
		failColor.Fprintf(w, "Error: %s failed\n", se.Step.Label())
		fmt.Fprintf(w, "  %s\n", se.Message)
		if se.JobID != "" {
			fmt.Fprintf(w, "  Job ID: %s\n", se.JobID)
		}
		if se.Status != "" {
			fmt.Fprintf(w, "  Status: %s\n", se.Status)
		}
	case errors.As(err, &ae):
		failColor.Fprintf(w, "Error: backend returned %d\n", ae.StatusCode)
		fmt.Fprintf(w, "  %s\n", ae.Message)
	default:
		failColor.Fprintf(w, "Error: %v\n", err)
	}
}
