// =============================================================================
// FBDI Workflow - File Manager Utility
// =============================================================================
//
// This module writes everything the client saves to disk:
//   - Downloaded artifacts (FBDI archives, execution reports, recon reports)
//   - Workflow run summaries
//
// NAMING STRATEGY:
//   - Artifacts keep the name the workflow gives them
//     (Alpha_AR_FBDI.zip, AutoInvoice_Report_1002.pdf, ...)
//   - If that name is taken, a short random suffix is added before the
//     extension (Alpha_AR_FBDI_1a2b3c4d.zip); existing files are never
//     overwritten
//   - Run summaries are timestamped text files
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file output for the client.
type FileManager struct {
	// OutputDir is the directory where artifacts and summaries are placed.
	OutputDir string

	// UseTimestampSubdirs places artifacts in dated subdirectories.
	// Example: output/2025/01/31/Alpha_AR_FBDI.zip
	UseTimestampSubdirs bool

	now func() time.Time
}

// NewFileManager creates a FileManager writing to outputDir.
func NewFileManager(outputDir string) *FileManager {
	return &FileManager{OutputDir: outputDir, now: time.Now}
}

// EnsureDirectories creates the output directory if it doesn't exist.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

func (fm *FileManager) targetDir() string {
	if !fm.UseTimestampSubdirs {
		return fm.OutputDir
	}
	now := fm.now()
	return filepath.Join(
		fm.OutputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
	)
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// SaveArtifact writes data under name and returns the written path. Only the
// base of name is used.
func (fm *FileManager) SaveArtifact(name string, data []byte) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("artifact name is required")
	}

	dir := fm.targetDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	for attempt := 0; attempt < 5; attempt++ {
		err := writeExclusive(path, data)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		path = filepath.Join(dir, UniqueFileName(name))
	}
	return "", fmt.Errorf("failed to find a free name for %s", name)
}

// UniqueFileName inserts a short random suffix before the extension.
//
// EXAMPLE:
//
//	UniqueFileName("Alpha_AR_FBDI.zip") -> "Alpha_AR_FBDI_1a2b3c4d.zip"
func UniqueFileName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:8], ext)
}

func writeExclusive(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary describes one pass through the workflow.
type RunSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Session   types.SessionConfig
	Stage     string
	Steps     []StepRecord
	Artifacts []string
	Error     string
}

// StepRecord is one line of the run summary.
type StepRecord struct {
	Name     string
	Status   string
	Detail   string
	Duration time.Duration
}

// Succeeded reports whether the run ended without error.
func (s *RunSummary) Succeeded() bool {
	return s.Error == ""
}

// WriteRunSummary writes summary to a timestamped text file.
func (fm *FileManager) WriteRunSummary(summary RunSummary) (string, error) {
	if err := fm.EnsureDirectories(); err != nil {
		return "", err
	}

	timestamp := summary.StartTime.Format("20060102_150405")
	name := fmt.Sprintf("workflow_summary_%s.txt", timestamp)
	if summary.RunID != "" {
		name = fmt.Sprintf("workflow_summary_%s_%s.txt", timestamp, summary.RunID)
	}
	path := filepath.Join(fm.OutputDir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	result := "SUCCESS"
	if !summary.Succeeded() {
		result = "FAILED"
	}

	fmt.Fprintf(w, "FBDI Workflow - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:       %s\n"+
		"  Start Time:   %s\n"+
		"  End Time:     %s\n"+
		"  Duration:     %s\n"+
		"  Final Stage:  %s\n"+
		"  Result:       %s\n\n"+
		"Session:\n"+
		"  Source File:  %s\n"+
		"  Template:     %s\n"+
		"  Project:      %s\n"+
		"  Environment:  %s\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond).String(),
		summary.Stage,
		result,
		summary.Session.SourceFile,
		summary.Session.TemplateType,
		summary.Session.ProjectName,
		summary.Session.EnvironmentType,
	)

	if len(summary.Steps) > 0 {
		w.WriteString("Steps:\n")
		w.WriteString("--------------------------------------------------------------------------------\n")
		for _, s := range summary.Steps {
			fmt.Fprintf(w, "  %-12s %-10s %s", s.Name, s.Status, s.Duration.Round(time.Millisecond))
			if s.Detail != "" {
				fmt.Fprintf(w, "  %s", s.Detail)
			}
			w.WriteString("\n")
		}
		w.WriteString("\n")
	}

	if len(summary.Artifacts) > 0 {
		w.WriteString("Artifacts:\n")
		w.WriteString("--------------------------------------------------------------------------------\n")
		for _, a := range summary.Artifacts {
			fmt.Fprintf(w, "  %s\n", a)
		}
		w.WriteString("\n")
	}

	if summary.Error != "" {
		fmt.Fprintf(w, "Error:\n  %s\n\n", summary.Error)
	}

	w.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return path, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
