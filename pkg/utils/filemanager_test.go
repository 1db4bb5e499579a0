package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

func TestSaveArtifactNeverOverwrites(t *testing.T) {
	fm := NewFileManager(t.TempDir())

	first, err := fm.SaveArtifact("Alpha_AR_FBDI.zip", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "Alpha_AR_FBDI.zip", filepath.Base(first))

	second, err := fm.SaveArtifact("Alpha_AR_FBDI.zip", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Regexp(t, regexp.MustCompile(`^Alpha_AR_FBDI_[0-9a-f]{8}\.zip$`), filepath.Base(second))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestSaveArtifactStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir)

	path, err := fm.SaveArtifact("../../etc/report.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), path)

	_, err = fm.SaveArtifact("  ", nil)
	assert.Error(t, err)
}

func TestSaveArtifactTimestampSubdirs(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir)
	fm.UseTimestampSubdirs = true
	fm.now = func() time.Time { return time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC) }

	path, err := fm.SaveArtifact("r.xlsx", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025", "01", "31", "r.xlsx"), path)
}

func TestWriteRunSummary(t *testing.T) {
	fm := NewFileManager(filepath.Join(t.TempDir(), "out"))
	start := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)

	path, err := fm.WriteRunSummary(RunSummary{
		RunID:     "abc",
		StartTime: start,
		EndTime:   start.Add(90 * time.Second),
		Session:   types.SessionConfig{SourceFile: "raw.xlsx", TemplateType: "AR", ProjectName: "Alpha", EnvironmentType: "DEV"},
		Stage:     "complete",
		Steps:     []StepRecord{{Name: "generate", Status: "ok", Duration: time.Second}},
		Artifacts: []string{"out/Alpha_AR_FBDI.zip"},
	})
	require.NoError(t, err)
	assert.Equal(t, "workflow_summary_20250131_090000_abc.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Result:       SUCCESS")
	assert.Contains(t, text, "Duration:     1m30s")
	assert.Contains(t, text, "out/Alpha_AR_FBDI.zip")
	assert.NotContains(t, text, "Error:")
}

func TestUniqueFileNameWithoutExtension(t *testing.T) {
	name := UniqueFileName("report")
	assert.Regexp(t, regexp.MustCompile(`^report_[0-9a-f]{8}$`), name)
}
