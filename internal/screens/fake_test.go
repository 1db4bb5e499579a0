package screens

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// fakeBackend records calls and answers through the configured funcs.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	preview       func(cfg types.SessionConfig) ([]types.MappingEntry, error)
	generate      func(cfg types.SessionConfig) ([]byte, error)
	process       func(ctx context.Context, archive api.Upload, params types.BusinessParams) (*types.ProcessingResult, error)
	report        func(id string) ([]byte, error)
	jobStatus     func(id string) (*api.JobStatus, error)
	recon         func(id string) (*types.ReconResult, error)
	reconFromFile func(raw api.Upload) (*types.ReconResult, error)
	download      func(url string) ([]byte, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) PreviewMappings(_ context.Context, cfg types.SessionConfig, _ api.Upload) ([]types.MappingEntry, error) {
	f.record("preview")
	return f.preview(cfg)
}

func (f *fakeBackend) GenerateFromType(_ context.Context, cfg types.SessionConfig, _ api.Upload) ([]byte, error) {
	f.record("generate")
	return f.generate(cfg)
}

func (f *fakeBackend) ProcessFBDI(ctx context.Context, archive api.Upload, params types.BusinessParams) (*types.ProcessingResult, error) {
	f.record("process")
	return f.process(ctx, archive, params)
}

func (f *fakeBackend) ExecutionReport(_ context.Context, id string) ([]byte, error) {
	f.record("report")
	return f.report(id)
}

func (f *fakeBackend) CheckJobStatus(_ context.Context, id string) (*api.JobStatus, error) {
	f.record("job")
	return f.jobStatus(id)
}

func (f *fakeBackend) GenerateRecon(_ context.Context, id string) (*types.ReconResult, error) {
	f.record("recon")
	return f.recon(id)
}

func (f *fakeBackend) GenerateReconFromFile(_ context.Context, raw api.Upload) (*types.ReconResult, error) {
	f.record("recon_file")
	return f.reconFromFile(raw)
}

func (f *fakeBackend) DownloadRecon(_ context.Context, url string) ([]byte, error) {
	f.record("download")
	return f.download(url)
}

// sourceWorkbook writes a small source workbook and returns its path.
func sourceWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	row := []any{"CustNo", "InvDate"}
	require.NoError(t, f.SetSheetRow(f.GetSheetName(0), "A1", &row))
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func testSession(t *testing.T) types.SessionConfig {
	return types.SessionConfig{
		SourceFile:      sourceWorkbook(t),
		TemplateType:    "AR",
		ProjectName:     "Acme",
		EnvironmentType: types.EnvDev,
	}
}

type fixture struct {
	backend *fakeBackend
	store   *workflow.Store
	files   *utils.FileManager
	log     logging.Logger
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		backend: newFakeBackend(),
		store:   workflow.NewStore(types.SessionConfig{}),
		files:   utils.NewFileManager(t.TempDir()),
		log:     logging.Nop(),
	}
}

func successResult() *types.ProcessingResult {
	return &types.ProcessingResult{
		Upload:      types.UploadStep{Status: types.StatusSucceeded, DocumentID: "123"},
		Interface:   types.JobStep{Status: types.StatusWarning, JobID: "1001"},
		AutoInvoice: types.JobStep{Status: types.StatusSucceeded, JobID: "1002"},
	}
}
