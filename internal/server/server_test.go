package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

type stubBackend struct {
	mu         sync.Mutex
	processErr error
	archives   []string

	// gate, when set, holds processing and job lookups until it is closed.
	gate    chan struct{}
	entered chan string
}

func (b *stubBackend) wait(ctx context.Context, call string) {
	if b.entered != nil {
		b.entered <- call
	}
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
		}
	}
}

func (b *stubBackend) PreviewMappings(context.Context, types.SessionConfig, api.Upload) ([]types.MappingEntry, error) {
	return []types.MappingEntry{
		{TemplateColumn: "CustomerNumber", SourceColumn: "CustNo", Mapped: true},
		{TemplateColumn: "InvoiceDate"},
	}, nil
}

func (b *stubBackend) GenerateFromType(context.Context, types.SessionConfig, api.Upload) ([]byte, error) {
	return []byte("PK\x03\x04"), nil
}

func (b *stubBackend) ProcessFBDI(ctx context.Context, archive api.Upload, _ types.BusinessParams) (*types.ProcessingResult, error) {
	b.wait(ctx, "process")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.archives = append(b.archives, archive.Name)
	if b.processErr != nil {
		return nil, b.processErr
	}
	return &types.ProcessingResult{
		Upload:      types.UploadStep{Status: types.StatusSucceeded, DocumentID: "123"},
		Interface:   types.JobStep{Status: types.StatusWarning, JobID: "1001"},
		AutoInvoice: types.JobStep{Status: types.StatusSucceeded, JobID: "1002"},
	}, nil
}

func (b *stubBackend) ExecutionReport(context.Context, string) ([]byte, error) {
	return []byte("%PDF"), nil
}

func (b *stubBackend) CheckJobStatus(ctx context.Context, id string) (*api.JobStatus, error) {
	b.wait(ctx, "job "+id)
	if id == "404" {
		return nil, api.ErrJobNotFound
	}
	return &api.JobStatus{JobID: id, Status: "SUCCEEDED"}, nil
}

func (b *stubBackend) GenerateRecon(_ context.Context, id string) (*types.ReconResult, error) {
	return &types.ReconResult{Status: "success", TotalRecords: 2, MatchedRecords: 2, MatchPercentage: 100, DownloadURL: "/d/" + id, FileName: "recon.xlsx"}, nil
}

func (b *stubBackend) GenerateReconFromFile(context.Context, api.Upload) (*types.ReconResult, error) {
	return nil, &api.APIError{StatusCode: 500, Message: "not used"}
}

func (b *stubBackend) DownloadRecon(context.Context, string) ([]byte, error) {
	return []byte("xlsx"), nil
}

func newTestServer(t *testing.T, backend *stubBackend) *Server {
	t.Helper()
	cfg := &config.Config{
		OutputDir: t.TempDir(),
		Backend:   config.BackendConfig{BaseURL: "http://backend.test"},
		Process:   config.ProcessConfig{BusinessUnit: "300000003170678", BatchSource: "MILGARD EBS SPREADSHEET"},
		Recon:     config.ReconConfig{Source: config.ReconPredefined, RequestID: "468083"},
		Server:    config.ServerConfig{SessionTTL: time.Hour},
	}
	s := New(cfg, backend, logging.Nop())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func workbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	row := []any{"CustNo", "InvDate"}
	require.NoError(t, f.SetSheetRow(f.GetSheetName(0), "A1", &row))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileField, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(t *testing.T, s *Server, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/sessions",
		map[string]string{"fbdi_type": "ar", "project_name": "Acme", "env_type": "DEV"},
		"raw_file", "data.xlsx", workbookBytes(t))
	code, body := do(t, s, req)
	require.Equal(t, http.StatusCreated, code, body)
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	code, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateSessionValidation(t *testing.T) {
	s := newTestServer(t, &stubBackend{})

	req := multipartRequest(t, http.MethodPost, "/api/sessions", map[string]string{"project_name": "Acme"}, "", "", nil)
	code, body := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"SourceFile"}, body["fields"])

	req = multipartRequest(t, http.MethodPost, "/api/sessions",
		map[string]string{"project_name": "Acme", "env_type": "MARS"},
		"raw_file", "data.xlsx", workbookBytes(t))
	code, body = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["fields"], "EnvironmentType")
	assert.Zero(t, s.Sessions().Count())
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	code, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFullWorkflow(t *testing.T) {
	backend := &stubBackend{}
	s := newTestServer(t, backend)
	id := createSession(t, s)
	base := "/api/sessions/" + id

	code, body := do(t, s, httptest.NewRequest(http.MethodPost, base+"/preview", nil))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "1 of 2 columns mapped", body["summary"])

	code, body = do(t, s, httptest.NewRequest(http.MethodPost, base+"/generate", nil))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Acme_AR_FBDI.zip", body["file_name"])

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, base+"/generate/package", nil), -1)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Acme_AR_FBDI.zip")
	resp.Body.Close()

	code, body = do(t, s, httptest.NewRequest(http.MethodPost, base+"/process/continue", nil))
	assert.Equal(t, http.StatusConflict, code, body)

	code, body = do(t, s, httptest.NewRequest(http.MethodPost, base+"/generate/continue", nil))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "process", body["stage"])
	assert.Equal(t, "process", body["screen"])
	assert.Equal(t, "Step 2 of 4", body["step_indicator"])

	code, body = do(t, s, httptest.NewRequest(http.MethodPost, base+"/process", nil))
	require.Equal(t, http.StatusAccepted, code, body)

	require.Eventually(t, func() bool {
		_, body := do(t, s, httptest.NewRequest(http.MethodGet, base+"/process", nil))
		return body["can_continue"] == true
	}, 2*time.Second, 10*time.Millisecond)

	code, body = do(t, s, httptest.NewRequest(http.MethodPost, base+"/process/continue", nil))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "reconcile", body["stage"])
	assert.Equal(t, "recon", body["screen"])

	code, body = do(t, s, httptest.NewRequest(http.MethodPost, base+"/recon", nil))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "/d/1002", body["download_url"])

	code, body = do(t, s, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "complete", body["stage"])
	assert.Equal(t, "Step 4 of 4", body["step_indicator"])

	code, body = do(t, s, httptest.NewRequest(http.MethodPost, base+"/reset", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "generate", body["stage"])
	assert.Nil(t, body["package"])

	code, _ = do(t, s, httptest.NewRequest(http.MethodDelete, base, nil))
	assert.Equal(t, http.StatusNoContent, code)
	assert.Zero(t, s.Sessions().Count())
}

func TestProcessStepErrorIsReported(t *testing.T) {
	backend := &stubBackend{processErr: &api.StepError{Step: types.StepInterface, RawStep: "interface_submit", Message: "timeout"}}
	s := newTestServer(t, backend)
	id := createSession(t, s)
	base := "/api/sessions/" + id

	req := multipartRequest(t, http.MethodPost, base+"/process",
		map[string]string{"gl_date": "2025-01-31"}, "fbdi_file", "manual.zip", []byte("PK"))
	code, body := do(t, s, req)
	require.Equal(t, http.StatusAccepted, code, body)

	var errBody map[string]any
	require.Eventually(t, func() bool {
		_, body := do(t, s, httptest.NewRequest(http.MethodGet, base+"/process", nil))
		errBody, _ = body["error"].(map[string]any)
		return errBody != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "interface_submit", errBody["step"])

	code, _ = do(t, s, httptest.NewRequest(http.MethodPost, base+"/process/retry", nil))
	require.Equal(t, http.StatusAccepted, code)
	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.archives) == 2
	}, 2*time.Second, 10*time.Millisecond)
	backend.mu.Lock()
	assert.Equal(t, []string{"manual.zip", "manual.zip"}, backend.archives)
	backend.mu.Unlock()
}

func TestProcessRequiresArchive(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	id := createSession(t, s)

	code, body := do(t, s, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/process", nil))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"Archive"}, body["fields"])
}

func TestCheckJob(t *testing.T) {
	s := newTestServer(t, &stubBackend{})

	code, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs/55", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "succeeded", body["category"])

	code, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs/404", nil))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCheckJobLookupsDoNotBlockEachOther(t *testing.T) {
	backend := &stubBackend{gate: make(chan struct{}), entered: make(chan string, 2)}
	s := newTestServer(t, backend)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i, id := range []string{"111", "222"} {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil), -1)
			if err != nil {
				return
			}
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}()
	}

	for j := 0; j < 2; j++ {
		select {
		case <-backend.entered:
		case <-time.After(2 * time.Second):
			close(backend.gate)
			wg.Wait()
			t.Fatalf("lookups did not overlap: %v", codes)
		}
	}
	close(backend.gate)
	wg.Wait()
	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
}

func TestProcessSecondSubmitIsRejectedWhileRunning(t *testing.T) {
	backend := &stubBackend{gate: make(chan struct{}), entered: make(chan string, 2)}
	s := newTestServer(t, backend)
	id := createSession(t, s)
	base := "/api/sessions/" + id

	submit := func() int {
		req := multipartRequest(t, http.MethodPost, base+"/process",
			map[string]string{"gl_date": "2025-01-31"}, "fbdi_file", "manual.zip", []byte("PK"))
		code, _ := do(t, s, req)
		return code
	}

	assert.Equal(t, http.StatusAccepted, submit())
	assert.Equal(t, http.StatusConflict, submit())

	code, _ := do(t, s, httptest.NewRequest(http.MethodPost, base+"/process/retry", nil))
	assert.Equal(t, http.StatusConflict, code)

	close(backend.gate)
	require.Eventually(t, func() bool {
		_, body := do(t, s, httptest.NewRequest(http.MethodGet, base+"/process", nil))
		return body["loading"] == false && body["result"] != nil
	}, 2*time.Second, 10*time.Millisecond)

	backend.mu.Lock()
	assert.Equal(t, []string{"manual.zip"}, backend.archives)
	backend.mu.Unlock()
}
