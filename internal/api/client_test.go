package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, Options{})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

var testSession = types.SessionConfig{
	SourceFile:      "raw.xlsx",
	TemplateType:    "AR",
	ProjectName:     "Alpha",
	EnvironmentType: types.EnvDev,
}

var testParams = types.BusinessParams{
	BusinessUnit: "300000003170678",
	BatchSource:  "MILGARD EBS SPREADSHEET",
	GLDate:       "2025-01-31",
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8000", Options{})
	assert.Error(t, err)
}

func TestPreviewMappingsSendsSessionFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathPreviewMappings, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "AR", r.FormValue("fbdi_type"))
		assert.Equal(t, "Alpha", r.FormValue("project_name"))
		assert.Equal(t, "DEV", r.FormValue("env_type"))
		_, hdr, err := r.FormFile("raw_file")
		require.NoError(t, err)
		assert.Equal(t, "raw.xlsx", hdr.Filename)

		writeJSON(w, http.StatusOK, `{"status":"success","mappings":[
			{"template_column":"Invoice Number","raw_column":"INV_NO"},
			{"template_column":"Memo","raw_column":"Not Mapped"},
			{"template_column":"Amount","raw_column":null}]}`)
	})

	entries, err := c.PreviewMappings(context.Background(), testSession, Upload{Name: "raw.xlsx", Data: []byte("x")})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Mapped)
	assert.Equal(t, "INV_NO", entries[0].SourceColumn)
	assert.False(t, entries[1].Mapped)
	assert.False(t, entries[2].Mapped)
	assert.Equal(t, "1 of 3 columns mapped", types.MappingSummary(entries))
}

func TestGenerateFromTypeReturnsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathGenerateFromType, r.URL.Path)
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK\x03\x04"))
	})

	data, err := c.GenerateFromType(context.Background(), testSession, Upload{Name: "raw.xlsx", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), data)
}

func TestGenerateFromTemplateUsesTableEndpoint(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte("zip"))
	})
	tpl := Upload{Name: "tpl.xlsm", Data: []byte("t")}
	raw := Upload{Name: "raw.xlsx", Data: []byte("r")}

	_, err := c.GenerateFromTemplate(context.Background(), tpl, raw, false)
	require.NoError(t, err)
	_, err = c.GenerateFromTemplate(context.Background(), tpl, raw, true)
	require.NoError(t, err)
	assert.Equal(t, []string{PathGenerateFromTemplate, PathGenerateFromTable}, paths)
}

func TestGenerateEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	_, err := c.GenerateFromType(context.Background(), testSession, Upload{Name: "raw.xlsx"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestProcessNestedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "300000003170678", r.FormValue("business_unit"))
		assert.Equal(t, "2025-01-31", r.FormValue("gl_date"))
		_, _, err := r.FormFile("fbdi_file")
		require.NoError(t, err)

		writeJSON(w, http.StatusOK, `{
			"upload":{"status":"success","document_id":991},
			"interface_loader":{"RequestStatus":"SUCCEEDED","ReqstId":"1001","elapsed_time":"12.5"},
			"autoinvoice_import":{"RequestStatus":"WARNING","ReqstId":1002}}`)
	})

	res, err := c.ProcessFBDI(context.Background(), Upload{Name: "pkg.zip", Data: []byte("z")}, testParams)
	require.NoError(t, err)
	assert.Equal(t, "991", res.Upload.DocumentID)
	assert.Equal(t, "1001", res.Interface.JobID)
	assert.Equal(t, "12.5s", res.Interface.Elapsed.String())
	assert.Equal(t, "1002", res.AutoInvoice.JobID)
	assert.Equal(t, "WARNING", res.AutoInvoice.Status)
}

func TestProcessFlatResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"document_id":"D1","interface_job_id":11,"autoinvoice_job_id":"12"}`)
	})

	res, err := c.ProcessFBDI(context.Background(), Upload{Name: "pkg.zip"}, testParams)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSucceeded, res.Upload.Status)
	assert.Equal(t, "11", res.Interface.JobID)
	assert.Equal(t, "12", res.AutoInvoice.JobID)
}

func TestProcessStructuredStepError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"step":"interface_loader","error":"ESS job failed","job_id":555,"status":"ERROR"}`)
	})

	_, err := c.ProcessFBDI(context.Background(), Upload{Name: "pkg.zip"}, testParams)
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, types.StepInterface, se.Step)
	assert.Equal(t, "555", se.JobID)
	assert.Equal(t, "ERROR", se.Status)
	assert.Contains(t, se.Error(), "ESS job failed")
	assert.False(t, IsNetwork(err))
}

func TestProcessFailedStepInSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"upload":{"status":"SUCCESS","document_id":"9"},
			"interface_loader":{"RequestStatus":"SUCCEEDED","ReqstId":"1"},
			"autoinvoice_import":{"RequestStatus":"ERROR","ReqstId":"2"}}`)
	})

	_, err := c.ProcessFBDI(context.Background(), Upload{Name: "pkg.zip"}, testParams)
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, types.StepAutoInvoice, se.Step)
	assert.Equal(t, "2", se.JobID)
}

func TestProcessUploadWithoutStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"upload":{"message":"File uploaded","document_id":"123"},
			"interface_loader":{"RequestStatus":"SUCCEEDED","ReqstId":"1"},
			"autoinvoice_import":{"RequestStatus":"SUCCEEDED","ReqstId":"2"}}`)
	})

	res, err := c.ProcessFBDI(context.Background(), Upload{Name: "pkg.zip"}, testParams)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSucceeded, res.Upload.Status)
	assert.Equal(t, "123", res.Upload.DocumentID)
	assert.Equal(t, "2", res.AutoInvoice.JobID)
}

func TestProcessPlainErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"detail":"x","error":"bad gl date"}`)
	})

	_, err := c.ProcessFBDI(context.Background(), Upload{Name: "pkg.zip"}, testParams)
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Equal(t, "bad gl date", ae.Message)
}

func TestNetworkFailureIsStepError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url, Options{})
	require.NoError(t, err)

	_, err = c.ProcessFBDI(context.Background(), Upload{Name: "pkg.zip"}, testParams)
	assert.True(t, IsNetwork(err))
}

func TestCompleteWorkflowJobs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathCompleteWorkflow, r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status":"success","job_ids":{"interface_loader":7,"autoinvoice_import":"8"},"document_id":"D","project_name":"Alpha","fbdi_type":"AR"}`)
	})

	jobs, err := c.CompleteWorkflow(context.Background(), testSession, Upload{Name: "raw.xlsx"}, testParams)
	require.NoError(t, err)
	assert.Equal(t, "7", jobs.InterfaceJobID)
	assert.Equal(t, "8", jobs.AutoInvoiceJobID)
	assert.Equal(t, "AR", jobs.TemplateType)
}

func TestUploadToUCMEncodesDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "aGVsbG8=", body["document_content"])
		assert.Equal(t, "pkg.zip", body["file_name"])
		assert.Equal(t, "fin$/recievables$/import$", body["document_account"])
		writeJSON(w, http.StatusOK, `{"status":"success","message":"uploaded","document_id":42}`)
	})

	res, err := c.UploadToUCM(context.Background(), Upload{Name: "pkg.zip", Data: []byte("hello")}, "fin$/recievables$/import$")
	require.NoError(t, err)
	assert.Equal(t, "42", res.DocumentID)
	assert.Equal(t, "uploaded", res.Message)
}

func TestAutoInvoiceImportSendsParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "MILGARD EBS SPREADSHEET", body["batch_source"])
		writeJSON(w, http.StatusOK, `{"status":"success","job_id":"77"}`)
	})

	res, err := c.AutoInvoiceImport(context.Background(), testParams)
	require.NoError(t, err)
	assert.Equal(t, "77", res.JobID)
}

func TestStatusErrorBodyIsFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"error","message":"oracle unreachable"}`)
	})

	_, err := c.LoadInterface(context.Background(), "2,511142,N,N,N")
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "oracle unreachable", ae.Message)
}

func TestCheckJobStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathCheckJobStatus + "123":
			writeJSON(w, http.StatusOK, `{"status":"success","job_id":123,"job_status":"SUCCEEDED","start_time":"t0"}`)
		case PathCheckJobStatus + "500":
			writeJSON(w, http.StatusNotFound, `{"status":"error","message":"route missing"}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"status":"not_found","message":"Job 999 not found"}`)
		}
	})

	job, err := c.CheckJobStatus(context.Background(), " 123 ")
	require.NoError(t, err)
	assert.Equal(t, "123", job.JobID)
	assert.Equal(t, "succeeded", job.Category())

	_, err = c.CheckJobStatus(context.Background(), "999")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = c.CheckJobStatus(context.Background(), "500")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.StatusCode)
	assert.NotErrorIs(t, err, ErrJobNotFound)

	_, err = c.CheckJobStatus(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyJobID)
}

func TestLatestESSJobsAndFlowRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathLatestESSJobs:
			writeJSON(w, http.StatusOK, `{"jobs":[{"ReqstId":1,"JobName":"AutoInvoice","RequestStatus":"RUNNING"}]}`)
		case PathFlowRequests + "50":
			writeJSON(w, http.StatusOK, `{"all_requests":[{"ReqstId":51,"ParentRequestId":50}],"autoinvoice_report_request":{"ReqstId":52}}`)
		}
	})

	jobs, err := c.LatestESSJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "1", jobs[0].RequestID)

	flow, err := c.FlowRequests(context.Background(), "50")
	require.NoError(t, err)
	assert.Equal(t, "50", flow.All[0].ParentID)
	assert.Equal(t, "52", flow.AutoInvoiceReportID)
}

func TestGenerateReconAndDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathReconGenerate:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "468083", body["requestId"])
			writeJSON(w, http.StatusOK, `{"status":"success","total_records":10,"matched_records":8,"match_percentage":80,"download_url":"/reconreport/download/r.xlsx","filename":"r.xlsx"}`)
		case "/reconreport/download/r.xlsx":
			_, _ = w.Write([]byte("xlsx"))
		}
	})

	res, err := c.GenerateRecon(context.Background(), "468083")
	require.NoError(t, err)
	assert.Equal(t, 2, res.UnmatchedRecords())

	data, err := c.DownloadRecon(context.Background(), res.DownloadURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), data)

	_, err = c.DownloadRecon(context.Background(), "")
	assert.ErrorIs(t, err, ErrReconNotReady)
}

func TestGenerateReconFailureStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("rawFile")
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, `{"status":"pending"}`)
	})

	_, err := c.GenerateReconFromFile(context.Background(), Upload{Name: "raw.xlsx", Data: []byte("r")})
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Failed to generate reconciliation report", ae.Message)
}

func TestStoredMappings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == PathClearMappings:
			writeJSON(w, http.StatusOK, `{"status":"success","message":"Cleared 2 mappings"}`)
		case r.URL.Path == PathViewMappings:
			writeJSON(w, http.StatusOK, `{"status":"success","mappings":[{"id":1,"template_column":"A","raw_column":"B"}],"total_count":1}`)
		case r.URL.Path == PathTestDB:
			writeJSON(w, http.StatusOK, `{"status":"success","table_count":3}`)
		}
	})

	ms, err := c.ViewMappings(context.Background())
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "B", ms[0].RawColumn)

	db, err := c.TestDB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, db.TableCount)

	msg, err := c.ClearMappings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cleared 2 mappings", msg)
}
