package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// Endpoint paths on the FBDI backend.
const (
	PathPreviewMappings      = "/preview-mappings"
	PathGenerateFromType     = "/generate-fbdi-from-type"
	PathGenerateFromTemplate = "/generate-fbdi"
	PathGenerateFromTable    = "/generate-fbdi-from-table"
	PathGenerateMappingsOnly = "/generate-mappings-only"
	PathProcessFBDI          = "/fbdi/process-fbdi"
	PathCompleteWorkflow     = "/fbdi/complete-fbdi-workflow"
	PathUploadToUCM          = "/fbdi/upload-to-ucm"
	PathLoadInterface        = "/fbdi/load-interface"
	PathAutoInvoiceImport    = "/fbdi/auto-invoice-import"
	PathAutoInvoiceReport    = "/fbdi/autoinvoice-import-and-get-report"
	PathExecutionReport      = "/generate-execution-report"
	PathCheckJobStatus       = "/fbdi/check-job-status/"
	PathLatestESSJobs        = "/fbdi/latest-ess-jobs"
	PathFlowRequests         = "/fbdi/ess-flow-requests/"
	PathReconGenerate        = "/reconreport/generate"
	PathViewMappings         = "/view-mappings"
	PathTestDB               = "/test-db"
	PathClearMappings        = "/clear-mappings"
)

func sessionFields(cfg types.SessionConfig) []field {
	return []field{
		{name: "fbdi_type", value: string(cfg.TemplateType)},
		{name: "project_name", value: cfg.ProjectName},
		{name: "env_type", value: string(cfg.EnvironmentType)},
	}
}

func businessFields(p types.BusinessParams) []field {
	return []field{
		{name: "business_unit", value: p.BusinessUnit},
		{name: "batch_source", value: p.BatchSource},
		{name: "gl_date", value: p.GLDate},
	}
}

// =============================================================================
// MAPPING AND GENERATION
// =============================================================================

// PreviewMappings asks the backend which raw columns feed each template column.
func (c *Client) PreviewMappings(ctx context.Context, cfg types.SessionConfig, raw Upload) ([]types.MappingEntry, error) {
	resp, err := c.postMultipart(ctx, PathPreviewMappings, sessionFields(cfg), []filePart{{field: "raw_file", upload: raw}})
	if err != nil {
		return nil, err
	}
	var body previewResponse
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	entries := make([]types.MappingEntry, 0, len(body.Mappings))
	for _, m := range body.Mappings {
		entries = append(entries, m.entry())
	}
	return entries, nil
}

// GenerateFromType builds the FBDI archive for the session's template type.
func (c *Client) GenerateFromType(ctx context.Context, cfg types.SessionConfig, raw Upload) ([]byte, error) {
	resp, err := c.postMultipart(ctx, PathGenerateFromType, sessionFields(cfg), []filePart{{field: "raw_file", upload: raw}})
	if err != nil {
		return nil, err
	}
	return binary(resp)
}

// GenerateFromTemplate builds an archive from an explicit template workbook.
// With fromTable set the backend reuses its stored mappings.
func (c *Client) GenerateFromTemplate(ctx context.Context, template, raw Upload, fromTable bool) ([]byte, error) {
	path := PathGenerateFromTemplate
	if fromTable {
		path = PathGenerateFromTable
	}
	resp, err := c.postMultipart(ctx, path, nil, []filePart{
		{field: "template_file", upload: template},
		{field: "raw_file", upload: raw},
	})
	if err != nil {
		return nil, err
	}
	return binary(resp)
}

// GenerateMappingsOnly stores mappings on the backend without building an archive.
func (c *Client) GenerateMappingsOnly(ctx context.Context, template, raw Upload) (*MappingsOnlyResult, error) {
	resp, err := c.postMultipart(ctx, PathGenerateMappingsOnly, nil, []filePart{
		{field: "template_file", upload: template},
		{field: "raw_file", upload: raw},
	})
	if err != nil {
		return nil, err
	}
	var out MappingsOnlyResult
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// PROCESSING
// =============================================================================

// ProcessFBDI runs upload, interface load and AutoInvoice import in one call.
func (c *Client) ProcessFBDI(ctx context.Context, archive Upload, params types.BusinessParams) (*types.ProcessingResult, error) {
	resp, err := c.postMultipart(ctx, PathProcessFBDI, businessFields(params), []filePart{{field: "fbdi_file", upload: archive}})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, failure(resp)
	}
	return decodeProcessing(resp.body)
}

// CompleteWorkflow generates and processes in a single backend call.
func (c *Client) CompleteWorkflow(ctx context.Context, cfg types.SessionConfig, raw Upload, params types.BusinessParams) (*WorkflowJobs, error) {
	fields := append(sessionFields(cfg), businessFields(params)...)
	resp, err := c.postMultipart(ctx, PathCompleteWorkflow, fields, []filePart{{field: "raw_file", upload: raw}})
	if err != nil {
		return nil, err
	}
	var body rawWorkflowJobs
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	return &WorkflowJobs{
		InterfaceJobID:   body.JobIDs.InterfaceLoader.String(),
		AutoInvoiceJobID: body.JobIDs.AutoInvoiceImport.String(),
		DocumentID:       body.DocumentID.String(),
		ProjectName:      body.ProjectName,
		TemplateType:     body.FBDIType,
	}, nil
}

// =============================================================================
// STEPWISE ORACLE OPERATIONS
// =============================================================================

func (c *Client) submit(ctx context.Context, path string, payload any) (*SubmitResult, error) {
	resp, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	var body rawSubmit
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	return &SubmitResult{
		Message:    body.Message,
		DocumentID: body.DocumentID.String(),
		JobID:      body.JobID.String(),
	}, nil
}

// UploadToUCM stores the archive in Oracle Content Management.
func (c *Client) UploadToUCM(ctx context.Context, archive Upload, documentAccount string) (*SubmitResult, error) {
	return c.submit(ctx, PathUploadToUCM, map[string]string{
		"document_content": base64.StdEncoding.EncodeToString(archive.Data),
		"file_name":        archive.Name,
		"document_account": documentAccount,
	})
}

// LoadInterface submits the Interface Loader ESS job.
func (c *Client) LoadInterface(ctx context.Context, essParameters string) (*SubmitResult, error) {
	return c.submit(ctx, PathLoadInterface, map[string]string{"ess_parameters": essParameters})
}

// AutoInvoiceImport submits the AutoInvoice Import ESS job.
func (c *Client) AutoInvoiceImport(ctx context.Context, params types.BusinessParams) (*SubmitResult, error) {
	return c.submit(ctx, PathAutoInvoiceImport, params)
}

// AutoInvoiceImportReport submits AutoInvoice and returns the XML report.
func (c *Client) AutoInvoiceImportReport(ctx context.Context, essParameters string) ([]byte, error) {
	resp, err := c.postJSON(ctx, PathAutoInvoiceReport, map[string]string{"ess_parameters": essParameters})
	if err != nil {
		return nil, err
	}
	return binary(resp)
}

// ExecutionReport fetches the execution report of an AutoInvoice request.
func (c *Client) ExecutionReport(ctx context.Context, autoInvoiceRequestID string) ([]byte, error) {
	if strings.TrimSpace(autoInvoiceRequestID) == "" {
		return nil, ErrEmptyJobID
	}
	resp, err := c.postJSON(ctx, PathExecutionReport, map[string]string{"autoinvoice_request_id": autoInvoiceRequestID})
	if err != nil {
		return nil, err
	}
	return binary(resp)
}

// =============================================================================
// JOBS
// =============================================================================

// CheckJobStatus looks up one ESS job.
func (c *Client) CheckJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, ErrEmptyJobID
	}
	resp, err := c.get(ctx, PathCheckJobStatus+url.PathEscape(jobID))
	if err != nil {
		return nil, err
	}
	var body rawJobStatus
	// Unknown jobs come back as 404 with a not_found status.
	if json.Unmarshal(resp.body, &body) == nil && strings.EqualFold(body.Status, "not_found") {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	id := body.JobID.String()
	if id == "" {
		id = jobID
	}
	return &JobStatus{
		JobID:        id,
		Status:       body.JobStatus,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		ErrorMessage: body.ErrorMessage,
	}, nil
}

// LatestESSJobs lists the most recent ESS requests.
func (c *Client) LatestESSJobs(ctx context.Context) ([]ESSJob, error) {
	resp, err := c.get(ctx, PathLatestESSJobs)
	if err != nil {
		return nil, err
	}
	var body struct {
		Jobs []rawESSJob `json:"jobs"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	jobs := make([]ESSJob, 0, len(body.Jobs))
	for _, j := range body.Jobs {
		jobs = append(jobs, j.job())
	}
	return jobs, nil
}

// FlowRequests lists the requests spawned by an ESS flow.
func (c *Client) FlowRequests(ctx context.Context, flowID string) (*FlowRequests, error) {
	flowID = strings.TrimSpace(flowID)
	if flowID == "" {
		return nil, ErrEmptyJobID
	}
	resp, err := c.get(ctx, PathFlowRequests+url.PathEscape(flowID))
	if err != nil {
		return nil, err
	}
	var body rawFlowRequests
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	out := &FlowRequests{All: make([]ESSJob, 0, len(body.AllRequests))}
	for _, j := range body.AllRequests {
		out.All = append(out.All, j.job())
	}
	if body.AutoInvoiceReportRequest != nil {
		out.AutoInvoiceReportID = body.AutoInvoiceReportRequest.ReqstID.String()
	}
	return out, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func reconResult(resp *response) (*types.ReconResult, error) {
	var body rawRecon
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	if !strings.EqualFold(body.Status, "success") {
		msg := body.Error
		if msg == "" {
			msg = "Failed to generate reconciliation report"
		}
		return nil, &APIError{StatusCode: resp.status, Message: msg}
	}
	return &types.ReconResult{
		Status:          body.Status,
		TotalRecords:    body.TotalRecords,
		MatchedRecords:  body.MatchedRecords,
		MatchPercentage: body.MatchPercentage,
		DownloadURL:     body.DownloadURL,
		FileName:        body.FileName,
	}, nil
}

// GenerateRecon compares the backend's predefined raw data for requestID.
func (c *Client) GenerateRecon(ctx context.Context, requestID string) (*types.ReconResult, error) {
	resp, err := c.postJSON(ctx, PathReconGenerate, map[string]string{"requestId": requestID})
	if err != nil {
		return nil, err
	}
	return reconResult(resp)
}

// GenerateReconFromFile compares a user supplied spreadsheet.
func (c *Client) GenerateReconFromFile(ctx context.Context, raw Upload) (*types.ReconResult, error) {
	resp, err := c.postMultipart(ctx, PathReconGenerate, nil, []filePart{{field: "rawFile", upload: raw}})
	if err != nil {
		return nil, err
	}
	return reconResult(resp)
}

// DownloadRecon fetches the report at downloadURL, relative to the backend.
func (c *Client) DownloadRecon(ctx context.Context, downloadURL string) ([]byte, error) {
	if strings.TrimSpace(downloadURL) == "" {
		return nil, ErrReconNotReady
	}
	resp, err := c.get(ctx, downloadURL)
	if err != nil {
		return nil, err
	}
	return binary(resp)
}

// =============================================================================
// STORED MAPPINGS
// =============================================================================

// ViewMappings lists the mappings stored on the backend.
func (c *Client) ViewMappings(ctx context.Context) ([]StoredMapping, error) {
	resp, err := c.get(ctx, PathViewMappings)
	if err != nil {
		return nil, err
	}
	var body storedMappingsResponse
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	return body.Mappings, nil
}

// TestDB checks the backend's mapping database.
func (c *Client) TestDB(ctx context.Context) (*DBStatus, error) {
	resp, err := c.get(ctx, PathTestDB)
	if err != nil {
		return nil, err
	}
	var out DBStatus
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearMappings deletes every stored mapping and returns the backend message.
func (c *Client) ClearMappings(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodDelete, PathClearMappings, nil, "")
	if err != nil {
		return "", err
	}
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return "", err
	}
	return body.Message, nil
}
