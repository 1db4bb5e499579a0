// =============================================================================
// FBDI Workflow - Backend Response Schemas
// =============================================================================
//
// Every endpoint has an explicit response type here. Loose backend shapes
// (ids as numbers or strings, two generations of the processing response)
// are resolved once, in the decoders below, so callers only ever see the
// normalized domain types from the types package.
//
// PROCESSING RESPONSE VERSIONS:
//   nested : {upload:{...}, interface_loader:{...}, autoinvoice_import:{...}}
//   flat   : {document_id, interface_job_id, autoinvoice_job_id}
//
// =============================================================================

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// =============================================================================
// LOOSE SCALARS
// =============================================================================

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// first returns the first non-empty value.
func first(values ...flexString) string {
	for _, v := range values {
		if strings.TrimSpace(string(v)) != "" {
			return string(v)
		}
	}
	return ""
}

// parseElapsed reads seconds ("12.5", 12.5) or a Go duration ("1m2s").
func parseElapsed(v flexString) time.Duration {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return 0
}

// =============================================================================
// MAPPINGS
// =============================================================================

type previewResponse struct {
	Status   string       `json:"status"`
	Mappings []rawMapping `json:"mappings"`
}

type rawMapping struct {
	TemplateColumn string     `json:"template_column"`
	RawColumn      flexString `json:"raw_column"`
}

func (m rawMapping) entry() types.MappingEntry {
	raw := strings.TrimSpace(m.RawColumn.String())
	if raw == types.NotMapped {
		raw = ""
	}
	return types.MappingEntry{
		TemplateColumn: m.TemplateColumn,
		SourceColumn:   raw,
		Mapped:         raw != "",
	}
}

// MappingsOnlyResult is the answer of /generate-mappings-only.
type MappingsOnlyResult struct {
	SuccessfulMappings int    `json:"successful_mappings" yaml:"successful_mappings"`
	FailedMappings     int    `json:"failed_mappings" yaml:"failed_mappings"`
	Message            string `json:"message,omitempty" yaml:"message,omitempty"`
}

// StoredMapping is one row of the backend mapping table.
type StoredMapping struct {
	ID             int    `json:"id" yaml:"id"`
	FBDIModule     string `json:"fbdi_module" yaml:"fbdi_module"`
	FBDISubset     string `json:"fbdi_subset" yaml:"fbdi_subset"`
	TemplateColumn string `json:"template_column" yaml:"template_column"`
	RawColumn      string `json:"raw_column" yaml:"raw_column"`
	Status         string `json:"status" yaml:"status"`
	CreatedAt      string `json:"created_at" yaml:"created_at"`
}

type storedMappingsResponse struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Mappings   []StoredMapping `json:"mappings"`
	TotalCount int             `json:"total_count"`
}

// DBStatus is the answer of /test-db.
type DBStatus struct {
	Status       string `json:"status" yaml:"status"`
	TableCount   int    `json:"table_count" yaml:"table_count"`
	MappingCount int    `json:"mapping_count,omitempty" yaml:"mapping_count,omitempty"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
}

// =============================================================================
// PROCESSING
// =============================================================================

type rawStepError struct {
	Step   string          `json:"step"`
	Error  json.RawMessage `json:"error"`
	JobID  flexString      `json:"job_id"`
	Status string          `json:"status"`
}

func (r rawStepError) stepError() *StepError {
	msg := strings.TrimSpace(string(r.Error))
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		msg = s
	}
	if msg == "" || msg == "null" {
		msg = "unknown error"
	}
	return &StepError{
		Step:    types.NormalizeStep(r.Step),
		RawStep: r.Step,
		Message: msg,
		JobID:   r.JobID.String(),
		Status:  r.Status,
	}
}

type rawUpload struct {
	Status     string     `json:"status"`
	DocumentID flexString `json:"document_id"`
	DocID      flexString `json:"DocumentId"`
}

type rawJob struct {
	RequestStatus string     `json:"RequestStatus"`
	Status        string     `json:"status"`
	ReqstID       flexString `json:"ReqstId"`
	JobID         flexString `json:"job_id"`
	ElapsedTime   flexString `json:"elapsed_time"`
}

func (j *rawJob) step() types.JobStep {
	if j == nil {
		return types.JobStep{}
	}
	status := j.RequestStatus
	if status == "" {
		status = j.Status
	}
	return types.JobStep{
		Status:  presentStatus(status),
		JobID:   first(j.ReqstID, j.JobID),
		Elapsed: parseElapsed(j.ElapsedTime),
	}
}

type rawProcessing struct {
	// nested
	Upload      *rawUpload `json:"upload"`
	Interface   *rawJob    `json:"interface_loader"`
	AutoInvoice *rawJob    `json:"autoinvoice_import"`

	// flat
	DocumentID       flexString `json:"document_id"`
	InterfaceJobID   flexString `json:"interface_job_id"`
	AutoInvoiceJobID flexString `json:"autoinvoice_job_id"`
}

func (r rawProcessing) isNested() bool {
	return r.Upload != nil || r.Interface != nil || r.AutoInvoice != nil
}

func (r rawProcessing) isFlat() bool {
	return first(r.DocumentID, r.InterfaceJobID, r.AutoInvoiceJobID) != ""
}

// presentStatus normalizes the status of a step that is present in a 2xx
// body. Steps answered without a status, like the UCM upload's
// {message, document_id}, succeeded.
func presentStatus(status string) string {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return types.StatusSucceeded
	}
	return status
}

// decodeProcessing turns a 2xx processing body into a ProcessingResult. A
// body that reports a failed sub-step is returned as a *StepError.
func decodeProcessing(body []byte) (*types.ProcessingResult, error) {
	var raw rawProcessing
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var result types.ProcessingResult
	switch {
	case raw.isNested():
		if raw.Upload != nil {
			result.Upload = types.UploadStep{
				Status:     presentStatus(raw.Upload.Status),
				DocumentID: first(raw.Upload.DocumentID, raw.Upload.DocID),
			}
		}
		result.Interface = raw.Interface.step()
		result.AutoInvoice = raw.AutoInvoice.step()
	case raw.isFlat():
		// The flat shape only exists for fully successful runs.
		result.Upload = types.UploadStep{Status: types.StatusSucceeded, DocumentID: raw.DocumentID.String()}
		result.Interface = types.JobStep{Status: types.StatusSucceeded, JobID: raw.InterfaceJobID.String()}
		result.AutoInvoice = types.JobStep{Status: types.StatusSucceeded, JobID: raw.AutoInvoiceJobID.String()}
	default:
		return nil, fmt.Errorf("%w: no processing steps in response", ErrInvalidPayload)
	}

	if step, failed := result.FirstFailedStep(); failed {
		status := result.StepStatus(step)
		jobID := ""
		switch step {
		case types.StepInterface:
			jobID = result.Interface.JobID
		case types.StepAutoInvoice:
			jobID = result.AutoInvoice.JobID
		}
		return nil, &StepError{
			Step:    step,
			RawStep: string(step),
			Message: "step reported status " + status,
			JobID:   jobID,
			Status:  status,
		}
	}
	return &result, nil
}

// WorkflowJobs is the answer of /fbdi/complete-fbdi-workflow.
type WorkflowJobs struct {
	InterfaceJobID   string `yaml:"interface_loader"`
	AutoInvoiceJobID string `yaml:"autoinvoice_import"`
	DocumentID       string `yaml:"document_id"`
	ProjectName      string `yaml:"project_name"`
	TemplateType     string `yaml:"fbdi_type"`
}

type rawWorkflowJobs struct {
	JobIDs struct {
		InterfaceLoader   flexString `json:"interface_loader"`
		AutoInvoiceImport flexString `json:"autoinvoice_import"`
	} `json:"job_ids"`
	DocumentID  flexString `json:"document_id"`
	ProjectName string     `json:"project_name"`
	FBDIType    string     `json:"fbdi_type"`
}

// =============================================================================
// STEPWISE OPERATIONS
// =============================================================================

// SubmitResult is the answer of the single-step Oracle operations.
type SubmitResult struct {
	Message    string `yaml:"message"`
	DocumentID string `yaml:"document_id,omitempty"`
	JobID      string `yaml:"job_id,omitempty"`
}

type rawSubmit struct {
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	DocumentID flexString `json:"document_id"`
	JobID      flexString `json:"job_id"`
}

// =============================================================================
// JOBS
// =============================================================================

// JobStatus is the answer of /fbdi/check-job-status/{id}.
type JobStatus struct {
	JobID        string `yaml:"job_id"`
	Status       string `yaml:"job_status"`
	StartTime    string `yaml:"start_time,omitempty"`
	EndTime      string `yaml:"end_time,omitempty"`
	ErrorMessage string `yaml:"error_message,omitempty"`
}

// Category buckets the status for display.
func (j *JobStatus) Category() string {
	switch strings.ToUpper(j.Status) {
	case types.StatusSucceeded:
		return "succeeded"
	case types.StatusFailed, types.StatusError:
		return "failed"
	case types.StatusRunning:
		return "running"
	}
	return "other"
}

type rawJobStatus struct {
	Status       string     `json:"status"`
	Message      string     `json:"message"`
	JobID        flexString `json:"job_id"`
	JobStatus    string     `json:"job_status"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	ErrorMessage string     `json:"error_message"`
}

// ESSJob is one row of an ESS job listing.
type ESSJob struct {
	RequestID string `yaml:"request_id"`
	JobName   string `yaml:"job_name"`
	Status    string `yaml:"status"`
	ParentID  string `yaml:"parent_id,omitempty"`
}

type rawESSJob struct {
	ReqstID         flexString `json:"ReqstId"`
	JobName         string     `json:"JobName"`
	RequestStatus   string     `json:"RequestStatus"`
	ParentRequestID flexString `json:"ParentRequestId"`
}

func (j rawESSJob) job() ESSJob {
	return ESSJob{
		RequestID: j.ReqstID.String(),
		JobName:   j.JobName,
		Status:    j.RequestStatus,
		ParentID:  j.ParentRequestID.String(),
	}
}

// FlowRequests is the answer of /fbdi/ess-flow-requests/{flowId}.
type FlowRequests struct {
	All                 []ESSJob `yaml:"all_requests"`
	AutoInvoiceReportID string   `yaml:"autoinvoice_report_request,omitempty"`
}

type rawFlowRequests struct {
	AllRequests              []rawESSJob `json:"all_requests"`
	AutoInvoiceReportRequest *rawESSJob  `json:"autoinvoice_report_request"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type rawRecon struct {
	Status          string     `json:"status"`
	Error           string     `json:"error"`
	TotalRecords    int        `json:"total_records"`
	MatchedRecords  int        `json:"matched_records"`
	MatchPercentage float64    `json:"match_percentage"`
	DownloadURL     string     `json:"download_url"`
	FileName        string     `json:"filename"`
	RequestID       flexString `json:"request_id"`
}

// =============================================================================
// GENERIC ERROR BODY
// =============================================================================

type errorBody struct {
	Status  string          `json:"status"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Details string          `json:"details"`
}

func (e errorBody) text() string {
	var s string
	if len(e.Error) > 0 && json.Unmarshal(e.Error, &s) == nil && s != "" {
		return s
	}
	if raw := strings.TrimSpace(string(e.Error)); raw != "" && raw != "null" {
		return raw
	}
	return e.Message
}
