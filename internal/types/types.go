// =============================================================================
// FBDI Workflow - Shared Types
// =============================================================================
//
// This package contains the domain types shared by the workflow store, the
// screen controllers, the backend client and the console server. Keeping them
// here avoids import cycles between:
//   - api
//   - workflow
//   - screens
//   - server
//
// =============================================================================

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// TEMPLATE AND ENVIRONMENT ENUMS
// =============================================================================

// TemplateType is an Oracle FBDI module code such as "AR" or "GL".
type TemplateType string

// TemplateTypes lists every module code the backend knows a template for,
// in the order they are offered to the user.
var TemplateTypes = []TemplateType{
	"AR", "AP", "GL", "FA", "CM", "EX", "TX", "INV", "PO",
	"OM", "PIM", "MF", "CST", "WMS", "HR", "PY", "WFM", "TM", "CMP",
}

// DefaultTemplateType is preselected for a new session.
const DefaultTemplateType TemplateType = "AR"

var templateDescriptions = map[TemplateType]string{
	"AR": "Accounts Receivable",
	"AP": "Accounts Payable",
	"GL": "General Ledger",
}

// Description returns a human readable label for the module code.
func (t TemplateType) Description() string {
	if d, ok := templateDescriptions[t]; ok {
		return d
	}
	return "Oracle Module"
}

// IsValid reports whether t is one of TemplateTypes.
func (t TemplateType) IsValid() bool {
	for _, known := range TemplateTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EnvironmentType is the Oracle Cloud pod the package is meant for.
type EnvironmentType string

const (
	EnvDev  EnvironmentType = "DEV"
	EnvTest EnvironmentType = "TEST"
	EnvUAT  EnvironmentType = "UAT"
	EnvProd EnvironmentType = "PROD"
)

// EnvironmentTypes lists the accepted environment types.
var EnvironmentTypes = []EnvironmentType{EnvDev, EnvTest, EnvUAT, EnvProd}

// =============================================================================
// SESSION CONFIG
// =============================================================================

// SessionConfig holds the fields every submission needs.
// All four fields are required before any request is built.
type SessionConfig struct {
	// SourceFile is the local path of the raw .xlsx data file.
	SourceFile string `json:"source_file" yaml:"source_file" validate:"required"`

	// TemplateType is the FBDI module code.
	TemplateType TemplateType `json:"template_type" yaml:"template_type" validate:"required,oneof=AR AP GL FA CM EX TX INV PO OM PIM MF CST WMS HR PY WFM TM CMP"`

	// ProjectName identifies the project and prefixes generated file names.
	ProjectName string `json:"project_name" yaml:"project_name" validate:"required"`

	// EnvironmentType is one of DEV, TEST, UAT or PROD.
	EnvironmentType EnvironmentType `json:"env_type" yaml:"env_type" validate:"required,oneof=DEV TEST UAT PROD"`
}

// PackageFileName returns the name of the archive generated for this session.
// The format is {project}_{template}_FBDI.zip.
func (c SessionConfig) PackageFileName() string {
	return fmt.Sprintf("%s_%s_FBDI.zip", c.ProjectName, c.TemplateType)
}

// BusinessParams are the AutoInvoice parameters sent with a processing request.
type BusinessParams struct {
	BusinessUnit string `json:"business_unit" yaml:"business_unit" validate:"required"`
	BatchSource  string `json:"batch_source" yaml:"batch_source" validate:"required"`
	GLDate       string `json:"gl_date" yaml:"gl_date" validate:"required,datetime=2006-01-02"`
}

// Today formats t as a GL date.
func Today(t time.Time) string {
	return t.Format("2006-01-02")
}

// =============================================================================
// VALIDATION
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError is returned when a submission is blocked client-side.
// No request has been sent when this error is returned.
type ValidationError struct {
	// Fields lists the offending field names in declaration order.
	Fields []string

	// Message is the text shown to the user.
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(e.Fields, ", "))
}

// ValidateSession checks that every Session Config field is present and in range.
func ValidateSession(cfg SessionConfig) error {
	return validateStruct(cfg, "Please fill all fields before submitting")
}

// ValidateBusinessParams checks the processing parameters.
func ValidateBusinessParams(p BusinessParams) error {
	return validateStruct(p, "Please provide business unit, batch source and GL date")
}

func validateStruct(v any, message string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	out := &ValidationError{Message: message}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, fe.Field())
	}
	return out
}

// =============================================================================
// MAPPING TYPES
// =============================================================================

// NotMapped is the placeholder some backends send instead of null.
const NotMapped = "Not Mapped"

// MappingEntry pairs a template column with the raw column feeding it.
type MappingEntry struct {
	// TemplateColumn is the column name in the Oracle template.
	TemplateColumn string `json:"template_column" yaml:"template_column"`

	// SourceColumn is the raw column mapped onto it. Empty when unmapped.
	SourceColumn string `json:"raw_column,omitempty" yaml:"raw_column,omitempty"`

	// Mapped is true when SourceColumn is set.
	Mapped bool `json:"mapped" yaml:"mapped"`
}

// MappedCount returns how many entries have a source column.
func MappedCount(entries []MappingEntry) int {
	n := 0
	for _, e := range entries {
		if e.Mapped {
			n++
		}
	}
	return n
}

// MappingSummary renders "N of M columns mapped".
func MappingSummary(entries []MappingEntry) string {
	return fmt.Sprintf("%d of %d columns mapped", MappedCount(entries), len(entries))
}

// =============================================================================
// GENERATED PACKAGE
// =============================================================================

// GeneratedPackage is the archive returned by a generation call.
// It is never modified after creation.
type GeneratedPackage struct {
	Payload     []byte
	FileName    string
	Session     SessionConfig
	GeneratedAt time.Time
}

// Size returns the payload length in bytes.
func (p *GeneratedPackage) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Payload)
}

// =============================================================================
// PROCESSING RESULT
// =============================================================================

// Step identifies one Oracle sub-step of a processing run.
type Step string

const (
	StepUpload      Step = "upload"
	StepInterface   Step = "interface_submit"
	StepAutoInvoice Step = "autoinvoice_submit"
	StepNetwork     Step = "network"
)

// ProcessingSteps is the fixed order of the three Oracle sub-steps.
var ProcessingSteps = []Step{StepUpload, StepInterface, StepAutoInvoice}

// Label returns the text shown next to the step.
func (s Step) Label() string {
	switch s {
	case StepUpload:
		return "Upload FBDI file to Oracle Content Management"
	case StepInterface:
		return "Load data into Oracle interface tables"
	case StepAutoInvoice:
		return "Create invoice transactions from interface data"
	case StepNetwork:
		return "Reach the FBDI backend"
	}
	return string(s)
}

// Index returns the position of s in ProcessingSteps, or -1.
func (s Step) Index() int {
	for i, known := range ProcessingSteps {
		if s == known {
			return i
		}
	}
	return -1
}

// NormalizeStep maps backend step names such as "interface_wait" or
// "autoinvoice_status" onto the three display steps.
func NormalizeStep(raw string) Step {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case name == string(StepNetwork):
		return StepNetwork
	case strings.HasPrefix(name, "upload"), strings.HasPrefix(name, "ucm"):
		return StepUpload
	case strings.HasPrefix(name, "interface"):
		return StepInterface
	case strings.HasPrefix(name, "autoinvoice"), strings.HasPrefix(name, "auto_invoice"):
		return StepAutoInvoice
	}
	return Step(name)
}

// JobStatus values reported by Oracle ESS.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusWarning   = "WARNING"
	StatusFailed    = "FAILED"
	StatusError     = "ERROR"
	StatusRunning   = "RUNNING"
)

// IsSuccessStatus treats WARNING like SUCCEEDED.
func IsSuccessStatus(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case StatusSucceeded, StatusWarning, "SUCCESS":
		return true
	}
	return false
}

// UploadStep is the UCM upload outcome.
type UploadStep struct {
	Status     string `json:"status" yaml:"status"`
	DocumentID string `json:"document_id,omitempty" yaml:"document_id,omitempty"`
}

// JobStep is the outcome of an ESS job submitted by the backend.
type JobStep struct {
	Status  string        `json:"status" yaml:"status"`
	JobID   string        `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}

// ProcessingResult describes all three sub-steps of one processing run.
type ProcessingResult struct {
	Upload      UploadStep `json:"upload" yaml:"upload"`
	Interface   JobStep    `json:"interface_loader" yaml:"interface_loader"`
	AutoInvoice JobStep    `json:"autoinvoice_import" yaml:"autoinvoice_import"`
}

// StepStatus returns the backend status string for a step.
func (r *ProcessingResult) StepStatus(step Step) string {
	switch step {
	case StepUpload:
		return r.Upload.Status
	case StepInterface:
		return r.Interface.Status
	case StepAutoInvoice:
		return r.AutoInvoice.Status
	}
	return ""
}

// FirstFailedStep returns the first step that reported a non-success status,
// if any. Steps without a status are not failures.
func (r *ProcessingResult) FirstFailedStep() (Step, bool) {
	for _, step := range ProcessingSteps {
		status := r.StepStatus(step)
		if status != "" && !IsSuccessStatus(status) {
			return step, true
		}
	}
	return "", false
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconResult holds the aggregate statistics of a reconciliation run.
type ReconResult struct {
	Status          string  `json:"status" yaml:"status"`
	TotalRecords    int     `json:"total_records" yaml:"total_records"`
	MatchedRecords  int     `json:"matched_records" yaml:"matched_records"`
	MatchPercentage float64 `json:"match_percentage" yaml:"match_percentage"`
	DownloadURL     string  `json:"download_url" yaml:"download_url"`
	FileName        string  `json:"filename" yaml:"filename"`
}

// UnmatchedRecords is TotalRecords minus MatchedRecords.
func (r *ReconResult) UnmatchedRecords() int {
	if r.MatchedRecords > r.TotalRecords {
		return 0
	}
	return r.TotalRecords - r.MatchedRecords
}
