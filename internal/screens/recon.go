package screens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// defaultReportName is used when the backend omits a file name.
const defaultReportName = "reconciliation_report.xlsx"

// ReconOptions selects the reconciliation variant.
type ReconOptions struct {
	// Source is config.ReconPredefined or config.ReconUpload.
	Source string

	// RequestID is used when the session has no AutoInvoice job id.
	RequestID string
}

// Recon runs the reconciliation report. Failures are shown in a banner
// the user can dismiss; they never block another attempt.
type Recon struct {
	guard
	backend Backend
	store   *workflow.Store
	files   *utils.FileManager
	log     logging.Logger
	opts    ReconOptions

	mu     sync.Mutex
	banner string
}

// NewRecon creates the reconciliation controller.
func NewRecon(backend Backend, store *workflow.Store, files *utils.FileManager, log logging.Logger, opts ReconOptions) *Recon {
	if opts.Source == "" {
		opts.Source = config.ReconPredefined
	}
	r := &Recon{
		backend: backend,
		store:   store,
		files:   files,
		log:     log.With("recon"),
		opts:    opts,
	}
	store.Subscribe(func(action workflow.Action, _, _ workflow.State) {
		if _, ok := action.(workflow.Reset); ok {
			r.DismissBanner()
		}
	})
	return r
}

// Source returns the configured variant.
func (r *Recon) Source() string {
	return r.opts.Source
}

// RequestID returns the AutoInvoice job id of the session, or the
// configured default.
func (r *Recon) RequestID() string {
	if p := r.store.State().Processing; p != nil && strings.TrimSpace(p.AutoInvoice.JobID) != "" {
		return p.AutoInvoice.JobID
	}
	return r.opts.RequestID
}

// Generate runs the report. raw is required for the upload variant and
// ignored otherwise.
func (r *Recon) Generate(ctx context.Context, raw api.Upload) (*types.ReconResult, error) {
	if r.opts.Source == config.ReconUpload && raw.IsZero() {
		return nil, &types.ValidationError{Fields: []string{"RawFile"}, Message: "Please select a raw data file"}
	}
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	var (
		result *types.ReconResult
		err    error
	)
	if r.opts.Source == config.ReconUpload {
		result, err = r.backend.GenerateReconFromFile(ctx, raw)
	} else {
		id := r.RequestID()
		if strings.TrimSpace(id) == "" {
			return nil, &types.ValidationError{Fields: []string{"RequestID"}, Message: "No request ID available for reconciliation"}
		}
		result, err = r.backend.GenerateRecon(ctx, id)
	}
	if err != nil {
		r.fail(err)
		return nil, err
	}

	r.DismissBanner()
	if err := r.store.Dispatch(workflow.ReconSucceeded{Result: result}); err != nil {
		return nil, err
	}
	r.log.Info("reconciliation generated",
		"total", result.TotalRecords,
		"matched", result.MatchedRecords,
		"match_percentage", result.MatchPercentage,
	)
	return result, nil
}

// Result returns the report of the session, or nil.
func (r *Recon) Result() *types.ReconResult {
	return r.store.State().Recon
}

// Download fetches the generated report and saves it under its file name.
func (r *Recon) Download(ctx context.Context) (string, error) {
	result := r.Result()
	if result == nil {
		return "", ErrNoReport
	}
	if err := r.acquire(); err != nil {
		return "", err
	}
	defer r.release()

	data, err := r.backend.DownloadRecon(ctx, result.DownloadURL)
	if err != nil {
		r.fail(err)
		return "", err
	}

	name := result.FileName
	if strings.TrimSpace(name) == "" {
		name = defaultReportName
	}
	path, err := r.files.SaveArtifact(name, data)
	if err != nil {
		r.fail(err)
		return "", err
	}
	r.log.Info("reconciliation report saved", "path", path)
	return path, nil
}

func (r *Recon) fail(err error) {
	r.log.Warn("reconciliation failed", "error", err)
	r.mu.Lock()
	r.banner = fmt.Sprintf("Reconciliation failed: %v", err)
	r.mu.Unlock()
}

// Banner returns the current error banner, or "".
func (r *Recon) Banner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.banner
}

// DismissBanner hides the error banner.
func (r *Recon) DismissBanner() {
	r.mu.Lock()
	r.banner = ""
	r.mu.Unlock()
}
