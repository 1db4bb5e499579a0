// =============================================================================
// FBDI Workflow - Screen Controllers
// =============================================================================
//
// One controller per screen of the workflow. A controller owns the state a
// screen shows (loading flag, last error, results) and talks to the backend
// and the shared workflow store on the screen's behalf.
//
//   Preview    -> mapping preview, never moves the stage
//   Generate   -> FBDI archive generation, continue to process
//   Process    -> Oracle processing with simulated progress, continue to recon
//   JobStatus  -> single ESS job lookup
//   Recon      -> reconciliation report and download
//
// LOADING RULE:
//   Each controller has at most one backend call outstanding. A second
//   submission while one is running returns ErrBusy without a request.
//
// VALIDATION RULE:
//   Missing input returns *types.ValidationError before any request.
//
// =============================================================================

package screens

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/sheet"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// Controller errors.
var (
	ErrBusy            = errors.New("a request is already in progress")
	ErrNothingToRetry  = errors.New("no previous submission to retry")
	ErrNoReport        = errors.New("no reconciliation report has been generated")
	ErrProcessingReset = errors.New("processing was cancelled")
)

// Backend is the part of the FBDI backend the screens use. *api.Client
// implements it.
type Backend interface {
	PreviewMappings(ctx context.Context, cfg types.SessionConfig, raw api.Upload) ([]types.MappingEntry, error)
	GenerateFromType(ctx context.Context, cfg types.SessionConfig, raw api.Upload) ([]byte, error)
	ProcessFBDI(ctx context.Context, archive api.Upload, params types.BusinessParams) (*types.ProcessingResult, error)
	ExecutionReport(ctx context.Context, autoInvoiceRequestID string) ([]byte, error)
	CheckJobStatus(ctx context.Context, jobID string) (*api.JobStatus, error)
	GenerateRecon(ctx context.Context, requestID string) (*types.ReconResult, error)
	GenerateReconFromFile(ctx context.Context, raw api.Upload) (*types.ReconResult, error)
	DownloadRecon(ctx context.Context, downloadURL string) ([]byte, error)
}

var _ Backend = (*api.Client)(nil)

// =============================================================================
// LOADING GUARD
// =============================================================================

type guard struct {
	mu      sync.Mutex
	loading bool
}

func (g *guard) acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return ErrBusy
	}
	g.loading = true
	return nil
}

func (g *guard) release() {
	g.mu.Lock()
	g.loading = false
	g.mu.Unlock()
}

// Loading reports whether a call is outstanding.
func (g *guard) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// =============================================================================
// SOURCE FILE
// =============================================================================

// loadSource validates cfg and reads the source workbook it names.
func loadSource(cfg types.SessionConfig) (api.Upload, error) {
	if err := types.ValidateSession(cfg); err != nil {
		return api.Upload{}, err
	}
	if _, err := sheet.Inspect(cfg.SourceFile); err != nil {
		return api.Upload{}, &types.ValidationError{
			Fields:  []string{"SourceFile"},
			Message: fmt.Sprintf("Source file is not usable: %v", err),
		}
	}
	return api.LoadUpload(cfg.SourceFile)
}
