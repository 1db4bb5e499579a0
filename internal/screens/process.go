// =============================================================================
// FBDI Workflow - Processing Screen
// =============================================================================
//
// Submits an FBDI archive to Oracle through the backend. The backend runs
// upload, interface load and AutoInvoice import and answers once, so the
// screen shows simulated progress while the request is running.
//
// LIFECYCLE OF A SUBMISSION:
//
//   Submit ──┬── backend.ProcessFBDI ──────────────┐
//            └── progress.Start (marks at +2s, +4s)  ├─> settle ─> result
//                                                     │
//   Close / Reset ─────────────────────────────────────┘
//
//   Whatever happens first (response, error, Close, Reset) settles the
//   simulation; no mark is applied afterwards.
//
// AUTO MODE:
//   When the workflow enters the process stage with a generated archive,
//   AutoStart submits it with the default business parameters. It fires at
//   most once per arrival at the stage.
//
// =============================================================================

package screens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/progress"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// StepState is the display state of one Oracle sub-step.
type StepState string

const (
	StepPending StepState = "pending"
	StepActive  StepState = "active"
	StepDone    StepState = "done"
	StepFailed  StepState = "failed"
)

// StepView is one row of the progress list.
type StepView struct {
	Step    types.Step    `json:"step" yaml:"step"`
	Label   string        `json:"label" yaml:"label"`
	State   StepState     `json:"state" yaml:"state"`
	JobID   string        `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Status  string        `json:"status,omitempty" yaml:"status,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}

// Submission is everything sent in one processing request. Retry replays
// it unchanged.
type Submission struct {
	Archive api.Upload
	Params  types.BusinessParams
}

// Validate checks the submission without sending it.
func (s Submission) Validate() error {
	if s.Archive.IsZero() {
		return &types.ValidationError{Fields: []string{"Archive"}, Message: "Please select an FBDI file"}
	}
	return types.ValidateBusinessParams(s.Params)
}

// ProcessOptions configures a Process controller.
type ProcessOptions struct {
	// Marks drive the simulated progress. Nil uses progress.DefaultMarks.
	Marks []progress.Mark

	// Defaults returns the pre-filled business parameters.
	Defaults func() types.BusinessParams
}

// Process is the processing screen controller.
type Process struct {
	backend  Backend
	store    *workflow.Store
	files    *utils.FileManager
	log      logging.Logger
	marks    []progress.Mark
	defaults func() types.BusinessParams

	mu          sync.Mutex
	loading     bool
	gen         uint64
	arrival     uint64
	completed   int
	sim         *progress.Simulation
	cancel      context.CancelFunc
	last        *Submission
	result      *types.ProcessingResult
	failure     error
	autoStarted bool
	reporting   bool
}

// NewProcess creates the processing controller and subscribes it to store.
func NewProcess(backend Backend, store *workflow.Store, files *utils.FileManager, log logging.Logger, opts ProcessOptions) *Process {
	marks := opts.Marks
	if marks == nil {
		marks = progress.DefaultMarks()
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = func() types.BusinessParams { return types.BusinessParams{GLDate: types.Today(time.Now())} }
	}

	p := &Process{
		backend:  backend,
		store:    store,
		files:    files,
		log:      log.With("process"),
		marks:    marks,
		defaults: defaults,
	}
	store.Subscribe(p.onStoreChange)
	return p
}

func (p *Process) onStoreChange(action workflow.Action, prev, next workflow.State) {
	if _, ok := action.(workflow.Reset); ok {
		p.clear()
		return
	}
	if prev.Stage != workflow.StageProcess && next.Stage == workflow.StageProcess {
		p.mu.Lock()
		p.autoStarted = false
		p.arrival++
		if !p.loading {
			p.result = nil
			p.failure = nil
			p.completed = 0
		}
		p.mu.Unlock()
	}
}

// DefaultParams returns the pre-filled business parameters.
func (p *Process) DefaultParams() types.BusinessParams {
	return p.defaults()
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit sends the archive and blocks until the backend answers, ctx is
// cancelled, or the controller is closed or reset.
func (p *Process) Submit(ctx context.Context, sub Submission) (*types.ProcessingResult, error) {
	pending, err := p.Begin(ctx, sub)
	if err != nil {
		return nil, err
	}
	return pending.Wait()
}

// Pending is a submission that holds the screen's loading flag. The backend
// is called by Wait.
type Pending struct {
	p       *Process
	sub     Submission
	gen     uint64
	arrival uint64
	ctx     context.Context
	cancel  context.CancelFunc
	sim     *progress.Simulation
}

// Begin validates sub and takes the loading flag. It returns ErrBusy while
// another submission is running. The caller must call Wait.
func (p *Process) Begin(ctx context.Context, sub Submission) (*Pending, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loading {
		return nil, ErrBusy
	}
	p.gen++
	gen := p.gen
	reqCtx, cancel := context.WithCancel(ctx)
	p.loading = true
	p.cancel = cancel
	p.completed = 0
	p.result = nil
	p.failure = nil
	p.last = &sub
	p.sim = progress.Start(reqCtx, p.marks, func(step int) { p.mark(gen, step) })

	return &Pending{
		p:       p,
		sub:     sub,
		gen:     gen,
		arrival: p.arrival,
		ctx:     reqCtx,
		cancel:  cancel,
		sim:     p.sim,
	}, nil
}

// Wait sends the submission and releases the loading flag.
func (w *Pending) Wait() (*types.ProcessingResult, error) {
	p, sub := w.p, w.sub

	p.log.Info("processing submitted",
		"file", sub.Archive.Name,
		"business_unit", sub.Params.BusinessUnit,
		"gl_date", sub.Params.GLDate,
	)

	result, err := p.backend.ProcessFBDI(w.ctx, sub.Archive, sub.Params)
	w.sim.Settle()
	w.cancel()

	p.mu.Lock()
	if w.gen != p.gen {
		// Closed or reset while the request was running.
		p.mu.Unlock()
		return nil, ErrProcessingReset
	}
	p.loading = false
	p.sim = nil
	p.cancel = nil
	if err != nil {
		if w.arrival == p.arrival {
			p.failure = err
		}
		p.mu.Unlock()
		p.logFailure(err)
		return nil, err
	}
	if w.arrival != p.arrival {
		// Submitted before the current arrival at process; the result
		// belongs to an earlier archive.
		p.mu.Unlock()
		p.log.Info("processing finished for an earlier archive", "file", sub.Archive.Name)
		return result, nil
	}
	p.result = result
	p.completed = len(types.ProcessingSteps)
	p.mu.Unlock()

	if err := p.store.Dispatch(workflow.ProcessingSucceeded{Result: result}); err != nil {
		return nil, err
	}
	p.log.Info("processing succeeded",
		"document_id", result.Upload.DocumentID,
		"interface_job", result.Interface.JobID,
		"autoinvoice_job", result.AutoInvoice.JobID,
	)
	return result, nil
}

func (p *Process) mark(gen uint64, step int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || !p.loading {
		return
	}
	if step+1 > p.completed {
		p.completed = step + 1
	}
}

func (p *Process) logFailure(err error) {
	var se *api.StepError
	if errors.As(err, &se) {
		p.log.Warn("processing failed", "step", se.RawStep, "job_id", se.JobID, "status", se.Status, "error", se.Message)
		return
	}
	p.log.Warn("processing failed", "error", err)
}

// HasSubmission reports whether Retry has something to replay.
func (p *Process) HasSubmission() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last != nil
}

// Retry replays the last submission unchanged.
func (p *Process) Retry(ctx context.Context) (*types.ProcessingResult, error) {
	pending, err := p.BeginRetry(ctx)
	if err != nil {
		return nil, err
	}
	return pending.Wait()
}

// BeginRetry is Begin for the last submission.
func (p *Process) BeginRetry(ctx context.Context) (*Pending, error) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last == nil {
		return nil, ErrNothingToRetry
	}
	return p.Begin(ctx, *last)
}

// AutoStart submits the generated archive with the default parameters when
// the workflow is at the process stage. It reports whether a submission was
// made; repeated calls for the same arrival at the stage do nothing.
func (p *Process) AutoStart(ctx context.Context) (bool, *types.ProcessingResult, error) {
	state := p.store.State()
	if state.Stage != workflow.StageProcess || state.Package == nil || state.ProcessingComplete {
		return false, nil, nil
	}

	p.mu.Lock()
	if p.autoStarted || p.loading {
		p.mu.Unlock()
		return false, nil, nil
	}
	p.autoStarted = true
	p.mu.Unlock()

	sub := Submission{
		Archive: api.Upload{Name: state.Package.FileName, Data: state.Package.Payload},
		Params:  p.defaults(),
	}
	result, err := p.Submit(ctx, sub)
	return true, result, err
}

// =============================================================================
// TEARDOWN
// =============================================================================

// Close stops a running submission and its simulated progress. Results of
// earlier submissions are kept.
func (p *Process) Close() {
	p.mu.Lock()
	sim, cancel := p.stopLocked()
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	sim.Settle()
}

// Reset starts the workflow over.
func (p *Process) Reset() error {
	return p.store.Dispatch(workflow.Reset{})
}

func (p *Process) clear() {
	p.mu.Lock()
	sim, cancel := p.stopLocked()
	p.result = nil
	p.failure = nil
	p.last = nil
	p.completed = 0
	p.autoStarted = false
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	sim.Settle()
}

func (p *Process) stopLocked() (*progress.Simulation, context.CancelFunc) {
	sim, cancel := p.sim, p.cancel
	if p.loading {
		p.gen++
		p.loading = false
	}
	p.sim = nil
	p.cancel = nil
	return sim, cancel
}

// =============================================================================
// VIEW
// =============================================================================

// Loading reports whether a submission is running.
func (p *Process) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Result returns the last successful result, or nil.
func (p *Process) Result() *types.ProcessingResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Err returns the failure of the last submission, or nil.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failure
}

// CanContinue reports whether the reconciliation stage can be entered.
func (p *Process) CanContinue() bool {
	s := p.store.State()
	return s.Stage == workflow.StageProcess && s.ProcessingComplete
}

// Steps returns the display state of the three Oracle sub-steps.
func (p *Process) Steps() []StepView {
	p.mu.Lock()
	defer p.mu.Unlock()

	views := make([]StepView, len(types.ProcessingSteps))
	for i, step := range types.ProcessingSteps {
		views[i] = StepView{Step: step, Label: step.Label(), State: StepPending}
	}

	switch {
	case p.result != nil:
		for i := range views {
			views[i].State = StepDone
			views[i].Status = p.result.StepStatus(views[i].Step)
		}
		views[0].JobID = p.result.Upload.DocumentID
		views[1].JobID = p.result.Interface.JobID
		views[1].Elapsed = p.result.Interface.Elapsed
		views[2].JobID = p.result.AutoInvoice.JobID
		views[2].Elapsed = p.result.AutoInvoice.Elapsed

	case p.failure != nil:
		var se *api.StepError
		if !errors.As(p.failure, &se) || se.IsNetwork() {
			break
		}
		failed := se.Step.Index()
		if failed < 0 {
			break
		}
		for i := range views {
			switch {
			case i < failed:
				views[i].State = StepDone
			case i == failed:
				views[i].State = StepFailed
				views[i].JobID = se.JobID
				views[i].Status = se.Status
			}
		}

	case p.loading:
		for i := range views {
			switch {
			case i < p.completed:
				views[i].State = StepDone
			case i == p.completed:
				views[i].State = StepActive
			}
		}
	}
	return views
}

// =============================================================================
// AFTER SUCCESS
// =============================================================================

// ReportFileName is the name of the saved execution report.
func ReportFileName(autoInvoiceJobID string) string {
	return fmt.Sprintf("AutoInvoice_Report_%s.pdf", autoInvoiceJobID)
}

// DownloadReport fetches the AutoInvoice execution report and saves it.
func (p *Process) DownloadReport(ctx context.Context) (string, error) {
	p.mu.Lock()
	result := p.result
	if result == nil {
		if s := p.store.State(); s.Processing != nil {
			result = s.Processing
		}
	}
	if result == nil {
		p.mu.Unlock()
		return "", workflow.ErrNotProcessed
	}
	if p.reporting {
		p.mu.Unlock()
		return "", ErrBusy
	}
	p.reporting = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.reporting = false
		p.mu.Unlock()
	}()

	jobID := result.AutoInvoice.JobID
	data, err := p.backend.ExecutionReport(ctx, jobID)
	if err != nil {
		p.log.Warn("execution report failed", "job_id", jobID, "error", err)
		return "", fmt.Errorf("failed to download execution report: %w", err)
	}
	path, err := p.files.SaveArtifact(ReportFileName(jobID), data)
	if err != nil {
		return "", err
	}
	p.log.Info("execution report saved", "path", path)
	return path, nil
}

// Continue moves the workflow to the reconcile stage.
func (p *Process) Continue() error {
	return p.store.Dispatch(workflow.ContinueToReconcile{})
}
