package screens

import (
	"time"

	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/progress"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// Options configures the controllers of a Set.
type Options struct {
	Process ProcessOptions
	Recon   ReconOptions
}

// OptionsFromConfig derives controller options from the client configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	marks := make([]progress.Mark, 0, len(cfg.Process.ProgressMarks))
	for i, after := range cfg.Process.ProgressMarks {
		marks = append(marks, progress.Mark{Step: i, After: after})
	}
	return Options{
		Process: ProcessOptions{
			Marks:    marks,
			Defaults: func() types.BusinessParams { return cfg.BusinessParams(time.Now()) },
		},
		Recon: ReconOptions{
			Source:    cfg.Recon.Source,
			RequestID: cfg.Recon.RequestID,
		},
	}
}

// Set is one workflow session: a store, the navigator and every screen
// controller bound to that store.
type Set struct {
	Store     *workflow.Store
	Navigator *workflow.Navigator
	Preview   *Preview
	Generate  *Generate
	Process   *Process
	JobStatus *JobStatus
	Recon     *Recon
}

// NewSet wires a fresh session.
func NewSet(backend Backend, session types.SessionConfig, files *utils.FileManager, log logging.Logger, opts Options) *Set {
	store := workflow.NewStore(session)
	return &Set{
		Store:     store,
		Navigator: workflow.NewNavigator(store),
		Preview:   NewPreview(backend, store, log),
		Generate:  NewGenerate(backend, store, files, log),
		Process:   NewProcess(backend, store, files, log, opts.Process),
		JobStatus: NewJobStatus(backend, log),
		Recon:     NewRecon(backend, store, files, log, opts.Recon),
	}
}

// Close stops any running processing submission.
func (s *Set) Close() {
	s.Process.Close()
}
