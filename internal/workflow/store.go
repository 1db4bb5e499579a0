// =============================================================================
// FBDI Workflow - Workflow State Store
// =============================================================================
//
// The Store holds everything the screens share during one session: the
// Session Config, the mapping preview, the generated package, the processing
// result, the reconciliation result and the workflow stage.
//
// STATE CHANGES:
//   State is never mutated directly. Callers dispatch an Action; the action's
//   reducer validates the transition against the current state and either
//   applies it or returns an error, leaving the state untouched.
//
// SUBSCRIBERS:
//   Subscribers are called after every applied action with the previous and
//   the new state. The Navigator uses this to auto-select screens.
//
// =============================================================================

package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// =============================================================================
// STATE
// =============================================================================

// State is a snapshot of one workflow session.
type State struct {
	Session  types.SessionConfig
	Stage    Stage
	Mappings []types.MappingEntry

	// Package is the last generated archive. Nil until generation succeeds.
	Package            *types.GeneratedPackage
	GenerationComplete bool

	// Processing is the result of the last successful processing call.
	Processing         *types.ProcessingResult
	ProcessingComplete bool

	Recon *types.ReconResult

	UpdatedAt time.Time
}

// Started reports whether the session has left the initial condition.
func (s State) Started() bool {
	return s.Stage != StageGenerate || s.GenerationComplete
}

func (s *State) clearProcessing() {
	s.Processing = nil
	s.ProcessingComplete = false
}

func (s State) clone() State {
	out := s
	if s.Mappings != nil {
		out.Mappings = append([]types.MappingEntry(nil), s.Mappings...)
	}
	return out
}

// =============================================================================
// ACTIONS
// =============================================================================

// Action is a single state change. Reduce returns an error when the action is
// not allowed from the given state.
type Action interface {
	Name() string
	Reduce(s *State) error
}

// SetSession replaces the Session Config. The stage is unchanged.
type SetSession struct{ Config types.SessionConfig }

func (SetSession) Name() string { return "set_session" }

func (a SetSession) Reduce(s *State) error {
	s.Session = a.Config
	return nil
}

// SetMappings replaces the mapping preview wholesale. The stage is unchanged.
type SetMappings struct{ Entries []types.MappingEntry }

func (SetMappings) Name() string { return "set_mappings" }

func (a SetMappings) Reduce(s *State) error {
	s.Mappings = append([]types.MappingEntry(nil), a.Entries...)
	return nil
}

// PackageGenerated stores a freshly generated archive. At generate, a
// processing result left from an earlier archive is dropped.
type PackageGenerated struct{ Package *types.GeneratedPackage }

func (PackageGenerated) Name() string { return "package_generated" }

func (a PackageGenerated) Reduce(s *State) error {
	if a.Package == nil {
		return ErrNoPackage
	}
	s.Package = a.Package
	s.GenerationComplete = true
	if s.Stage == StageGenerate {
		s.clearProcessing()
	}
	return nil
}

// ContinueToProcess moves generate → process once a package exists. Every
// arrival at process starts without a processing result.
type ContinueToProcess struct{}

func (ContinueToProcess) Name() string { return "continue_to_process" }

func (ContinueToProcess) Reduce(s *State) error {
	if s.Stage != StageGenerate {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, StageProcess)
	}
	if !s.GenerationComplete || s.Package == nil {
		return ErrNoPackage
	}
	s.Stage = StageProcess
	s.clearProcessing()
	return nil
}

// ProcessingSucceeded stores the processing result and enables ContinueToReconcile.
type ProcessingSucceeded struct{ Result *types.ProcessingResult }

func (ProcessingSucceeded) Name() string { return "processing_succeeded" }

func (a ProcessingSucceeded) Reduce(s *State) error {
	if a.Result == nil {
		return ErrNotProcessed
	}
	s.Processing = a.Result
	s.ProcessingComplete = true
	return nil
}

// ContinueToReconcile moves process → reconcile after a successful processing call.
type ContinueToReconcile struct{}

func (ContinueToReconcile) Name() string { return "continue_to_reconcile" }

func (ContinueToReconcile) Reduce(s *State) error {
	if s.Stage != StageProcess {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, StageReconcile)
	}
	if !s.ProcessingComplete {
		return ErrNotProcessed
	}
	s.Stage = StageReconcile
	return nil
}

// ReconSucceeded stores the reconciliation result. The stage moves
// reconcile → complete only when the session is at reconcile; a report run
// from any other stage leaves the stage alone.
type ReconSucceeded struct{ Result *types.ReconResult }

func (ReconSucceeded) Name() string { return "recon_succeeded" }

func (a ReconSucceeded) Reduce(s *State) error {
	s.Recon = a.Result
	if s.Stage == StageReconcile {
		s.Stage = StageComplete
	}
	return nil
}

// Reset returns to generate and clears every downstream result.
// Session Config and mappings survive a reset.
type Reset struct{}

func (Reset) Name() string { return "reset" }

func (Reset) Reduce(s *State) error {
	s.Stage = StageGenerate
	s.Package = nil
	s.GenerationComplete = false
	s.clearProcessing()
	s.Recon = nil
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// Listener is called after an action has been applied.
type Listener func(action Action, prev, next State)

// Store is the typed state container for one session. It is safe for
// concurrent use.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
	now       func() time.Time
}

// NewStore creates a store at stage generate with the given Session Config.
func NewStore(session types.SessionConfig) *Store {
	s := &Store{now: time.Now}
	s.state = State{
		Session:   session,
		Stage:     StageGenerate,
		UpdatedAt: s.now(),
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Stage returns the current stage.
func (s *Store) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Stage
}

// Subscribe registers l for every future applied action.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Dispatch applies the action. On error the state is left untouched and no
// listener is called.
func (s *Store) Dispatch(action Action) error {
	if action == nil {
		return ErrUnknownAction
	}

	s.mu.Lock()
	prev := s.state.clone()
	next := s.state.clone()
	if err := action.Reduce(&next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to apply %s: %w", action.Name(), err)
	}
	next.UpdatedAt = s.now()
	s.state = next
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	// Listeners run outside the lock so they may read the store.
	for _, l := range listeners {
		l(action, prev, next.clone())
	}
	return nil
}
