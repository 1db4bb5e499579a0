// =============================================================================
// FBDI Workflow - Workflow Stages
// =============================================================================
//
// The workflow moves through four stages:
//
//   generate ──► process ──► reconcile ──► complete
//       ▲                                      │
//       └──────────────── reset ───────────────┘
//
// Forward moves happen only through the three success transitions. The only
// way back is an explicit reset, which always lands on generate.
//
// =============================================================================

package workflow

import "errors"

// Stage is the current position in the workflow.
type Stage string

const (
	StageGenerate  Stage = "generate"
	StageProcess   Stage = "process"
	StageReconcile Stage = "reconcile"
	StageComplete  Stage = "complete"
)

// Stages lists the stages in workflow order.
var Stages = []Stage{StageGenerate, StageProcess, StageReconcile, StageComplete}

var forward = map[Stage]Stage{
	StageGenerate:  StageProcess,
	StageProcess:   StageReconcile,
	StageReconcile: StageComplete,
}

// Sentinel errors for store operations.
var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrNoPackage         = errors.New("no generated package")
	ErrNotProcessed      = errors.New("processing has not succeeded")
	ErrUnknownAction     = errors.New("unknown workflow action")
)

// Number returns the 1-based position of the stage ("Step N of 4").
func (s Stage) Number() int {
	for i, st := range Stages {
		if st == s {
			return i + 1
		}
	}
	return 1
}

// IsValid reports whether s is one of the four stages.
func (s Stage) IsValid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Next returns the stage that follows s, if any.
func (s Stage) Next() (Stage, bool) {
	next, ok := forward[s]
	return next, ok
}

// IsForward reports whether from → to is one of the three forward transitions.
func IsForward(from, to Stage) bool {
	next, ok := forward[from]
	return ok && next == to
}

func (s Stage) String() string {
	return string(s)
}
