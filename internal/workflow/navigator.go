package workflow

import (
	"fmt"
	"sync"
)

// Screen identifies one view of the console.
type Screen string

const (
	ScreenHome     Screen = "home"
	ScreenPreview  Screen = "preview"
	ScreenGenerate Screen = "generate"
	ScreenProcess  Screen = "process"
	ScreenStatus   Screen = "status"
	ScreenRecon    Screen = "recon"
)

// Screens lists every screen in menu order.
var Screens = []Screen{ScreenHome, ScreenPreview, ScreenGenerate, ScreenProcess, ScreenStatus, ScreenRecon}

// IsValid reports whether s names a known screen.
func (s Screen) IsValid() bool {
	for _, known := range Screens {
		if s == known {
			return true
		}
	}
	return false
}

// screenForStage is consulted only on forward transitions.
var screenForStage = map[Stage]Screen{
	StageProcess:   ScreenProcess,
	StageReconcile: ScreenRecon,
	StageComplete:  ScreenRecon,
}

// Navigator picks the active screen. Forward stage transitions switch the
// screen; anything else, including a reset, leaves the user's choice alone.
type Navigator struct {
	mu     sync.Mutex
	active Screen
	stage  Stage
}

// NewNavigator attaches a navigator to the store, starting on the home screen.
func NewNavigator(store *Store) *Navigator {
	n := &Navigator{active: ScreenHome, stage: store.Stage()}
	store.Subscribe(n.onChange)
	return n
}

func (n *Navigator) onChange(_ Action, prev, next State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stage = next.Stage
	if !IsForward(prev.Stage, next.Stage) {
		return
	}
	if screen, ok := screenForStage[next.Stage]; ok {
		n.active = screen
	}
}

// Active returns the selected screen.
func (n *Navigator) Active() Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Navigate selects a screen manually.
func (n *Navigator) Navigate(screen Screen) error {
	if !screen.IsValid() {
		return fmt.Errorf("unknown screen %q", screen)
	}
	n.mu.Lock()
	n.active = screen
	n.mu.Unlock()
	return nil
}

// StepIndicator returns "Step N of 4", or "" while still at generate.
func (n *Navigator) StepIndicator() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stage == StageGenerate {
		return ""
	}
	return fmt.Sprintf("Step %d of %d", n.stage.Number(), len(Stages))
}

// Marker returns the per-menu workflow marker for a screen.
func (n *Navigator) Marker(screen Screen) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case n.stage == StageProcess && screen == ScreenProcess:
		return "in progress"
	case n.stage == StageReconcile && screen == ScreenRecon:
		return "ready"
	case n.stage == StageComplete && screen == ScreenRecon:
		return "done"
	}
	return ""
}
