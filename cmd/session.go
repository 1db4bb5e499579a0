package cmd

import (
	"context"
	"time"

	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// progressInterval is how often the step list is redrawn while processing.
const progressInterval = 200 * time.Millisecond

// newSet opens an in-memory workflow session for one command invocation.
func (a *app) newSet(session types.SessionConfig) *screens.Set {
	return a.newSetWith(session, screens.OptionsFromConfig(a.cfg))
}

func (a *app) newSetWith(session types.SessionConfig, opts screens.Options) *screens.Set {
	return screens.NewSet(a.client, session, a.files, a.log, opts)
}

// watchProcessing runs submit and prints step transitions until it returns.
func (a *app) watchProcessing(ctx context.Context, proc *screens.Process, submit func(context.Context) (*types.ProcessingResult, error)) (*types.ProcessingResult, error) {
	type outcome struct {
		result *types.ProcessingResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := submit(ctx)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	shown := make(map[types.Step]screens.StepState)
	for {
		select {
		case o := <-done:
			a.out.steps(proc.Steps(), shown)
			return o.result, o.err
		case <-ticker.C:
			a.out.steps(proc.Steps(), shown)
		}
	}
}
