// =============================================================================
// FBDI Workflow - Simulated Progress
// =============================================================================
//
// The processing endpoint answers once, with all three Oracle sub-steps in a
// single body. To give the user feedback while waiting, a Simulation marks
// steps as done after fixed delays, running next to the real request.
//
// SETTLE:
//   The real request and the simulation are two independent tasks joined by a
//   single settle event. Settle stops every pending timer and waits for the
//   simulation goroutine to exit, so no mark is delivered once it returns.
//   Settle is called on response, on error, on Close and on Reset.
//
// The delays are cosmetic. They say nothing about how long the backend
// actually spends on each step.
//
// =============================================================================

package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Mark schedules step Step to be reported done After the start.
type Mark struct {
	Step  int
	After time.Duration
}

// DefaultMarks reports step 0 at +2s and step 1 at +4s.
func DefaultMarks() []Mark {
	return []Mark{
		{Step: 0, After: 2 * time.Second},
		{Step: 1, After: 4 * time.Second},
	}
}

// Simulation is a running set of timed marks.
type Simulation struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches the simulation. onMark is called from the simulation
// goroutine, once per mark, in ascending delay order, until the simulation is
// settled or ctx is cancelled. onMark must not call Settle.
func Start(ctx context.Context, marks []Mark, onMark func(step int)) *Simulation {
	ctx, cancel := context.WithCancel(ctx)
	sim := &Simulation{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sim.done)
		start := time.Now()
		for _, m := range sorted(marks) {
			wait := m.After - time.Since(start)
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			// The timer and the cancellation may be ready together.
			if ctx.Err() != nil {
				return
			}
			onMark(m.Step)
		}
	}()

	return sim
}

// Settle cancels every pending mark and blocks until the simulation has
// stopped. It is safe to call more than once and on a nil Simulation.
func (s *Simulation) Settle() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the simulation goroutine has exited.
func (s *Simulation) Done() <-chan struct{} {
	return s.done
}

func sorted(marks []Mark) []Mark {
	out := append([]Mark(nil), marks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].After < out[j].After })
	return out
}
