// Package provisioning contains the compensable step runner used to
// provision game servers, plus the resource managers it drives:
//   - storage/ — NFS directory tasks, PersistentVolumes and claims
//   - gameserver/ — Deployments, Services, Ingresses and per-server config
//   - proxyconfig/ — the shared proxy forwarding ConfigMap
//
// A provisioning run is expressed as an ordered list of Steps. Each step
// advances the run to a named state and may carry a compensation that
// undoes it. When a step fails, its own compensation and those of all
// completed steps run in reverse order and the run ends in
// StateRolledBack.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// State identifies how far a provisioning run has progressed.
type State string

const (
	StateStart                State = "Start"
	StateEphemeralCleanedUp   State = "EphemeralCleanedUp"
	StateSharedConfigReady    State = "SharedConfigReady"
	StatePerServerConfigReady State = "PerServerConfigReady"
	StateStorageReady         State = "StorageReady"
	StateEphemeralSetCreated  State = "EphemeralSetCreated"
	StateDone                 State = "Done"
	StateRolledBack           State = "RolledBack"
)

// Step is one unit of a provisioning run.
type Step struct {
	// Name identifies the step in logs and error messages.
	Name string

	// Completed is the state the run enters once this step succeeds.
	Completed State

	// Run performs the step.
	Run func(ctx context.Context) error

	// Compensate undoes the step during rollback. It also runs when the
	// step itself fails, since a failed step may have created some of
	// its resources before the error. Nil means there is nothing to
	// undo.
	Compensate func(ctx context.Context) error
}

// Entry records one completed step.
type Entry struct {
	Step  string
	State State
	At    time.Time
}

// Saga executes steps in order and compensates completed ones on failure.
type Saga struct {
	steps []Step
	state State
	log   []Entry
	l     *zap.SugaredLogger
}

// New creates a saga over the given steps.
func New(log *zap.SugaredLogger, steps ...Step) *Saga {
	return &Saga{steps: steps, state: StateStart, l: log}
}

// State returns the state the last Execute call ended in.
func (s *Saga) State() State {
	return s.state
}

// Log returns the completed step entries in execution order.
func (s *Saga) Log() []Entry {
	return s.log
}

// Execute runs all steps in order. On the first failure it compensates
// the failing step and every completed step in reverse order, sets the
// state to StateRolledBack and returns the failing step's error.
// Compensation errors are logged and never mask the original failure.
func (s *Saga) Execute(ctx context.Context) error {
	start := time.Now()
	s.state = StateStart
	s.log = s.log[:0]

	for i, step := range s.steps {
		s.l.Debugw("running step", "step", step.Name, "position", fmt.Sprintf("%d/%d", i+1, len(s.steps)))

		if err := step.Run(ctx); err != nil {
			s.l.Errorw("step failed, rolling back", "step", step.Name, "error", err)
			s.compensate(ctx, i)
			s.state = StateRolledBack
			return fmt.Errorf("%s: %w", step.Name, err)
		}

		s.state = step.Completed
		s.log = append(s.log, Entry{Step: step.Name, State: step.Completed, At: time.Now()})
	}

	s.state = StateDone
	s.l.Debugw("all steps completed", "steps", len(s.steps), "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// compensate undoes steps [0, failed] in reverse order. The failing
// step is included because it may have left partial resources behind.
// Rollback uses a fresh context so a cancelled run still cleans up
// after itself.
func (s *Saga) compensate(ctx context.Context, failed int) {
	rctx := context.WithoutCancel(ctx)

	for i := failed; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}

		s.l.Infow("compensating step", "step", step.Name)
		if err := step.Compensate(rctx); err != nil {
			s.l.Warnw("compensation failed", "step", step.Name, "error", err)
		}
	}
}
