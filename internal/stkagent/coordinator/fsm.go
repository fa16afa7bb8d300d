package coordinator

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/stkwatch/internal/pkg/util/fsm"
	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

// State is a coordinator lifecycle state.
type State string

const (
	StateIdle               State = "idle"
	StateFetching           State = "fetching"
	StateUpdated            State = "updated"
	StateFailedWithCache    State = "failed_with_cache"
	StateFailedWithoutCache State = "failed_without_cache"
)

const (
	// EventRefresh (Active) starts a fetch if the rate gate allows it.
	EventRefresh = "event_refresh"
	EventSuccess = "event_success"
	// EventFailCached serves the cache after a failure or a gate denial.
	EventFailCached = "event_fail_cached"
	EventFail       = "event_fail"
	// EventFinalize returns any terminal state to idle.
	EventFinalize = "event_finalize"
)

// stateMachine drives one refresh cycle. Callbacks receive the in-flight
// *cycle as their first argument.
type stateMachine struct {
	*fsm.FSM
	c *Coordinator
}

func newStateMachine(c *Coordinator) *stateMachine {
	m := &stateMachine{c: c}

	idle := string(StateIdle)
	fetching := string(StateFetching)
	events := fsm.Events{
		{Name: EventRefresh, Src: []string{idle}, Dst: fetching},
		{Name: EventSuccess, Src: []string{fetching}, Dst: string(StateUpdated)},
		{Name: EventFailCached, Src: []string{idle, fetching}, Dst: string(StateFailedWithCache)},
		{Name: EventFail, Src: []string{idle, fetching}, Dst: string(StateFailedWithoutCache)},
		{Name: EventFinalize, Src: []string{string(StateUpdated), string(StateFailedWithCache), string(StateFailedWithoutCache)}, Dst: idle},
	}

	callbacks := fsm.Callbacks{
		// Guards
		"before_" + EventRefresh: fsmutil.WrapEvent(m.guardRateGate),

		// Side-effects
		"enter_" + string(StateUpdated):            fsmutil.WrapEvent(m.enterUpdated),
		"enter_" + string(StateFailedWithCache):    fsmutil.WrapEvent(m.enterFailed),
		"enter_" + string(StateFailedWithoutCache): fsmutil.WrapEvent(m.enterFailed),
	}

	m.FSM = fsm.NewFSM(idle, events, callbacks)
	return m
}

// guardRateGate cancels the refresh when the last attempt is too recent.
func (m *stateMachine) guardRateGate(ctx context.Context, e *fsm.Event) error {
	cy := e.Args[0].(*cycle)
	if !core.ShouldFetch(m.c.LastAttempt(), m.c.minInterval, cy.now) {
		e.Cancel(errGateClosed)
	}
	return nil
}

// enterUpdated publishes the new snapshot. The cache is always replaced;
// Changed only tells sinks whether anything worth announcing moved.
func (m *stateMachine) enterUpdated(ctx context.Context, e *fsm.Event) error {
	cy := e.Args[0].(*cycle)
	prev := m.c.cache.Swap(cy.result.Snapshot)
	cy.result.Changed = core.ChangedFields(prev, cy.result.Snapshot)
	return nil
}

func (m *stateMachine) enterFailed(ctx context.Context, e *fsm.Event) error {
	cy := e.Args[0].(*cycle)
	if e.Dst == string(StateFailedWithCache) {
		cy.result.Snapshot = m.c.cache.Load()
		cy.result.Stale = true
	}
	return nil
}

var errGateClosed = errors.New("rate gate closed")

// isFsmRealError filters out the cancellation and no-op signals the fsm
// library reports as errors.
func isFsmRealError(err error) bool {
	if err == nil {
		return false
	}

	var noTransition fsm.NoTransitionError
	var canceled fsm.CanceledError
	if errors.As(err, &noTransition) || errors.As(err, &canceled) {
		return false
	}
	return true
}

func isCanceled(err error) bool {
	var canceled fsm.CanceledError
	return errors.As(err, &canceled)
}
