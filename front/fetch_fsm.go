package front

import "log"

// FetchState is the state of the fetch control FSM.
type FetchState uint8

// Fetch control states.
const (
	// FetchIdle: no fetch in flight through the translation leg.
	FetchIdle FetchState = iota
	// FetchAwaitingTranslation: a fetch request is outstanding at the
	// translation stage.
	FetchAwaitingTranslation
	// FetchAwaitingBus: translation completed but the bus stage could
	// not accept the request; retrying each tick.
	FetchAwaitingBus
	// FetchDrainingFlush: a translation exception was taken; new fetches
	// are suppressed until the in-flight bus leg resolves and the kill
	// condition clears.
	FetchDrainingFlush
)

// String returns a short state name.
func (s FetchState) String() string {
	switch s {
	case FetchIdle:
		return "Idle"
	case FetchAwaitingTranslation:
		return "AwaitingTranslation"
	case FetchAwaitingBus:
		return "AwaitingBus"
	case FetchDrainingFlush:
		return "DrainingFlush"
	}
	return "Invalid"
}

// fetchConds are the per-tick conditions the fetch control FSM advances
// on. They are computed combinationally from the current tick's inputs.
type fetchConds struct {
	// kill is the sampled kill condition.
	kill bool
	// issued indicates a new fetch request was accepted by the
	// translation stage this tick.
	issued bool
	// translated indicates the outstanding translation completed this
	// tick (killed or not).
	translated bool
	// exception indicates the completed translation faulted.
	exception bool
	// busAccepted indicates the translated request entered the bus
	// address stage this tick.
	busAccepted bool
	// drained indicates no bus leg remains in flight and any pending
	// exception hand-off has been delivered.
	drained bool
}

// fetchFSM is the fetch control state machine. The surrounding front-end
// computes the tick conditions; the FSM holds only the control state.
type fetchFSM struct {
	state FetchState
}

// advance moves the FSM per the current tick's conditions.
func (m *fetchFSM) advance(c fetchConds) {
	switch m.state {
	case FetchIdle:
		if c.issued {
			m.state = FetchAwaitingTranslation
		}

	case FetchAwaitingTranslation:
		if !c.translated {
			if c.kill && !c.issued {
				// The outstanding request drains under its stale
				// generation; control returns to idle decisioning.
				m.state = FetchIdle
			}
			return
		}
		switch {
		case c.exception:
			m.state = FetchDrainingFlush
		case c.kill:
			// Re-evaluate: keep pipelining when a new request went out
			// this same tick, otherwise fall back to idle.
			if !c.issued {
				m.state = FetchIdle
			}
		case !c.busAccepted:
			m.state = FetchAwaitingBus
		default:
			if !c.issued {
				m.state = FetchIdle
			}
		}

	case FetchAwaitingBus:
		if c.kill {
			m.state = FetchIdle
			return
		}
		if c.busAccepted {
			if c.issued {
				m.state = FetchAwaitingTranslation
			} else {
				m.state = FetchIdle
			}
		}

	case FetchDrainingFlush:
		if c.drained && !c.kill {
			m.state = FetchIdle
		}

	default:
		log.Printf("front: fetch FSM in unreachable state %d, forcing reset", m.state)
		m.state = FetchIdle
	}
}

// canIssue reports whether the control state permits issuing a new fetch
// request this tick.
func (m *fetchFSM) canIssue() bool {
	return m.state != FetchDrainingFlush && m.state != FetchAwaitingBus
}

func (m *fetchFSM) reset() {
	m.state = FetchIdle
}
