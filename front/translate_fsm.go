package front

import "log"

// TranslateState is the state of the address-translation FSM.
type TranslateState uint8

// Address-translation states.
const (
	// TranslateIdle: no translation outstanding.
	TranslateIdle TranslateState = iota
	// TranslatePending: one translation outstanding; a kill may have
	// been latched against it.
	TranslatePending
	// TranslateKillPending: a second kill arrived before the first
	// killed response drained.
	TranslateKillPending
)

// String returns a short state name.
func (s TranslateState) String() string {
	switch s {
	case TranslateIdle:
		return "Idle"
	case TranslatePending:
		return "Pending"
	case TranslateKillPending:
		return "KillPending"
	}
	return "Invalid"
}

// fetchTag identifies an in-flight fetch transaction: its virtual address
// and the kill generation it was issued under.
type fetchTag struct {
	vaddr uint64
	gen   uint64
}

// translateFSM manages the request/response handshake with the external
// translation unit. The unit holds at most one outstanding request; the
// FSM additionally keeps one queued request so the channel can re-accept
// with no idle gap when a response drains.
type translateFSM struct {
	state TranslateState

	req      fetchTag
	reqValid bool
	killed   bool

	queued      fetchTag
	queuedValid bool
}

// canAccept reports whether a new fetch request can enter the translation
// leg this tick.
func (m *translateFSM) canAccept() bool {
	return !m.reqValid || !m.queuedValid
}

// accept enters a request into the translation leg. The request goes to
// the unit immediately when the channel is free, otherwise it waits in
// the queued slot until the outstanding response drains.
func (m *translateFSM) accept(unit TranslationUnit, tag fetchTag) bool {
	if !m.reqValid {
		if !unit.Ready() || !unit.Submit(tag.vaddr) {
			return false
		}
		m.req = tag
		m.reqValid = true
		m.killed = false
		m.state = TranslatePending
		return true
	}
	if !m.queuedValid {
		m.queued = tag
		m.queuedValid = true
		return true
	}
	return false
}

// kill latches a cancellation against the oldest outstanding response.
// The queued request has not entered the unit yet, so it is dropped
// without protocol consequence. The outstanding request is never dropped:
// its response will be consumed and discarded.
func (m *translateFSM) kill() {
	m.queuedValid = false
	if !m.reqValid {
		return
	}
	switch m.state {
	case TranslatePending:
		if m.killed {
			m.state = TranslateKillPending
		}
		m.killed = true
	case TranslateKillPending:
		// Already draining under a kill; nothing more to latch.
	case TranslateIdle:
		log.Printf("front: translation FSM idle with an outstanding request, forcing reset")
		m.reset()
	default:
		log.Printf("front: translation FSM in unreachable state %d, forcing reset", m.state)
		m.reset()
	}
}

// translationEvent is the outcome of polling the translation channel on
// one tick.
type translationEvent struct {
	// completed indicates a response was consumed this tick.
	completed bool
	// discarded indicates the consumed response belonged to a killed
	// request and must not be used.
	discarded bool
	// tag identifies the fetch the response belongs to.
	tag fetchTag
	// result is the translation result, meaningful when not discarded.
	result TranslationResult
}

// poll consumes the translation response, if one is valid this tick, and
// re-accepts the queued request with no idle gap. curGen is the current
// kill generation: a response issued under an older generation is
// discarded even if no explicit kill was latched.
func (m *translateFSM) poll(unit TranslationUnit, curGen uint64) translationEvent {
	result, valid := unit.Response()
	if !valid {
		return translationEvent{}
	}
	if !m.reqValid {
		// A response with no outstanding request breaks the
		// one-response-per-request contract.
		panic("front: translation response with no outstanding request")
	}

	ev := translationEvent{
		completed: true,
		tag:       m.req,
		result:    result,
		discarded: m.killed || m.req.gen != curGen,
	}

	m.reqValid = false
	m.killed = false
	m.state = TranslateIdle

	// Pipelined channel: a queued request is re-accepted immediately.
	if m.queuedValid {
		m.queuedValid = false
		if m.queued.gen == curGen {
			m.accept(unit, m.queued)
		}
	}

	return ev
}

func (m *translateFSM) reset() {
	m.state = TranslateIdle
	m.reqValid = false
	m.queuedValid = false
	m.killed = false
}
