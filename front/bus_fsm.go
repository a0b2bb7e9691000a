package front

import "log"

// BusAddrState is the state of the bus address-channel FSM.
type BusAddrState uint8

// Address-channel states.
const (
	// BusAddrTransparent: requests are forwarded to the bus the tick
	// they arrive.
	BusAddrTransparent BusAddrState = iota
	// BusAddrRegistered: the bus denied the grant; the same address is
	// held stable and re-asserted until granted.
	BusAddrRegistered
)

// String returns a short state name.
func (s BusAddrState) String() string {
	switch s {
	case BusAddrTransparent:
		return "Transparent"
	case BusAddrRegistered:
		return "Registered"
	}
	return "Invalid"
}

// busFlight is one request accepted by the bus, awaiting its response.
type busFlight struct {
	tag   fetchTag
	attrs TranslationResult
}

// busAddrFSM drives the bus address channel. Once it asserts an address
// it keeps the identical address asserted until the bus grants it, even
// if the request was killed meanwhile; only the eventual response is
// discarded.
type busAddrFSM struct {
	state BusAddrState

	held     busFlight
	req      BusRequest
	holding  bool
	asserted bool
}

// canAccept reports whether the address stage can take a new request.
func (m *busAddrFSM) canAccept() bool {
	return !m.holding
}

// accept latches a translated request into the address stage.
func (m *busAddrFSM) accept(fl busFlight) {
	m.held = fl
	m.req = BusRequest{
		Addr:       fl.attrs.PAddr,
		Cacheable:  fl.attrs.Cacheable,
		Idempotent: fl.attrs.Idempotent,
	}
	m.holding = true
	m.asserted = false
}

// drive asserts the held request on the bus. speculative gates requests
// to non-idempotent regions: such a request is held back entirely until
// the fetch is no longer speculative. Returns the accepted flight when
// the bus granted this tick.
func (m *busAddrFSM) drive(bus BusResponder, speculative bool) (busFlight, bool) {
	if m.state > BusAddrRegistered {
		log.Printf("front: bus address FSM in unreachable state %d, forcing reset", m.state)
		m.reset()
	}
	if !m.holding {
		return busFlight{}, false
	}

	if !m.asserted && !m.req.Idempotent && speculative {
		// Suppressed, not retried: the request must not reach the bus
		// while the fetch is speculative.
		return busFlight{}, false
	}

	m.asserted = true
	if !bus.Submit(m.req) {
		// Denied: hold the identical address and re-assert next tick.
		m.state = BusAddrRegistered
		return busFlight{}, false
	}

	fl := m.held
	m.holding = false
	m.asserted = false
	m.state = BusAddrTransparent
	return fl, true
}

// dropUnasserted discards the held request on a kill when its address has
// never been asserted on the bus. A suppressed speculative request to a
// non-idempotent region parks here and can never be granted; no handshake
// has started, so dropping it keeps the accounting intact. Once asserted
// the address is held until granted.
func (m *busAddrFSM) dropUnasserted(curGen uint64) {
	if m.holding && !m.asserted && m.held.tag.gen != curGen {
		m.holding = false
		m.state = BusAddrTransparent
	}
}

// heldAddr returns the address currently asserted, for diagnostics.
func (m *busAddrFSM) heldAddr() (uint64, bool) {
	return m.req.Addr, m.holding
}

func (m *busAddrFSM) reset() {
	m.state = BusAddrTransparent
	m.holding = false
	m.asserted = false
}

// BusDataState is the state of the bus data-channel FSM.
type BusDataState uint8

// Data-channel states.
const (
	// BusDataIdle: no response outstanding.
	BusDataIdle BusDataState = iota
	// BusDataPending: at least one response outstanding.
	BusDataPending
	// BusDataKilled: the oldest outstanding response was killed; it
	// will complete the handshake and be discarded.
	BusDataKilled
)

// String returns a short state name.
func (s BusDataState) String() string {
	switch s {
	case BusDataIdle:
		return "Idle"
	case BusDataPending:
		return "Pending"
	case BusDataKilled:
		return "Killed"
	}
	return "Invalid"
}

// busDataFSM tracks responses owed by the bus, in strict request order.
// One response per accepted request, delivered or discarded, never
// dropped.
type busDataFSM struct {
	state    BusDataState
	inflight []busFlight
}

// expect records a granted request whose response is now owed.
func (m *busDataFSM) expect(fl busFlight) {
	m.inflight = append(m.inflight, fl)
}

// outstanding returns the number of responses owed.
func (m *busDataFSM) outstanding() int {
	return len(m.inflight)
}

// busEvent is the outcome of polling the data channel on one tick.
type busEvent struct {
	// completed indicates a response was consumed this tick.
	completed bool
	// discarded indicates the response belonged to a killed request.
	discarded bool
	// flight identifies the fetch the response belongs to.
	flight busFlight
	// data is the fetched block, meaningful when not discarded.
	data []byte
}

// poll consumes the data-channel response valid this tick, if any. A
// response with no outstanding request is a contract breach by the
// responder and panics.
func (m *busDataFSM) poll(bus BusResponder, curGen uint64) busEvent {
	rsp, valid := bus.Response()
	if !valid {
		m.refreshState(curGen)
		return busEvent{}
	}
	if len(m.inflight) == 0 {
		panic("front: bus response with no outstanding request")
	}

	fl := m.inflight[0]
	m.inflight = m.inflight[1:]
	m.refreshState(curGen)

	return busEvent{
		completed: true,
		discarded: fl.tag.gen != curGen,
		flight:    fl,
		data:      rsp.Data,
	}
}

// refreshState recomputes the observable channel state from the in-flight
// queue and the current generation.
func (m *busDataFSM) refreshState(curGen uint64) {
	switch {
	case len(m.inflight) == 0:
		m.state = BusDataIdle
	case m.inflight[0].tag.gen != curGen:
		m.state = BusDataKilled
	default:
		m.state = BusDataPending
	}
}

func (m *busDataFSM) reset() {
	m.state = BusDataIdle
	m.inflight = nil
}
