package front

// TranslationResult is the outcome of a virtual-to-physical translation.
// It is valid for one tick unless latched by the bus stage.
type TranslationResult struct {
	// PAddr is the translated physical address.
	PAddr uint64

	// Exception indicates the translation faulted. A faulting fetch is
	// tagged and handed downstream; no bus request is issued for it.
	Exception bool

	// Cacheable and Idempotent are the memory attributes of the physical
	// address, from the configured region map.
	Cacheable  bool
	Idempotent bool
}

// TranslationUnit is the external address-translation collaborator. It
// accepts at most one outstanding request and eventually produces exactly
// one response per accepted request, in request order.
type TranslationUnit interface {
	// Ready reports whether a new request can be accepted this tick.
	Ready() bool

	// Submit presents a translation request. It returns false when the
	// unit did not accept the request this tick.
	Submit(vaddr uint64) bool

	// Response returns the translation result valid this tick, consuming
	// it. The second return is false when no response is available.
	Response() (TranslationResult, bool)

	// Tick advances the unit by one cycle.
	Tick()
}

// BusRequest is an address-channel request to the bus responder.
type BusRequest struct {
	// Addr is the physical address of the fetch block.
	Addr uint64

	// Cacheable and Idempotent are the attributes attached to the
	// request.
	Cacheable  bool
	Idempotent bool
}

// BusResponse is a data-channel response from the bus responder.
type BusResponse struct {
	// Data is the raw fetched block.
	Data []byte
}

// BusResponder is the external split-phase bus collaborator: an address
// channel with a grant handshake and a data channel with a ready/valid
// handshake. Every granted request produces exactly one response, in
// request order.
type BusResponder interface {
	// Submit asserts an address-channel request. It returns true when the
	// bus granted the request this tick.
	Submit(req BusRequest) bool

	// Response returns the data-channel response valid this tick,
	// consuming it.
	Response() (BusResponse, bool)

	// Tick advances the responder by one cycle.
	Tick()
}

// PushResult is the downstream queue's answer to a bundle push.
type PushResult struct {
	// Accepted indicates the queue took the bundle this tick.
	Accepted bool

	// Consumed marks, per slot, which instructions the queue consumed
	// this tick. Return-address-stack mutation is gated on these flags.
	Consumed []bool

	// Replay indicates the queue could not take the bundle and the same
	// address must be refetched.
	Replay bool
}

// InstructionQueue is the downstream instruction queue collaborator.
type InstructionQueue interface {
	// Ready reports whether the queue can accept a bundle this tick.
	Ready() bool

	// Push hands a bundle to the queue.
	Push(b Bundle) PushResult
}

// TakenPredictor predicts the direction of conditional branches.
type TakenPredictor interface {
	// Predict queries the predictor. valid is false when the predictor
	// has no entry for the address.
	Predict(pc uint64) (valid, taken bool)

	// Update trains the predictor with a resolved outcome.
	Update(pc uint64, taken bool)
}

// TargetPredictor predicts the target of indirect and unconditional jumps.
type TargetPredictor interface {
	// Predict queries the predictor for a target.
	Predict(pc uint64) (valid bool, target uint64)

	// Update trains the predictor with a resolved target.
	Update(pc uint64, target uint64)
}

// ReturnStack predicts return targets from call sites.
type ReturnStack interface {
	// Top returns the top-of-stack entry without popping it.
	Top() RASTop

	// Push records a return address on a consumed call.
	Push(addr uint64)

	// Pop removes the top entry on a consumed return.
	Pop()
}
