package front

import (
	"github.com/fetchsim/fetchsim/insts"
)

// Statistics holds front-end performance statistics.
type Statistics struct {
	// Cycles is the total number of ticks simulated.
	Cycles uint64
	// FetchesIssued is the number of fetch requests issued to the
	// translation stage.
	FetchesIssued uint64
	// Translations is the number of translation responses consumed.
	Translations uint64
	// TranslationFaults is the number of translations that faulted.
	TranslationFaults uint64
	// KilledTranslations is the number of translation responses drained
	// under a kill.
	KilledTranslations uint64
	// BusRequests is the number of address-channel requests granted.
	BusRequests uint64
	// BusResponses is the number of data-channel responses consumed.
	BusResponses uint64
	// KilledBusResponses is the number of bus responses drained under a
	// kill.
	KilledBusResponses uint64
	// BundlesDelivered is the number of bundles the downstream queue
	// accepted.
	BundlesDelivered uint64
	// ExceptionBundles is the number of exception-tagged bundles handed
	// downstream.
	ExceptionBundles uint64
	// Replays is the number of bundles the queue bounced for refetch.
	Replays uint64
	// PredictRedirects is the number of resolver-driven fetch redirects.
	PredictRedirects uint64
	// Mispredicts is the number of execute-stage misprediction redirects.
	Mispredicts uint64
	// Kills is the number of ticks on which a kill condition fired.
	Kills uint64
}

// FetchUtilization returns the fraction of ticks that issued a fetch, as
// a percentage.
func (s Statistics) FetchUtilization() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.FetchesIssued) / float64(s.Cycles) * 100
}

// KilledResponseRate returns the fraction of bus responses drained under
// a kill, as a percentage.
func (s Statistics) KilledResponseRate() float64 {
	if s.BusResponses == 0 {
		return 0
	}
	return float64(s.KilledBusResponses) / float64(s.BusResponses) * 100
}

// TickInputs are the control and feedback signals sampled by the
// front-end on one tick. They come from the execute stage and the
// control/debug collaborator.
type TickInputs struct {
	// Execute is the execute-stage branch resolution.
	Execute ExecFeedback

	// Flush requests a pipeline flush without a redirect target.
	Flush bool

	// TrapReturn is the return-from-trap redirect.
	TrapReturn RedirectSignal

	// Exception redirects fetch to the trap vector base.
	Exception bool

	// CommitFlush is the commit-driven flush redirect (target = commit
	// PC).
	CommitFlush RedirectSignal

	// Halted suppresses the commit-flush advance.
	Halted bool

	// DebugEntry redirects fetch to the debug-halt address.
	DebugEntry bool

	// NonSpeculative marks the current fetch stream as non-speculative,
	// allowing bus requests to non-idempotent regions.
	NonSpeculative bool
}

// Option is a functional option for configuring the FrontEnd.
type Option func(*FrontEnd)

// WithPredictorConfig sets the predictor table sizes.
func WithPredictorConfig(config PredictorConfig) Option {
	return func(f *FrontEnd) {
		f.predictors = NewPredictors(config)
	}
}

// WithPredictors replaces the predictor set entirely.
func WithPredictors(p *Predictors) Option {
	return func(f *FrontEnd) {
		f.predictors = p
	}
}

// pendingException is a faulted fetch awaiting its exception bundle
// hand-off.
type pendingException struct {
	tag   fetchTag
	valid bool
}

// FrontEnd is the instruction-fetch front-end: PC selection, the three
// protocol state machines, branch prediction, and bundle hand-off.
//
// All state advances on a single synchronous clock via Tick. Within one
// tick every machine computes from current state and current-tick inputs;
// kills are sampled combinationally and broadcast to all stages in the
// same tick.
type FrontEnd struct {
	cfg     *Config
	scanner *insts.Scanner

	pcsel   *PCSelector
	fetch   fetchFSM
	trans   translateFSM
	busAddr busAddrFSM
	busData busDataFSM

	predictors *Predictors
	resolver   *Resolver

	tlb   TranslationUnit
	bus   BusResponder
	queue InstructionQueue

	// gen is the current kill generation. In-flight work tagged with an
	// older generation completes its handshake but its output is
	// discarded.
	gen uint64

	// heldFlight latches a translation result that completed while the
	// bus address stage was still occupied.
	heldFlight busFlight
	heldValid  bool

	pendingExc pendingException

	stats Statistics
}

// NewFrontEnd creates a fetch front-end over the given collaborators.
func NewFrontEnd(
	cfg *Config,
	tlb TranslationUnit,
	bus BusResponder,
	queue InstructionQueue,
	opts ...Option,
) *FrontEnd {
	f := &FrontEnd{
		cfg:     cfg,
		scanner: insts.NewScanner(),
		pcsel:   NewPCSelector(cfg),
		tlb:     tlb,
		bus:     bus,
		queue:   queue,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.predictors == nil {
		f.predictors = NewPredictors(DefaultPredictorConfig())
	}
	f.resolver = NewResolver(f.predictors.BHT, f.predictors.BTB, f.predictors.RAS)

	return f
}

// PC returns the fetch address asserted this tick.
func (f *FrontEnd) PC() uint64 {
	return f.pcsel.Current()
}

// Stats returns the front-end statistics.
func (f *FrontEnd) Stats() Statistics {
	return f.stats
}

// Predictors returns the predictor set.
func (f *FrontEnd) Predictors() *Predictors {
	return f.predictors
}

// FetchState returns the fetch control FSM state.
func (f *FrontEnd) FetchState() FetchState {
	return f.fetch.state
}

// TranslateState returns the address-translation FSM state.
func (f *FrontEnd) TranslateState() TranslateState {
	return f.trans.state
}

// BusAddrState returns the bus address-channel FSM state.
func (f *FrontEnd) BusAddrState() BusAddrState {
	return f.busAddr.state
}

// BusDataState returns the bus data-channel FSM state.
func (f *FrontEnd) BusDataState() BusDataState {
	return f.busData.state
}

// OutstandingBusResponses returns the number of bus responses still owed.
func (f *FrontEnd) OutstandingBusResponses() int {
	return f.busData.outstanding()
}

// Tick advances the front-end by one cycle.
//
// The tick is evaluated oldest work first, the way the downstream end of
// a pipeline is: the data channel completes a fetch, the translation
// channel completes and feeds the bus stage, the address channel drives
// the bus, and finally a new fetch is issued and the PC advances. Kill
// conditions are sampled before any completion is used, so a kill firing
// this tick discards the work completing this tick.
func (f *FrontEnd) Tick(in TickInputs) {
	f.stats.Cycles++

	// The external world advances first; responses that become valid
	// this tick are consumed below.
	f.tlb.Tick()
	f.bus.Tick()

	// Kill sources from execute and the control collaborator.
	mispredict := RedirectSignal{}
	if in.Execute.Valid && in.Execute.Mispredict {
		target := in.Execute.Target
		if !in.Execute.Taken {
			target = in.Execute.PC + insts.WordBytes
		}
		mispredict = RedirectSignal{Valid: true, Target: target}
		f.stats.Mispredicts++
	}
	externalKill := in.Flush || mispredict.Valid || in.TrapReturn.Valid ||
		in.Exception || in.CommitFlush.Valid || in.DebugEntry
	if externalKill {
		f.gen++
	}

	// Data channel: complete the oldest fetch.
	predict := RedirectSignal{}
	replay := RedirectSignal{}
	busEv := f.busData.poll(f.bus, f.gen)
	if busEv.completed {
		f.stats.BusResponses++
		if busEv.discarded {
			f.stats.KilledBusResponses++
		} else {
			predict, replay = f.deliver(busEv)
		}
	}

	// Resolver redirects and replays kill the remaining in-flight work.
	internalKill := predict.Valid || replay.Valid
	if internalKill {
		f.gen++
	}
	kill := externalKill || internalKill
	if kill {
		f.stats.Kills++
		f.trans.kill()
		f.dropHeldFlight()
		f.busAddr.dropUnasserted(f.gen)
	}

	// Exception hand-off waits for older bus legs to drain so bundles
	// stay in fetch order.
	f.deliverPendingException()

	// Translation channel: complete the outstanding translation and feed
	// the bus address stage. The hand-off stalls while the skid buffer or
	// the exception slot is still occupied; the translation unit holds its
	// response meanwhile, so completed work is never overwritten.
	busEntered := f.promoteHeldFlight()
	var transEv translationEvent
	if !f.heldValid && !f.pendingExc.valid {
		transEv = f.trans.poll(f.tlb, f.gen)
	}
	exception := false
	if transEv.completed {
		f.stats.Translations++
		switch {
		case transEv.discarded:
			f.stats.KilledTranslations++
		case transEv.result.Exception:
			exception = true
			f.stats.TranslationFaults++
			f.pendingExc = pendingException{tag: transEv.tag, valid: true}
		default:
			fl := busFlight{tag: transEv.tag, attrs: transEv.result}
			if f.busAddr.canAccept() {
				f.busAddr.accept(fl)
				busEntered = true
			} else {
				f.heldFlight = fl
				f.heldValid = true
			}
		}
	}

	// Address channel: assert the held request.
	if fl, granted := f.busAddr.drive(f.bus, !in.NonSpeculative); granted {
		f.stats.BusRequests++
		f.busData.expect(fl)
		f.busData.refreshState(f.gen)
	}

	// Issue a new fetch request for the address asserted this tick.
	issued := false
	if !kill && f.fetch.canIssue() && !f.heldValid &&
		f.queue.Ready() && f.trans.canAccept() {
		tag := fetchTag{vaddr: f.pcsel.Current(), gen: f.gen}
		if f.trans.accept(f.tlb, tag) {
			issued = true
			f.stats.FetchesIssued++
		}
	}

	f.fetch.advance(fetchConds{
		kill:        kill,
		issued:      issued,
		translated:  transEv.completed,
		exception:   exception,
		busAccepted: busEntered,
		drained: f.busData.outstanding() == 0 &&
			!f.pendingExc.valid && !f.heldValid,
	})

	// Commit the next fetch address.
	f.pcsel.Advance(PCInputs{
		Predict:       predict,
		FetchAccepted: issued,
		Replay:        replay,
		Mispredict:    mispredict,
		TrapReturn:    in.TrapReturn,
		Exception:     in.Exception,
		CommitFlush:   in.CommitFlush,
		Halted:        in.Halted,
		DebugEntry:    in.DebugEntry,
	})

	// Train the predictors with the execute-stage resolution.
	f.train(in.Execute)
}

// deliver realigns a completed fetch, resolves its control flow, and
// hands the bundle downstream. It returns the prediction redirect and
// replay signals produced this tick.
func (f *FrontEnd) deliver(ev busEvent) (predict, replay RedirectSignal) {
	bundle := f.buildBundle(ev)
	records, top := f.resolver.Query(bundle.Slots)
	decision := f.resolver.Resolve(bundle.Slots, records, top)

	result := f.queue.Push(bundle)
	switch {
	case result.Replay:
		f.stats.Replays++
		return RedirectSignal{}, RedirectSignal{Valid: true, Target: bundle.PC}
	case result.Accepted:
		f.stats.BundlesDelivered++
		f.resolver.CommitStackOps(bundle.Slots, result.Consumed)
	}

	if decision.Valid {
		f.stats.PredictRedirects++
		predict = RedirectSignal{Valid: true, Target: decision.Target}
	}
	return predict, RedirectSignal{}
}

// buildBundle realigns raw bus data into classified slots.
func (f *FrontEnd) buildBundle(ev busEvent) Bundle {
	bundle := Bundle{
		PC:    ev.flight.tag.vaddr,
		Slots: make([]DecodedSlot, f.cfg.SlotsPerBundle),
	}

	scanned := f.scanner.ScanBlock(ev.flight.tag.vaddr, ev.data)
	for i := range bundle.Slots {
		if i >= len(scanned) {
			break
		}
		bundle.Slots[i] = DecodedSlot{
			Valid:  true,
			PC:     scanned[i].PC,
			Raw:    scanned[i].Raw,
			Class:  scanned[i].Info.Class,
			IsCall: scanned[i].Info.IsCall,
			Offset: scanned[i].Info.Offset,
		}
	}

	return bundle
}

// deliverPendingException hands a faulted fetch downstream once all
// older bus legs have resolved.
func (f *FrontEnd) deliverPendingException() {
	if !f.pendingExc.valid {
		return
	}
	if f.pendingExc.tag.gen != f.gen {
		// The faulting fetch was squashed before hand-off.
		f.pendingExc.valid = false
		return
	}
	if _, busy := f.busAddr.heldAddr(); busy {
		// An older fetch is still waiting for its grant.
		return
	}
	if f.busData.outstanding() > 0 || !f.queue.Ready() {
		return
	}

	bundle := Bundle{
		PC:        f.pendingExc.tag.vaddr,
		Slots:     make([]DecodedSlot, f.cfg.SlotsPerBundle),
		Exception: true,
	}
	if f.queue.Push(bundle).Accepted {
		f.stats.ExceptionBundles++
		f.pendingExc.valid = false
	}
}

// promoteHeldFlight moves a latched translation result into the bus
// address stage once it frees up. It reports whether a request entered
// the bus stage this tick.
func (f *FrontEnd) promoteHeldFlight() bool {
	if f.heldValid && f.busAddr.canAccept() {
		f.busAddr.accept(f.heldFlight)
		f.heldValid = false
		return true
	}
	return false
}

// dropHeldFlight discards a latched translation result on a kill. The
// result never reached the bus, so no handshake is abandoned.
func (f *FrontEnd) dropHeldFlight() {
	if f.heldValid && f.heldFlight.tag.gen != f.gen {
		f.heldValid = false
	}
}

// train applies the execute-stage resolution to the predictors.
func (f *FrontEnd) train(fb ExecFeedback) {
	if !fb.Valid {
		return
	}
	switch fb.Class {
	case insts.ClassBranch:
		f.predictors.BHT.Update(fb.PC, fb.Taken)
		if fb.Taken {
			f.predictors.BTB.Update(fb.PC, fb.Target)
		}
	case insts.ClassJump, insts.ClassJumpReg:
		f.predictors.BTB.Update(fb.PC, fb.Target)
	case insts.ClassReturn:
		// Returns recover through the redirect; the stack itself is
		// maintained by consumed calls and returns.
	}
}

// Reset restores the front-end to its boot condition. In-flight
// collaborator state is not touched; callers reset collaborators
// separately.
func (f *FrontEnd) Reset() {
	f.pcsel.Reset()
	f.fetch.reset()
	f.trans.reset()
	f.busAddr.reset()
	f.busData.reset()
	f.predictors.Reset()
	f.gen = 0
	f.heldValid = false
	f.pendingExc = pendingException{}
	f.stats = Statistics{}
}
