package front

import "github.com/fetchsim/fetchsim/insts"

// PCInputs are the redirect sources sampled by the PC selector on one
// tick. Sources are applied in ascending priority; a later source
// overrides an earlier one asserted the same tick.
type PCInputs struct {
	// Predict is the branch-prediction redirect from the control-flow
	// resolver.
	Predict RedirectSignal

	// FetchAccepted indicates a fetch request was accepted this tick,
	// enabling the sequential advance.
	FetchAccepted bool

	// Replay asks for a refetch of the address the downstream queue
	// could not accept.
	Replay RedirectSignal

	// Mispredict is the execute-stage resolution redirect.
	Mispredict RedirectSignal

	// TrapReturn is the return-from-trap redirect.
	TrapReturn RedirectSignal

	// Exception redirects to the configured trap vector base.
	Exception bool

	// CommitFlush is the commit-driven flush redirect; its target is the
	// commit PC, advanced by one instruction width unless halted.
	CommitFlush RedirectSignal

	// Halted suppresses the commit-flush advance.
	Halted bool

	// DebugEntry redirects to the configured debug-halt address; it is
	// the highest-priority source.
	DebugEntry bool
}

// PCSelector owns the program counter and computes the next fetch address
// once per tick from a priority-ordered list of redirect sources. Out of
// reset it asserts the configured boot address unconditionally.
type PCSelector struct {
	cfg *Config
	pc  uint64
}

// NewPCSelector creates a PC selector that outputs the configured boot
// address on its first tick.
func NewPCSelector(cfg *Config) *PCSelector {
	return &PCSelector{
		cfg: cfg,
		pc:  cfg.ResetPC,
	}
}

// Current returns the fetch address asserted this tick.
func (s *PCSelector) Current() uint64 {
	return s.pc
}

// Advance computes and commits the fetch address for the next tick. The
// redirect chain is written last-write-wins: every source assigns in
// ascending priority, so simultaneous sources resolve to the highest one.
func (s *PCSelector) Advance(in PCInputs) uint64 {
	next := s.pc

	if in.Predict.Valid {
		next = in.Predict.Target
	}
	if in.FetchAccepted {
		next = s.pc + s.cfg.BundleBytes()
	}
	if in.Replay.Valid {
		next = in.Replay.Target
	}
	if in.Mispredict.Valid {
		next = in.Mispredict.Target
	}
	if in.TrapReturn.Valid {
		next = in.TrapReturn.Target
	}
	if in.Exception {
		next = s.cfg.TrapVector
	}
	if in.CommitFlush.Valid {
		next = in.CommitFlush.Target
		if !in.Halted {
			next += insts.WordBytes
		}
	}
	if in.DebugEntry {
		next = s.cfg.DebugHaltAddress
	}

	s.pc = next
	return next
}

// Reset restores the selector to its boot condition.
func (s *PCSelector) Reset() {
	s.pc = s.cfg.ResetPC
}
