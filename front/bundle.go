// Package front provides a cycle-level model of a speculative instruction
// fetch front-end: next-PC selection, the fetch/translation/bus protocol
// state machines, branch prediction, and bundle hand-off to the downstream
// instruction queue.
package front

import "github.com/fetchsim/fetchsim/insts"

// DecodedSlot is one instruction position within a fetch bundle.
type DecodedSlot struct {
	// Valid indicates the slot holds a fetched instruction. Slots past a
	// redirecting slot are invalidated before hand-off.
	Valid bool

	// PC is the address of the instruction.
	PC uint64

	// Raw is the raw instruction word.
	Raw uint32

	// Class is the control-flow classification from pre-decode.
	Class insts.Class

	// IsCall indicates the instruction writes a return address to a link
	// register.
	IsCall bool

	// Offset is the immediate displacement in bytes.
	Offset int64

	// PredictedTaken and PredictedTarget carry the prediction attached to
	// this slot when it redirected fetch.
	PredictedTaken  bool
	PredictedTarget uint64
}

// PredictionRecord holds the per-slot predictor query results.
type PredictionRecord struct {
	// BHTValid and BHTTaken are the branch-history-table outcome.
	BHTValid bool
	BHTTaken bool

	// BTBValid and BTBTarget are the branch-target-buffer outcome.
	BTBValid  bool
	BTBTarget uint64
}

// RASTop is the return-address-stack top-of-stack entry shared across a
// bundle.
type RASTop struct {
	Valid  bool
	Target uint64
}

// RedirectDecision is the bundle-level outcome of the control-flow
// resolver.
type RedirectDecision struct {
	// Valid indicates some slot redirected fetch.
	Valid bool

	// Target is the redirect target address.
	Target uint64

	// SlotIndex is the index of the winning slot. It is -1 when no slot
	// redirected.
	SlotIndex int
}

// Bundle is a fetched, realigned, and classified group of instructions
// handed to the downstream instruction queue.
type Bundle struct {
	// PC is the bundle base address.
	PC uint64

	// Slots holds the per-instruction slots in program order.
	Slots []DecodedSlot

	// Exception indicates the fetch faulted during address translation.
	// An exception bundle carries no valid slots; disposition belongs to
	// the downstream exception handling.
	Exception bool
}

// RedirectSignal is a valid/target pair from an external redirect source.
type RedirectSignal struct {
	Valid  bool
	Target uint64
}

// ExecFeedback is the execute-stage branch resolution reported back to the
// front-end. It both trains the predictors and, on a misprediction, forces
// a fetch redirect.
type ExecFeedback struct {
	// Valid indicates a control-flow instruction resolved this tick.
	Valid bool

	// PC is the address of the resolved instruction.
	PC uint64

	// Class is the resolved control-flow class.
	Class insts.Class

	// Taken is the resolved direction.
	Taken bool

	// Target is the resolved target address (when taken).
	Target uint64

	// Mispredict indicates the resolution disagrees with the prediction
	// the front-end fetched under.
	Mispredict bool
}
