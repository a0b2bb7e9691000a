package front

import "github.com/fetchsim/fetchsim/insts"

// Resolver merges per-slot classification with predictor outputs into a
// single redirect decision per bundle.
type Resolver struct {
	bht TakenPredictor
	btb TargetPredictor
	ras ReturnStack
}

// NewResolver creates a control-flow resolver over the given predictors.
func NewResolver(bht TakenPredictor, btb TargetPredictor, ras ReturnStack) *Resolver {
	return &Resolver{bht: bht, btb: btb, ras: ras}
}

// Query collects the predictor outputs for every slot of a bundle, plus
// the shared return-stack top. Queries are made for control-flow slots
// only; other slots keep zero-valued records.
func (r *Resolver) Query(slots []DecodedSlot) ([]PredictionRecord, RASTop) {
	records := make([]PredictionRecord, len(slots))
	for i, slot := range slots {
		if !slot.Valid {
			continue
		}
		switch slot.Class {
		case insts.ClassBranch:
			records[i].BHTValid, records[i].BHTTaken = r.bht.Predict(slot.PC)
		case insts.ClassJumpReg:
			records[i].BTBValid, records[i].BTBTarget = r.btb.Predict(slot.PC)
		}
	}
	return records, r.ras.Top()
}

// Resolve scans a bundle lowest address first and returns the redirect
// decision of the first slot that redirects. Per-slot rules:
//
//   - Jump: always redirects to PC + offset.
//   - JumpRegister: redirects only on a valid BTB hit.
//   - Return: redirects only on a valid return-stack top.
//   - Branch: redirects per the dynamic predictor when it has a trained
//     entry, else statically taken iff the displacement is negative.
//
// Slots after the winning slot are flushed from fetch and never reach the
// downstream queue; Resolve invalidates them.
func (r *Resolver) Resolve(slots []DecodedSlot, records []PredictionRecord, top RASTop) RedirectDecision {
	decision := RedirectDecision{SlotIndex: -1}

	for i := range slots {
		slot := &slots[i]
		if !slot.Valid {
			continue
		}

		taken := false
		var target uint64

		switch slot.Class {
		case insts.ClassJump:
			taken = true
			target = uint64(int64(slot.PC) + slot.Offset)

		case insts.ClassJumpReg:
			if records[i].BTBValid {
				taken = true
				target = records[i].BTBTarget
			}

		case insts.ClassReturn:
			if top.Valid {
				taken = true
				target = top.Target
			}

		case insts.ClassBranch:
			if records[i].BHTValid {
				taken = records[i].BHTTaken
			} else {
				taken = slot.Offset < 0
			}
			target = uint64(int64(slot.PC) + slot.Offset)
		}

		if taken {
			slot.PredictedTaken = true
			slot.PredictedTarget = target
			decision.Valid = true
			decision.Target = target
			decision.SlotIndex = i
			break
		}
	}

	if decision.Valid {
		for i := decision.SlotIndex + 1; i < len(slots); i++ {
			slots[i].Valid = false
		}
	}

	return decision
}

// CommitStackOps applies return-address-stack pushes and pops for the
// slots the downstream queue consumed this tick. A slot only mutates the
// stack when it was actually consumed, so unconsumed speculative calls
// and returns leave the stack untouched.
func (r *Resolver) CommitStackOps(slots []DecodedSlot, consumed []bool) {
	for i, slot := range slots {
		if !slot.Valid || i >= len(consumed) || !consumed[i] {
			continue
		}
		if slot.IsCall {
			r.ras.Push(slot.PC + insts.WordBytes)
			continue
		}
		if slot.Class == insts.ClassReturn {
			r.ras.Pop()
		}
	}
}
