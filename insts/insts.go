// Package insts provides RISC-V control-flow pre-decoding for fetch.
//
// The front-end only needs to know whether an instruction word can redirect
// fetch and where it might go. This package classifies raw RV64 words into
// control-flow classes and extracts the immediate displacement; it does not
// model execution semantics.
//
// Usage:
//
//	scanner := insts.NewScanner()
//	info := scanner.Scan(0xFE0718E3) // BNE x14, x0, -16
//	fmt.Printf("Class: %v, Offset: %d\n", info.Class, info.Offset)
package insts

// Class is the control-flow classification of an instruction word.
type Class uint8

// Control-flow classes.
const (
	// ClassNone is any instruction that cannot redirect fetch.
	ClassNone Class = iota
	// ClassBranch is a conditional branch (BEQ, BNE, BLT, BGE, BLTU, BGEU).
	ClassBranch
	// ClassJump is an unconditional PC-relative jump (JAL).
	ClassJump
	// ClassJumpReg is a register-indirect jump (JALR).
	ClassJumpReg
	// ClassReturn is a register-indirect jump that returns through a link
	// register (JALR with a link rs1 and a non-link rd).
	ClassReturn
)

// String returns a short name for the class.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassBranch:
		return "branch"
	case ClassJump:
		return "jump"
	case ClassJumpReg:
		return "jumpreg"
	case ClassReturn:
		return "return"
	}
	return "invalid"
}

// WordBytes is the instruction length in bytes. The model fetches aligned
// 4-byte words only; compressed encodings are out of scope.
const WordBytes = 4

// RISC-V major opcodes relevant to fetch redirection.
const (
	opcodeBranch = 0x63 // BEQ/BNE/BLT/BGE/BLTU/BGEU
	opcodeJAL    = 0x6F
	opcodeJALR   = 0x67
)

// Info describes a pre-decoded instruction word.
type Info struct {
	// Class is the control-flow classification.
	Class Class
	// IsCall is true when the instruction writes a return address to a
	// link register (JAL/JALR with rd = x1 or x5).
	IsCall bool
	// Offset is the sign-extended immediate displacement in bytes.
	// For ClassBranch and ClassJump it is PC-relative; for ClassJumpReg
	// and ClassReturn it is the I-type offset added to rs1.
	Offset int64
	// Rd and Rs1 are the destination and base register numbers.
	Rd  uint8
	Rs1 uint8
}

// isLinkReg reports whether a register is a link register by the RISC-V
// calling convention (x1 = ra, x5 = alternate link).
func isLinkReg(r uint8) bool {
	return r == 1 || r == 5
}
