package insts

import "encoding/binary"

// Scanner pre-decodes RV64 instruction words.
type Scanner struct{}

// NewScanner creates a new instruction scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan classifies a single instruction word.
func (s *Scanner) Scan(word uint32) Info {
	info := Info{
		Rd:  uint8((word >> 7) & 0x1F),
		Rs1: uint8((word >> 15) & 0x1F),
	}

	switch word & 0x7F {
	case opcodeBranch:
		info.Class = ClassBranch
		info.Offset = branchOffset(word)

	case opcodeJAL:
		info.Class = ClassJump
		info.Offset = jalOffset(word)
		info.IsCall = isLinkReg(info.Rd)

	case opcodeJALR:
		// Only funct3 = 000 is a defined JALR encoding.
		if (word>>12)&0x7 != 0 {
			return Info{Rd: info.Rd, Rs1: info.Rs1}
		}
		info.Offset = jalrOffset(word)
		info.IsCall = isLinkReg(info.Rd)
		if isLinkReg(info.Rs1) && !isLinkReg(info.Rd) {
			info.Class = ClassReturn
		} else {
			info.Class = ClassJumpReg
		}
	}

	return info
}

// ScannedInst is one pre-decoded instruction within a fetched block.
type ScannedInst struct {
	// PC is the address of the instruction.
	PC uint64
	// Raw is the instruction word.
	Raw uint32
	// Info is the pre-decode result.
	Info Info
}

// ScanBlock realigns a raw fetched block into classified instruction words.
// The block base must be word-aligned; trailing bytes that do not form a
// full word are dropped.
func (s *Scanner) ScanBlock(base uint64, data []byte) []ScannedInst {
	n := len(data) / WordBytes
	out := make([]ScannedInst, 0, n)
	for i := 0; i < n; i++ {
		word := binary.LittleEndian.Uint32(data[i*WordBytes:])
		out = append(out, ScannedInst{
			PC:   base + uint64(i*WordBytes),
			Raw:  word,
			Info: s.Scan(word),
		})
	}
	return out
}

// branchOffset extracts the B-type immediate: imm[12|10:5] from bits
// [31|30:25] and imm[4:1|11] from bits [11:8|7].
func branchOffset(word uint32) int64 {
	imm := ((word>>31)&0x1)<<12 |
		((word>>7)&0x1)<<11 |
		((word>>25)&0x3F)<<5 |
		((word>>8)&0xF)<<1
	return signExtend(int64(imm), 13)
}

// jalOffset extracts the J-type immediate: imm[20|10:1|11|19:12] from bits
// [31|30:21|20|19:12].
func jalOffset(word uint32) int64 {
	imm := ((word>>31)&0x1)<<20 |
		((word>>12)&0xFF)<<12 |
		((word>>20)&0x1)<<11 |
		((word>>21)&0x3FF)<<1
	return signExtend(int64(imm), 21)
}

// jalrOffset extracts the I-type immediate from bits [31:20].
func jalrOffset(word uint32) int64 {
	return signExtend(int64(word>>20), 12)
}

// signExtend sign-extends the low bits of v to 64 bits.
func signExtend(v int64, bits uint) int64 {
	shift := 64 - bits
	return v << shift >> shift
}
