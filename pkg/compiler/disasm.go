package compiler

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders code as one "<hex_addr>: <MNEMONIC> <operand>" line
// per instruction, reading the immediate width from the opcode catalog
// rather than hard-coding it. An opcode byte absent from the
// catalog, or an immediate that runs past the end of code, is rendered as a
// raw ".byte" line so disassembly never panics on foreign bytes.
func Disassemble(code []byte) string {
	var b strings.Builder
	for ip := 0; ip < len(code); {
		op := code[ip]
		entry, known := catalogByOp[op]
		if !known {
			fmt.Fprintf(&b, "%04X: .byte 0x%02X\n", ip, op)
			ip++
			continue
		}
		width := entry.Imm.Width()
		if ip+1+width > len(code) {
			fmt.Fprintf(&b, "%04X: .byte 0x%02X (truncated %s)\n", ip, op, entry.Mnemonic)
			ip++
			continue
		}
		operand := code[ip+1 : ip+1+width]
		switch entry.Imm {
		case ImmNone:
			fmt.Fprintf(&b, "%04X: %s\n", ip, entry.Mnemonic)
		case ImmI8:
			fmt.Fprintf(&b, "%04X: %s %d\n", ip, entry.Mnemonic, operand[0])
		case ImmI16:
			v := int16(binary.LittleEndian.Uint16(operand))
			fmt.Fprintf(&b, "%04X: %s %d\n", ip, entry.Mnemonic, v)
		case ImmI32:
			v := int32(binary.LittleEndian.Uint32(operand))
			fmt.Fprintf(&b, "%04X: %s %d\n", ip, entry.Mnemonic, v)
		case ImmRel16:
			off := int16(binary.LittleEndian.Uint16(operand))
			target := ip + 1 + width + int(off)
			fmt.Fprintf(&b, "%04X: %s %d (-> %04X)\n", ip, entry.Mnemonic, off, target)
		case ImmIdx16:
			idx := int16(binary.LittleEndian.Uint16(operand))
			fmt.Fprintf(&b, "%04X: %s #%d\n", ip, entry.Mnemonic, idx)
		}
		ip += 1 + width
	}
	return b.String()
}
