package vm

import "fmt"

// Instruction is the bytecode tuple of §4.4: an opcode plus three operands,
// each either a register number or an immediate, per the opcode's encoding
// class. A is widened to int32 (the spec's literal "i16 a,b,c" is sized for
// register counts, not full-range TypeIDs): type-generic opcodes (CmpLE,
// Eq, NewVector, New1, …) store a TypeID in A, so A needs more range than a
// register operand ever does. B and C stay register/immediate width.
type Instruction struct {
	Op Opcode
	A  int32
	B  int16
	C  int16
}

// DisassembleOne renders a single instruction in "mnemonic a, b, c" form.
// Read-only, non-executing — grounded in §4.4's "per-opcode encoding
// descriptor used by disassembler" and SUPPLEMENTED FEATURES item 5.
func DisassembleOne(ins Instruction) string {
	info := opInfo[ins.Op]
	switch info.Encoding {
	case Enc0000:
		return info.Name
	case Enc0R00:
		return fmt.Sprintf("%s r%d", info.Name, ins.A)
	case Enc0RRR:
		return fmt.Sprintf("%s r%d, r%d, r%d", info.Name, ins.A, ins.B, ins.C)
	case Enc0RRI:
		return fmt.Sprintf("%s r%d, r%d, #%d", info.Name, ins.A, ins.B, ins.C)
	case Enc0RII:
		return fmt.Sprintf("%s r%d, #%d, #%d", info.Name, ins.A, ins.B, ins.C)
	case EncTRR0:
		return fmt.Sprintf("%s t#%d, r%d, r%d", info.Name, ins.A, ins.B, ins.C)
	case EncTRRI:
		return fmt.Sprintf("%s t#%d, r%d, #%d", info.Name, ins.A, ins.B, ins.C)
	default:
		return fmt.Sprintf("%s %d, %d, %d", info.Name, ins.A, ins.B, ins.C)
	}
}

// Disassemble renders every function in prog, one per line with a header,
// for debugging and test assertions — never used by the interpreter.
func Disassemble(prog *Program) string {
	out := ""
	dump := func(name string, code []Instruction) {
		out += fmt.Sprintf("== %s ==\n", name)
		for pc, ins := range code {
			out += fmt.Sprintf("%4d  %s\n", pc, DisassembleOne(ins))
		}
	}
	dump("<global>", prog.Global.Code)
	for _, fn := range prog.Functions {
		if fn.Frame != nil {
			dump(fn.Name, fn.Frame.Code)
		}
	}
	return out
}
