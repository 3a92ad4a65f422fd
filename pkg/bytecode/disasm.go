package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Decoded is one instruction read back from flat code.
type Decoded struct {
	Addr int
	Op   Opcode
	Args []int // all operands, including the resolved address of jumps
}

func (d Decoded) String() string {
	var sb strings.Builder
	sb.WriteString(d.Op.String())
	for _, a := range d.Args {
		sb.WriteString(fmt.Sprintf(" %d", a))
	}
	return sb.String()
}

// Decode splits flat code into instructions.
func Decode(code []int) ([]Decoded, error) {
	var out []Decoded
	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		if !op.Valid() {
			return nil, &MachineError{PC: pc, Op: op, Msg: fmt.Sprintf("illegal opcode %d", code[pc])}
		}
		n := op.Operands()
		if pc+n >= len(code) {
			return nil, &MachineError{PC: pc, Op: op, Msg: "truncated instruction"}
		}
		out = append(out, Decoded{Addr: pc, Op: op, Args: append([]int(nil), code[pc+1:pc+1+n]...)})
		pc += 1 + n
	}
	return out, nil
}

// Disassemble returns a human-readable listing of flat code.
func Disassemble(code []int) (string, error) {
	return DisassembleWithSymbols(code, nil)
}

// DisassembleWithSymbols returns a listing in which the given entry points
// (name to address) are shown as labels and jump targets are annotated.
func DisassembleWithSymbols(code []int, symbols map[string]int) (string, error) {
	instrs, err := Decode(code)
	if err != nil {
		return "", err
	}
	names := make(map[int][]string)
	for name, addr := range symbols {
		names[addr] = append(names[addr], name)
	}
	for _, ns := range names {
		sort.Strings(ns)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; MicroC bytecode, %d cells\n", len(code)))
	for _, in := range instrs {
		for _, n := range names[in.Addr] {
			sb.WriteString(n + ":\n")
		}
		sb.WriteString(fmt.Sprintf("%5d %s", in.Addr, in))
		if in.Op.IsJump() {
			target := in.Args[len(in.Args)-1]
			if ns := names[target]; len(ns) > 0 {
				sb.WriteString(" ; " + ns[0])
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
