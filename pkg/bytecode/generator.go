package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Label is a symbolic code address, resolved when the program is assembled.
type Label string

// Instruction is one entry of a symbolic program: either a real instruction
// or a zero-width label pseudo-instruction.
type Instruction struct {
	Op     Opcode
	Args   []int // integer operands, excluding Target
	Target Label // code address operand of jumps and calls
	Name   Label // set only for label pseudo-instructions
}

// IsLabel reports whether in is a label pseudo-instruction.
func (in Instruction) IsLabel() bool { return in.Name != "" }

// Width returns the number of code cells in occupies.
func (in Instruction) Width() int {
	if in.IsLabel() {
		return 0
	}
	return in.Op.Width()
}

func (in Instruction) String() string {
	if in.IsLabel() {
		return string(in.Name) + ":"
	}
	var b strings.Builder
	b.WriteString(in.Op.String())
	for _, a := range in.Args {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(a))
	}
	if in.Target != "" {
		b.WriteByte(' ')
		b.WriteString(string(in.Target))
	}
	return b.String()
}

// UnresolvedLabelError reports a jump or call to a label that was never
// placed.
type UnresolvedLabelError struct {
	Label Label
	From  Opcode
}

func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("unresolved label %s in %s", e.Label, e.From)
}

// DuplicateLabelError reports a label placed more than once.
type DuplicateLabelError struct {
	Label Label
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("duplicate label %s", e.Label)
}

// Generator accumulates symbolic instructions and assembles them into flat
// code.
type Generator struct {
	instrs []Instruction
	labels int
}

// NewGenerator creates an empty generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// FreshLabel returns a label not previously returned by this generator.
func (g *Generator) FreshLabel() Label {
	g.labels++
	return Label("L" + strconv.Itoa(g.labels))
}

// Emit appends an instruction without operands.
func (g *Generator) Emit(op Opcode) {
	g.instrs = append(g.instrs, Instruction{Op: op})
}

// EmitInt appends a one-operand instruction such as CSTI, INCSP or RET.
func (g *Generator) EmitInt(op Opcode, n int) {
	g.instrs = append(g.instrs, Instruction{Op: op, Args: []int{n}})
}

// EmitJump appends GOTO, IFZERO or IFNZRO to target.
func (g *Generator) EmitJump(op Opcode, target Label) {
	g.instrs = append(g.instrs, Instruction{Op: op, Target: target})
}

// EmitCall appends CALL argc, target.
func (g *Generator) EmitCall(argc int, target Label) {
	g.instrs = append(g.instrs, Instruction{Op: CALL, Args: []int{argc}, Target: target})
}

// EmitTailCall appends TCALL argc, slide, target.
func (g *Generator) EmitTailCall(argc, slide int, target Label) {
	g.instrs = append(g.instrs, Instruction{Op: TCALL, Args: []int{argc, slide}, Target: target})
}

// PlaceLabel binds l to the address of the next instruction.
func (g *Generator) PlaceLabel(l Label) {
	g.instrs = append(g.instrs, Instruction{Name: l})
}

// Instructions returns the symbolic program.
func (g *Generator) Instructions() []Instruction {
	return g.instrs
}

// Len returns the number of symbolic entries, labels included.
func (g *Generator) Len() int { return len(g.instrs) }

// Resolve computes the address of every label.
func (g *Generator) Resolve() (map[Label]int, error) {
	addrs := make(map[Label]int)
	addr := 0
	for _, in := range g.instrs {
		if in.IsLabel() {
			if _, dup := addrs[in.Name]; dup {
				return nil, &DuplicateLabelError{Label: in.Name}
			}
			addrs[in.Name] = addr
			continue
		}
		addr += in.Width()
	}
	return addrs, nil
}

// ToBytecode assembles the program in two passes: the first assigns an
// address to every label, the second emits opcodes and operands with label
// references replaced by addresses.
func (g *Generator) ToBytecode() ([]int, error) {
	addrs, err := g.Resolve()
	if err != nil {
		return nil, err
	}
	code := make([]int, 0, len(g.instrs)*2)
	for _, in := range g.instrs {
		if in.IsLabel() {
			continue
		}
		code = append(code, int(in.Op))
		code = append(code, in.Args...)
		if in.Op.IsJump() {
			addr, ok := addrs[in.Target]
			if !ok {
				return nil, &UnresolvedLabelError{Label: in.Target, From: in.Op}
			}
			code = append(code, addr)
		}
	}
	return code, nil
}

// Listing renders the symbolic program with code addresses, one entry per
// line.
func (g *Generator) Listing() string {
	var b strings.Builder
	addr := 0
	for _, in := range g.instrs {
		fmt.Fprintf(&b, "%5d %s\n", addr, in)
		addr += in.Width()
	}
	return b.String()
}
