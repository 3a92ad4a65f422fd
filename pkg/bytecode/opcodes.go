package bytecode

import "fmt"

// Opcode represents a machine instruction. The numbering is shared with the
// stack machine that executes the code and must not change.
type Opcode int

const (
	// ========================================================================
	// Constants and arithmetic
	// ========================================================================

	CSTI Opcode = 0 // Push constant: CSTI <n>
	ADD  Opcode = 1 // Pop two, push sum
	SUB  Opcode = 2 // Pop two, push difference (a - b where b is TOS)
	MUL  Opcode = 3 // Pop two, push product
	DIV  Opcode = 4 // Pop two, push quotient
	MOD  Opcode = 5 // Pop two, push remainder

	// ========================================================================
	// Comparison and logic
	// ========================================================================

	EQ  Opcode = 6 // Pop two, push 1 if equal else 0
	LT  Opcode = 7 // Pop two, push 1 if a < b else 0
	NOT Opcode = 8 // Pop one, push 1 if zero else 0

	// ========================================================================
	// Stack and store
	// ========================================================================

	DUP   Opcode = 9  // Duplicate top of stack
	SWAP  Opcode = 10 // Swap top two stack elements
	LDI   Opcode = 11 // Replace address on top with the cell it points at
	STI   Opcode = 12 // Store TOS at address below it; leave the value
	GETBP Opcode = 13 // Push frame base pointer
	GETSP Opcode = 14 // Push stack pointer
	INCSP Opcode = 15 // Grow (or shrink) the stack: INCSP <n>

	// ========================================================================
	// Control flow
	// ========================================================================

	GOTO   Opcode = 16 // Jump: GOTO <addr>
	IFZERO Opcode = 17 // Pop, jump if zero: IFZERO <addr>
	IFNZRO Opcode = 18 // Pop, jump if non-zero: IFNZRO <addr>
	CALL   Opcode = 19 // Call: CALL <argc> <addr>
	TCALL  Opcode = 20 // Tail call: TCALL <argc> <slide> <addr>
	RET    Opcode = 21 // Return: RET <n>

	// ========================================================================
	// I/O
	// ========================================================================

	PRINTI Opcode = 22 // Print TOS as int, leave it
	PRINTC Opcode = 23 // Print TOS as char, leave it
	READ   Opcode = 24 // Read an int from input, push it
	LDARGS Opcode = 25 // Push command-line arguments
	STOP   Opcode = 26 // Halt
)

// OpcodeInfo provides metadata about each opcode for assembling,
// disassembling and validation.
type OpcodeInfo struct {
	Name      string // Human-readable name
	StackPop  int    // How many values popped from stack (-1 = variable)
	StackPush int    // How many values pushed to stack (-1 = variable)
	Operands  int    // Number of integer operands following the opcode
	Jump      bool   // Whether the last operand is a code address
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	CSTI: {"CSTI", 0, 1, 1, false},
	ADD:  {"ADD", 2, 1, 0, false},
	SUB:  {"SUB", 2, 1, 0, false},
	MUL:  {"MUL", 2, 1, 0, false},
	DIV:  {"DIV", 2, 1, 0, false},
	MOD:  {"MOD", 2, 1, 0, false},

	EQ:  {"EQ", 2, 1, 0, false},
	LT:  {"LT", 2, 1, 0, false},
	NOT: {"NOT", 1, 1, 0, false},

	DUP:   {"DUP", 1, 2, 0, false},
	SWAP:  {"SWAP", 2, 2, 0, false},
	LDI:   {"LDI", 1, 1, 0, false},
	STI:   {"STI", 2, 1, 0, false},
	GETBP: {"GETBP", 0, 1, 0, false},
	GETSP: {"GETSP", 0, 1, 0, false},
	INCSP: {"INCSP", -1, -1, 1, false},

	GOTO:   {"GOTO", 0, 0, 1, true},
	IFZERO: {"IFZERO", 1, 0, 1, true},
	IFNZRO: {"IFNZRO", 1, 0, 1, true},
	CALL:   {"CALL", -1, -1, 2, true},
	TCALL:  {"TCALL", -1, -1, 3, true},
	RET:    {"RET", -1, -1, 1, false},

	PRINTI: {"PRINTI", 1, 1, 0, false},
	PRINTC: {"PRINTC", 1, 1, 0, false},
	READ:   {"READ", 0, 1, 0, false},
	LDARGS: {"LDARGS", 0, -1, 0, false},
	STOP:   {"STOP", 0, 0, 0, false},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", int(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Operands returns the number of operands for this opcode.
func (op Opcode) Operands() int {
	return GetOpcodeInfo(op).Operands
}

// Width returns the number of code cells an instruction occupies.
func (op Opcode) Width() int {
	return 1 + op.Operands()
}

// IsJump returns true if the last operand of this opcode is a code address.
func (op Opcode) IsJump() bool {
	return GetOpcodeInfo(op).Jump
}

// AllOpcodes returns all defined opcodes in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := CSTI; op <= STOP; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeByName returns the opcode with the given mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	for op, info := range opcodeInfoTable {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}
