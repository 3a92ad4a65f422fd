// Package bytecode defines the instruction set of the MicroC stack machine,
// an assembler that turns symbolic instructions into flat integer code, the
// on-disk code formats, and a reference machine that executes the code.
//
// # Instruction Set
//
// Every instruction is an opcode cell followed by zero to three operand
// cells. Jumps and calls take a code address as their last operand:
//
//	CSTI n            push n
//	ADD SUB MUL DIV   pop b, pop a, push a op b
//	MOD EQ LT
//	NOT               replace top with 1 if it is 0, else 0
//	DUP SWAP          stack shuffles
//	LDI               replace address on top with the cell it names
//	STI               store top at the address below it, leave the value
//	GETBP GETSP       push frame base / stack top
//	INCSP n           grow the stack by n cells (shrink if negative)
//	GOTO a            jump
//	IFZERO a IFNZRO a pop and jump on zero / non-zero
//	CALL argc a       call with argc arguments on the stack
//	TCALL argc s a    tail call, sliding the arguments down s cells
//	RET n             return the top value, dropping n cells below it
//	PRINTI PRINTC     print top as int / char
//	READ LDARGS STOP  input, program arguments, halt
//
// # Assembly
//
// A Generator collects instructions and labels. ToBytecode makes two
// passes: the first assigns each label the address of the next real
// instruction, the second writes opcodes and operands, replacing label
// references by addresses. A reference to a label that was never placed is
// an *UnresolvedLabelError.
//
// # Formats
//
// The text format is the flat code as space-separated decimal integers. The
// object format prefixes canonical CBOR with the "MCBC" magic and carries
// function entry points and a source hash alongside the code.
package bytecode
