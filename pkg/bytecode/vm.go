package bytecode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultStackSize is the number of store cells available to a program.
const DefaultStackSize = 10000

// ErrStepLimit is returned when a program exceeds Options.MaxSteps.
var ErrStepLimit = errors.New("step limit exceeded")

// MachineError reports a fault while executing code.
type MachineError struct {
	PC  int
	Op  Opcode
	Msg string
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("machine fault at %d (%s): %s", e.PC, e.Op, e.Msg)
}

// Options configures a VM run.
type Options struct {
	StackSize int       // store cells; DefaultStackSize if zero
	MaxSteps  int       // instruction limit; unlimited if zero
	Input     io.Reader // source for READ; os.Stdin if nil
	Output    io.Writer // sink for PRINTI and PRINTC; os.Stdout if nil
	Args      []int     // values pushed by LDARGS
	Trace     io.Writer // if set, each step is written here
}

// Result describes a completed run.
type Result struct {
	Steps int // instructions executed
	Depth int // stack depth when STOP executed
}

// VM executes flat MicroC code on a single integer stack that doubles as
// the store. Freshly allocated cells read as zero.
type VM struct {
	opts  Options
	code  []int
	s     []int
	sp    int
	bp    int
	pc    int
	in    *bufio.Reader
	out   io.Writer
	steps int
}

// NewVM creates a machine with the given options.
func NewVM(opts Options) *VM {
	if opts.StackSize <= 0 {
		opts.StackSize = DefaultStackSize
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &VM{opts: opts}
}

// Run executes code from address 0 until STOP.
func Run(ctx context.Context, code []int, opts Options) (*Result, error) {
	return NewVM(opts).Run(ctx, code)
}

// Run executes code from address 0 until STOP, a fault, the step limit or
// cancellation of ctx.
func (vm *VM) Run(ctx context.Context, code []int) (*Result, error) {
	vm.code = code
	vm.s = make([]int, vm.opts.StackSize)
	vm.sp, vm.bp, vm.pc = -1, -999, 0
	vm.in = bufio.NewReader(vm.opts.Input)
	vm.out = vm.opts.Output
	vm.steps = 0

	for {
		if vm.steps&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if vm.opts.MaxSteps > 0 && vm.steps >= vm.opts.MaxSteps {
			return nil, ErrStepLimit
		}
		stop, err := vm.step()
		if err != nil {
			return nil, err
		}
		vm.steps++
		if stop {
			return &Result{Steps: vm.steps, Depth: vm.sp + 1}, nil
		}
	}
}

func (vm *VM) step() (bool, error) {
	at := vm.pc
	op, err := vm.fetch()
	if err != nil {
		return false, err
	}
	fault := func(format string, args ...any) error {
		return &MachineError{PC: at, Op: op, Msg: fmt.Sprintf(format, args...)}
	}
	if !op.Valid() {
		return false, fault("illegal opcode %d", int(op))
	}
	if vm.opts.Trace != nil {
		vm.trace(at, op)
	}
	need := GetOpcodeInfo(op).StackPop
	if need > 0 && vm.sp+1 < need {
		return false, fault("stack underflow")
	}

	switch op {
	case CSTI:
		n, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		return false, vm.push(at, op, n)
	case ADD, SUB, MUL, DIV, MOD, EQ, LT:
		b, a := vm.s[vm.sp], vm.s[vm.sp-1]
		vm.sp--
		var r int
		switch op {
		case ADD:
			r = a + b
		case SUB:
			r = a - b
		case MUL:
			r = a * b
		case DIV, MOD:
			if b == 0 {
				return false, fault("division by zero")
			}
			if op == DIV {
				r = a / b
			} else {
				r = a % b
			}
		case EQ:
			r = boolInt(a == b)
		case LT:
			r = boolInt(a < b)
		}
		vm.s[vm.sp] = r
	case NOT:
		vm.s[vm.sp] = boolInt(vm.s[vm.sp] == 0)
	case DUP:
		return false, vm.push(at, op, vm.s[vm.sp])
	case SWAP:
		vm.s[vm.sp], vm.s[vm.sp-1] = vm.s[vm.sp-1], vm.s[vm.sp]
	case LDI:
		addr := vm.s[vm.sp]
		if err := vm.checkAddr(at, op, addr); err != nil {
			return false, err
		}
		vm.s[vm.sp] = vm.s[addr]
	case STI:
		addr := vm.s[vm.sp-1]
		if err := vm.checkAddr(at, op, addr); err != nil {
			return false, err
		}
		vm.s[addr] = vm.s[vm.sp]
		vm.s[vm.sp-1] = vm.s[vm.sp]
		vm.sp--
	case GETBP:
		return false, vm.push(at, op, vm.bp)
	case GETSP:
		return false, vm.push(at, op, vm.sp)
	case INCSP:
		n, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		if vm.sp+n < -1 || vm.sp+n >= len(vm.s) {
			return false, fault("stack out of bounds")
		}
		for i := vm.sp + 1; i <= vm.sp+n; i++ {
			vm.s[i] = 0
		}
		vm.sp += n
	case GOTO:
		addr, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		vm.pc = addr
	case IFZERO, IFNZRO:
		addr, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		v := vm.s[vm.sp]
		vm.sp--
		if (v == 0) == (op == IFZERO) {
			vm.pc = addr
		}
	case CALL:
		argc, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		addr, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		if argc < 0 || vm.sp+1 < argc || vm.sp+2 >= len(vm.s) {
			return false, fault("bad call frame")
		}
		for i := vm.sp; i > vm.sp-argc; i-- {
			vm.s[i+2] = vm.s[i]
		}
		vm.s[vm.sp-argc+1] = vm.pc
		vm.s[vm.sp-argc+2] = vm.bp
		vm.sp += 2
		vm.bp = vm.sp + 1 - argc
		vm.pc = addr
	case TCALL:
		argc, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		pop, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		addr, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		if argc < 0 || pop < 0 || vm.sp-argc-pop < -1 {
			return false, fault("bad tail call frame")
		}
		for i := argc - 1; i >= 0; i-- {
			vm.s[vm.sp-i-pop] = vm.s[vm.sp-i]
		}
		vm.sp -= pop
		vm.bp = vm.sp + 1 - argc
		vm.pc = addr
	case RET:
		n, err := vm.operand(at, op)
		if err != nil {
			return false, err
		}
		res := vm.s[vm.sp]
		vm.sp -= n
		if vm.sp < 2 || vm.sp > len(vm.s) {
			return false, fault("return without frame")
		}
		vm.sp--
		vm.bp = vm.s[vm.sp]
		vm.sp--
		vm.pc = vm.s[vm.sp]
		vm.s[vm.sp] = res
	case PRINTI:
		fmt.Fprintf(vm.out, "%d ", vm.s[vm.sp])
	case PRINTC:
		fmt.Fprintf(vm.out, "%c", rune(vm.s[vm.sp]))
	case READ:
		var n int
		if _, err := fmt.Fscan(vm.in, &n); err != nil {
			return false, fault("read: %v", err)
		}
		return false, vm.push(at, op, n)
	case LDARGS:
		for _, a := range vm.opts.Args {
			if err := vm.push(at, op, a); err != nil {
				return false, err
			}
		}
	case STOP:
		return true, nil
	}
	return false, nil
}

func (vm *VM) fetch() (Opcode, error) {
	if vm.pc < 0 || vm.pc >= len(vm.code) {
		return 0, &MachineError{PC: vm.pc, Msg: "program counter out of range"}
	}
	op := Opcode(vm.code[vm.pc])
	vm.pc++
	return op, nil
}

func (vm *VM) operand(at int, op Opcode) (int, error) {
	if vm.pc >= len(vm.code) {
		return 0, &MachineError{PC: at, Op: op, Msg: "truncated instruction"}
	}
	n := vm.code[vm.pc]
	vm.pc++
	return n, nil
}

func (vm *VM) push(at int, op Opcode, v int) error {
	if vm.sp+1 >= len(vm.s) {
		return &MachineError{PC: at, Op: op, Msg: "stack overflow"}
	}
	vm.sp++
	vm.s[vm.sp] = v
	return nil
}

func (vm *VM) checkAddr(at int, op Opcode, addr int) error {
	if addr < 0 || addr > vm.sp {
		return &MachineError{PC: at, Op: op, Msg: fmt.Sprintf("address %d outside the stack", addr)}
	}
	return nil
}

func (vm *VM) trace(at int, op Opcode) {
	lo := vm.sp - 4
	if lo < 0 {
		lo = 0
	}
	fmt.Fprintf(vm.opts.Trace, "%5d %-7s sp=%d bp=%d %v\n", at, op, vm.sp, vm.bp, vm.s[lo:vm.sp+1])
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
