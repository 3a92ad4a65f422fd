package bytecode

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func runCode(t *testing.T, code []int, input string) (string, *Result) {
	t.Helper()
	var out bytes.Buffer
	res, err := Run(context.Background(), code, Options{
		Input:  strings.NewReader(input),
		Output: &out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), res
}

func assemble(t *testing.T, build func(g *Generator)) []int {
	t.Helper()
	g := NewGenerator()
	build(g)
	code, err := g.ToBytecode()
	if err != nil {
		t.Fatalf("ToBytecode: %v", err)
	}
	return code
}

func TestVMArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		a, b int
		want string
	}{
		{"sub", SUB, 10, 3, "7 "},
		{"add", ADD, 2, 3, "5 "},
		{"mul", MUL, 6, 7, "42 "},
		{"div", DIV, 7, 2, "3 "},
		{"mod", MOD, 7, 2, "1 "},
		{"eq", EQ, 4, 4, "1 "},
		{"lt", LT, 5, 4, "0 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := []int{int(CSTI), tt.a, int(CSTI), tt.b, int(tt.op), int(PRINTI), int(STOP)}
			out, _ := runCode(t, code, "")
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestVMCallAndReturn(t *testing.T) {
	// f(x, y) prints x - y and returns; main calls f(10, 3).
	code := assemble(t, func(g *Generator) {
		f := g.FreshLabel()
		g.EmitInt(CSTI, 10)
		g.EmitInt(CSTI, 3)
		g.EmitCall(2, f)
		g.EmitInt(INCSP, -1)
		g.Emit(STOP)
		g.PlaceLabel(f)
		g.Emit(GETBP)
		g.Emit(LDI)
		g.Emit(GETBP)
		g.EmitInt(CSTI, 1)
		g.Emit(ADD)
		g.Emit(LDI)
		g.Emit(SUB)
		g.Emit(PRINTI)
		g.EmitInt(INCSP, -1)
		g.EmitInt(RET, 1)
	})

	out, res := runCode(t, code, "")
	if out != "7 " {
		t.Errorf("output = %q, want %q", out, "7 ")
	}
	if res.Depth != 0 {
		t.Errorf("depth = %d, want 0", res.Depth)
	}
}

func TestVMRead(t *testing.T) {
	code := []int{int(READ), int(READ), int(ADD), int(PRINTI), int(STOP)}
	out, _ := runCode(t, code, "20 22\n")
	if out != "42 " {
		t.Errorf("output = %q, want %q", out, "42 ")
	}
}

func TestVMIncspZeroesCells(t *testing.T) {
	code := []int{
		int(CSTI), 9, int(INCSP), -1, // leave 9 in a dead cell
		int(INCSP), 1, int(PRINTI), int(STOP),
	}
	out, _ := runCode(t, code, "")
	if out != "0 " {
		t.Errorf("output = %q, want %q", out, "0 ")
	}
}

func TestVMFaults(t *testing.T) {
	tests := []struct {
		name string
		code []int
	}{
		{"illegal opcode", []int{99}},
		{"underflow", []int{int(ADD)}},
		{"division by zero", []int{int(CSTI), 1, int(CSTI), 0, int(DIV)}},
		{"bad address", []int{int(CSTI), 500, int(LDI)}},
		{"run off end", []int{int(CSTI), 1}},
		{"truncated", []int{int(CSTI)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.code, Options{Output: &bytes.Buffer{}})
			var me *MachineError
			if !errors.As(err, &me) {
				t.Fatalf("expected MachineError, got %v", err)
			}
		})
	}
}

func TestVMStepLimit(t *testing.T) {
	code := []int{int(GOTO), 0}
	_, err := Run(context.Background(), code, Options{MaxSteps: 100})
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
}

func TestVMContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, []int{int(GOTO), 0}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestVMTrace(t *testing.T) {
	var trace bytes.Buffer
	_, err := Run(context.Background(), []int{int(CSTI), 1, int(STOP)}, Options{Trace: &trace, Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(trace.String(), "CSTI") || !strings.Contains(trace.String(), "STOP") {
		t.Errorf("trace missing instructions:\n%s", trace.String())
	}
}
