package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/microc/pkg/bytecode"
)

var log = commonlog.GetLogger("microc.compiler")

// MainFunction is the entry point called after globals are allocated.
const MainFunction = "main"

// Options controls checking and compilation.
type Options struct {
	// StrictScopes rejects a local declared twice in the same scope. By
	// default the later declaration shadows the earlier one.
	StrictScopes bool
}

// Program is a complete MicroC program: global variables and functions in
// declaration order.
type Program struct {
	globals   []*VarDecl
	funcs     []*FuncDecl
	globalIdx map[string]*VarDecl
	funcIdx   map[string]*FuncDecl
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{
		globalIdx: make(map[string]*VarDecl),
		funcIdx:   make(map[string]*FuncDecl),
	}
}

// AddVar adds a global variable.
func (p *Program) AddVar(decl *VarDecl) error {
	if _, dup := p.globalIdx[decl.Name]; dup {
		return &DeclarationError{Kind: "variable", Name: decl.Name, Reason: "duplicate global", Pos: decl.Span().Start}
	}
	p.globalIdx[decl.Name] = decl
	p.globals = append(p.globals, decl)
	return nil
}

// AddFunc adds a function.
func (p *Program) AddFunc(fn *FuncDecl) error {
	if _, dup := p.funcIdx[fn.Name]; dup {
		return &DeclarationError{Kind: "function", Name: fn.Name, Reason: "duplicate function", Pos: fn.Span().Start}
	}
	p.funcIdx[fn.Name] = fn
	p.funcs = append(p.funcs, fn)
	return nil
}

// Globals returns the global variables in declaration order.
func (p *Program) Globals() []*VarDecl { return p.globals }

// Funcs returns the functions in declaration order.
func (p *Program) Funcs() []*FuncDecl { return p.funcs }

// Global returns the global variable with the given name, or nil.
func (p *Program) Global(name string) *VarDecl { return p.globalIdx[name] }

// Func returns the function with the given name, or nil.
func (p *Program) Func(name string) *FuncDecl { return p.funcIdx[name] }

// Check type-checks every function. It stops at the first error.
func (p *Program) Check(opts Options) error {
	if err := p.checkMain(); err != nil {
		return err
	}
	env := NewTEnv(p, opts)
	for _, fn := range p.funcs {
		log.Debugf("checking %s", fn.Name)
		if err := CheckFunc(env, fn); err != nil {
			return &FuncError{Func: fn.Name, Err: err}
		}
	}
	return nil
}

// checkMain rejects a main that takes parameters. A missing main is left to
// the assembler.
func (p *Program) checkMain() error {
	if main := p.Func(MainFunction); main != nil && len(main.Params) > 0 {
		return &DeclarationError{Kind: "function", Name: MainFunction, Reason: "must not take parameters", Pos: main.Span().Start}
	}
	return nil
}

// Compile emits the whole program: global allocations, a call to main, STOP,
// then every function in declaration order. A missing main leaves its label
// unplaced, so assembly fails with *bytecode.UnresolvedLabelError.
func (p *Program) Compile() (*bytecode.Generator, error) {
	gen, _, err := p.compile()
	return gen, err
}

func (p *Program) compile() (*bytecode.Generator, *CEnv, error) {
	gen := bytecode.NewGenerator()
	env := NewCEnv(p, gen)

	if err := p.checkMain(); err != nil {
		return nil, nil, err
	}
	mainLabel := bytecode.Label(MainFunction)
	if p.Func(MainFunction) != nil {
		mainLabel, _ = env.FunctionLabel(MainFunction)
	}

	for _, g := range p.globals {
		env.DeclareGlobal(gen, g)
	}
	gen.EmitCall(0, mainLabel)
	gen.Emit(bytecode.STOP)

	for _, fn := range p.funcs {
		log.Debugf("compiling %s", fn.Name)
		if err := CompileFunc(env.NewFuncEnv(), gen, fn); err != nil {
			return nil, nil, &FuncError{Func: fn.Name, Err: err}
		}
	}
	return gen, env, nil
}

// Output is the result of a successful build.
type Output struct {
	Code         []int
	Instructions []bytecode.Instruction
	Listing      string
	Symbols      map[string]int // function name to entry address
	GlobalCells  int
}

// Build checks, compiles and assembles p. On any error no output is
// returned.
func Build(p *Program, opts Options) (*Output, error) {
	if err := p.Check(opts); err != nil {
		return nil, err
	}
	gen, env, err := p.compile()
	if err != nil {
		return nil, err
	}
	code, err := gen.ToBytecode()
	if err != nil {
		return nil, err
	}
	addrs, err := gen.Resolve()
	if err != nil {
		return nil, err
	}
	out := &Output{
		Code:         code,
		Instructions: gen.Instructions(),
		Listing:      gen.Listing(),
		Symbols:      make(map[string]int, len(p.funcs)),
		GlobalCells:  env.GlobalCells(),
	}
	for _, fn := range p.funcs {
		l, _ := env.FunctionLabel(fn.Name)
		out.Symbols[fn.Name] = addrs[l]
	}
	log.Debugf("built %d functions into %d code cells", len(p.funcs), len(code))
	return out, nil
}
