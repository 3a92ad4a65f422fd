package compiler

import "github.com/chazu/microc/pkg/bytecode"

// ---------------------------------------------------------------------------
// CEnv: code-generation environment
// ---------------------------------------------------------------------------

// CEnv maps names to storage while compiling. Globals resolve to absolute
// store addresses and locals to offsets from the frame base. The global and
// function tables are shared by every function environment; the local scope
// stack and offset cursor belong to one function.
type CEnv struct {
	globals map[string]int
	ncells  *int // store cells used by globals so far
	funcs   map[string]bytecode.Label

	scopes []localScope
	next   int
}

// localScope records where a scope's locals begin and their offsets.
type localScope struct {
	first int
	vars  map[string]int
}

// NewCEnv creates the program-level environment and mints a fresh label for
// every function, in declaration order.
func NewCEnv(p *Program, gen *bytecode.Generator) *CEnv {
	env := &CEnv{
		globals: make(map[string]int, len(p.globals)),
		ncells:  new(int),
		funcs:   make(map[string]bytecode.Label, len(p.funcs)),
	}
	for _, f := range p.funcs {
		env.funcs[f.Name] = gen.FreshLabel()
	}
	return env
}

// NewFuncEnv returns an environment for compiling one function. It shares the
// global and function tables and starts with no locals at offset 0.
func (env *CEnv) NewFuncEnv() *CEnv {
	return &CEnv{
		globals: env.globals,
		ncells:  env.ncells,
		funcs:   env.funcs,
	}
}

// DeclareGlobal emits the allocation code for a global and records its
// address: the last cell allocated, which for a sized array is the cell
// holding the base address.
func (env *CEnv) DeclareGlobal(gen *bytecode.Generator, decl *VarDecl) {
	compileAllocation(gen, decl.Type)
	*env.ncells += decl.Type.Size()
	env.globals[decl.Name] = *env.ncells - 1
}

// GlobalCells returns the number of store cells taken by globals.
func (env *CEnv) GlobalCells() int { return *env.ncells }

// PushScope opens a scope whose locals start at the current cursor.
func (env *CEnv) PushScope() {
	env.scopes = append(env.scopes, localScope{first: env.next, vars: make(map[string]int)})
}

// PopScope closes the innermost scope, releasing its offsets.
func (env *CEnv) PopScope() {
	top := env.scopes[len(env.scopes)-1]
	env.next = top.first
	env.scopes = env.scopes[:len(env.scopes)-1]
}

// MostLocalSize returns the number of cells declared in the innermost scope.
func (env *CEnv) MostLocalSize() int {
	return env.next - env.scopes[len(env.scopes)-1].first
}

// DeclareLocal reserves cells for decl in the innermost scope and returns how
// many were reserved.
func (env *CEnv) DeclareLocal(decl *VarDecl) int {
	size := decl.Type.Size()
	env.next += size
	env.scopes[len(env.scopes)-1].vars[decl.Name] = env.next - 1
	return size
}

// CompileVariableAddress emits code pushing the address of name.
func (env *CEnv) CompileVariableAddress(gen *bytecode.Generator, name string) error {
	for i := len(env.scopes) - 1; i >= 0; i-- {
		if off, ok := env.scopes[i].vars[name]; ok {
			gen.Emit(bytecode.GETBP)
			gen.EmitInt(bytecode.CSTI, off)
			gen.Emit(bytecode.ADD)
			return nil
		}
	}
	if addr, ok := env.globals[name]; ok {
		gen.EmitInt(bytecode.CSTI, addr)
		return nil
	}
	return &UnboundNameError{Kind: "variable", Name: name}
}

// FunctionLabel returns the entry label of a declared function.
func (env *CEnv) FunctionLabel(name string) (bytecode.Label, error) {
	if l, ok := env.funcs[name]; ok {
		return l, nil
	}
	return "", &InternalError{Msg: "no label for function " + name}
}
