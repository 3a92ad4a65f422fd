package compiler

// ---------------------------------------------------------------------------
// TEnv: type-checking environment
// ---------------------------------------------------------------------------

// TEnv maps names to types while checking a program. Globals and functions
// are fixed at construction; locals live in a stack of scopes, innermost
// last. Every PushScope must be paired with a PopScope, normally with defer.
type TEnv struct {
	globals map[string]Type
	scopes  []map[string]Type
	funcs   map[string]*FuncDecl
	strict  bool
}

// NewTEnv builds a type environment over the program's globals and
// functions.
func NewTEnv(p *Program, opts Options) *TEnv {
	env := &TEnv{
		globals: make(map[string]Type, len(p.globals)),
		funcs:   make(map[string]*FuncDecl, len(p.funcs)),
		strict:  opts.StrictScopes,
	}
	for _, g := range p.globals {
		env.globals[g.Name] = g.Type
	}
	for _, f := range p.funcs {
		env.funcs[f.Name] = f
	}
	return env
}

// PushScope opens a new innermost scope.
func (env *TEnv) PushScope() {
	env.scopes = append(env.scopes, make(map[string]Type))
}

// PopScope discards the innermost scope.
func (env *TEnv) PopScope() {
	env.scopes = env.scopes[:len(env.scopes)-1]
}

// Depth returns the number of open local scopes.
func (env *TEnv) Depth() int { return len(env.scopes) }

// DeclareLocal adds decl to the innermost scope. A name already declared in
// the same scope is shadowed, unless the environment is strict.
func (env *TEnv) DeclareLocal(decl *VarDecl) error {
	if len(env.scopes) == 0 {
		return &InternalError{Msg: "local declaration of " + decl.Name + " outside any scope"}
	}
	scope := env.scopes[len(env.scopes)-1]
	if _, dup := scope[decl.Name]; dup && env.strict {
		return &DeclarationError{
			Kind:   "variable",
			Name:   decl.Name,
			Reason: "already declared in this scope",
			Pos:    decl.Span().Start,
		}
	}
	scope[decl.Name] = decl.Type
	return nil
}

// LookupVariable resolves name innermost scope first, then globals.
func (env *TEnv) LookupVariable(name string) (Type, error) {
	for i := len(env.scopes) - 1; i >= 0; i-- {
		if t, ok := env.scopes[i][name]; ok {
			return t, nil
		}
	}
	if t, ok := env.globals[name]; ok {
		return t, nil
	}
	return nil, &UnboundNameError{Kind: "variable", Name: name}
}

// LookupFunction resolves a function by name.
func (env *TEnv) LookupFunction(name string) (*FuncDecl, error) {
	if f, ok := env.funcs[name]; ok {
		return f, nil
	}
	return nil, &UnboundNameError{Kind: "function", Name: name}
}
