package webclv

// AnalyserSink receives every event the Analyser discovers, in source
// traversal order (pre-order, left-to-right). The Transformer is the
// only implementation in this package; the interface exists so the
// two passes stay decoupled the way the Analyser and Transformer
// components are described as separate collaborators.
type AnalyserSink interface {
	KernelFound(fn *FunctionDecl)
	AddressableVariable(decl *VarDecl, removalRange Range, space AddressSpace)
	ArraySubscriptConstant(expr *SubscriptExpr, bound int64)
	ArraySubscriptKernelParameter(expr *SubscriptExpr, param *ParamDecl)
	ArraySubscriptGeneral(expr *SubscriptExpr, space AddressSpace, elementType string, insideKernel bool)
	PointerDereferenceUnary(expr *UnaryExpr, space AddressSpace, elementType string, insideKernel bool)
	PointerDereferenceArrow(expr *MemberExpr, space AddressSpace, elementType string, insideKernel bool)
	FunctionTakesEnvelope(fn *FunctionDecl)
	CallPassesEnvelope(call *CallExpr, insideKernel bool)
	KernelPointerParameter(parm *ParamDecl)
	// VariableReference fires for every bare identifier expression that
	// resolves to a relocated variable: the declaration's own
	// address-of operand, a subscript's base, or a plain read. All
	// three are syntactically just an Identifier node, so one event
	// covers them; the Transformer always rewrites ident's own range
	// to "record.field", leaving any surrounding "&" or "[...]" text
	// untouched.
	VariableReference(ident *Identifier, decl *VarDecl, space AddressSpace, insideKernel bool)
}

// symbol is whichever declaration introduced a name into scope: either
// a variable or a function parameter, so subscript/dereference
// resolution doesn't need two lookup paths.
type symbol struct {
	varDecl    *VarDecl
	param      *ParamDecl
	declStmtRg Range // enclosing DeclStmt's range, for removal scheduling; zero if file-scope
	fileScope  bool
	relocated  bool
}

func (s symbol) typeSpec() *TypeSpec {
	if s.varDecl != nil {
		return s.varDecl.Type
	}
	return s.param.Type
}

// Analyser is the second read-only AST pass. It resolves every
// identifier it can to the declaration that introduced it so it can
// hand the Transformer fully-resolved events instead of making the
// Transformer re-derive address spaces and element types itself.
type Analyser struct {
	cfg      *Config
	builtins *BuiltinRegistry
	sink     AnalyserSink
	reporter *Reporter
	lines    *LineIndex

	scopes        []map[string]symbol
	envelopeFuncs map[string]bool // non-kernel, defined functions

	currentFunc      *FunctionDecl
	declRemoval      map[*VarDecl]Range
	currentAddrTaken map[string]bool
}

func NewAnalyser(cfg *Config, builtins *BuiltinRegistry, sink AnalyserSink, reporter *Reporter, lines *LineIndex) *Analyser {
	return &Analyser{
		cfg:           cfg,
		builtins:      builtins,
		sink:          sink,
		reporter:      reporter,
		lines:         lines,
		envelopeFuncs: map[string]bool{},
	}
}

func (a *Analyser) pushScope() { a.scopes = append(a.scopes, map[string]symbol{}) }
func (a *Analyser) popScope()  { a.scopes = a.scopes[:len(a.scopes)-1] }

func (a *Analyser) declare(name string, sym symbol) {
	if len(a.scopes) == 0 {
		return
	}
	a.scopes[len(a.scopes)-1][name] = sym
}

func (a *Analyser) lookup(name string) (symbol, bool) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if s, ok := a.scopes[i][name]; ok {
			return s, true
		}
	}
	return symbol{}, false
}

// addressSpaceOf resolves a declarator's effective address space: the
// explicit qualifier when present, otherwise private for function
// scope and constant for file scope (OpenCL C requires file-scope
// data to be __constant).
func addressSpaceOf(t *TypeSpec, fileScope bool) AddressSpace {
	if t.HasAddressSpace {
		return t.AddressSpace
	}
	if fileScope {
		return AddressSpaceConstant
	}
	return AddressSpacePrivate
}

// Run executes the pass, first collecting every function name that
// will need an envelope parameter (every non-kernel function defined
// in this translation unit), then performing the resolving traversal.
func (a *Analyser) Run(tu *TranslationUnit) error {
	for _, d := range tu.Decls {
		if fn, ok := d.(*FunctionDecl); ok && !fn.IsKernel && fn.Body != nil {
			a.envelopeFuncs[fn.Name] = true
		}
	}
	a.pushScope()
	err := tu.Accept(a)
	a.popScope()
	return err
}

// ---- Visitor ----

func (a *Analyser) VisitTranslationUnit(n *TranslationUnit) error {
	for _, d := range n.Decls {
		if vd, ok := d.(*VarDecl); ok {
			a.declare(vd.Name, symbol{varDecl: vd, fileScope: true, relocated: true})
			a.sink.AddressableVariable(vd, vd.Range(), addressSpaceOf(vd.Type, true))
			continue
		}
		if err := d.Accept(a); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyser) VisitTypeSpec(n *TypeSpec) error { return nil }

func (a *Analyser) VisitParamDecl(n *ParamDecl) error {
	a.declare(n.Name, symbol{param: n})
	if a.currentFunc != nil && a.currentFunc.IsKernel && n.Type.PointerDepth > 0 {
		a.sink.KernelPointerParameter(n)
	}
	return nil
}

func (a *Analyser) VisitFunctionDecl(n *FunctionDecl) error {
	prev := a.currentFunc
	a.currentFunc = n
	prevAddrTaken := a.currentAddrTaken
	a.currentAddrTaken = map[string]bool{}
	if n.Body != nil {
		n.Body.Accept(&addressTakenScanner{found: a.currentAddrTaken})
	}

	if n.IsKernel {
		a.sink.KernelFound(n)
	} else if n.Body != nil {
		a.sink.FunctionTakesEnvelope(n)
	}

	a.pushScope()
	for _, p := range n.Params {
		if err := p.Accept(a); err != nil {
			a.popScope()
			a.currentFunc = prev
			a.currentAddrTaken = prevAddrTaken
			return err
		}
	}
	if n.Body != nil {
		if err := n.Body.Accept(a); err != nil {
			a.popScope()
			a.currentFunc = prev
			a.currentAddrTaken = prevAddrTaken
			return err
		}
	}
	a.popScope()
	a.currentFunc = prev
	a.currentAddrTaken = prevAddrTaken
	return nil
}

// willRelocate decides, independent of its sibling declarators in the
// same statement, whether n needs an address-space record slot.
func (a *Analyser) willRelocate(n *VarDecl) bool {
	relocateStatic := n.IsStatic && a.cfg.GetBool("rewrite.relocate_static_locals")
	return relocateStatic || n.Type.IsArray || a.currentAddrTaken[n.Name]
}

func (a *Analyser) VisitVarDecl(n *VarDecl) error {
	space := addressSpaceOf(n.Type, false)
	mustRelocate := a.willRelocate(n)
	removal := n.Range()
	if rg, ok := a.declRemoval[n]; ok {
		removal = rg
	}
	a.declare(n.Name, symbol{varDecl: n, declStmtRg: removal, relocated: mustRelocate})

	if mustRelocate {
		a.sink.AddressableVariable(n, removal, space)
	}
	return WalkVarDecl(a, n)
}

func (a *Analyser) VisitCompoundStmt(n *CompoundStmt) error {
	a.pushScope()
	err := WalkCompoundStmt(a, n)
	a.popScope()
	return err
}

// VisitDeclStmt precomputes the removal range each of n's declarators
// needs, since a declarator's own Range (parser.go) covers only its
// own text, never the shared type keyword or the statement's
// terminating semicolon. A lone or wholly-relocated declarator list
// removes the whole statement; a partially-relocated list removes
// each relocating declarator together with one adjacent comma, so the
// declarators left behind stay syntactically complete.
func (a *Analyser) VisitDeclStmt(n *DeclStmt) error {
	prev := a.declRemoval
	a.declRemoval = map[*VarDecl]Range{}

	allRelocate := len(n.Decls) > 0
	for _, d := range n.Decls {
		if !a.willRelocate(d) {
			allRelocate = false
			break
		}
	}

	switch {
	case len(n.Decls) == 1:
		if a.willRelocate(n.Decls[0]) {
			a.declRemoval[n.Decls[0]] = n.Range()
		}
	case allRelocate:
		for _, d := range n.Decls {
			a.declRemoval[d] = n.Range()
		}
	default:
		for i, d := range n.Decls {
			if !a.willRelocate(d) {
				continue
			}
			if i+1 < len(n.Decls) {
				a.declRemoval[d] = NewRange(d.Range().Start, n.Decls[i+1].Range().Start)
				continue
			}
			// the last declarator takes the comma after the nearest kept
			// declarator before it; any relocating ones in between have
			// ranges nested inside this one
			k := i - 1
			for a.willRelocate(n.Decls[k]) {
				k--
			}
			a.declRemoval[d] = NewRange(n.Decls[k].Range().End, d.Range().End)
		}
	}

	err := WalkDeclStmt(a, n)
	a.declRemoval = prev
	return err
}

func (a *Analyser) VisitExprStmt(n *ExprStmt) error       { return WalkExprStmt(a, n) }
func (a *Analyser) VisitIfStmt(n *IfStmt) error           { return WalkIfStmt(a, n) }

func (a *Analyser) VisitForStmt(n *ForStmt) error {
	a.pushScope()
	err := WalkForStmt(a, n)
	a.popScope()
	return err
}

func (a *Analyser) VisitWhileStmt(n *WhileStmt) error       { return WalkWhileStmt(a, n) }
func (a *Analyser) VisitDoStmt(n *DoStmt) error             { return WalkDoStmt(a, n) }
func (a *Analyser) VisitReturnStmt(n *ReturnStmt) error     { return WalkReturnStmt(a, n) }
func (a *Analyser) VisitBreakStmt(n *BreakStmt) error       { return nil }
func (a *Analyser) VisitContinueStmt(n *ContinueStmt) error { return nil }
func (a *Analyser) VisitGotoStmt(n *GotoStmt) error         { return nil }
func (a *Analyser) VisitLabelStmt(n *LabelStmt) error       { return WalkLabelStmt(a, n) }

func (a *Analyser) insideKernel() bool {
	return a.currentFunc != nil && a.currentFunc.IsKernel
}

func (a *Analyser) VisitIdentifier(n *Identifier) error {
	if sym, found := a.lookup(n.Name); found && sym.varDecl != nil && sym.relocated {
		a.sink.VariableReference(n, sym.varDecl, addressSpaceOf(sym.typeSpec(), sym.fileScope), a.insideKernel())
	}
	return nil
}
func (a *Analyser) VisitIntLiteral(n *IntLiteral) error     { return nil }
func (a *Analyser) VisitFloatLiteral(n *FloatLiteral) error { return nil }
func (a *Analyser) VisitParenExpr(n *ParenExpr) error       { return WalkParenExpr(a, n) }

func (a *Analyser) VisitUnaryExpr(n *UnaryExpr) error {
	if n.Op == "*" && !n.Postfix {
		if space, elemType, ok := a.resolvePointerOperand(n.Operand); ok {
			a.sink.PointerDereferenceUnary(n, space, elemType, a.insideKernel())
		}
	}
	return WalkUnaryExpr(a, n)
}

func (a *Analyser) VisitBinaryExpr(n *BinaryExpr) error { return WalkBinaryExpr(a, n) }
func (a *Analyser) VisitAssignExpr(n *AssignExpr) error { return WalkAssignExpr(a, n) }

func (a *Analyser) VisitCallExpr(n *CallExpr) error {
	if a.envelopeFuncs[n.Callee] {
		a.sink.CallPassesEnvelope(n, a.insideKernel())
	}
	return WalkCallExpr(a, n)
}

func (a *Analyser) VisitSubscriptExpr(n *SubscriptExpr) error {
	ident, isIdent := n.Base.(*Identifier)
	if !isIdent {
		a.sink.ArraySubscriptGeneral(n, AddressSpacePrivate, "int", a.insideKernel())
		return WalkSubscriptExpr(a, n)
	}
	sym, found := a.lookup(ident.Name)
	if !found {
		a.sink.ArraySubscriptGeneral(n, AddressSpacePrivate, "int", a.insideKernel())
		return WalkSubscriptExpr(a, n)
	}
	t := sym.typeSpec()
	switch {
	case sym.varDecl != nil && t.IsArray && t.ArrayLen > 0:
		a.sink.ArraySubscriptConstant(n, t.ArrayLen)
	case sym.param != nil && a.currentFunc != nil && a.currentFunc.IsKernel && t.PointerDepth > 0:
		a.sink.ArraySubscriptKernelParameter(n, sym.param)
	default:
		a.sink.ArraySubscriptGeneral(n, addressSpaceOf(t, sym.fileScope), t.ElementTypeName(), a.insideKernel())
	}
	return WalkSubscriptExpr(a, n)
}

func (a *Analyser) VisitMemberExpr(n *MemberExpr) error {
	if n.Arrow {
		if space, elemType, ok := a.resolvePointerOperand(n.Base); ok {
			a.sink.PointerDereferenceArrow(n, space, elemType, a.insideKernel())
		}
	}
	return WalkMemberExpr(a, n)
}

func (a *Analyser) VisitCastExpr(n *CastExpr) error             { return WalkCastExpr(a, n) }
func (a *Analyser) VisitConditionalExpr(n *ConditionalExpr) error { return WalkConditionalExpr(a, n) }

// resolvePointerOperand resolves expr (the pointer being dereferenced
// or the base of an arrow access) to the address space and element
// type a checker call needs. Only plain identifiers are resolved;
// for any other operand (a parenthesized or arithmetic pointer
// expression, or the result of another dereference) it reports false,
// and that dereference gets no checker call.
func (a *Analyser) resolvePointerOperand(expr Expr) (AddressSpace, string, bool) {
	ident, ok := expr.(*Identifier)
	if !ok {
		return 0, "", false
	}
	sym, found := a.lookup(ident.Name)
	if !found {
		return 0, "", false
	}
	t := sym.typeSpec()
	if t.PointerDepth == 0 {
		return 0, "", false
	}
	return addressSpaceOf(t, sym.fileScope), t.ElementTypeName(), true
}

// addressTakenScanner is a throwaway Visitor that finds every name
// appearing as the operand of "&" within one function body, run
// before the Analyser's real traversal of that body. Two-phase
// discipline this way: a variable's relocation decision is complete
// before the Analyser emits any event that depends on it, even when
// the address-of expression appears lexically after another use of
// the same variable.
type addressTakenScanner struct{ found map[string]bool }

func (s *addressTakenScanner) VisitTranslationUnit(n *TranslationUnit) error { return nil }
func (s *addressTakenScanner) VisitFunctionDecl(n *FunctionDecl) error       { return nil }
func (s *addressTakenScanner) VisitParamDecl(n *ParamDecl) error             { return nil }
func (s *addressTakenScanner) VisitTypeSpec(n *TypeSpec) error               { return nil }
func (s *addressTakenScanner) VisitVarDecl(n *VarDecl) error                 { return WalkVarDecl(s, n) }
func (s *addressTakenScanner) VisitCompoundStmt(n *CompoundStmt) error       { return WalkCompoundStmt(s, n) }
func (s *addressTakenScanner) VisitDeclStmt(n *DeclStmt) error               { return WalkDeclStmt(s, n) }
func (s *addressTakenScanner) VisitExprStmt(n *ExprStmt) error               { return WalkExprStmt(s, n) }
func (s *addressTakenScanner) VisitIfStmt(n *IfStmt) error                   { return WalkIfStmt(s, n) }
func (s *addressTakenScanner) VisitForStmt(n *ForStmt) error                 { return WalkForStmt(s, n) }
func (s *addressTakenScanner) VisitWhileStmt(n *WhileStmt) error             { return WalkWhileStmt(s, n) }
func (s *addressTakenScanner) VisitDoStmt(n *DoStmt) error                   { return WalkDoStmt(s, n) }
func (s *addressTakenScanner) VisitReturnStmt(n *ReturnStmt) error           { return WalkReturnStmt(s, n) }
func (s *addressTakenScanner) VisitBreakStmt(n *BreakStmt) error             { return nil }
func (s *addressTakenScanner) VisitContinueStmt(n *ContinueStmt) error       { return nil }
func (s *addressTakenScanner) VisitGotoStmt(n *GotoStmt) error               { return nil }
func (s *addressTakenScanner) VisitLabelStmt(n *LabelStmt) error             { return WalkLabelStmt(s, n) }
func (s *addressTakenScanner) VisitIdentifier(n *Identifier) error           { return nil }
func (s *addressTakenScanner) VisitIntLiteral(n *IntLiteral) error           { return nil }
func (s *addressTakenScanner) VisitFloatLiteral(n *FloatLiteral) error       { return nil }
func (s *addressTakenScanner) VisitParenExpr(n *ParenExpr) error             { return WalkParenExpr(s, n) }
func (s *addressTakenScanner) VisitBinaryExpr(n *BinaryExpr) error           { return WalkBinaryExpr(s, n) }
func (s *addressTakenScanner) VisitAssignExpr(n *AssignExpr) error           { return WalkAssignExpr(s, n) }
func (s *addressTakenScanner) VisitCallExpr(n *CallExpr) error               { return WalkCallExpr(s, n) }
func (s *addressTakenScanner) VisitSubscriptExpr(n *SubscriptExpr) error     { return WalkSubscriptExpr(s, n) }
func (s *addressTakenScanner) VisitMemberExpr(n *MemberExpr) error           { return WalkMemberExpr(s, n) }
func (s *addressTakenScanner) VisitCastExpr(n *CastExpr) error               { return WalkCastExpr(s, n) }
func (s *addressTakenScanner) VisitConditionalExpr(n *ConditionalExpr) error { return WalkConditionalExpr(s, n) }

func (s *addressTakenScanner) VisitUnaryExpr(n *UnaryExpr) error {
	if n.Op == "&" {
		if ident, ok := n.Operand.(*Identifier); ok {
			s.found[ident.Name] = true
		}
	}
	return WalkUnaryExpr(s, n)
}
