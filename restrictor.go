package webclv

// Restrictor is the read-only pass that rejects every construct
// outside the WebCL subset: recursion (direct or indirect), function
// pointers, calls to a builtin the registry classifies unsupported,
// goto, and pointer casts between incompatible address spaces. It
// never schedules a rewrite; it only reports through its Reporter and
// sets a fatal flag the driver checks before handing the AST to the
// Transformer.
//
// Variadic calls are not checked explicitly: the grammar has no
// ellipsis production, so a variadic call site cannot appear in a
// parsed AST in the first place.
type Restrictor struct {
	cfg      *Config
	builtins *BuiltinRegistry
	reporter *Reporter
	lines    *LineIndex

	scopes  []map[string]*TypeSpec
	callers []string
	calls   map[string]map[string]Span
}

func NewRestrictor(cfg *Config, builtins *BuiltinRegistry, reporter *Reporter, lines *LineIndex) *Restrictor {
	return &Restrictor{
		cfg:      cfg,
		builtins: builtins,
		reporter: reporter,
		lines:    lines,
		calls:    map[string]map[string]Span{},
	}
}

func (r *Restrictor) pushScope() { r.scopes = append(r.scopes, map[string]*TypeSpec{}) }
func (r *Restrictor) popScope()  { r.scopes = r.scopes[:len(r.scopes)-1] }

func (r *Restrictor) declare(name string, typ *TypeSpec) {
	if len(r.scopes) == 0 {
		return
	}
	r.scopes[len(r.scopes)-1][name] = typ
}

func (r *Restrictor) lookup(name string) *TypeSpec {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if t, ok := r.scopes[i][name]; ok {
			return t
		}
	}
	return nil
}

func (r *Restrictor) currentCaller() string {
	if len(r.callers) == 0 {
		return ""
	}
	return r.callers[len(r.callers)-1]
}

func (r *Restrictor) addEdge(callee string, span Span) {
	caller := r.currentCaller()
	if caller == "" {
		return
	}
	if r.calls[caller] == nil {
		r.calls[caller] = map[string]Span{}
	}
	if _, seen := r.calls[caller][callee]; !seen {
		r.calls[caller][callee] = span
	}
}

// Run executes the pass over the whole translation unit, finishing
// with a whole-program recursion check once every call edge has been
// collected.
func (r *Restrictor) Run(tu *TranslationUnit) error {
	r.pushScope()
	if err := tu.Accept(r); err != nil {
		return err
	}
	r.popScope()
	r.checkRecursion()
	return nil
}

func (r *Restrictor) checkRecursion() {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		for callee, span := range r.calls[name] {
			switch color[callee] {
			case gray:
				r.reporter.Error(span, KindValidation,
					"recursion is not supported: %s calls %s", name, callee)
				return true
			case white:
				if visit(callee) {
					return true
				}
			}
		}
		color[name] = black
		return false
	}
	for name := range r.calls {
		if color[name] == white {
			visit(name)
		}
	}
}

// ---- Visitor ----

func (r *Restrictor) VisitTranslationUnit(n *TranslationUnit) error {
	return WalkTranslationUnit(r, n)
}

func (r *Restrictor) VisitTypeSpec(n *TypeSpec) error { return nil }

func (r *Restrictor) VisitParamDecl(n *ParamDecl) error {
	if n.Type.IsFunctionPointer {
		r.reporter.Error(r.lines.Span(n.Range()), KindValidation,
			"function pointers are not supported: parameter %q", n.Name)
	}
	r.declare(n.Name, n.Type)
	return nil
}

func (r *Restrictor) VisitFunctionDecl(n *FunctionDecl) error {
	r.callers = append(r.callers, n.Name)
	if r.calls[n.Name] == nil {
		r.calls[n.Name] = map[string]Span{}
	}
	r.pushScope()
	for _, p := range n.Params {
		if err := p.Accept(r); err != nil {
			r.popScope()
			r.callers = r.callers[:len(r.callers)-1]
			return err
		}
	}
	if n.Body != nil {
		if err := n.Body.Accept(r); err != nil {
			r.popScope()
			r.callers = r.callers[:len(r.callers)-1]
			return err
		}
	}
	r.popScope()
	r.callers = r.callers[:len(r.callers)-1]
	return nil
}

func (r *Restrictor) VisitVarDecl(n *VarDecl) error {
	r.declare(n.Name, n.Type)
	return WalkVarDecl(r, n)
}

func (r *Restrictor) VisitCompoundStmt(n *CompoundStmt) error {
	r.pushScope()
	err := WalkCompoundStmt(r, n)
	r.popScope()
	return err
}

func (r *Restrictor) VisitDeclStmt(n *DeclStmt) error     { return WalkDeclStmt(r, n) }
func (r *Restrictor) VisitExprStmt(n *ExprStmt) error     { return WalkExprStmt(r, n) }
func (r *Restrictor) VisitIfStmt(n *IfStmt) error         { return WalkIfStmt(r, n) }

func (r *Restrictor) VisitForStmt(n *ForStmt) error {
	r.pushScope()
	err := WalkForStmt(r, n)
	r.popScope()
	return err
}

func (r *Restrictor) VisitWhileStmt(n *WhileStmt) error { return WalkWhileStmt(r, n) }
func (r *Restrictor) VisitDoStmt(n *DoStmt) error       { return WalkDoStmt(r, n) }
func (r *Restrictor) VisitReturnStmt(n *ReturnStmt) error { return WalkReturnStmt(r, n) }
func (r *Restrictor) VisitBreakStmt(n *BreakStmt) error     { return nil }
func (r *Restrictor) VisitContinueStmt(n *ContinueStmt) error { return nil }

func (r *Restrictor) VisitGotoStmt(n *GotoStmt) error {
	r.reporter.Error(r.lines.Span(n.Range()), KindValidation,
		"goto is not supported in the WebCL subset")
	return nil
}

func (r *Restrictor) VisitLabelStmt(n *LabelStmt) error { return WalkLabelStmt(r, n) }

func (r *Restrictor) VisitIdentifier(n *Identifier) error     { return nil }
func (r *Restrictor) VisitIntLiteral(n *IntLiteral) error     { return nil }
func (r *Restrictor) VisitFloatLiteral(n *FloatLiteral) error { return nil }
func (r *Restrictor) VisitParenExpr(n *ParenExpr) error       { return WalkParenExpr(r, n) }
func (r *Restrictor) VisitUnaryExpr(n *UnaryExpr) error       { return WalkUnaryExpr(r, n) }
func (r *Restrictor) VisitBinaryExpr(n *BinaryExpr) error     { return WalkBinaryExpr(r, n) }
func (r *Restrictor) VisitAssignExpr(n *AssignExpr) error     { return WalkAssignExpr(r, n) }

func (r *Restrictor) VisitCallExpr(n *CallExpr) error {
	if r.builtins.IsUnsupported(n.Callee) {
		r.reporter.Error(r.lines.Span(n.Range()), KindValidation,
			"call to unsupported builtin %q", n.Callee)
	} else if r.builtins.IsUnsafe(n.Callee) {
		if r.cfg.GetBool("restrictor.unsafe_builtins_are_warnings") {
			r.reporter.Warning(r.lines.Span(n.Range()), KindBuiltinAdvisory,
				"%q is not memory-safety checked; the argument bounds are the caller's responsibility", n.Callee)
		} else {
			r.reporter.Error(r.lines.Span(n.Range()), KindBuiltinAdvisory,
				"%q is not memory-safety checked and this build rejects unsafe builtins outright", n.Callee)
		}
	}
	r.addEdge(n.Callee, r.lines.Span(n.Range()))
	return WalkCallExpr(r, n)
}

func (r *Restrictor) VisitSubscriptExpr(n *SubscriptExpr) error { return WalkSubscriptExpr(r, n) }
func (r *Restrictor) VisitMemberExpr(n *MemberExpr) error       { return WalkMemberExpr(r, n) }

func (r *Restrictor) VisitCastExpr(n *CastExpr) error {
	if n.Type.HasAddressSpace {
		if ident, ok := n.Operand.(*Identifier); ok {
			if declType := r.lookup(ident.Name); declType != nil && declType.HasAddressSpace {
				if declType.AddressSpace != n.Type.AddressSpace {
					r.reporter.Error(r.lines.Span(n.Range()), KindValidation,
						"cast from %s to %s address space is not allowed",
						declType.AddressSpace, n.Type.AddressSpace)
				}
			}
		}
	}
	return WalkCastExpr(r, n)
}

func (r *Restrictor) VisitConditionalExpr(n *ConditionalExpr) error { return WalkConditionalExpr(r, n) }
