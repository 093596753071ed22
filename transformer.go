package webclv

import (
	"fmt"
	"strings"
)

// checkerKey identifies one instantiated checker function: the
// address space it guards and the element type it was instantiated
// for. Two accesses that share a checkerKey share a single generated
// function, no matter how many distinct relocated variables of that
// address space and type exist.
type checkerKey struct {
	Space AddressSpace
	Elem  string
}

// Transformer is the controller (C7). It implements AnalyserSink,
// turning each event into bookkeeping plus at most one scheduled
// Transformation (KernelFound and a repeated AddressableVariable
// schedule none), and owns the prologue/kernel-prologue text
// synthesized once the Analyser traversal is finished.
type Transformer struct {
	cfg      *Config
	reg      *Registry
	reporter *Reporter
	lines    *LineIndex
	src      []byte

	relocated    [4][]*VarDecl
	relocatedSet map[*VarDecl]bool
	fieldName    map[*VarDecl]string
	nameCount    [4]map[string]int

	checkedPtr     []checkerKey
	checkedPtrSeen map[checkerKey]bool
	checkedIdx     []checkerKey
	checkedIdxSeen map[checkerKey]bool

	kernels []*FunctionDecl
}

func NewTransformer(cfg *Config, reg *Registry, reporter *Reporter, lines *LineIndex, src []byte) *Transformer {
	t := &Transformer{
		cfg:            cfg,
		reg:            reg,
		reporter:       reporter,
		lines:          lines,
		src:            src,
		relocatedSet:   map[*VarDecl]bool{},
		fieldName:      map[*VarDecl]string{},
		checkedPtrSeen: map[checkerKey]bool{},
		checkedIdxSeen: map[checkerKey]bool{},
	}
	for i := range t.nameCount {
		t.nameCount[i] = map[string]int{}
	}
	return t
}

// ---- AnalyserSink ----

func (t *Transformer) KernelFound(fn *FunctionDecl) {
	t.kernels = append(t.kernels, fn)
}

func (t *Transformer) AddressableVariable(decl *VarDecl, removalRange Range, space AddressSpace) {
	if t.relocatedSet[decl] {
		return
	}
	t.relocatedSet[decl] = true
	t.relocated[space] = append(t.relocated[space], decl)
	t.fieldName[decl] = t.mangleField(space, decl.Name)
	t.reg.Add(decl, &removeDeclTransformation{rg: removalRange})
}

// mangleField derives a field name collision-proof within one
// address-space record: the configured {prefix}_{name} form, with a
// numeric suffix on the rare collision between two same-named locals
// declared in different functions of the same translation unit (the
// record is per-address-space, not per-function).
func (t *Transformer) mangleField(space AddressSpace, name string) string {
	base := t.cfg.NameOfRelocatedVariable(name)
	n := t.nameCount[space][base]
	t.nameCount[space][base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}

func (t *Transformer) VariableReference(ident *Identifier, decl *VarDecl, space AddressSpace, insideKernel bool) {
	field, ok := t.fieldName[decl]
	if !ok {
		return
	}
	t.reg.Add(ident, &renameTransformation{rg: ident.Range(), text: t.recordAccessExpr(insideKernel, space, field)})
}

func (t *Transformer) recordAccessExpr(insideKernel bool, space AddressSpace, field string) string {
	if insideKernel {
		return t.cfg.NameOfRecordInstance(space) + "." + field
	}
	return t.cfg.AddressSpaceRecordName + "->" + t.cfg.NameOfEnvelopeField(space) + "->" + field
}

func (t *Transformer) envelopeArgExpr(insideKernel bool) string {
	if insideKernel {
		return "&" + t.cfg.AddressSpaceRecordName
	}
	return t.cfg.AddressSpaceRecordName
}

func (t *Transformer) ArraySubscriptConstant(expr *SubscriptExpr, bound int64) {
	t.reg.Add(expr, &constantSubscriptTransformation{expr: expr, bound: bound, checker: t.cfg.NameOfConstantIndexChecker()})
}

func (t *Transformer) ArraySubscriptKernelParameter(expr *SubscriptExpr, param *ParamDecl) {
	t.reg.Add(expr, &kernelParamSubscriptTransformation{
		expr:     expr,
		sizeName: t.cfg.NameOfSizeParameter(param.Name),
		checker:  t.cfg.NameOfConstantIndexChecker(),
	})
}

func (t *Transformer) ArraySubscriptGeneral(expr *SubscriptExpr, space AddressSpace, elementType string, insideKernel bool) {
	key := checkerKey{Space: space, Elem: elementType}
	if !t.checkedIdxSeen[key] {
		t.checkedIdxSeen[key] = true
		t.checkedIdx = append(t.checkedIdx, key)
	}
	t.reg.Add(expr, &generalSubscriptTransformation{
		expr:    expr,
		checker: t.cfg.NameOfIndexChecker(space, elementType),
		envExpr: t.envelopeArgExpr(insideKernel),
	})
}

func (t *Transformer) PointerDereferenceUnary(expr *UnaryExpr, space AddressSpace, elementType string, insideKernel bool) {
	key := checkerKey{Space: space, Elem: elementType}
	if !t.checkedPtrSeen[key] {
		t.checkedPtrSeen[key] = true
		t.checkedPtr = append(t.checkedPtr, key)
	}
	t.reg.Add(expr, &unaryDerefTransformation{
		expr:    expr,
		checker: t.cfg.NameOfPointerChecker(space, elementType),
		envExpr: t.envelopeArgExpr(insideKernel),
	})
}

func (t *Transformer) PointerDereferenceArrow(expr *MemberExpr, space AddressSpace, elementType string, insideKernel bool) {
	key := checkerKey{Space: space, Elem: elementType}
	if !t.checkedPtrSeen[key] {
		t.checkedPtrSeen[key] = true
		t.checkedPtr = append(t.checkedPtr, key)
	}
	t.reg.Add(expr, &arrowDerefTransformation{
		expr:    expr,
		checker: t.cfg.NameOfPointerChecker(space, elementType),
		envExpr: t.envelopeArgExpr(insideKernel),
	})
}

func (t *Transformer) FunctionTakesEnvelope(fn *FunctionDecl) {
	t.reg.Add(fn, &functionEnvelopeParamTransformation{fn: fn, cfg: t.cfg, src: t.src})
}

func (t *Transformer) CallPassesEnvelope(call *CallExpr, insideKernel bool) {
	t.reg.Add(call, &callEnvelopeArgTransformation{call: call, envExpr: t.envelopeArgExpr(insideKernel)})
}

func (t *Transformer) KernelPointerParameter(parm *ParamDecl) {
	t.reg.Add(parm, &kernelSizeParamTransformation{parm: parm, sizeName: t.cfg.NameOfSizeParameter(parm.Name)})
}

// ---- transformations ----

type removeDeclTransformation struct{ rg Range }

func (x *removeDeclTransformation) Range() Range { return x.rg }
func (x *removeDeclTransformation) Apply(rw *Rewriter) error {
	rw.Replace(x.rg, "")
	return nil
}

type renameTransformation struct {
	rg   Range
	text string
}

func (x *renameTransformation) Range() Range { return x.rg }
func (x *renameTransformation) Apply(rw *Rewriter) error {
	rw.Replace(x.rg, x.text)
	return nil
}

type constantSubscriptTransformation struct {
	expr    *SubscriptExpr
	bound   int64
	checker string
}

func (x *constantSubscriptTransformation) Range() Range { return x.expr.Range() }
func (x *constantSubscriptTransformation) Apply(rw *Rewriter) error {
	base := rw.TextOf(x.expr.Base.Range())
	idx := rw.TextOf(x.expr.Index.Range())
	rw.Replace(x.Range(), fmt.Sprintf("%s[%s(%s, %d)]", base, x.checker, idx, x.bound))
	return nil
}

type kernelParamSubscriptTransformation struct {
	expr     *SubscriptExpr
	sizeName string
	checker  string
}

func (x *kernelParamSubscriptTransformation) Range() Range { return x.expr.Range() }
func (x *kernelParamSubscriptTransformation) Apply(rw *Rewriter) error {
	base := rw.TextOf(x.expr.Base.Range())
	idx := rw.TextOf(x.expr.Index.Range())
	rw.Replace(x.Range(), fmt.Sprintf("%s[%s(%s, %s)]", base, x.checker, idx, x.sizeName))
	return nil
}

type generalSubscriptTransformation struct {
	expr    *SubscriptExpr
	checker string
	envExpr string
}

func (x *generalSubscriptTransformation) Range() Range { return x.expr.Range() }
func (x *generalSubscriptTransformation) Apply(rw *Rewriter) error {
	base := rw.TextOf(x.expr.Base.Range())
	idx := rw.TextOf(x.expr.Index.Range())
	rw.Replace(x.Range(), fmt.Sprintf("%s[%s(%s, %s, %s)]", base, x.checker, x.envExpr, base, idx))
	return nil
}

type unaryDerefTransformation struct {
	expr    *UnaryExpr
	checker string
	envExpr string
}

func (x *unaryDerefTransformation) Range() Range { return x.expr.Range() }
func (x *unaryDerefTransformation) Apply(rw *Rewriter) error {
	operand := rw.TextOf(x.expr.Operand.Range())
	rw.Replace(x.Range(), fmt.Sprintf("*%s(%s, %s)", x.checker, x.envExpr, operand))
	return nil
}

type arrowDerefTransformation struct {
	expr    *MemberExpr
	checker string
	envExpr string
}

func (x *arrowDerefTransformation) Range() Range { return x.expr.Range() }
func (x *arrowDerefTransformation) Apply(rw *Rewriter) error {
	base := rw.TextOf(x.expr.Base.Range())
	rw.Replace(x.Range(), fmt.Sprintf("%s(%s, %s)->%s", x.checker, x.envExpr, base, x.expr.Field))
	return nil
}

// functionEnvelopeParamTransformation prepends the envelope parameter
// to a non-kernel function's declarator. It locates the opening paren
// by scanning rather than trusting whitespace conventions between the
// function name and its parameter list.
type functionEnvelopeParamTransformation struct {
	fn  *FunctionDecl
	cfg *Config
	src []byte
}

func (x *functionEnvelopeParamTransformation) Range() Range { return x.fn.Range() }
func (x *functionEnvelopeParamTransformation) Apply(rw *Rewriter) error {
	paren := indexByteFrom(x.src, x.fn.Range().Start, '(')
	if paren < 0 {
		return fmt.Errorf("webclv: could not locate parameter list of function %q", x.fn.Name)
	}
	sep := ""
	if len(x.fn.Params) > 0 {
		sep = ", "
	}
	rw.InsertAfter(paren, fmt.Sprintf("const %s *%s%s", x.cfg.AddressSpaceRecordType, x.cfg.AddressSpaceRecordName, sep))
	return nil
}

type callEnvelopeArgTransformation struct {
	call    *CallExpr
	envExpr string
}

func (x *callEnvelopeArgTransformation) Range() Range { return x.call.Range() }
func (x *callEnvelopeArgTransformation) Apply(rw *Rewriter) error {
	parts := []string{x.envExpr}
	for _, a := range x.call.Args {
		parts = append(parts, rw.TextOf(a.Range()))
	}
	rw.Replace(x.Range(), fmt.Sprintf("%s(%s)", x.call.Callee, strings.Join(parts, ", ")))
	return nil
}

type kernelSizeParamTransformation struct {
	parm     *ParamDecl
	sizeName string
}

func (x *kernelSizeParamTransformation) Range() Range { return x.parm.Range() }
func (x *kernelSizeParamTransformation) Apply(rw *Rewriter) error {
	rw.InsertAfter(x.parm.Range().End-1, fmt.Sprintf(", size_t %s", x.sizeName))
	return nil
}

func indexByteFrom(src []byte, from int, b byte) int {
	for i := from; i < len(src); i++ {
		if src[i] == b {
			return i
		}
	}
	return -1
}

// ---- prologue emission ----

// Finish schedules the file prologue and every kernel prologue
// directly against rw rather than through the Registry: these edits
// are unconditional and never nest with one another, so the
// inner-first ordering the Registry enforces for AST-derived
// transformations buys nothing here. It must run after reg.Apply and
// before the banner is inserted, so the banner's InsertBefore ends up
// first in the output (Rewriter stacks InsertBefore calls at the same
// position back-to-front).
func (t *Transformer) Finish(rw *Rewriter) error {
	rw.InsertBefore(rw.StartOfFile(), t.prologueText())
	for _, k := range t.kernels {
		if k.Body == nil {
			t.reporter.Fatal(t.lines.Span(k.Range()), KindRewrite, "kernel %q has no body to insert a prologue into", k.Name)
			return fmt.Errorf("webclv: kernel %q has no body", k.Name)
		}
		rw.InsertAfter(k.Body.Range().Start, t.kernelPrologueText(k, rw))
	}
	return nil
}

func (t *Transformer) prologueText() string {
	var b strings.Builder
	for space := AddressSpacePrivate; space <= AddressSpaceGlobal; space++ {
		b.WriteString(t.recordTypeDecl(space))
	}
	b.WriteString(t.envelopeTypeDecl())
	b.WriteString(macroBoilerplate(t.cfg))
	for _, k := range t.checkedPtr {
		fmt.Fprintf(&b, "%s_PTR_CHECKER(%s, %s, %s)\n", t.cfg.Prefix, k.Space, t.cfg.NameOfEnvelopeField(k.Space), k.Elem)
	}
	for _, k := range t.checkedIdx {
		fmt.Fprintf(&b, "%s_IDX_CHECKER(%s, %s, %s)\n", t.cfg.Prefix, k.Space, t.cfg.NameOfEnvelopeField(k.Space), k.Elem)
	}
	b.WriteString("\n")
	return b.String()
}

func (t *Transformer) recordTypeDecl(space AddressSpace) string {
	var b strings.Builder
	b.WriteString("typedef struct {\n")
	if len(t.relocated[space]) == 0 {
		fmt.Fprintf(&b, "%sint %s_unused;\n", t.cfg.GetIndentation(1), t.cfg.Prefix)
	} else {
		for _, v := range t.relocated[space] {
			fmt.Fprintf(&b, "%s%s\n", t.cfg.GetIndentation(1), fieldDeclText(v.Type, t.fieldName[v]))
		}
	}
	fmt.Fprintf(&b, "} %s;\n\n", t.cfg.NameOfRecordType(space))
	return b.String()
}

func (t *Transformer) envelopeTypeDecl() string {
	var b strings.Builder
	b.WriteString("typedef struct {\n")
	for space := AddressSpacePrivate; space <= AddressSpaceGlobal; space++ {
		fmt.Fprintf(&b, "%s%s *%s;\n", t.cfg.GetIndentation(1), t.cfg.NameOfRecordType(space), t.cfg.NameOfEnvelopeField(space))
	}
	fmt.Fprintf(&b, "} %s;\n\n", t.cfg.AddressSpaceRecordType)
	return b.String()
}

func (t *Transformer) kernelPrologueText(fn *FunctionDecl, rw *Rewriter) string {
	var b strings.Builder
	b.WriteString("\n")
	var envArgs [4]string
	for space := AddressSpacePrivate; space <= AddressSpaceGlobal; space++ {
		vars := t.relocated[space]
		if len(vars) == 0 {
			envArgs[space] = "0"
			continue
		}
		inst := t.cfg.NameOfRecordInstance(space)
		var inits []string
		for _, v := range vars {
			inits = append(inits, initializerText(v, rw))
		}
		fmt.Fprintf(&b, "%s%s %s = { %s };\n", t.cfg.GetIndentation(1), t.cfg.NameOfRecordType(space), inst, strings.Join(inits, ", "))
		envArgs[space] = "&" + inst
	}
	fmt.Fprintf(&b, "%s%s %s = { %s };\n", t.cfg.GetIndentation(1), t.cfg.AddressSpaceRecordType, t.cfg.AddressSpaceRecordName, strings.Join(envArgs[:], ", "))
	return b.String()
}

func fieldDeclText(t *TypeSpec, field string) string {
	s := t.BaseType + " "
	if t.PointerDepth > 0 {
		s += strings.Repeat("*", t.PointerDepth)
	}
	s += field
	if t.IsArray {
		s += fmt.Sprintf("[%d]", t.ArrayLen)
	}
	return s + ";"
}

// initializerText preserves a relocated variable's initializer
// byte-equivalent when it is a compile-time constant (invariant 5),
// otherwise substitutes a type-appropriate zero. Brace-enclosed
// initializer lists are conservatively treated as non-constant: this
// core does not attempt to verify every element of an aggregate
// initializer is itself constant.
func initializerText(decl *VarDecl, rw *Rewriter) string {
	if decl.Init != nil && isConstantExpr(decl.Init) {
		return rw.TextOf(decl.Init.Range())
	}
	if decl.Type.IsArray {
		return "{ 0 }"
	}
	return "0"
}

func isConstantExpr(e Expr) bool {
	switch v := e.(type) {
	case *IntLiteral, *FloatLiteral:
		return true
	case *ParenExpr:
		return isConstantExpr(v.Inner)
	case *UnaryExpr:
		switch v.Op {
		case "-", "+", "~", "!":
			return isConstantExpr(v.Operand)
		default:
			return false
		}
	case *BinaryExpr:
		return isConstantExpr(v.Left) && isConstantExpr(v.Right)
	default:
		return false
	}
}

// macroBoilerplate is always emitted, independent of which checkers a
// given translation unit actually instantiates (component design 4.6,
// prologue item 2): MIN/MAX/CLAMP helpers, the pointer- and
// index-checker macros, and wcl_clamp_idx, the single shared function
// every constant- and kernel-parameter-subscript rewrite calls into
// (NameOfConstantIndexChecker) rather than inlining its own modulus
// expression.
func macroBoilerplate(cfg *Config) string {
	p := cfg.Prefix
	return fmt.Sprintf(`#define %[1]s_MIN(a, b) ((a) < (b) ? (a) : (b))
#define %[1]s_MAX(a, b) ((a) > (b) ? (a) : (b))
#define %[1]s_CLAMP(lo, x, hi) %[1]s_MIN(%[1]s_MAX((x), (lo)), (hi))
#define %[1]s_MIN_PTR(a, b) ((a) < (b) ? (a) : (b))
#define %[1]s_MAX_PTR(a, b) ((a) > (b) ? (a) : (b))
#define %[1]s_MIN_IDX(a, b) %[1]s_MIN(a, b)
#define %[1]s_MAX_IDX(a, b) %[1]s_MAX(a, b)

#define %[1]s_PTR_CHECKER(addrspace, field, type) \
  static inline type *%[1]s_##addrspace##_##type##_ptr(%[2]s *%[3]s, type *%[1]s_ptr) { \
    type *%[1]s_lo = (type *)%[3]s->field; \
    type *%[1]s_hi = %[1]s_lo + 1; \
    return %[1]s_MIN_PTR(%[1]s_MAX_PTR(%[1]s_ptr, %[1]s_lo), %[1]s_hi - 1); \
  }

#define %[1]s_IDX_CHECKER(addrspace, field, type) \
  static inline int %[1]s_##addrspace##_##type##_idx(%[2]s *%[3]s, type *%[1]s_base, int %[1]s_idx) { \
    type *%[1]s_lo = (type *)%[3]s->field; \
    type *%[1]s_hi = %[1]s_lo + 1; \
    type *%[1]s_p = %[1]s_MIN_PTR(%[1]s_MAX_PTR(%[1]s_base + %[1]s_idx, %[1]s_lo), %[1]s_hi - 1); \
    return (int)(%[1]s_p - %[1]s_base); \
  }

static inline int %[1]s_clamp_idx(int idx, int limit) {
  return limit == 0 ? 0 : idx %% limit;
}

`, p, cfg.AddressSpaceRecordType, cfg.AddressSpaceRecordName)
}
