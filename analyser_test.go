package webclv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink implements AnalyserSink and just counts/records every
// event so tests can assert on what the Analyser discovered without
// going through the Transformer's own bookkeeping.
type recordingSink struct {
	kernels            []string
	addressable        []string
	removalRanges      []Range
	constantSubscripts int
	kernelParamSubs    int
	generalSubs        int
	ptrDerefs          int
	arrowDerefs        int
	envelopeFuncs      []string
	envelopeCalls      int
	sizeParams         []string
	varRefs            int
}

func (s *recordingSink) KernelFound(fn *FunctionDecl) { s.kernels = append(s.kernels, fn.Name) }
func (s *recordingSink) AddressableVariable(decl *VarDecl, removalRange Range, space AddressSpace) {
	s.addressable = append(s.addressable, decl.Name)
	s.removalRanges = append(s.removalRanges, removalRange)
}
func (s *recordingSink) ArraySubscriptConstant(expr *SubscriptExpr, bound int64) { s.constantSubscripts++ }
func (s *recordingSink) ArraySubscriptKernelParameter(expr *SubscriptExpr, param *ParamDecl) {
	s.kernelParamSubs++
}
func (s *recordingSink) ArraySubscriptGeneral(expr *SubscriptExpr, space AddressSpace, elementType string, insideKernel bool) {
	s.generalSubs++
}
func (s *recordingSink) PointerDereferenceUnary(expr *UnaryExpr, space AddressSpace, elementType string, insideKernel bool) {
	s.ptrDerefs++
}
func (s *recordingSink) PointerDereferenceArrow(expr *MemberExpr, space AddressSpace, elementType string, insideKernel bool) {
	s.arrowDerefs++
}
func (s *recordingSink) FunctionTakesEnvelope(fn *FunctionDecl) {
	s.envelopeFuncs = append(s.envelopeFuncs, fn.Name)
}
func (s *recordingSink) CallPassesEnvelope(call *CallExpr, insideKernel bool) { s.envelopeCalls++ }
func (s *recordingSink) KernelPointerParameter(parm *ParamDecl) {
	s.sizeParams = append(s.sizeParams, parm.Name)
}
func (s *recordingSink) VariableReference(ident *Identifier, decl *VarDecl, space AddressSpace, insideKernel bool) {
	s.varRefs++
}

func runAnalyser(t *testing.T, src string) (*recordingSink, *Reporter) {
	t.Helper()
	reporter := NewReporter()
	parser, err := NewParser("test.cl", []byte(src), reporter)
	require.NoError(t, err)
	tu, err := parser.ParseTranslationUnit()
	require.NoError(t, err)

	sink := &recordingSink{}
	analyser := NewAnalyser(NewConfig(), NewBuiltinRegistry(), sink, reporter, parser.LineIndex())
	require.NoError(t, analyser.Run(tu))
	return sink, reporter
}

func TestAnalyserFindsKernels(t *testing.T) {
	sink, _ := runAnalyser(t, `__kernel void k(void) {}`)
	assert.Equal(t, []string{"k"}, sink.kernels)
}

func TestAnalyserAddsSizeParameterForEveryKernelPointerParam(t *testing.T) {
	sink, _ := runAnalyser(t, `__kernel void k(__global int *a, int n) {}`)
	assert.Equal(t, []string{"a"}, sink.sizeParams)
}

func TestAnalyserRelocatesAddressTakenPrivateVariable(t *testing.T) {
	sink, _ := runAnalyser(t, `
__kernel void k(void) {
  int x = 7;
  int *p = &x;
  *p = 3;
}
`)
	assert.Contains(t, sink.addressable, "x")
	assert.Equal(t, 1, sink.ptrDerefs)
}

func TestAnalyserRelocatesStaticLocal(t *testing.T) {
	sink, _ := runAnalyser(t, `
void helper(void) {
  static int counter = 0;
  counter = counter + 1;
}
`)
	assert.Contains(t, sink.addressable, "counter")
}

func TestAnalyserStaticLocalRelocationCanBeDisabled(t *testing.T) {
	reporter := NewReporter()
	parser, err := NewParser("test.cl", []byte(`
void helper(void) {
  static int counter = 0;
  counter = counter + 1;
}
`), reporter)
	require.NoError(t, err)
	tu, err := parser.ParseTranslationUnit()
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.SetBool("rewrite.relocate_static_locals", false)
	sink := &recordingSink{}
	analyser := NewAnalyser(cfg, NewBuiltinRegistry(), sink, reporter, parser.LineIndex())
	require.NoError(t, analyser.Run(tu))
	assert.NotContains(t, sink.addressable, "counter")
}

func TestAnalyserConstantBoundedSubscript(t *testing.T) {
	sink, _ := runAnalyser(t, `
__kernel void k(void) {
  int a[4];
  a[0] = 1;
}
`)
	assert.Equal(t, 1, sink.constantSubscripts)
	assert.Contains(t, sink.addressable, "a")
}

func TestAnalyserKernelParameterSubscript(t *testing.T) {
	sink, _ := runAnalyser(t, `
__kernel void k(__global int *a) {
  a[get_global_id(0)] = 1;
}
`)
	assert.Equal(t, 1, sink.kernelParamSubs)
	assert.Equal(t, 0, sink.constantSubscripts)
	assert.Equal(t, 0, sink.generalSubs)
}

func TestAnalyserPartiallyRelocatedDeclStmtOnlyRemovesTheRelocatedDeclarator(t *testing.T) {
	src := []byte(`
__kernel void k(void) {
  int a[4], b;
  a[0] = 1;
  b = 2;
}
`)
	reporter := NewReporter()
	parser, err := NewParser("test.cl", src, reporter)
	require.NoError(t, err)
	tu, err := parser.ParseTranslationUnit()
	require.NoError(t, err)

	sink := &recordingSink{}
	analyser := NewAnalyser(NewConfig(), NewBuiltinRegistry(), sink, reporter, parser.LineIndex())
	require.NoError(t, analyser.Run(tu))

	require.Equal(t, []string{"a"}, sink.addressable)
	require.Len(t, sink.removalRanges, 1)
	removed := sink.removalRanges[0].Str(src)
	assert.Contains(t, removed, "a[4]")
	assert.NotContains(t, removed, "b")
	assert.NotContains(t, removed, "int")
}

func TestAnalyserFullyRelocatedDeclStmtRemovesTheWholeStatement(t *testing.T) {
	src := []byte(`
__kernel void k(void) {
  int a[4], c[4];
  a[0] = 1;
  c[0] = 2;
}
`)
	reporter := NewReporter()
	parser, err := NewParser("test.cl", src, reporter)
	require.NoError(t, err)
	tu, err := parser.ParseTranslationUnit()
	require.NoError(t, err)

	sink := &recordingSink{}
	analyser := NewAnalyser(NewConfig(), NewBuiltinRegistry(), sink, reporter, parser.LineIndex())
	require.NoError(t, analyser.Run(tu))

	require.Len(t, sink.removalRanges, 2)
	for _, rg := range sink.removalRanges {
		removed := rg.Str(src)
		assert.Contains(t, removed, "int")
		assert.Contains(t, removed, ";")
	}
}

func TestAnalyserNonKernelFunctionGetsEnvelope(t *testing.T) {
	sink, _ := runAnalyser(t, `
void helper(__global int *a) { }
__kernel void k(__global int *a) { helper(a); }
`)
	assert.Equal(t, []string{"helper"}, sink.envelopeFuncs)
	assert.Equal(t, 1, sink.envelopeCalls)
}
