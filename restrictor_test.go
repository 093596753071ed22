package webclv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runRestrictor(t *testing.T, src string) *Reporter {
	t.Helper()
	reporter := NewReporter()
	parser, err := NewParser("test.cl", []byte(src), reporter)
	require.NoError(t, err)
	tu, err := parser.ParseTranslationUnit()
	require.NoError(t, err)

	restrictor := NewRestrictor(NewConfig(), NewBuiltinRegistry(), reporter, parser.LineIndex())
	require.NoError(t, restrictor.Run(tu))
	return reporter
}

func TestRestrictorRejectsDirectRecursion(t *testing.T) {
	reporter := runRestrictor(t, `void f(int x) { f(x); }`)
	require.True(t, reporter.HasFatal())
}

func TestRestrictorRejectsIndirectRecursion(t *testing.T) {
	reporter := runRestrictor(t, `
void a(void) { b(); }
void b(void) { a(); }
`)
	require.True(t, reporter.HasFatal())
}

func TestRestrictorAcceptsNonRecursiveCallChain(t *testing.T) {
	reporter := runRestrictor(t, `
void a(void) { }
void b(void) { a(); }
__kernel void k(void) { b(); }
`)
	require.False(t, reporter.HasFatal())
}

func TestRestrictorRejectsUnsupportedBuiltin(t *testing.T) {
	reporter := runRestrictor(t, `__kernel void k(__global int *a){ prefetch(a, 1); }`)
	require.True(t, reporter.HasFatal())
}

func TestRestrictorWarnsOnUnsafeBuiltinWithoutFailing(t *testing.T) {
	reporter := runRestrictor(t, `__kernel void k(void){ float a, b; sincos(a, &b); }`)
	require.False(t, reporter.HasFatal())
	var sawWarning bool
	for _, d := range reporter.Diagnostics() {
		if d.Kind == KindBuiltinAdvisory && d.Severity == SeverityWarning {
			sawWarning = true
		}
	}
	require.True(t, sawWarning, "expected a builtin-advisory warning for sincos")
}

func TestRestrictorCanRejectUnsafeBuiltinsOutright(t *testing.T) {
	reporter := NewReporter()
	parser, err := NewParser("test.cl", []byte(`__kernel void k(void){ float a, b; sincos(a, &b); }`), reporter)
	require.NoError(t, err)
	tu, err := parser.ParseTranslationUnit()
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.SetBool("restrictor.unsafe_builtins_are_warnings", false)
	restrictor := NewRestrictor(cfg, NewBuiltinRegistry(), reporter, parser.LineIndex())
	require.NoError(t, restrictor.Run(tu))
	require.True(t, reporter.HasFatal())
}

func TestRestrictorRejectsGoto(t *testing.T) {
	reporter := runRestrictor(t, `
void f(void) {
  int x;
  goto done;
  done: x = 1;
}
`)
	require.True(t, reporter.HasFatal())
}

func TestRestrictorRejectsFunctionPointerParameter(t *testing.T) {
	reporter := runRestrictor(t, `void f(void (*cb)(int)) { }`)
	require.True(t, reporter.HasFatal())
}

func TestRestrictorRejectsCrossAddressSpaceCast(t *testing.T) {
	reporter := runRestrictor(t, `
__kernel void k(__global int *g) {
  __local int *l = (__local int *)g;
}
`)
	require.True(t, reporter.HasFatal())
}
