package webclv

import (
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver() *Driver {
	return NewDriver(NewConfig(), NewBuiltinRegistry())
}

// diffReport renders a readable diff between got and want, the way
// run_test.go builds its mismatch message, for use inside a require
// failure on the rare assertion that does compare full output.
func diffReport(want, got string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, got, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}

func runDriver(t *testing.T, file, src string) Result {
	t.Helper()
	return newTestDriver().Run(Options{File: file}, []byte(src))
}

func TestDriverRejectsNonOpenCLFileKind(t *testing.T) {
	res := runDriver(t, "foo.c", "int main(void) { return 0; }")
	require.Equal(t, ExitFailureSetup, res.Code)
	require.NotEmpty(t, res.Diagnostics)
	want := "Source file 'foo.c' isn't treated as OpenCL code. Make sure that you give the '-x cl' option or that the file has a '.cl' extension."
	got := res.Diagnostics[0].Message
	if got != want {
		t.Fatalf("diagnostic mismatch:\n%s", diffReport(want, got))
	}
}

func TestDriverAcceptsNonCLSuffixWhenForced(t *testing.T) {
	res := newTestDriver().Run(Options{File: "foo.c", ForceOpenCL: true}, []byte(`__kernel void k(void) {}`))
	assert.Equal(t, ExitSuccess, res.Code)
}

func TestDriverEmptyKernel(t *testing.T) {
	res := runDriver(t, "k.cl", `__kernel void k(void) {}`)
	require.Equal(t, ExitSuccess, res.Code)
	out := string(res.Output)
	assert.Contains(t, out, "__kernel void k(")
	// no memory access in the body means no (space, type) pair ever got
	// a checker instantiated; the macro definitions themselves are the
	// only appearance of "_PTR_CHECKER("/"_IDX_CHECKER(" in the output.
	assert.Equal(t, 1, strings.Count(out, "_PTR_CHECKER("))
	assert.Equal(t, 1, strings.Count(out, "_IDX_CHECKER("))
	// every record is empty, so the envelope is built from null
	// pointers rather than referring to any populated record.
	assert.Contains(t, out, "wcl_as = { 0, 0, 0, 0 }")
}

func TestDriverGlobalPointerWriteGetsBoundsChecked(t *testing.T) {
	res := runDriver(t, "k.cl", `__kernel void k(__global int *a) { a[get_global_id(0)] = 1; }`)
	require.Equal(t, ExitSuccess, res.Code, "%v", res.Diagnostics)
	out := string(res.Output)

	// the kernel gained a synthesized size parameter for its sole
	// pointer argument
	assert.Contains(t, out, "size_t")
	// the prologue declares every address-space record type (an empty
	// one holds a placeholder field) and the envelope type carrying them
	assert.Contains(t, out, "WclGlobals")
	assert.Contains(t, out, "WclAddressSpaces")
	// the subscript itself was rewritten to a checker call rather than
	// left as a raw "a[...]"
	assert.NotContains(t, out, "a[get_global_id(0)]")
	assert.Contains(t, out, "wcl_")
}

func TestDriverAddressableLocalVariableIsRelocated(t *testing.T) {
	res := runDriver(t, "k.cl", `
__kernel void k(void) {
  int x = 7;
  int *p = &x;
  *p = 3;
}
`)
	require.Equal(t, ExitSuccess, res.Code, "%v", res.Diagnostics)
	out := string(res.Output)

	// x moved into the private record rather than staying a plain
	// local, and every later mention reads through that record.
	assert.Contains(t, out, "WclPrivates")
	assert.NotContains(t, out, "int x = 7;")
	// the dereference through p was rewritten into a checker call
	assert.NotContains(t, out, "*p = 3;")
}

func TestDriverConstantBoundedSubscriptIsModuloRewritten(t *testing.T) {
	res := runDriver(t, "k.cl", `
__kernel void k(void) {
  int a[4];
  int i = 1;
  a[i] = i;
}
`)
	require.Equal(t, ExitSuccess, res.Code, "%v", res.Diagnostics)
	out := string(res.Output)
	// the modulus lives inside the shared wcl_clamp_idx function, called
	// with the literal bound, rather than inlined at the call site
	assert.Contains(t, out, "wcl_clamp_idx(int idx, int limit)")
	assert.Contains(t, out, "idx % limit")
	// "a" was relocated into the private record: the composed subscript
	// must read through "wcl_privates.wcl_a", not the deleted plain "a"
	assert.Contains(t, out, "wcl_privates.wcl_a[wcl_clamp_idx(i, 4)]")
	assert.NotContains(t, out, "a[i] = i;")
	assert.NotContains(t, out, "int a[4];")
}

func TestDriverPartiallyRelocatedDeclStmtKeepsTheOtherDeclarator(t *testing.T) {
	res := runDriver(t, "k.cl", `
__kernel void k(void) {
  int a[4], b;
  a[0] = 1;
  b = 2;
}
`)
	require.Equal(t, ExitSuccess, res.Code, "%v", res.Diagnostics)
	out := string(res.Output)
	// "a" was relocated and its declarator removed, but "b" stayed a
	// plain local: its own declaration must survive untouched.
	assert.Contains(t, out, "int b;")
	assert.Contains(t, out, "b = 2;")
	assert.NotContains(t, out, "int a[4], b;")
}

func TestDriverUnsupportedBuiltinFailsValidation(t *testing.T) {
	res := runDriver(t, "k.cl", `__kernel void k(__global int *a){ prefetch(a, 1); }`)
	require.Equal(t, ExitFailureValidation, res.Code)
	assert.Empty(t, res.Output)

	var sawFatal bool
	for _, d := range res.Diagnostics {
		if d.Severity == SeverityError || d.Severity == SeverityFatal {
			sawFatal = true
			assert.True(t, strings.Contains(d.Message, "prefetch") || d.Kind == KindBuiltinAdvisory || d.Kind == KindValidation)
		}
	}
	assert.True(t, sawFatal)
}

func TestDriverRecursionFailsValidationBeforeAnyRewrite(t *testing.T) {
	res := runDriver(t, "k.cl", `
void f(int x) { f(x); }
__kernel void k(void) { f(1); }
`)
	require.Equal(t, ExitFailureValidation, res.Code)
	assert.Empty(t, res.Output)
}

func TestDriverWritesDiagnosticsReadably(t *testing.T) {
	res := runDriver(t, "foo.c", "int main(void) { return 0; }")
	var sb strings.Builder
	WriteDiagnostics(&sb, res.Diagnostics)
	assert.Contains(t, sb.String(), "foo.c")
}
