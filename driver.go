package webclv

import (
	"fmt"
	"io"
	"strings"
)

// ExitCode mirrors the four outcomes a run can produce, in the order
// a calling shell would want to branch on them.
type ExitCode int

const (
	ExitSuccess ExitCode = iota
	ExitFailureSetup
	ExitFailureValidation
	ExitFailureRewrite
)

// Options configures one Driver run.
type Options struct {
	// File is the source path, used only for diagnostics and the
	// non-OpenCL-kind error message.
	File string
	// ForceOpenCL mirrors the "-x cl" compiler flag: when false, the
	// input is only accepted if File ends in ".cl".
	ForceOpenCL bool
}

// Result is everything a caller needs after a run: the exit code, the
// accumulated diagnostics (even on success — warnings survive), and
// the rewritten output when the run succeeded.
type Result struct {
	Code        ExitCode
	Diagnostics []Diagnostic
	Output      []byte
}

// Driver runs the whole pipeline once per translation unit: C4, then
// C5, then, if nothing fatal was raised, C7 through C9.
type Driver struct {
	cfg      *Config
	builtins *BuiltinRegistry
}

func NewDriver(cfg *Config, builtins *BuiltinRegistry) *Driver {
	return &Driver{cfg: cfg, builtins: builtins}
}

// Run validates and instruments src, named file for diagnostics.
func (d *Driver) Run(opts Options, src []byte) Result {
	reporter := NewReporter()

	if !opts.ForceOpenCL && !strings.HasSuffix(opts.File, ".cl") {
		reporter.Fatal(Span{}, KindInput,
			"Source file '%s' isn't treated as OpenCL code. Make sure that you give the '-x cl' option or that the file has a '.cl' extension.",
			opts.File)
		return Result{Code: ExitFailureSetup, Diagnostics: reporter.Diagnostics()}
	}

	parser, err := NewParser(opts.File, src, reporter)
	if err != nil {
		reporter.Fatal(Span{}, KindSetup, "%v", err)
		return Result{Code: ExitFailureSetup, Diagnostics: reporter.Diagnostics()}
	}

	tu, err := parser.ParseTranslationUnit()
	if err != nil {
		reporter.Fatal(Span{}, KindSetup, "%v", err)
		return Result{Code: ExitFailureSetup, Diagnostics: reporter.Diagnostics()}
	}
	lines := parser.LineIndex()

	restrictor := NewRestrictor(d.cfg, d.builtins, reporter, lines)
	if err := restrictor.Run(tu); err != nil {
		reporter.Fatal(Span{}, KindAnalysis, "%v", err)
		return Result{Code: ExitFailureRewrite, Diagnostics: reporter.Diagnostics()}
	}
	if reporter.HasFatal() {
		return Result{Code: ExitFailureValidation, Diagnostics: reporter.Diagnostics()}
	}

	registry := NewRegistry()
	transformer := NewTransformer(d.cfg, registry, reporter, lines, src)
	analyser := NewAnalyser(d.cfg, d.builtins, transformer, reporter, lines)
	if err := analyser.Run(tu); err != nil {
		reporter.Fatal(Span{}, KindAnalysis, "%v", err)
		return Result{Code: ExitFailureRewrite, Diagnostics: reporter.Diagnostics()}
	}
	if reporter.HasFatal() {
		return Result{Code: ExitFailureValidation, Diagnostics: reporter.Diagnostics()}
	}

	rw := NewRewriter(src)
	if err := registry.Apply(rw); err != nil {
		reporter.Fatal(Span{}, KindRewrite, "%v", err)
		return Result{Code: ExitFailureRewrite, Diagnostics: reporter.Diagnostics()}
	}
	if err := transformer.Finish(rw); err != nil {
		reporter.Fatal(Span{}, KindRewrite, "%v", err)
		return Result{Code: ExitFailureRewrite, Diagnostics: reporter.Diagnostics()}
	}
	if reporter.HasFatal() {
		return Result{Code: ExitFailureRewrite, Diagnostics: reporter.Diagnostics()}
	}

	var out strings.Builder
	printer := NewPrinter(d.cfg, rw)
	if err := printer.Print(&out); err != nil {
		reporter.Fatal(Span{}, KindSetup, "%v", err)
		return Result{Code: ExitFailureSetup, Diagnostics: reporter.Diagnostics()}
	}

	return Result{Code: ExitSuccess, Diagnostics: reporter.Diagnostics(), Output: []byte(out.String())}
}

// WriteDiagnostics prints every diagnostic to w, one per line, in the
// same "severity: message @ location" form Diagnostic.Error renders.
func WriteDiagnostics(w io.Writer, diags []Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(w, d.Error())
	}
}
