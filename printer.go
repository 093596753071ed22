package webclv

import "io"

// bannerComment is the fixed first line of every validated
// translation unit, naming the stage that produced the output.
const bannerComment = "// WebCL Validator: validation stage.\n"

// Printer flushes the rewrite buffer to its sink. It guarantees the
// buffer always materializes, even for a translation unit that needed
// no checks at all, by always scheduling an insert itself rather than
// trusting the Transformer to have scheduled something: normally the
// banner comment, or (when "rewrite.emit_banner" is off) an empty
// insert that still forces the buffer to materialize.
type Printer struct {
	cfg *Config
	rw  *Rewriter
}

func NewPrinter(cfg *Config, rw *Rewriter) *Printer {
	return &Printer{cfg: cfg, rw: rw}
}

// Print writes the banner (unless disabled) followed by the rewritten
// translation unit to out.
func (p *Printer) Print(out io.Writer) error {
	lead := ""
	if p.cfg.GetBool("rewrite.emit_banner") {
		lead = bannerComment
	}
	p.rw.InsertBefore(p.rw.StartOfFile(), lead)
	_, err := out.Write(p.rw.Buffer())
	return err
}
