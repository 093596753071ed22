package webclv

import "sort"

// Rewriter is a thin write-only wrapper around the original source
// buffer's byte offsets, mirroring clang::Rewriter's contract: callers
// schedule inserts and replacements addressed by source range, and
// the buffer materializes lazily. Two inserts scheduled at the same
// position compose the way clang composes them: consecutive
// InsertBefore calls at one offset stack back-to-front (the most
// recent call ends up first), while consecutive InsertAfter calls
// stack front-to-back, so sequential appends read in call order.
type Rewriter struct {
	src           []byte
	insertsBefore map[int][]string
	insertsAfter  map[int][]string
	replaced      map[Range]string
}

func NewRewriter(src []byte) *Rewriter {
	return &Rewriter{
		src:           src,
		insertsBefore: map[int][]string{},
		insertsAfter:  map[int][]string{},
		replaced:      map[Range]string{},
	}
}

func (rw *Rewriter) Len() int { return len(rw.src) }

// StartOfFile is the canonical location the prologue and the banner
// comment are both inserted before.
func (rw *Rewriter) StartOfFile() int { return 0 }

func (rw *Rewriter) InsertBefore(pos int, text string) {
	rw.insertsBefore[pos] = append([]string{text}, rw.insertsBefore[pos]...)
}

func (rw *Rewriter) InsertAfter(pos int, text string) {
	rw.insertsAfter[pos] = append(rw.insertsAfter[pos], text)
}

// Replace schedules text to stand in for the original bytes in rg.
// rg must not partially overlap any range already replaced; properly
// nested ranges are fine, and expected, since the Registry applies
// the innermost transformations first.
func (rw *Rewriter) Replace(rg Range, text string) {
	rw.replaced[rg] = text
}

// TextOf returns rg's current text: the original bytes with every
// replacement already scheduled for a sub-range of rg spliced in,
// including a replacement scheduled over rg itself (the case of a
// one-token child expression, e.g. a relocated variable's own
// identifier, whose range coincides exactly with the range the caller
// is asking about). Because nested transformations are always applied
// before the transformation that encloses them, TextOf always reflects
// the latest state when an enclosing transformation calls it to
// compose its own replacement text.
//
// When two scheduled replacements share a start offset (the base of a
// subscript or dereference has the same start as the whole
// expression, but a shorter end), the wider one is always the correct
// one to splice in — it already has the narrower one's text composed
// into it, from when its own Apply ran and called TextOf over its own
// children. Sorting by start ascending, end descending makes that
// wider replacement sort first at a shared start, so the narrower one
// is skipped as already-subsumed rather than raced against it; ties
// are otherwise impossible since rw.replaced is keyed by Range.
func (rw *Rewriter) TextOf(rg Range) string {
	type repl struct {
		start, end int
		text       string
	}
	var repls []repl
	for r, text := range rw.replaced {
		if r.Start >= rg.Start && r.End <= rg.End {
			repls = append(repls, repl{r.Start, r.End, text})
		}
	}
	sort.Slice(repls, func(i, j int) bool {
		if repls[i].start != repls[j].start {
			return repls[i].start < repls[j].start
		}
		return repls[i].end > repls[j].end
	})

	var out []byte
	pos := rg.Start
	ri := 0
	for pos < rg.End {
		// Any entry whose start already fell behind pos was subsumed by
		// a wider replacement at the same start (the tie-break above
		// put the wider one first); skip it rather than let it stall ri
		// and block every later, unrelated replacement from matching.
		for ri < len(repls) && repls[ri].start < pos {
			ri++
		}
		out = append(out, joinStrings(rw.insertsBefore[pos])...)
		if ri < len(repls) && repls[ri].start == pos {
			out = append(out, repls[ri].text...)
			pos = repls[ri].end
			ri++
		} else {
			out = append(out, rw.src[pos])
			pos++
		}
		out = append(out, joinStrings(rw.insertsAfter[pos-1])...)
	}
	return string(out)
}

func joinStrings(ss []string) string {
	out := ""
	for _, s := range ss {
		out += s
	}
	return out
}

// Buffer materializes the whole file: the original source with every
// scheduled insert and replacement applied.
func (rw *Rewriter) Buffer() []byte {
	full := NewRange(0, len(rw.src))
	text := rw.TextOf(full)
	return []byte(text)
}
