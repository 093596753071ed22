package webclv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriterInsertOrdering(t *testing.T) {
	t.Run("repeated InsertBefore at one offset stacks most-recent-first", func(t *testing.T) {
		rw := NewRewriter([]byte("xyz"))
		rw.InsertBefore(0, "A")
		rw.InsertBefore(0, "B")
		assert.Equal(t, "BAxyz", string(rw.Buffer()))
	})

	t.Run("repeated InsertAfter at one offset stacks in call order", func(t *testing.T) {
		rw := NewRewriter([]byte("xyz"))
		rw.InsertAfter(0, "A")
		rw.InsertAfter(0, "B")
		assert.Equal(t, "xAByz", string(rw.Buffer()))
	})

	t.Run("InsertBefore and InsertAfter at the same offset don't interfere", func(t *testing.T) {
		rw := NewRewriter([]byte("xyz"))
		rw.InsertBefore(1, "<")
		rw.InsertAfter(1, ">")
		assert.Equal(t, "x<y>z", string(rw.Buffer()))
	})
}

func TestRewriterReplace(t *testing.T) {
	t.Run("replace a range with new text", func(t *testing.T) {
		rw := NewRewriter([]byte("a[i]=1;"))
		rw.Replace(NewRange(0, 4), "a[wcl_idx(e, a, i)]")
		assert.Equal(t, "a[wcl_idx(e, a, i)]=1;", string(rw.Buffer()))
	})

	t.Run("TextOf composes an inner replacement into an outer read", func(t *testing.T) {
		// Mirrors how generalSubscriptTransformation builds its
		// replacement text from rw.TextOf(base) and rw.TextOf(index):
		// an inner rewrite (here, the index) is applied first, and the
		// outer transformation reads the already-rewritten text.
		rw := NewRewriter([]byte("a[i]=b[j];"))
		index := NewRange(2, 3) // "i"
		rw.Replace(index, "wcl_idx(e, a, i)")
		whole := NewRange(0, 4) // "a[i]"
		assert.Equal(t, "a[wcl_idx(e, a, i)]", rw.TextOf(whole))
		// the second subscript, untouched, still reads as-is
		assert.Equal(t, "j", rw.TextOf(NewRange(7, 8)))
	})

	t.Run("TextOf embeds a same-start child rename instead of dropping it", func(t *testing.T) {
		// "a" is both the whole identifier TextOf is asked for and the
		// base of the enclosing "a[i]" subscript: its own rename range
		// starts where the subscript's range starts, the exact collision
		// a relocated variable's base produces.
		rw := NewRewriter([]byte("a[i]=1;"))
		ident := NewRange(0, 1) // "a"
		rw.Replace(ident, "wcl_privates.wcl_a")
		assert.Equal(t, "wcl_privates.wcl_a", rw.TextOf(ident))

		whole := NewRange(0, 4) // "a[i]"
		rw.Replace(whole, "wcl_privates.wcl_a[wcl_clamp_idx(i, 4)]")
		assert.Equal(t, "wcl_privates.wcl_a[wcl_clamp_idx(i, 4)]=1;", string(rw.Buffer()))
	})

	t.Run("TextOf skips a subsumed same-start entry without stalling later ones", func(t *testing.T) {
		// Two same-start ties back to back: "a[i]" subsumes "a", then
		// "b[j]" follows later in the buffer and must still be applied.
		rw := NewRewriter([]byte("a[i]+b[j];"))
		rw.Replace(NewRange(0, 1), "SHOULD_NOT_APPEAR")
		rw.Replace(NewRange(0, 4), "A")
		rw.Replace(NewRange(5, 9), "B")
		assert.Equal(t, "A+B;", string(rw.Buffer()))
	})
}

func TestRewriterPrintsUnmodifiedSourceWhenNoEditsScheduled(t *testing.T) {
	rw := NewRewriter([]byte("__kernel void k(){}"))
	assert.Equal(t, "__kernel void k(){}", string(rw.Buffer()))
}
