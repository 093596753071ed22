package webclv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransformation records its own range and appends its label to a
// shared log when Apply runs, so tests can assert on application
// order without needing real AST nodes.
type fakeTransformation struct {
	rg  Range
	tag string
	log *[]string
}

func (f *fakeTransformation) Range() Range { return f.rg }
func (f *fakeTransformation) Apply(rw *Rewriter) error {
	*f.log = append(*f.log, f.tag)
	return nil
}

// fakeNode is a throwaway Node identity distinct per instance, the
// way the Registry keys transformations off pointer identity.
type fakeNode struct{ rg Range }

func (n *fakeNode) Range() Range          { return n.rg }
func (n *fakeNode) String() string        { return "fake" }
func (n *fakeNode) Accept(v Visitor) error { return nil }

func TestRegistryContains(t *testing.T) {
	reg := NewRegistry()
	n1, n2 := &fakeNode{}, &fakeNode{}
	var log []string
	assert.False(t, reg.Contains(n1))
	reg.Add(n1, &fakeTransformation{tag: "t1", log: &log})
	assert.True(t, reg.Contains(n1))
	assert.False(t, reg.Contains(n2))
}

func TestRegistryAppliesInnerTransformationsFirst(t *testing.T) {
	reg := NewRegistry()
	var log []string

	outer := &fakeNode{rg: NewRange(0, 10)}
	inner := &fakeNode{rg: NewRange(2, 4)}
	sibling := &fakeNode{rg: NewRange(5, 7)}

	// scheduled out of nesting order on purpose
	reg.Add(outer, &fakeTransformation{rg: outer.rg, tag: "outer", log: &log})
	reg.Add(sibling, &fakeTransformation{rg: sibling.rg, tag: "sibling", log: &log})
	reg.Add(inner, &fakeTransformation{rg: inner.rg, tag: "inner", log: &log})

	rw := NewRewriter(make([]byte, 10))
	require.NoError(t, reg.Apply(rw))

	require.Len(t, log, 3)
	assert.Equal(t, "outer", log[2], "the range that contains the others must apply last")
	assert.ElementsMatch(t, []string{"inner", "sibling"}, log[:2])
}

func TestRegistryPreservesInsertionOrderForSameNode(t *testing.T) {
	reg := NewRegistry()
	var log []string
	n := &fakeNode{rg: NewRange(0, 1)}
	reg.Add(n, &fakeTransformation{rg: n.rg, tag: "first", log: &log})
	reg.Add(n, &fakeTransformation{rg: n.rg, tag: "second", log: &log})

	rw := NewRewriter(make([]byte, 1))
	require.NoError(t, reg.Apply(rw))
	assert.Equal(t, []string{"first", "second"}, log)
}
