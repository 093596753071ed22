package webclv

// Transformation is one scheduled edit: a target source range and a
// method that emits the actual edits into the Rewriter. There is no
// separate priority; transformations with equal ranges apply in
// insertion order.
type Transformation interface {
	Range() Range
	Apply(rw *Rewriter) error
}

// Registry maps each AST node scheduled for an edit to the
// transformations that apply to it, preserving insertion order so
// output is deterministic, and lets a caller ask whether a node has
// already been scheduled. The Transformer does not consult Contains;
// kernel-parameter subscripts are told apart from ordinary ones by the
// Analyser's own symbol resolution.
type Registry struct {
	byNode  map[Node][]Transformation
	order   []Node
	byRange []Transformation
}

func NewRegistry() *Registry {
	return &Registry{byNode: map[Node][]Transformation{}}
}

// Add schedules t against node. A node may accumulate more than one
// transformation; transformations with equal ranges apply in the order
// they were added.
func (r *Registry) Add(node Node, t Transformation) {
	if _, ok := r.byNode[node]; !ok {
		r.order = append(r.order, node)
	}
	r.byNode[node] = append(r.byNode[node], t)
	r.byRange = append(r.byRange, t)
}

// Contains reports whether node already has at least one
// transformation scheduled against it.
func (r *Registry) Contains(node Node) bool {
	_, ok := r.byNode[node]
	return ok
}

// Apply hands every scheduled transformation to the rewriter. Edits
// whose ranges nest are applied inner-first: the sort puts a range
// before every range that contains it and otherwise orders by start
// descending (end ascending on a shared start), so an enclosing
// transformation runs after its children and reads their rewritten
// text through Rewriter.TextOf.
func (r *Registry) Apply(rw *Rewriter) error {
	ordered := make([]Transformation, len(r.byRange))
	copy(ordered, r.byRange)
	sortTransformationsInnerFirst(ordered)
	for _, t := range ordered {
		if err := t.Apply(rw); err != nil {
			return err
		}
	}
	return nil
}

func sortTransformationsInnerFirst(ts []Transformation) {
	// insertion sort: the number of scheduled transformations in one
	// translation unit is small, and the comparator's stability
	// matters more than asymptotic speed here.
	for i := 1; i < len(ts); i++ {
		j := i
		for j > 0 && rangeIsInner(ts[j].Range(), ts[j-1].Range()) {
			ts[j], ts[j-1] = ts[j-1], ts[j]
			j--
		}
	}
}

// rangeIsInner reports whether a should be applied before b, i.e. a
// nests inside b, or a simply starts later when neither contains the
// other.
func rangeIsInner(a, b Range) bool {
	if b.Contains(a) && a != b {
		return true
	}
	if a.Start != b.Start {
		return a.Start > b.Start
	}
	return a.End < b.End
}
