package webclv

import "strings"

// vectorWidths are the widths OpenCL C vector types come in. A "#"
// hole in a builtin pattern is expanded across all of them before the
// pattern is stored, so "vload#" becomes "vload2", "vload3", ...,
// "vload16".
var vectorWidths = []string{"2", "3", "4", "8", "16"}

// BuiltinRegistry classifies OpenCL builtin function names into three
// disjoint buckets: unsafe (allowed, but warned about because the
// runtime can't verify their memory safety from the signature alone),
// unsupported (rejected outright because the core can't instrument
// what they touch), and neutral (everything else).
type BuiltinRegistry struct {
	unsafeMath   map[string]struct{}
	unsafeVector map[string]struct{}
	unsafeAtomic map[string]struct{}
	unsupported  map[string]struct{}
}

var unsafeMathPatterns = []string{
	"fract", "frexp", "lgamma_r", "modf", "remquo", "sincos",
}

var unsafeVectorPatterns = []string{
	"vload#", "vload_half", "vload_half#", "vloada_half#",
	"vstore#", "vstore_half", "vstore_half#", "vstorea_#",
	"vstore_half_rte", "vstore_half_rtz", "vstore_half_rtp", "vstore_half_rtn",
	"vstore_half#_rte", "vstore_half#_rtz", "vstore_half#_rtp", "vstore_half#_rtn",
	"vstorea_half_rte", "vstorea_half_rtz", "vstorea_half_rtp", "vstorea_half_rtn",
	"vstorea_half#_rte", "vstorea_half#_rtz", "vstorea_half#_rtp", "vstorea_half#_rtn",
}

var unsafeAtomicPatterns = []string{
	"atomic_add", "atomic_sub",
	"atomic_inc", "atomic_dec",
	"atomic_xchg", "atomic_cmpxchg",
	"atomic_min", "atomic_max",
	"atomic_and", "atomic_or", "atomic_xor",
}

var unsupportedPatterns = []string{
	"async_work_group_copy", "async_work_group_strided_copy",
	"wait_group_events", "prefetch",
}

func NewBuiltinRegistry() *BuiltinRegistry {
	return &BuiltinRegistry{
		unsafeMath:   expandPatterns(unsafeMathPatterns),
		unsafeVector: expandPatterns(unsafeVectorPatterns),
		unsafeAtomic: expandPatterns(unsafeAtomicPatterns),
		unsupported:  expandPatterns(unsupportedPatterns),
	}
}

func expandPatterns(patterns []string) map[string]struct{} {
	names := map[string]struct{}{}
	for _, pattern := range patterns {
		hash := strings.LastIndexByte(pattern, '#')
		if hash < 0 {
			names[pattern] = struct{}{}
			continue
		}
		for _, width := range vectorWidths {
			names[pattern[:hash]+width+pattern[hash+1:]] = struct{}{}
		}
	}
	return names
}

// IsUnsafe reports whether calling name passes the safety burden to
// the runtime environment: the call is left untouched but the
// Restrictor emits a warning at the call site.
func (b *BuiltinRegistry) IsUnsafe(name string) bool {
	_, math := b.unsafeMath[name]
	_, vector := b.unsafeVector[name]
	_, atomic := b.unsafeAtomic[name]
	return math || vector || atomic
}

// IsUnsupported reports whether calling name is a fatal validation
// error: the core has no instrumentation strategy for it.
func (b *BuiltinRegistry) IsUnsupported(name string) bool {
	_, ok := b.unsupported[name]
	return ok
}
