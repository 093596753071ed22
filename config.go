package webclv

import "fmt"

// AddressSpace is one of the four OpenCL C address space qualifiers
// the envelope partitions variables by.
type AddressSpace int

const (
	AddressSpacePrivate AddressSpace = iota
	AddressSpaceLocal
	AddressSpaceConstant
	AddressSpaceGlobal
)

func (a AddressSpace) String() string {
	return [...]string{"private", "local", "constant", "global"}[a]
}

// Config holds every synthesized identifier the transformer emits
// (record type names, field names, address-space tags, checker
// prefixes, indentation) plus the derivation rules that turn a
// variable or parameter name into its generated counterpart. The
// generated functions, relocated fields, size parameters and record
// instances carry Prefix; the record type names carry its capitalized
// "Wcl" form, and the envelope field names are plain struct members
// with no prefix.
type Config struct {
	Prefix string

	PointerSuffix string
	IndexSuffix   string

	PrivateRecordType string
	LocalRecordType   string
	ConstantRecordType string
	GlobalRecordType   string

	PrivateRecordName string
	LocalRecordName   string
	ConstantRecordName string
	GlobalRecordName   string

	PrivateField  string
	LocalField    string
	ConstantField string
	GlobalField   string

	AddressSpaceRecordType string
	AddressSpaceRecordName string

	Indentation string

	opts map[string]*cfgVal
}

// NewConfig returns the default naming scheme used throughout the
// package. The prefix is "wcl", matching every generated identifier
// to the one namespace a kernel author will never collide with by
// accident.
func NewConfig() *Config {
	c := &Config{
		Prefix:        "wcl",
		PointerSuffix: "ptr",
		IndexSuffix:   "idx",

		PrivateRecordType:  "WclPrivates",
		LocalRecordType:    "WclLocals",
		ConstantRecordType: "WclConstants",
		GlobalRecordType:   "WclGlobals",

		PrivateRecordName:  "wcl_privates",
		LocalRecordName:    "wcl_locals",
		ConstantRecordName: "wcl_constants",
		GlobalRecordName:   "wcl_globals",

		PrivateField:  "privates",
		LocalField:    "locals",
		ConstantField: "constants",
		GlobalField:   "globals",

		AddressSpaceRecordType: "WclAddressSpaces",
		AddressSpaceRecordName: "wcl_as",

		Indentation: "  ",

		opts: map[string]*cfgVal{},
	}
	c.SetBool("restrictor.unsafe_builtins_are_warnings", true)
	c.SetBool("rewrite.emit_banner", true)
	c.SetBool("rewrite.relocate_static_locals", true)
	return c
}

// NameOfAddressSpaceTag returns the address space qualifier tag
// without the language's own "__" marker.
func (c *Config) NameOfAddressSpaceTag(space AddressSpace) string {
	return space.String()
}

// NameOfRecordType returns the per-address-space record's type name.
func (c *Config) NameOfRecordType(space AddressSpace) string {
	switch space {
	case AddressSpacePrivate:
		return c.PrivateRecordType
	case AddressSpaceLocal:
		return c.LocalRecordType
	case AddressSpaceConstant:
		return c.ConstantRecordType
	case AddressSpaceGlobal:
		return c.GlobalRecordType
	default:
		panic(fmt.Sprintf("unknown address space %d", space))
	}
}

// NameOfRecordInstance returns the local variable name the kernel
// prologue declares for the per-address-space record.
func (c *Config) NameOfRecordInstance(space AddressSpace) string {
	switch space {
	case AddressSpacePrivate:
		return c.PrivateRecordName
	case AddressSpaceLocal:
		return c.LocalRecordName
	case AddressSpaceConstant:
		return c.ConstantRecordName
	case AddressSpaceGlobal:
		return c.GlobalRecordName
	default:
		panic(fmt.Sprintf("unknown address space %d", space))
	}
}

// NameOfEnvelopeField returns the envelope record's field name that
// points at the given address space's record.
func (c *Config) NameOfEnvelopeField(space AddressSpace) string {
	switch space {
	case AddressSpacePrivate:
		return c.PrivateField
	case AddressSpaceLocal:
		return c.LocalField
	case AddressSpaceConstant:
		return c.ConstantField
	case AddressSpaceGlobal:
		return c.GlobalField
	default:
		panic(fmt.Sprintf("unknown address space %d", space))
	}
}

// NameOfSizeParameter derives the injected size parameter's name for
// kernel pointer parameter p: {prefix}_{p}_size.
func (c *Config) NameOfSizeParameter(paramName string) string {
	return c.Prefix + "_" + paramName + "_size"
}

// NameOfRelocatedVariable derives the field name a relocated
// variable's every reference is rewritten to: {prefix}_{v}.
func (c *Config) NameOfRelocatedVariable(varName string) string {
	return c.Prefix + "_" + varName
}

// NameOfChecker derives the name of the checker function instantiated
// for the (kind, space, elementType) triple: kind is either "ptr" or
// "idx" (use PointerSuffix/IndexSuffix).
func (c *Config) NameOfChecker(suffix string, space AddressSpace, elementType string) string {
	return fmt.Sprintf("%s_%s_%s_%s", c.Prefix, space, elementType, suffix)
}

// NameOfPointerChecker is NameOfChecker with the pointer suffix.
func (c *Config) NameOfPointerChecker(space AddressSpace, elementType string) string {
	return c.NameOfChecker(c.PointerSuffix, space, elementType)
}

// NameOfIndexChecker is NameOfChecker with the index suffix.
func (c *Config) NameOfIndexChecker(space AddressSpace, elementType string) string {
	return c.NameOfChecker(c.IndexSuffix, space, elementType)
}

// NameOfConstantIndexChecker names the single modulus-clamp function
// shared by every constant-bounded subscript.
func (c *Config) NameOfConstantIndexChecker() string {
	return c.Prefix + "_clamp_idx"
}

func (c *Config) GetIndentation(depth int) string {
	out := ""
	for i := 0; i < depth; i++ {
		out += c.Indentation
	}
	return out
}

// --- feature toggles ---
//
// A handful of pass behaviors are switched on a per-run basis rather
// than hardcoded, the same way the grammar loader's transformation
// pipeline reads its feature flags out of a Config map instead of a
// scattering of booleans.

type cfgValType int

const (
	cfgValBool cfgValType = iota
)

type cfgVal struct {
	typ    cfgValType
	asBool bool
}

func (c *Config) SetBool(path string, v bool) {
	c.opts[path] = &cfgVal{typ: cfgValBool, asBool: v}
}

func (c *Config) GetBool(path string) bool {
	if val, ok := c.opts[path]; ok {
		return val.asBool
	}
	panic(fmt.Sprintf("bool setting %q does not exist", path))
}
