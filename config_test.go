package webclv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDerivationRules(t *testing.T) {
	cfg := NewConfig()

	t.Run("size parameter name", func(t *testing.T) {
		assert.Equal(t, "wcl_a_size", cfg.NameOfSizeParameter("a"))
	})

	t.Run("relocated variable field name", func(t *testing.T) {
		assert.Equal(t, "wcl_x", cfg.NameOfRelocatedVariable("x"))
	})

	t.Run("checker names are derived from suffix, space and element type", func(t *testing.T) {
		assert.Equal(t, "wcl_global_int_ptr", cfg.NameOfPointerChecker(AddressSpaceGlobal, "int"))
		assert.Equal(t, "wcl_private_float_idx", cfg.NameOfIndexChecker(AddressSpacePrivate, "float"))
	})

	t.Run("record/envelope names are distinct per address space", func(t *testing.T) {
		seen := map[string]bool{}
		for space := AddressSpacePrivate; space <= AddressSpaceGlobal; space++ {
			for _, name := range []string{
				cfg.NameOfRecordType(space),
				cfg.NameOfRecordInstance(space),
				cfg.NameOfEnvelopeField(space),
			} {
				require.False(t, seen[name], "name %q reused across address spaces", name)
				seen[name] = true
			}
		}
	})

	t.Run("every generated identifier carries the collision-proof prefix", func(t *testing.T) {
		assert.Contains(t, cfg.NameOfSizeParameter("p"), cfg.Prefix)
		assert.Contains(t, cfg.NameOfRelocatedVariable("v"), cfg.Prefix)
		assert.Contains(t, cfg.NameOfPointerChecker(AddressSpaceLocal, "uint"), cfg.Prefix)
	})

	t.Run("feature flags default the way the Open Question was resolved", func(t *testing.T) {
		assert.True(t, cfg.GetBool("rewrite.relocate_static_locals"))
		assert.True(t, cfg.GetBool("restrictor.unsafe_builtins_are_warnings"))
	})

	t.Run("unknown flag panics rather than silently defaulting", func(t *testing.T) {
		assert.Panics(t, func() { cfg.GetBool("nonexistent.flag") })
	})
}

func TestAddressSpaceString(t *testing.T) {
	assert.Equal(t, "private", AddressSpacePrivate.String())
	assert.Equal(t, "local", AddressSpaceLocal.String())
	assert.Equal(t, "constant", AddressSpaceConstant.String())
	assert.Equal(t, "global", AddressSpaceGlobal.String())
}
