package webclv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterAlwaysMaterializesBuffer(t *testing.T) {
	rw := NewRewriter([]byte("__kernel void k(){}"))
	var out strings.Builder
	require.NoError(t, NewPrinter(NewConfig(), rw).Print(&out))
	assert.True(t, strings.HasPrefix(out.String(), bannerComment))
	assert.Contains(t, out.String(), "__kernel void k(){}")
}

func TestPrinterCanSuppressTheBanner(t *testing.T) {
	cfg := NewConfig()
	cfg.SetBool("rewrite.emit_banner", false)
	rw := NewRewriter([]byte("__kernel void k(){}"))
	var out strings.Builder
	require.NoError(t, NewPrinter(cfg, rw).Print(&out))
	assert.False(t, strings.Contains(out.String(), bannerComment))
	assert.Equal(t, "__kernel void k(){}", out.String())
}
