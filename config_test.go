package purfectgfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 320, opts.StorageLimitMB)
	assert.Equal(t, int64(320)*1024*1024, opts.StorageLimitBytes())
	assert.Equal(t, EdgeClamp, opts.ResolveEdgePolicy())
	assert.False(t, opts.DisableAnimation)
}

func TestResolveEdgePolicy(t *testing.T) {
	assert.Equal(t, EdgeRepeat, Options{EdgePolicy: "repeat"}.ResolveEdgePolicy())
	assert.Equal(t, EdgeMirror, Options{EdgePolicy: "mirror"}.ResolveEdgePolicy())
	assert.Equal(t, EdgeClamp, Options{EdgePolicy: "clamp"}.ResolveEdgePolicy())
	assert.Equal(t, EdgeClamp, Options{EdgePolicy: "bogus"}.ResolveEdgePolicy())
}
