package visitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/danmu-garden-scene/internal/compressor"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/viper"
)

func TestOptionsFromViper(t *testing.T) {
	opts, err := OptionsFromViper(nil)
	require.NoError(t, err)
	o := buildOptions(opts)
	assert.True(t, compressor.IsNop(o.compressor))
	assert.Equal(t, DefaultMinCompressSize, o.minCompressSize)
	assert.Equal(t, DefaultMaxDepth, o.maxDepth)
	assert.Equal(t, DefaultMaxDecodedSize, o.maxDecodedSize)

	cfg := viper.New()
	cfg.Set("visitor.compress", true)
	cfg.Set("visitor.zstd-min-size", 16)
	cfg.Set("visitor.max-depth", 8)
	cfg.Set("visitor.max-decoded-size", 1<<20)
	opts, err = OptionsFromViper(cfg)
	require.NoError(t, err)
	o = buildOptions(opts)
	assert.Equal(t, "zstd", o.compressor.Name())
	assert.Equal(t, 16, o.minCompressSize)
	assert.Equal(t, 8, o.maxDepth)
	assert.Equal(t, 1<<20, o.maxDecodedSize)
	z, ok := o.compressor.(*compressor.ZstdCompressor)
	require.True(t, ok)
	assert.Equal(t, uint64(1<<20), z.MaxDecodedSize())
	z.Close()
}
