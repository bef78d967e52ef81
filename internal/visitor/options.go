package visitor

import (
	"github.com/lk2023060901/danmu-garden-scene/internal/compressor"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/viper"
)

const (
	// DefaultMaxDepth 是区域树允许的最大嵌套深度（根区域深度为 0）。
	DefaultMaxDepth = 256

	// DefaultMinCompressSize 是触发正文压缩的最小字节数。
	DefaultMinCompressSize = 1024

	// DefaultMaxDecodedSize 是压缩正文解压后允许的最大字节数。
	DefaultMaxDecodedSize = compressor.DefaultMaxDecodedSize
)

type options struct {
	compressor      compressor.Compressor
	minCompressSize int
	maxDepth        int
	maxDecodedSize  int
}

func defaultOptions() *options {
	return &options{
		compressor:      compressor.NopCompressor{},
		minCompressSize: DefaultMinCompressSize,
		maxDepth:        DefaultMaxDepth,
		maxDecodedSize:  DefaultMaxDecodedSize,
	}
}

// Option 用于定制 Visitor 的编解码行为。
type Option func(*options)

// WithCompressor 设置保存二进制存档时使用的压缩器；读取时用于解压带压缩标记的正文。
func WithCompressor(c compressor.Compressor) Option {
	return func(o *options) {
		if c == nil {
			c = compressor.NopCompressor{}
		}
		o.compressor = c
	}
}

// WithMinCompressSize 设置触发压缩的最小正文长度，小于该值的正文原样保存。
func WithMinCompressSize(n int) Option {
	return func(o *options) {
		o.minCompressSize = max(n, 0)
	}
}

// WithMaxDepth 设置区域树的最大嵌套深度。
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// WithMaxDecodedSize 设置压缩正文解压后的最大字节数，超出时按损坏数据处理。
func WithMaxDecodedSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDecodedSize = n
		}
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OptionsFromViper 读取 visitor.* 配置项：visitor.compress 打开 zstd 压缩，
// visitor.zstd-min-size、visitor.max-depth 与 visitor.max-decoded-size 覆盖对应的默认值。
func OptionsFromViper(v *viper.Config) ([]Option, error) {
	maxDecoded := v.GetInt("visitor.max-decoded-size", DefaultMaxDecodedSize)
	opts := []Option{
		WithMinCompressSize(v.GetInt("visitor.zstd-min-size", DefaultMinCompressSize)),
		WithMaxDepth(v.GetInt("visitor.max-depth", DefaultMaxDepth)),
		WithMaxDecodedSize(maxDecoded),
	}
	if v.GetBool("visitor.compress", false) {
		c, err := decompressorFor(maxDecoded)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCompressor(c))
	}
	return opts, nil
}

// decompressorFor 返回解压上限为 maxDecoded 的 zstd 实例，默认上限复用进程内共享实例。
func decompressorFor(maxDecoded int) (*compressor.ZstdCompressor, error) {
	if maxDecoded <= 0 || maxDecoded == DefaultMaxDecodedSize {
		return compressor.Shared()
	}
	return compressor.NewZstdCompressorWithLimit(0, uint64(maxDecoded))
}
