package compressor

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/lk2023060901/danmu-garden-scene/pkg/util/hardware"
)

// DefaultMaxDecodedSize 是单次解压允许产出的最大字节数。
const DefaultMaxDecodedSize = 64 << 20

// ZstdCompressor 基于 github.com/klauspost/compress/zstd 的压缩实现。
//
// 持有独立的 encoder/decoder 实例，EncodeAll/DecodeAll 可并发调用。
type ZstdCompressor struct {
	enc        *zstd.Encoder
	dec        *zstd.Decoder
	maxDecoded uint64
}

var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor 创建一个 ZstdCompressor，默认并发度为主机 CPU 核心数。
func NewZstdCompressor() (*ZstdCompressor, error) {
	return NewZstdCompressorWithConcurrency(0)
}

// NewZstdCompressorWithConcurrency 创建一个 ZstdCompressor，并允许显式指定 zstd 的并发数。
//
// concurrency <= 0 时使用 hardware.GetCPUNum()。
func NewZstdCompressorWithConcurrency(concurrency int) (*ZstdCompressor, error) {
	return NewZstdCompressorWithLimit(concurrency, DefaultMaxDecodedSize)
}

// NewZstdCompressorWithLimit 创建一个 ZstdCompressor，单次解压的输出不超过 maxDecoded 字节。
//
// maxDecoded 为 0 时使用 DefaultMaxDecodedSize。
func NewZstdCompressorWithLimit(concurrency int, maxDecoded uint64) (*ZstdCompressor, error) {
	if maxDecoded == 0 {
		maxDecoded = DefaultMaxDecodedSize
	}
	if concurrency <= 0 {
		concurrency = hardware.GetCPUNum()
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(concurrency),
	)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(concurrency),
		zstd.WithDecoderMaxMemory(maxDecoded),
	)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ZstdCompressor{
		enc:        enc,
		dec:        dec,
		maxDecoded: maxDecoded,
	}, nil
}

func (c *ZstdCompressor) Name() string {
	return "zstd"
}

// Compress 实现 Compressor 接口。
func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

// Decompress 实现 Compressor 接口。
func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	var h zstd.Header
	if err := h.Decode(src); err == nil && h.HasFCS && h.FrameContentSize > c.maxDecoded {
		return nil, zstd.ErrDecoderSizeExceeded
	}
	return c.dec.DecodeAll(src, dst[:0])
}

// MaxDecodedSize 返回单次解压允许产出的最大字节数。
func (c *ZstdCompressor) MaxDecodedSize() uint64 {
	return c.maxDecoded
}

// Close 释放内部 encoder/decoder 持有的资源。
// 再次使用已关闭实例将返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}

var (
	sharedOnce sync.Once
	shared     *ZstdCompressor
	sharedErr  error
)

// Shared 返回进程内共享的 ZstdCompressor，用于读取未指定压缩器的压缩存档。
func Shared() (*ZstdCompressor, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = NewZstdCompressor()
	})
	return shared, sharedErr
}
