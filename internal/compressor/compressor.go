// Package compressor 提供存档正文的可选压缩能力。
package compressor

// Compressor 抽象了“单次压缩/解压”能力。
//
// 约定：
//   - 面向内存中的完整存档正文，不处理流式数据；
//   - 不做全局单例，调用方按需创建具体实现的实例；
//   - Compress 的输出必须能被同一实现的 Decompress 还原。
type Compressor interface {
	// Name 返回压缩算法名称，用于日志与指标。
	Name() string

	// Compress 将 src 压缩到 dst。
	//
	// dst 可以传入一个可复用的缓冲区（长度可为 0），实现可选择复用其底层容量。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 将压缩数据 src 解压到 dst。
	Decompress(dst, src []byte) (plain []byte, err error)
}

// NopCompressor 不做任何压缩/解压，直接返回输入内容。
type NopCompressor struct{}

func (NopCompressor) Name() string {
	return "none"
}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

// IsNop 判断 c 是否为空实现（nil 亦视为空实现）。
func IsNop(c Compressor) bool {
	if c == nil {
		return true
	}
	_, ok := c.(NopCompressor)
	return ok
}

var _ Compressor = NopCompressor{}
