package visitor

import (
	"time"

	"github.com/lk2023060901/danmu-garden-scene/pkg/metrics"
)

// Format 抽象了“区域树 <-> 字节序列”的编解码能力。
type Format interface {
	// Name 返回格式名称，同时作为指标的 format 标签。
	Name() string

	// Marshal 将以 root 为根的区域树编码为字节序列。
	Marshal(root *Region) ([]byte, error)

	// Unmarshal 将字节序列解码为区域树，失败时不返回部分结果。
	Unmarshal(data []byte) (*Region, error)
}

// BinaryFormat 是确定性的二进制存档格式。
type BinaryFormat struct {
	opts *options
}

var _ Format = (*BinaryFormat)(nil)

func NewBinaryFormat(opts ...Option) *BinaryFormat {
	return &BinaryFormat{opts: buildOptions(opts)}
}

func (f *BinaryFormat) Name() string {
	return metrics.BinaryFormatLabel
}

func (f *BinaryFormat) Marshal(root *Region) ([]byte, error) {
	return encodeBinary(root, f.opts)
}

func (f *BinaryFormat) Unmarshal(data []byte) (*Region, error) {
	return decodeBinary(data, f.opts)
}

// TextFormat 是带缩进的 JSON 文本存档格式，便于调试与比对。
type TextFormat struct {
	opts *options
}

var _ Format = (*TextFormat)(nil)

func NewTextFormat(opts ...Option) *TextFormat {
	return &TextFormat{opts: buildOptions(opts)}
}

func (f *TextFormat) Name() string {
	return metrics.TextFormatLabel
}

func (f *TextFormat) Marshal(root *Region) ([]byte, error) {
	return encodeText(root)
}

func (f *TextFormat) Unmarshal(data []byte) (*Region, error) {
	return decodeText(data, f.opts)
}

// Save 使用指定格式编码 Visitor 的整棵区域树。
func (v *Visitor) Save(format Format) ([]byte, error) {
	start := time.Now()
	data, err := format.Marshal(v.root)
	observe(metrics.SaveLabel, format.Name(), start, len(data), err)
	return data, err
}

// Load 使用指定格式解析存档，返回一个读模式的 Visitor。
func Load(format Format, data []byte) (*Visitor, error) {
	start := time.Now()
	root, err := format.Unmarshal(data)
	observe(metrics.LoadLabel, format.Name(), start, len(data), err)
	if err != nil {
		return nil, err
	}
	v := newReader(root, defaultOptions())
	switch f := format.(type) {
	case *BinaryFormat:
		v.opts = f.opts
	case *TextFormat:
		v.opts = f.opts
	}
	return v, nil
}

func observe(op, format string, start time.Time, size int, err error) {
	status := metrics.SuccessLabel
	if err != nil {
		status = metrics.FailLabel
	}
	metrics.VisitorOpTotal.WithLabelValues(op, format, status).Inc()
	if err != nil {
		return
	}
	metrics.VisitorOpLatency.WithLabelValues(op, format).Observe(time.Since(start).Seconds())
	metrics.VisitorPayloadBytes.WithLabelValues(op, format).Observe(float64(size))
}
