// Package visitor 实现基于区域树的对象图序列化。
//
// Visitor 在构造时确定读写模式：写模式下调用方依次开启区域、写入字段，
// 最终编码为二进制或文本存档；读模式下调用方以相同的嵌套顺序进入区域、读取字段。
// 区域名与字段名的任何不匹配都会返回错误，而不会被静默跳过。
package visitor

import (
	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

// Mode 表示 Visitor 的遍历模式。
type Mode int8

const (
	ModeWrite Mode = iota + 1
	ModeRead
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeRead:
		return "read"
	default:
		return "unknown"
	}
}

// Visitor 是一次保存或加载过程的遍历上下文，不是并发安全的。
type Visitor struct {
	mode   Mode
	root   *Region
	cursor *Region
	opts   *options
}

// NewVisitor 创建一个写模式的 Visitor。
func NewVisitor(opts ...Option) *Visitor {
	root := newRegion(RootRegionName)
	return &Visitor{
		mode:   ModeWrite,
		root:   root,
		cursor: root,
		opts:   buildOptions(opts),
	}
}

func newReader(root *Region, o *options) *Visitor {
	return &Visitor{
		mode:   ModeRead,
		root:   root,
		cursor: root,
		opts:   o,
	}
}

// LoadFromBytes 解析二进制存档，返回一个读模式的 Visitor。
// 解析失败时不会返回任何部分结果。
func LoadFromBytes(data []byte, opts ...Option) (*Visitor, error) {
	return Load(NewBinaryFormat(opts...), data)
}

// LoadFromText 解析文本存档，返回一个读模式的 Visitor。
func LoadFromText(data []byte, opts ...Option) (*Visitor, error) {
	return Load(NewTextFormat(opts...), data)
}

// SaveToBytes 将整棵区域树编码为二进制存档，与游标位置无关。
func (v *Visitor) SaveToBytes() ([]byte, error) {
	return v.Save(&BinaryFormat{opts: v.opts})
}

// SaveToText 将整棵区域树编码为带缩进的文本存档。
func (v *Visitor) SaveToText() ([]byte, error) {
	return v.Save(&TextFormat{opts: v.opts})
}

func (v *Visitor) Mode() Mode {
	return v.mode
}

func (v *Visitor) IsReading() bool {
	return v.mode == ModeRead
}

func (v *Visitor) IsWriting() bool {
	return v.mode == ModeWrite
}

// Root 返回根区域。
func (v *Visitor) Root() *Region {
	return v.root
}

// Current 返回游标所在区域。
func (v *Visitor) Current() *Region {
	return v.cursor
}

// RegionGuard 在 Close 时把游标恢复到区域的父节点，重复 Close 无副作用。
type RegionGuard struct {
	v      *Visitor
	region *Region
	closed bool
}

// Region 返回 guard 对应的区域。
func (g *RegionGuard) Region() *Region {
	return g.region
}

// Close 弹出区域，适合配合 defer 使用。
func (g *RegionGuard) Close() {
	if g == nil || g.closed {
		return
	}
	g.closed = true
	g.v.cursor = g.region.parent
}

func (v *Visitor) checkMode(expected Mode, op string) error {
	if v.mode != expected {
		return merr.WrapErrVisitorModeMismatch(expected, v.mode, op)
	}
	return nil
}

func (v *Visitor) depth() int {
	depth := 0
	for cur := v.cursor; cur.parent != nil; cur = cur.parent {
		depth++
	}
	return depth
}

// BeginRegion 在当前区域下创建名为 name 的子区域并把游标移入其中。
func (v *Visitor) BeginRegion(name string) (*RegionGuard, error) {
	if err := v.checkMode(ModeWrite, "BeginRegion"); err != nil {
		return nil, err
	}
	if depth := v.depth() + 1; depth > v.opts.maxDepth {
		return nil, merr.WrapErrParameterInvalidMsg("region %s exceeds max depth %d", name, v.opts.maxDepth)
	}
	child := newRegion(name)
	if !v.cursor.addChild(child) {
		return nil, merr.WrapErrVisitorDuplicateRegion(v.cursor.Path(), name)
	}
	v.cursor = child
	return &RegionGuard{v: v, region: child}, nil
}

// EnterRegion 把游标移入当前区域下名为 name 的子区域。
func (v *Visitor) EnterRegion(name string) (*RegionGuard, error) {
	if err := v.checkMode(ModeRead, "EnterRegion"); err != nil {
		return nil, err
	}
	child, ok := v.cursor.Child(name)
	if !ok {
		return nil, merr.WrapErrVisitorMissingRegion(v.cursor.Path(), name)
	}
	v.cursor = child
	return &RegionGuard{v: v, region: child}, nil
}

// WriteField 在当前区域下写入字段。
func (v *Visitor) WriteField(name string, value Value) error {
	if err := v.checkMode(ModeWrite, "WriteField"); err != nil {
		return err
	}
	if !value.kind.Valid() {
		return merr.WrapErrParameterInvalidMsg("field %s has invalid kind %s", name, value.kind)
	}
	if !v.cursor.addField(&Field{Name: name, Kind: value.kind, Payload: value.payload}) {
		return merr.WrapErrVisitorDuplicateField(v.cursor.Path(), name)
	}
	return nil
}

// ReadField 读取当前区域下的字段，并校验其类型标签。
func (v *Visitor) ReadField(name string, kind Kind) (Value, error) {
	if err := v.checkMode(ModeRead, "ReadField"); err != nil {
		return Value{}, err
	}
	f, ok := v.cursor.Field(name)
	if !ok {
		return Value{}, merr.WrapErrVisitorMissingField(v.cursor.Path(), name)
	}
	if f.Kind != kind {
		return Value{}, merr.WrapErrVisitorTypeMismatch(v.cursor.Path(), name, kind, f.Kind)
	}
	return f.Value(), nil
}

// WriteHandle 写入句柄字段。
func (v *Visitor) WriteHandle(name string, raw handle.Raw) error {
	return v.WriteField(name, HandleValue(raw))
}

// ReadHandle 读取句柄字段。
func (v *Visitor) ReadHandle(name string) (handle.Raw, error) {
	value, err := v.ReadField(name, KindHandle)
	if err != nil {
		return handle.Raw{}, err
	}
	return value.Handle(), nil
}

// HasRegion 判断当前区域下是否存在名为 name 的子区域。
func (v *Visitor) HasRegion(name string) bool {
	_, ok := v.cursor.Child(name)
	return ok
}

// HasField 判断当前区域下是否存在名为 name 的字段。
func (v *Visitor) HasField(name string) bool {
	_, ok := v.cursor.Field(name)
	return ok
}

// FieldNames 按写入顺序返回当前区域的字段名。
func (v *Visitor) FieldNames() []string {
	names := make([]string, 0, len(v.cursor.fields))
	for _, f := range v.cursor.fields {
		names = append(names, f.Name)
	}
	return names
}

// RegionNames 按写入顺序返回当前区域的子区域名。
func (v *Visitor) RegionNames() []string {
	names := make([]string, 0, len(v.cursor.children))
	for _, c := range v.cursor.children {
		names = append(names, c.Name)
	}
	return names
}

// Write 写入标量字段。
func Write[T Primitive](v *Visitor, name string, x T) error {
	return v.WriteField(name, ValueOf(x))
}

// Read 读取标量字段。
func Read[T Primitive](v *Visitor, name string) (T, error) {
	value, err := v.ReadField(name, kindOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return decodePrimitive[T](value.payload), nil
}
