package visitor

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/blang/semver/v4"

	"github.com/lk2023060901/danmu-garden-scene/internal/json"
	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

// TextFormatName 是文本存档 format 字段的取值。
const TextFormatName = "rgs-text"

// nanPrefix 标记按位保存的 NaN，例如 nan:0x7ff8000000000001，保留 NaN 的负载位。
const nanPrefix = "nan:0x"

type textDocument struct {
	Format  string      `json:"format"`
	Version string      `json:"version"`
	Root    *textRegion `json:"root"`
}

type textRegion struct {
	Name     string        `json:"name"`
	Fields   []textField   `json:"fields"`
	Children []*textRegion `json:"children"`
}

type textField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func encodeText(root *Region) ([]byte, error) {
	tr, err := toTextRegion(root)
	if err != nil {
		return nil, err
	}
	doc := textDocument{
		Format:  TextFormatName,
		Version: FormatVersion.String(),
		Root:    tr,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func toTextRegion(r *Region) (*textRegion, error) {
	tr := &textRegion{
		Name:     r.Name,
		Fields:   make([]textField, 0, len(r.fields)),
		Children: make([]*textRegion, 0, len(r.children)),
	}
	for _, f := range r.fields {
		s, err := formatValue(f.Kind, f.Payload)
		if err != nil {
			return nil, merr.WrapErrParameterInvalidMsg("field %s/%s: %s", r.Path(), f.Name, err.Error())
		}
		tr.Fields = append(tr.Fields, textField{Name: f.Name, Type: f.Kind.String(), Value: s})
	}
	for _, c := range r.children {
		tc, err := toTextRegion(c)
		if err != nil {
			return nil, err
		}
		tr.Children = append(tr.Children, tc)
	}
	return tr, nil
}

// formatValue 以可无损解析回原值的形式渲染字段。
func formatValue(kind Kind, payload []byte) (string, error) {
	switch kind {
	case KindBool:
		return strconv.FormatBool(decodePrimitive[bool](payload)), nil
	case KindInt8:
		return strconv.FormatInt(int64(decodePrimitive[int8](payload)), 10), nil
	case KindInt16:
		return strconv.FormatInt(int64(decodePrimitive[int16](payload)), 10), nil
	case KindInt32:
		return strconv.FormatInt(int64(decodePrimitive[int32](payload)), 10), nil
	case KindInt64:
		return strconv.FormatInt(decodePrimitive[int64](payload), 10), nil
	case KindUint8:
		return strconv.FormatUint(uint64(decodePrimitive[uint8](payload)), 10), nil
	case KindUint16:
		return strconv.FormatUint(uint64(decodePrimitive[uint16](payload)), 10), nil
	case KindUint32:
		return strconv.FormatUint(uint64(decodePrimitive[uint32](payload)), 10), nil
	case KindUint64:
		return strconv.FormatUint(decodePrimitive[uint64](payload), 10), nil
	case KindFloat32:
		f := decodePrimitive[float32](payload)
		if math.IsNaN(float64(f)) {
			return nanPrefix + strconv.FormatUint(uint64(math.Float32bits(f)), 16), nil
		}
		return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
	case KindFloat64:
		f := decodePrimitive[float64](payload)
		if math.IsNaN(f) {
			return nanPrefix + strconv.FormatUint(math.Float64bits(f), 16), nil
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case KindString:
		if !utf8.Valid(payload) {
			return "", fmt.Errorf("string is not valid utf-8")
		}
		return string(payload), nil
	case KindBytes:
		return base64.StdEncoding.EncodeToString(payload), nil
	case KindHandle:
		raw := Value{kind: kind, payload: payload}.Handle()
		return fmt.Sprintf("%d:%d", raw.Index, raw.Generation), nil
	default:
		return "", fmt.Errorf("unknown kind %s", kind)
	}
}

func parseValue(kind Kind, s string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(s)
		return ValueOf(b), err
	case KindInt8:
		n, err := strconv.ParseInt(s, 10, 8)
		return ValueOf(int8(n)), err
	case KindInt16:
		n, err := strconv.ParseInt(s, 10, 16)
		return ValueOf(int16(n)), err
	case KindInt32:
		n, err := strconv.ParseInt(s, 10, 32)
		return ValueOf(int32(n)), err
	case KindInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		return ValueOf(n), err
	case KindUint8:
		n, err := strconv.ParseUint(s, 10, 8)
		return ValueOf(uint8(n)), err
	case KindUint16:
		n, err := strconv.ParseUint(s, 10, 16)
		return ValueOf(uint16(n)), err
	case KindUint32:
		n, err := strconv.ParseUint(s, 10, 32)
		return ValueOf(uint32(n)), err
	case KindUint64:
		n, err := strconv.ParseUint(s, 10, 64)
		return ValueOf(n), err
	case KindFloat32:
		if bits, ok := strings.CutPrefix(s, nanPrefix); ok {
			n, err := parseNaNBits(bits, 32)
			return ValueOf(math.Float32frombits(uint32(n))), err
		}
		f, err := strconv.ParseFloat(s, 32)
		return ValueOf(float32(f)), err
	case KindFloat64:
		if bits, ok := strings.CutPrefix(s, nanPrefix); ok {
			n, err := parseNaNBits(bits, 64)
			return ValueOf(math.Float64frombits(n)), err
		}
		f, err := strconv.ParseFloat(s, 64)
		return ValueOf(f), err
	case KindString:
		return ValueOf(s), nil
	case KindBytes:
		b, err := base64.StdEncoding.DecodeString(s)
		return ValueOf(b), err
	case KindHandle:
		index, generation, ok := strings.Cut(s, ":")
		if !ok {
			return Value{}, fmt.Errorf("handle %q is not index:generation", s)
		}
		i, err := strconv.ParseUint(index, 10, 32)
		if err != nil {
			return Value{}, err
		}
		g, err := strconv.ParseUint(generation, 10, 32)
		if err != nil {
			return Value{}, err
		}
		return HandleValue(handle.Raw{Index: uint32(i), Generation: uint32(g)}), nil
	default:
		return Value{}, fmt.Errorf("unknown kind %s", kind)
	}
}

// parseNaNBits 解析 NaN 的十六进制位模式，要求指数位全 1 且尾数非 0。
func parseNaNBits(s string, bitSize int) (uint64, error) {
	n, err := strconv.ParseUint(s, 16, bitSize)
	if err != nil {
		return 0, err
	}
	isNaN := math.IsNaN(math.Float64frombits(n))
	if bitSize == 32 {
		isNaN = math.IsNaN(float64(math.Float32frombits(uint32(n))))
	}
	if !isNaN {
		return 0, fmt.Errorf("%s%s is not a NaN bit pattern", nanPrefix, s)
	}
	return n, nil
}

func decodeText(data []byte, o *options) (*Region, error) {
	var doc textDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, merr.WrapErrVisitorMalformedData(0, "invalid json: "+err.Error())
	}
	if doc.Format != TextFormatName {
		return nil, merr.WrapErrVisitorVersionMismatch("missing", supportedVersionsText)
	}
	version, err := semver.Parse(doc.Version)
	if err != nil || !supportedVersions(version) {
		return nil, merr.WrapErrVisitorVersionMismatch(doc.Version, supportedVersionsText)
	}
	if doc.Root == nil {
		return nil, merr.WrapErrVisitorMalformedData(0, "missing root region")
	}
	if doc.Root.Name != RootRegionName {
		return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("unexpected root region %q", doc.Root.Name))
	}
	return fromTextRegion(doc.Root, nil, 0, o.maxDepth)
}

func fromTextRegion(tr *textRegion, parent *Region, depth, maxDepth int) (*Region, error) {
	if depth > maxDepth {
		return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("region depth exceeds %d", maxDepth))
	}
	r := newRegion(tr.Name)
	if parent != nil && !parent.addChild(r) {
		return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("duplicate region %q under %s", tr.Name, parent.Path()))
	}
	for _, tf := range tr.Fields {
		kind, ok := kindFromName(tf.Type)
		if !ok {
			return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("unknown type %q of field %s/%s", tf.Type, r.Path(), tf.Name))
		}
		value, err := parseValue(kind, tf.Value)
		if err != nil {
			return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("bad value of field %s/%s: %s", r.Path(), tf.Name, err.Error()))
		}
		if !r.addField(&Field{Name: tf.Name, Kind: kind, Payload: value.payload}) {
			return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("duplicate field %q under %s", tf.Name, r.Path()))
		}
	}
	for _, tc := range tr.Children {
		if tc == nil {
			return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("null region under %s", r.Path()))
		}
		if _, err := fromTextRegion(tc, r, depth+1, maxDepth); err != nil {
			return nil, err
		}
	}
	return r, nil
}
