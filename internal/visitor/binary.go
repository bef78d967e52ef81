package visitor

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/blang/semver/v4"
	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lk2023060901/danmu-garden-scene/internal/compressor"
	"github.com/lk2023060901/danmu-garden-scene/internal/pool/bytebuffer"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

// 二进制存档布局：
//
//	magic "RGSV" | varint major | varint minor | varint patch | varint flags | body
//	body   = region（flags&1 时为 zstd 压缩后的 region）
//	region = bytes(name) | varint nfields | field* | varint nchildren | region*
//	field  = bytes(name) | varint tag | bytes(payload)
//	bytes  = varint len | data
const (
	flagCompressed uint64 = 1 << iota

	knownFlags = flagCompressed
)

var (
	binaryMagic = []byte("RGSV")

	// FormatVersion 是当前写入的存档格式版本。
	FormatVersion = semver.Version{Major: 1, Minor: 0, Patch: 0}

	supportedVersionsText = ">=1.0.0 <2.0.0"
	supportedVersions     = semver.MustParseRange(supportedVersionsText)
)

// 字段与区域编码后的最小字节数：名称长度、计数（或标签）、负载长度各至少 1 字节。
const (
	minFieldSize  = 3
	minRegionSize = 3
)

func encodeBinary(root *Region, o *options) ([]byte, error) {
	body := bytebuffer.Get()
	defer bytebuffer.Put(body)
	body.B = appendRegion(body.B, root)

	payload := body.B
	var flags uint64
	if !compressor.IsNop(o.compressor) && len(payload) >= o.minCompressSize {
		packed, err := o.compressor.Compress(nil, payload)
		if err != nil {
			return nil, merr.WrapErrServiceInternal("compress save body", err.Error())
		}
		payload = packed
		flags |= flagCompressed
	}

	out := make([]byte, 0, len(binaryMagic)+4*protowire.SizeVarint(0)+len(payload))
	out = append(out, binaryMagic...)
	out = protowire.AppendVarint(out, FormatVersion.Major)
	out = protowire.AppendVarint(out, FormatVersion.Minor)
	out = protowire.AppendVarint(out, FormatVersion.Patch)
	out = protowire.AppendVarint(out, flags)
	out = append(out, payload...)
	return out, nil
}

func appendRegion(b []byte, r *Region) []byte {
	b = protowire.AppendString(b, r.Name)
	b = protowire.AppendVarint(b, uint64(len(r.fields)))
	for _, f := range r.fields {
		b = protowire.AppendString(b, f.Name)
		b = protowire.AppendVarint(b, uint64(f.Kind))
		b = protowire.AppendBytes(b, f.Payload)
	}
	b = protowire.AppendVarint(b, uint64(len(r.children)))
	for _, c := range r.children {
		b = appendRegion(b, c)
	}
	return b
}

func decodeBinary(data []byte, o *options) (*Region, error) {
	if len(data) < len(binaryMagic) {
		if bytes.HasPrefix(binaryMagic, data) {
			return nil, merr.WrapErrVisitorMalformedData(len(data), "truncated magic")
		}
		return nil, merr.WrapErrVisitorVersionMismatch("missing", supportedVersionsText)
	}
	if !bytes.Equal(data[:len(binaryMagic)], binaryMagic) {
		return nil, merr.WrapErrVisitorVersionMismatch("missing", supportedVersionsText)
	}

	d := &decoder{data: data, off: len(binaryMagic), maxDepth: o.maxDepth}
	var header [4]uint64
	for i, what := range []string{"major version", "minor version", "patch version", "flags"} {
		v, err := d.varint(what)
		if err != nil {
			return nil, err
		}
		header[i] = v
	}
	version := semver.Version{Major: header[0], Minor: header[1], Patch: header[2]}
	if !supportedVersions(version) {
		return nil, merr.WrapErrVisitorVersionMismatch(version.String(), supportedVersionsText)
	}
	flags := header[3]
	if flags&^knownFlags != 0 {
		return nil, d.malformed(fmt.Sprintf("unknown flags %#x", flags))
	}

	if flags&flagCompressed != 0 {
		c := o.compressor
		if compressor.IsNop(c) {
			z, err := decompressorFor(o.maxDecodedSize)
			if err != nil {
				return nil, merr.WrapErrServiceInternal("create zstd decoder", err.Error())
			}
			if z.MaxDecodedSize() != compressor.DefaultMaxDecodedSize {
				defer z.Close()
			}
			c = z
		}
		plain, err := c.Decompress(nil, data[d.off:])
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, d.malformed(fmt.Sprintf("compressed body exceeds %d bytes", o.maxDecodedSize))
		}
		if err != nil {
			return nil, d.malformed("corrupted compressed body: " + err.Error())
		}
		if len(plain) > o.maxDecodedSize {
			return nil, d.malformed(fmt.Sprintf("decoded body of %d bytes exceeds %d", len(plain), o.maxDecodedSize))
		}
		d = &decoder{data: plain, maxDepth: o.maxDepth}
	}

	root, err := d.region(0)
	if err != nil {
		return nil, err
	}
	if root.Name != RootRegionName {
		return nil, merr.WrapErrVisitorMalformedData(0, fmt.Sprintf("unexpected root region %q", root.Name))
	}
	if d.off != len(d.data) {
		return nil, d.malformed(fmt.Sprintf("%d trailing bytes", len(d.data)-d.off))
	}
	return root, nil
}

type decoder struct {
	data     []byte
	off      int
	maxDepth int
}

func (d *decoder) malformed(reason string) error {
	return merr.WrapErrVisitorMalformedData(d.off, reason)
}

func (d *decoder) varint(what string) (uint64, error) {
	v, n := protowire.ConsumeVarint(d.data[d.off:])
	if n < 0 {
		return 0, d.malformed(what + ": " + protowire.ParseError(n).Error())
	}
	d.off += n
	return v, nil
}

func (d *decoder) bytes(what string) ([]byte, error) {
	b, n := protowire.ConsumeBytes(d.data[d.off:])
	if n < 0 {
		return nil, d.malformed(what + ": " + protowire.ParseError(n).Error())
	}
	d.off += n
	return b, nil
}

// count 读取元素个数，并以剩余字节数为上限拒绝明显错误的长度前缀。
func (d *decoder) count(what string, minSize int) (int, error) {
	n, err := d.varint(what)
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.data)-d.off)/uint64(minSize) {
		return 0, d.malformed(fmt.Sprintf("%s %d exceeds remaining bytes", what, n))
	}
	return int(n), nil
}

func (d *decoder) region(depth int) (*Region, error) {
	if depth > d.maxDepth {
		return nil, d.malformed(fmt.Sprintf("region depth exceeds %d", d.maxDepth))
	}
	name, err := d.bytes("region name")
	if err != nil {
		return nil, err
	}
	r := newRegion(string(name))

	nfields, err := d.count("field count", minFieldSize)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nfields; i++ {
		start := d.off
		fieldName, err := d.bytes("field name")
		if err != nil {
			return nil, err
		}
		tag, err := d.varint("field tag")
		if err != nil {
			return nil, err
		}
		if tag >= uint64(kindCount) || !Kind(tag).Valid() {
			return nil, merr.WrapErrVisitorMalformedData(start, fmt.Sprintf("unknown type tag %d", tag))
		}
		kind := Kind(tag)
		payload, err := d.bytes("field payload")
		if err != nil {
			return nil, err
		}
		if !checkPayload(kind, payload) {
			return nil, merr.WrapErrVisitorMalformedData(start, fmt.Sprintf("bad %s payload of %d bytes", kind, len(payload)))
		}
		f := &Field{Name: string(fieldName), Kind: kind, Payload: append([]byte{}, payload...)}
		if !r.addField(f) {
			return nil, merr.WrapErrVisitorMalformedData(start, fmt.Sprintf("duplicate field %q", f.Name))
		}
	}

	nchildren, err := d.count("region count", minRegionSize)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nchildren; i++ {
		start := d.off
		child, err := d.region(depth + 1)
		if err != nil {
			return nil, err
		}
		if !r.addChild(child) {
			return nil, merr.WrapErrVisitorMalformedData(start, fmt.Sprintf("duplicate region %q", child.Name))
		}
	}
	return r, nil
}
