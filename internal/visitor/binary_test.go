package visitor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lk2023060901/danmu-garden-scene/internal/compressor"
	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

func sampleVisitor(t *testing.T, opts ...Option) *Visitor {
	w := NewVisitor(opts...)
	g, err := w.BeginRegion("Scene")
	require.NoError(t, err)
	require.NoError(t, Write(w, "Name", "garden"))
	require.NoError(t, w.WriteHandle("Handle", handle.Raw{Index: 3, Generation: 2}))
	n, err := w.BeginRegion("Node")
	require.NoError(t, err)
	require.NoError(t, Write(w, "Scale", float32(2)))
	require.NoError(t, Write(w, "Visible", true))
	require.NoError(t, Write(w, "Blob", []byte("payload")))
	n.Close()
	g.Close()
	return w
}

func header(version [3]uint64, flags uint64) []byte {
	b := append([]byte{}, binaryMagic...)
	for _, v := range version {
		b = protowire.AppendVarint(b, v)
	}
	return protowire.AppendVarint(b, flags)
}

// rawRegion 按二进制布局手工构造区域，fields 为 (name, tag, payload) 三元组。
func rawRegion(name string, fields [][3][]byte, children ...[]byte) []byte {
	b := protowire.AppendString(nil, name)
	b = protowire.AppendVarint(b, uint64(len(fields)))
	for _, f := range fields {
		b = protowire.AppendBytes(b, f[0])
		b = append(b, f[1]...)
		b = protowire.AppendBytes(b, f[2])
	}
	b = protowire.AppendVarint(b, uint64(len(children)))
	for _, c := range children {
		b = append(b, c...)
	}
	return b
}

func tag(k Kind) []byte {
	return protowire.AppendVarint(nil, uint64(k))
}

func TestBinaryLayout(t *testing.T) {
	w := NewVisitor()
	require.NoError(t, Write(w, "A", int16(-2)))
	data, err := w.SaveToBytes()
	require.NoError(t, err)

	expected := append(header([3]uint64{1, 0, 0}, 0),
		rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), tag(KindInt16), {0xfe, 0xff}}})...)
	assert.Equal(t, expected, data)
}

func TestBinaryEveryPrefixFails(t *testing.T) {
	for _, opts := range [][]Option{
		nil,
		{WithCompressor(mustZstd(t)), WithMinCompressSize(0)},
	} {
		data, err := sampleVisitor(t, opts...).SaveToBytes()
		require.NoError(t, err)

		for i := 0; i < len(data); i++ {
			v, err := LoadFromBytes(data[:i], opts...)
			require.Nil(t, v, "prefix %d", i)
			require.Error(t, err, "prefix %d", i)
			malformed := merr.Code(err) == merr.Code(merr.ErrVisitorMalformedData)
			version := merr.Code(err) == merr.Code(merr.ErrVisitorVersionMismatch)
			assert.True(t, malformed || version, "prefix %d: %v", i, err)
		}
		_, err = LoadFromBytes(data, opts...)
		assert.NoError(t, err)
	}
}

func TestBinaryHeaderErrors(t *testing.T) {
	body := rawRegion(RootRegionName, nil)

	_, err := LoadFromBytes([]byte("RG"))
	assert.ErrorIs(t, err, merr.ErrVisitorMalformedData)

	_, err = LoadFromBytes([]byte("XY"))
	assert.ErrorIs(t, err, merr.ErrVisitorVersionMismatch)

	_, err = LoadFromBytes(append([]byte("JSON"), body...))
	assert.ErrorIs(t, err, merr.ErrVisitorVersionMismatch)

	_, err = LoadFromBytes(append(header([3]uint64{2, 0, 0}, 0), body...))
	assert.ErrorIs(t, err, merr.ErrVisitorVersionMismatch)

	_, err = LoadFromBytes(append(header([3]uint64{0, 9, 0}, 0), body...))
	assert.ErrorIs(t, err, merr.ErrVisitorVersionMismatch)

	v, err := LoadFromBytes(append(header([3]uint64{1, 7, 3}, 0), body...))
	assert.NoError(t, err)
	assert.NotNil(t, v)

	_, err = LoadFromBytes(append(header([3]uint64{1, 0, 0}, 4), body...))
	assert.ErrorIs(t, err, merr.ErrVisitorMalformedData)
}

func TestBinaryBodyErrors(t *testing.T) {
	h := header([3]uint64{1, 0, 0}, 0)
	cases := map[string][]byte{
		"unknown tag":  rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), tag(kindCount), {1}}}),
		"zero tag":     rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), tag(KindInvalid), {1}}}),
		"huge tag":     rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), protowire.AppendVarint(nil, 1<<40+1), {1}}}),
		"short i32":    rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), tag(KindInt32), {1, 2}}}),
		"long bool":    rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), tag(KindBool), {1, 0}}}),
		"bool value":   rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), tag(KindBool), {2}}}),
		"short handle": rawRegion(RootRegionName, [][3][]byte{{[]byte("A"), tag(KindHandle), {1, 0, 0, 0}}}),
		"dup field": rawRegion(RootRegionName, [][3][]byte{
			{[]byte("A"), tag(KindUint8), {1}},
			{[]byte("A"), tag(KindUint8), {2}},
		}),
		"dup region": rawRegion(RootRegionName, nil, rawRegion("N", nil), rawRegion("N", nil)),
		"wrong root": rawRegion("root", nil),
		"trailing":   append(rawRegion(RootRegionName, nil), 0),
		"bad count":  append(protowire.AppendString(nil, RootRegionName), protowire.AppendVarint(nil, 1<<60)...),
		"bad length": append(protowire.AppendVarint(nil, 1<<20), []byte(RootRegionName)...),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := LoadFromBytes(append(append([]byte{}, h...), body...))
			assert.Nil(t, v)
			assert.ErrorIs(t, err, merr.ErrVisitorMalformedData)
		})
	}
}

func TestBinaryDepthLimit(t *testing.T) {
	body := rawRegion("leaf", nil)
	for i := 0; i < 4; i++ {
		body = rawRegion("r", nil, body)
	}
	data := append(header([3]uint64{1, 0, 0}, 0), rawRegion(RootRegionName, nil, body)...)

	_, err := LoadFromBytes(data, WithMaxDepth(3))
	assert.ErrorIs(t, err, merr.ErrVisitorMalformedData)

	v, err := LoadFromBytes(data, WithMaxDepth(5))
	require.NoError(t, err)
	assert.Equal(t, []string{"r"}, v.RegionNames())
}

func TestBinaryCompression(t *testing.T) {
	zstd := mustZstd(t)

	w := NewVisitor(WithCompressor(zstd), WithMinCompressSize(0))
	for i := 0; i < 64; i++ {
		require.NoError(t, Write(w, itemName(i), "repeated value repeated value"))
	}
	packed, err := w.SaveToBytes()
	require.NoError(t, err)

	plain, err := NewBinaryFormat().Marshal(w.Root())
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain))

	// 压缩标记位。
	assert.Equal(t, byte(flagCompressed), packed[len(binaryMagic)+3])

	// 未显式指定压缩器时使用共享 zstd 解码。
	r, err := LoadFromBytes(packed)
	require.NoError(t, err)
	assert.True(t, r.Root().Equal(w.Root()))

	r, err = LoadFromBytes(packed, WithCompressor(zstd))
	require.NoError(t, err)
	assert.True(t, r.Root().Equal(w.Root()))

	corrupted := append([]byte{}, packed...)
	corrupted[len(corrupted)-1] ^= 0xff
	_, err = LoadFromBytes(corrupted)
	assert.ErrorIs(t, err, merr.ErrVisitorMalformedData)
}

func TestBinaryDecodedSizeLimit(t *testing.T) {
	w := NewVisitor(WithCompressor(mustZstd(t)), WithMinCompressSize(0))
	require.NoError(t, Write(w, "Blob", string(bytes.Repeat([]byte{'a'}, 2<<20))))
	packed, err := w.SaveToBytes()
	require.NoError(t, err)
	assert.Less(t, len(packed), 64<<10)

	_, err = LoadFromBytes(packed, WithMaxDecodedSize(1<<20))
	assert.ErrorIs(t, err, merr.ErrVisitorMalformedData)

	_, err = LoadFromBytes(packed, WithCompressor(mustZstd(t)), WithMaxDecodedSize(1<<20))
	assert.ErrorIs(t, err, merr.ErrVisitorMalformedData)

	r, err := LoadFromBytes(packed)
	require.NoError(t, err)
	assert.True(t, r.Root().Equal(w.Root()))
}

func TestBinaryBelowMinCompressSize(t *testing.T) {
	w := NewVisitor(WithCompressor(mustZstd(t)), WithMinCompressSize(1<<20))
	require.NoError(t, Write(w, "A", "small"))
	data, err := w.SaveToBytes()
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[len(binaryMagic)+3])
	assert.True(t, bytes.Contains(data, []byte("small")))
}

func TestBinaryDetachedFromInput(t *testing.T) {
	data, err := sampleVisitor(t).SaveToBytes()
	require.NoError(t, err)
	r, err := LoadFromBytes(data)
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}
	g, err := r.EnterRegion("Scene")
	require.NoError(t, err)
	defer g.Close()
	name, err := Read[string](r, "Name")
	require.NoError(t, err)
	assert.Equal(t, "garden", name)
}

func mustZstd(t *testing.T) *compressor.ZstdCompressor {
	c, err := compressor.NewZstdCompressorWithConcurrency(1)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}
