package bytebuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPut(t *testing.T) {
	b := Get()
	assert.Equal(t, 0, b.Len())

	n, err := b.Write([]byte("RGSV"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	b.B = append(b.B, 1, 0, 0)
	assert.Equal(t, []byte{'R', 'G', 'S', 'V', 1, 0, 0}, b.Bytes())

	Put(b)
	Put(nil)

	b = Get()
	assert.Equal(t, 0, b.Len())
	Put(b)
}

func TestIndex(t *testing.T) {
	assert.Equal(t, 0, index(0))
	assert.Equal(t, 0, index(64))
	assert.Equal(t, 1, index(65))
	assert.Equal(t, 1, index(128))
	assert.Equal(t, 2, index(129))
	assert.Equal(t, steps-1, index(1<<40))
}

func TestCalibrate(t *testing.T) {
	var p Pool
	for i := 0; i < calibrateCallsThreshold+1; i++ {
		b := p.Get()
		b.B = append(b.B, make([]byte, 100)...)
		p.Put(b)
	}
	// 100 字节落在 128 字节档位。
	assert.EqualValues(t, 128, p.defaultSize)
	assert.EqualValues(t, 128, p.maxSize)

	big := &ByteBuffer{B: make([]byte, 0, 1<<20)}
	p.Put(big)
	b := p.Get()
	assert.LessOrEqual(t, cap(b.B), 1<<20)
}
