package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int](3)
	assert.Equal(t, 4, q.Cap())
	assert.True(t, q.IsEmpty())

	_, ok := q.Pop()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		q.Push(i)
	}
	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	// 跨越环形边界并触发扩容。
	for i := 3; i < 10; i++ {
		q.Push(i)
	}
	assert.Equal(t, 9, q.Len())
	assert.Equal(t, 16, q.Cap())

	head, ok := q.Peek()
	assert.True(t, ok)
	assert.Equal(t, 1, head)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, q.Drain())
	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.Drain())
}

func TestQueueZeroValue(t *testing.T) {
	var q Queue[string]
	q.Push("a")
	q.Push("b")
	assert.Equal(t, DefaultQueueSize, q.Cap())
	assert.Equal(t, []string{"a", "b"}, q.Drain())
}

func TestCeilToPowerOfTwo(t *testing.T) {
	assert.Equal(t, 2, ceilToPowerOfTwo(0))
	assert.Equal(t, 2, ceilToPowerOfTwo(2))
	assert.Equal(t, 4, ceilToPowerOfTwo(3))
	assert.Equal(t, 16, ceilToPowerOfTwo(16))
	assert.Equal(t, 32, ceilToPowerOfTwo(17))
}
