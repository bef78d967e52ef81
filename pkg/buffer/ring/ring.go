// Package ring 实现了一个按需扩容的泛型环形队列。
package ring

import (
	"math/bits"
)

// DefaultQueueSize 是 Queue 的默认初始容量。
const DefaultQueueSize = 16

// Queue 是先进先出的环形队列，容量始终为 2 的幂。Queue 不是并发安全的。
type Queue[T any] struct {
	buf  []T
	head int
	size int
}

// New 创建一个初始容量至少为 size 的队列。
func New[T any](size int) *Queue[T] {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue[T]{buf: make([]T, ceilToPowerOfTwo(size))}
}

// Len 返回队列中元素的数量。
func (q *Queue[T]) Len() int {
	return q.size
}

// Cap 返回队列当前的容量。
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// IsEmpty 判断队列是否为空。
func (q *Queue[T]) IsEmpty() bool {
	return q.size == 0
}

// Push 把 v 追加到队尾，队列已满时容量翻倍。
func (q *Queue[T]) Push(v T) {
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)&(len(q.buf)-1)] = v
	q.size++
}

// Pop 取出队首元素，队列为空时返回 false。
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) & (len(q.buf) - 1)
	q.size--
	return v, true
}

// Peek 返回队首元素但不取出。
func (q *Queue[T]) Peek() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Drain 按先进先出顺序取出全部元素。
func (q *Queue[T]) Drain() []T {
	if q.size == 0 {
		return nil
	}
	out := make([]T, 0, q.size)
	for q.size > 0 {
		v, _ := q.Pop()
		out = append(out, v)
	}
	q.head = 0
	return out
}

func (q *Queue[T]) grow() {
	size := len(q.buf) * 2
	if size == 0 {
		size = DefaultQueueSize
	}
	buf := make([]T, size)
	for i := 0; i < q.size; i++ {
		buf[i] = q.buf[(q.head+i)&(len(q.buf)-1)]
	}
	q.buf = buf
	q.head = 0
}

func ceilToPowerOfTwo(n int) int {
	if n <= 2 {
		return 2
	}
	return 1 << bits.Len(uint(n-1))
}
