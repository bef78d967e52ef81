// Package handle 实现基于代数（generation）校验的句柄与对象池。
//
// 句柄由槽位下标与代数组成，槽位被释放时代数递增，持有旧代数的句柄即失效，
// 从而在不使用指针的前提下安全地表达对象之间的引用关系。
package handle

import (
	"fmt"
)

// Raw 是句柄的无类型表示，也是句柄在序列化格式中的编码形式。
type Raw struct {
	Index      uint32
	Generation uint32
}

// IsNone 判断是否为 NONE 句柄。
func (r Raw) IsNone() bool {
	return r.Generation == 0
}

func (r Raw) String() string {
	if r.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%d:%d", r.Index, r.Generation)
}

// Handle 是指向 Pool[T] 中某个槽位的带类型句柄。
//
// 零值即 NONE 句柄：代数 0 永远不会被分配，因此 NONE 永远无法解析到对象。
type Handle[T any] struct {
	index      uint32
	generation uint32
}

// None 返回 NONE 句柄。
func None[T any]() Handle[T] {
	return Handle[T]{}
}

// New 以给定下标与代数构造句柄。
func New[T any](index, generation uint32) Handle[T] {
	return Handle[T]{index: index, generation: generation}
}

// FromRaw 将无类型句柄转换为带类型句柄。
func FromRaw[T any](raw Raw) Handle[T] {
	return Handle[T]{index: raw.Index, generation: raw.Generation}
}

func (h Handle[T]) Index() uint32 {
	return h.index
}

func (h Handle[T]) Generation() uint32 {
	return h.generation
}

func (h Handle[T]) IsNone() bool {
	return h.generation == 0
}

func (h Handle[T]) IsSome() bool {
	return !h.IsNone()
}

// Raw 返回句柄的无类型表示。
func (h Handle[T]) Raw() Raw {
	return Raw{Index: h.index, Generation: h.generation}
}

func (h Handle[T]) String() string {
	return h.Raw().String()
}
