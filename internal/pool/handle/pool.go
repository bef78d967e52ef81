package handle

import (
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

// Slot 描述池中的一个槽位，用于序列化时导出与恢复池的完整状态。
type Slot[T any] struct {
	Generation uint32
	Occupied   bool
	Value      T
}

// Pool 是以句柄寻址的对象池。
//
// 约定：
//   - 槽位释放后进入空闲链表（LIFO），下次 Spawn 时优先复用；
//   - 槽位每次被占用时代数加一，旧句柄因代数不匹配而失效；
//   - Pool 不是并发安全的，由持有者保证单线程访问。
type Pool[T any] struct {
	slots []Slot[T]
	free  []uint32
	count int
}

// NewPool 创建一个空的对象池。
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{}
}

// FromSlots 根据导出的槽位恢复对象池，代数与空闲链表均与导出时保持一致。
func FromSlots[T any](slots []Slot[T]) *Pool[T] {
	p := &Pool[T]{
		slots: make([]Slot[T], len(slots)),
	}
	copy(p.slots, slots)
	// 逆序压栈，使得最小的空闲下标最先被复用。
	for i := len(p.slots) - 1; i >= 0; i-- {
		if p.slots[i].Occupied {
			p.count++
			continue
		}
		p.free = append(p.free, uint32(i))
	}
	return p
}

// Spawn 将对象放入池中并返回指向它的句柄。
func (p *Pool[T]) Spawn(value T) Handle[T] {
	if n := len(p.free); n > 0 {
		index := p.free[n-1]
		p.free = p.free[:n-1]
		slot := &p.slots[index]
		slot.Generation++
		if slot.Generation == 0 {
			// 代数回绕时跳过 0，保证 NONE 永远无效。
			slot.Generation = 1
		}
		slot.Occupied = true
		slot.Value = value
		p.count++
		return Handle[T]{index: index, generation: slot.Generation}
	}

	index := uint32(len(p.slots))
	p.slots = append(p.slots, Slot[T]{Generation: 1, Occupied: true, Value: value})
	p.count++
	return Handle[T]{index: index, generation: 1}
}

// Remove 释放句柄指向的槽位并返回其中的对象。
// 对 NONE 或已失效的句柄调用 Remove 不做任何事，返回 false。
func (p *Pool[T]) Remove(h Handle[T]) (T, bool) {
	var zero T
	if !p.IsValid(h) {
		return zero, false
	}
	slot := &p.slots[h.index]
	value := slot.Value
	slot.Value = zero
	slot.Occupied = false
	p.free = append(p.free, h.index)
	p.count--
	return value, true
}

// IsValid 判断句柄当前是否能解析到对象。
func (p *Pool[T]) IsValid(h Handle[T]) bool {
	if h.IsNone() || int(h.index) >= len(p.slots) {
		return false
	}
	slot := &p.slots[h.index]
	return slot.Occupied && slot.Generation == h.generation
}

// Get 返回句柄指向的对象；句柄无效时返回零值与 false。
func (p *Pool[T]) Get(h Handle[T]) (T, bool) {
	if !p.IsValid(h) {
		var zero T
		return zero, false
	}
	return p.slots[h.index].Value, true
}

// Borrow 返回指向槽位内对象的指针，便于原地修改值类型对象。
// 指针在下一次 Spawn 之前有效。
func (p *Pool[T]) Borrow(h Handle[T]) (*T, bool) {
	if !p.IsValid(h) {
		return nil, false
	}
	return &p.slots[h.index].Value, true
}

// MustGet 与下标访问语义一致：句柄无效时 panic。
func (p *Pool[T]) MustGet(h Handle[T]) T {
	value, ok := p.Get(h)
	if !ok {
		panic(merr.WrapErrHandleInvalid(h.index, h.generation))
	}
	return value
}

// Len 返回池中存活对象的数量。
func (p *Pool[T]) Len() int {
	return p.count
}

// Capacity 返回池中槽位总数（包括空闲槽位）。
func (p *Pool[T]) Capacity() int {
	return len(p.slots)
}

// HandleAt 返回下标 index 处当前对象的句柄；槽位空闲时返回 NONE。
func (p *Pool[T]) HandleAt(index uint32) Handle[T] {
	if int(index) >= len(p.slots) || !p.slots[index].Occupied {
		return None[T]()
	}
	return Handle[T]{index: index, generation: p.slots[index].Generation}
}

// Range 按下标顺序遍历所有存活对象，回调返回 false 时提前结束。
func (p *Pool[T]) Range(fn func(h Handle[T], value T) bool) {
	for i := range p.slots {
		slot := &p.slots[i]
		if !slot.Occupied {
			continue
		}
		if !fn(Handle[T]{index: uint32(i), generation: slot.Generation}, slot.Value) {
			return
		}
	}
}

// Handles 按下标顺序返回所有存活对象的句柄。
func (p *Pool[T]) Handles() []Handle[T] {
	handles := make([]Handle[T], 0, p.count)
	p.Range(func(h Handle[T], _ T) bool {
		handles = append(handles, h)
		return true
	})
	return handles
}

// Slots 导出所有槽位的副本。
func (p *Pool[T]) Slots() []Slot[T] {
	slots := make([]Slot[T], len(p.slots))
	copy(slots, p.slots)
	return slots
}

// Clear 移除全部对象，所有已发出的句柄随之失效。
func (p *Pool[T]) Clear() {
	for i := range p.slots {
		if p.slots[i].Occupied {
			p.Remove(Handle[T]{index: uint32(i), generation: p.slots[i].Generation})
		}
	}
}
