package visitor

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/samber/lo"
	"golang.org/x/exp/constraints"

	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

// Visitable 由可以被同一段代码保存与加载的类型实现。
//
// 写模式下实现方把自身写入名为 name 的区域，读模式下从该区域恢复自身。
type Visitable interface {
	Visit(name string, v *Visitor) error
}

// Region 根据模式开启（写）或进入（读）名为 name 的子区域。
func (v *Visitor) Region(name string) (*RegionGuard, error) {
	if v.IsReading() {
		return v.EnterRegion(name)
	}
	return v.BeginRegion(name)
}

// VisitValue 写入或读取标量字段。
func VisitValue[T Primitive](v *Visitor, name string, value *T) error {
	if v.IsReading() {
		x, err := Read[T](v, name)
		if err != nil {
			return err
		}
		*value = x
		return nil
	}
	return Write(v, name, *value)
}

// VisitOptional 与 VisitValue 相同，但读模式下字段缺失时使用默认值。
func VisitOptional[T Primitive](v *Visitor, name string, value *T, def T) error {
	if v.IsReading() && !v.HasField(name) {
		*value = def
		return nil
	}
	return VisitValue(v, name, value)
}

// VisitEnum 以 i64 字段写入或读取整数类枚举。
func VisitEnum[T constraints.Integer](v *Visitor, name string, value *T) error {
	n := int64(*value)
	if err := VisitValue(v, name, &n); err != nil {
		return err
	}
	*value = T(n)
	return nil
}

// VisitHandle 写入或读取句柄字段，NONE 句柄按 (0, 0) 保存并原样恢复。
func VisitHandle[T any](v *Visitor, name string, h *handle.Handle[T]) error {
	if v.IsReading() {
		raw, err := v.ReadHandle(name)
		if err != nil {
			return err
		}
		*h = handle.FromRaw[T](raw)
		return nil
	}
	return v.WriteHandle(name, h.Raw())
}

// Visit 在名为 name 的区域中访问 item。
func Visit(v *Visitor, name string, item Visitable) error {
	return item.Visit(name, v)
}

// VisitSlice 在名为 name 的区域中写入或读取切片：
// 长度保存在 Length 字段，第 i 个元素交给 visitItem 以 "Item{i}" 为名访问。
func VisitSlice[T any](v *Visitor, name string, items *[]T, visitItem func(v *Visitor, name string, item *T) error) error {
	guard, err := v.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	length := uint32(len(*items))
	if err := VisitValue(v, "Length", &length); err != nil {
		return err
	}
	if v.IsReading() {
		// 每个元素至少占用一个字段或子区域。
		if limit := len(v.FieldNames()) + len(v.RegionNames()); int64(length) > int64(limit) {
			return merr.WrapErrVisitorMalformedRegion(v.Current().Path(),
				fmt.Sprintf("slice length %d exceeds %d stored entries", length, limit))
		}
		*items = make([]T, length)
	}
	for i := range *items {
		if err := visitItem(v, itemName(i), &(*items)[i]); err != nil {
			return err
		}
	}
	return nil
}

// VisitStringMap 在名为 name 的区域中写入或读取字符串映射，每个键对应一个字段。
// 写入时按键排序，保证输出是确定性的。
func VisitStringMap(v *Visitor, name string, m *map[string]string) error {
	guard, err := v.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	if v.IsReading() {
		names := v.FieldNames()
		out := make(map[string]string, len(names))
		for _, key := range names {
			value, err := Read[string](v, key)
			if err != nil {
				return err
			}
			out[key] = value
		}
		*m = out
		return nil
	}

	keys := lo.Keys(*m)
	slices.Sort(keys)
	for _, key := range keys {
		if err := Write(v, key, (*m)[key]); err != nil {
			return err
		}
	}
	return nil
}

// VisitHandles 在名为 name 的区域中写入或读取句柄列表。
func VisitHandles[T any](v *Visitor, name string, handles *[]handle.Handle[T]) error {
	return VisitSlice(v, name, handles, VisitHandle[T])
}

// VisitPool 在名为 name 的区域中写入或读取整个对象池，包括空闲槽位及其代数，
// 因此加载后的句柄与保存前完全一致。
func VisitPool[T any](v *Visitor, name string, pool *handle.Pool[T], visitItem func(v *Visitor, name string, item *T) error) error {
	guard, err := v.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	var slots []handle.Slot[T]
	if !v.IsReading() {
		slots = pool.Slots()
	}
	capacity := uint32(len(slots))
	if err := VisitValue(v, "Capacity", &capacity); err != nil {
		return err
	}
	if v.IsReading() {
		if limit := len(v.RegionNames()); int64(capacity) > int64(limit) {
			return merr.WrapErrVisitorMalformedRegion(v.Current().Path(),
				fmt.Sprintf("pool capacity %d exceeds %d stored slots", capacity, limit))
		}
		slots = make([]handle.Slot[T], capacity)
	}

	for i := range slots {
		if err := visitSlot(v, slotName(i), &slots[i], visitItem); err != nil {
			return err
		}
	}

	if v.IsReading() {
		*pool = *handle.FromSlots(slots)
	}
	return nil
}

func visitSlot[T any](v *Visitor, name string, slot *handle.Slot[T], visitItem func(v *Visitor, name string, item *T) error) error {
	guard, err := v.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	if err := VisitValue(v, "Generation", &slot.Generation); err != nil {
		return err
	}
	if err := VisitValue(v, "Occupied", &slot.Occupied); err != nil {
		return err
	}
	if !slot.Occupied {
		return nil
	}
	return visitItem(v, "Payload", &slot.Value)
}

func itemName(i int) string {
	return "Item" + strconv.Itoa(i)
}

func slotName(i int) string {
	return "Slot" + strconv.Itoa(i)
}
