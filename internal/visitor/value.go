package visitor

import (
	"encoding/binary"
	"math"

	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
)

// Primitive 是可以直接作为字段写入的标量类型集合。
type Primitive interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | string | []byte
}

// Value 是一个带类型标签的字段值，payload 即二进制格式中的字段负载。
type Value struct {
	kind    Kind
	payload []byte
}

// ValueOf 将标量编码为 Value。
func ValueOf[T Primitive](x T) Value {
	var payload []byte
	switch v := any(x).(type) {
	case bool:
		payload = []byte{0}
		if v {
			payload[0] = 1
		}
	case int8:
		payload = []byte{byte(v)}
	case uint8:
		payload = []byte{v}
	case int16:
		payload = binary.LittleEndian.AppendUint16(nil, uint16(v))
	case uint16:
		payload = binary.LittleEndian.AppendUint16(nil, v)
	case int32:
		payload = binary.LittleEndian.AppendUint32(nil, uint32(v))
	case uint32:
		payload = binary.LittleEndian.AppendUint32(nil, v)
	case float32:
		payload = binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
	case int64:
		payload = binary.LittleEndian.AppendUint64(nil, uint64(v))
	case uint64:
		payload = binary.LittleEndian.AppendUint64(nil, v)
	case float64:
		payload = binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
	case string:
		payload = []byte(v)
	case []byte:
		payload = append([]byte{}, v...)
	}
	return Value{kind: kindOf[T](), payload: payload}
}

// HandleValue 将句柄编码为 Value：index 与 generation 各占 4 字节。
func HandleValue(raw handle.Raw) Value {
	payload := make([]byte, 0, 8)
	payload = binary.LittleEndian.AppendUint32(payload, raw.Index)
	payload = binary.LittleEndian.AppendUint32(payload, raw.Generation)
	return Value{kind: KindHandle, payload: payload}
}

func (v Value) Kind() Kind {
	return v.kind
}

// Payload 返回字段负载的副本。
func (v Value) Payload() []byte {
	return append([]byte{}, v.payload...)
}

// Equal 判断两个值的类型与负载是否完全一致。
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && string(v.payload) == string(o.payload)
}

// Handle 将值解码为句柄，调用方需保证 Kind 为 KindHandle。
func (v Value) Handle() handle.Raw {
	return handle.Raw{
		Index:      binary.LittleEndian.Uint32(v.payload[0:4]),
		Generation: binary.LittleEndian.Uint32(v.payload[4:8]),
	}
}

// Any 将值解码为对应的 Go 类型，句柄解码为 handle.Raw。
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return decodePrimitive[bool](v.payload)
	case KindInt8:
		return decodePrimitive[int8](v.payload)
	case KindInt16:
		return decodePrimitive[int16](v.payload)
	case KindInt32:
		return decodePrimitive[int32](v.payload)
	case KindInt64:
		return decodePrimitive[int64](v.payload)
	case KindUint8:
		return decodePrimitive[uint8](v.payload)
	case KindUint16:
		return decodePrimitive[uint16](v.payload)
	case KindUint32:
		return decodePrimitive[uint32](v.payload)
	case KindUint64:
		return decodePrimitive[uint64](v.payload)
	case KindFloat32:
		return decodePrimitive[float32](v.payload)
	case KindFloat64:
		return decodePrimitive[float64](v.payload)
	case KindString:
		return decodePrimitive[string](v.payload)
	case KindBytes:
		return decodePrimitive[[]byte](v.payload)
	case KindHandle:
		return v.Handle()
	default:
		return nil
	}
}

func kindOf[T Primitive]() Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return KindBool
	case int8:
		return KindInt8
	case int16:
		return KindInt16
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case uint8:
		return KindUint8
	case uint16:
		return KindUint16
	case uint32:
		return KindUint32
	case uint64:
		return KindUint64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case string:
		return KindString
	case []byte:
		return KindBytes
	default:
		return KindInvalid
	}
}

// decodePrimitive 解码负载，调用方需保证负载长度与类型匹配。
func decodePrimitive[T Primitive](payload []byte) T {
	var out T
	switch p := any(&out).(type) {
	case *bool:
		*p = payload[0] != 0
	case *int8:
		*p = int8(payload[0])
	case *uint8:
		*p = payload[0]
	case *int16:
		*p = int16(binary.LittleEndian.Uint16(payload))
	case *uint16:
		*p = binary.LittleEndian.Uint16(payload)
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(payload))
	case *uint32:
		*p = binary.LittleEndian.Uint32(payload)
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(payload))
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(payload))
	case *uint64:
		*p = binary.LittleEndian.Uint64(payload)
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(payload))
	case *string:
		*p = string(payload)
	case *[]byte:
		*p = append([]byte{}, payload...)
	}
	return out
}

// checkPayload 校验负载长度以及 bool 的取值范围。
func checkPayload(kind Kind, payload []byte) bool {
	if size := kind.fixedSize(); size >= 0 && len(payload) != size {
		return false
	}
	if kind == KindBool && payload[0] > 1 {
		return false
	}
	return true
}
