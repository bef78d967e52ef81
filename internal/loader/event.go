package loader

import (
	"github.com/lk2023060901/danmu-garden-scene/internal/scene"
)

// EventKind 区分加载事件的类型。
type EventKind int8

const (
	// EventBeginLoading 在请求被受理时立即产生。
	EventBeginLoading EventKind = iota + 1
	// EventLoaded 在请求完成（成功或失败）后产生。
	EventLoaded
)

func (k EventKind) String() string {
	switch k {
	case EventBeginLoading:
		return "begin_loading"
	case EventLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Event 是加载器交给驱动线程处理的事件。
type Event struct {
	Kind EventKind
	Path string
	// Raw 表示请求是否原样加载（不从模板派生）。
	Raw bool

	// 以下字段仅在 EventLoaded 中有效。
	// Scene 为加载得到的场景，失败时为 nil。
	Scene *scene.Scene
	// Data 为读取到的原始字节，同一路径的并发请求可能共享该切片，调用方不得修改。
	Data []byte
	Err  error
}

// OK 判断加载是否成功。
func (e Event) OK() bool {
	return e.Kind == EventLoaded && e.Err == nil
}
