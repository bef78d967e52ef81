// Package plugin 定义宿主与插件之间的生命周期回调约定。
package plugin

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/lk2023060901/danmu-garden-scene/internal/scene"
	"github.com/lk2023060901/danmu-garden-scene/pkg/log"
)

// Plugin 是插件需要实现的回调集合。所有回调都在宿主的驱动线程上依次调用，互不并发。
//
// 调用顺序：
//   - OnSceneBeginLoading：开始加载新场景、旧场景尚未销毁之前。插件应在此丢弃
//     指向即将被替换场景的句柄；
//   - OnSceneLoaded：新场景已完整驻留，插件在此保存新场景的句柄；
//   - OnSceneLoadFailed：加载失败，不会再有对应的 OnSceneLoaded；
//   - OnUpdate：每个 tick 调用一次。
type Plugin interface {
	OnSceneBeginLoading(path string, ctx *Context)
	OnSceneLoaded(path string, h scene.Handle, data []byte, ctx *Context)
	OnSceneLoadFailed(path string, err error, ctx *Context)
	OnUpdate(ctx *Context)
}

// Base 提供所有回调的空实现，插件通过嵌入 Base 只覆盖关心的回调。
type Base struct{}

func (Base) OnSceneBeginLoading(string, *Context)                 {}
func (Base) OnSceneLoaded(string, scene.Handle, []byte, *Context) {}
func (Base) OnSceneLoadFailed(string, error, *Context)            {}
func (Base) OnUpdate(*Context)                                    {}

var _ Plugin = Base{}

// Initializer 由需要在添加到宿主时做初始化的插件实现，例如发起第一个场景的加载请求。
type Initializer interface {
	Init(ctx *Context) error
}

// Registrant 由需要注册脚本的插件实现，宿主在添加插件时调用。
type Registrant interface {
	Register(rc *RegistrationContext) error
}

// Loader 是插件可以使用的异步加载接口。
type Loader interface {
	Request(path string)
	RequestRaw(path string)
}

// Context 是回调时传给插件的宿主上下文，只在回调期间有效。
type Context struct {
	context.Context

	// Scenes 是宿主持有的场景容器。
	Scenes *scene.Container
	// Loader 用于发起异步加载请求。
	Loader Loader
	// FS 是存档读写使用的文件系统。
	FS afero.Fs
	// Tick 是当前 tick 的序号，从 1 开始。
	Tick uint64
	// Dt 是距上一个 tick 的时间。
	Dt time.Duration
	// Elapsed 是宿主启动以来经过的时间。
	Elapsed time.Duration

	exit func()
}

// NewContext 创建一个插件上下文，exit 在插件请求退出时被调用。
func NewContext(ctx context.Context, scenes *scene.Container, loader Loader, fs afero.Fs, exit func()) *Context {
	return &Context{
		Context: ctx,
		Scenes:  scenes,
		Loader:  loader,
		FS:      fs,
		exit:    exit,
	}
}

// RequestExit 请求宿主在当前 tick 结束后退出。
func (c *Context) RequestExit() {
	if c.exit != nil {
		c.exit()
	}
}

// Logger 返回携带上下文字段的 logger。
func (c *Context) Logger() *log.MLogger {
	return log.Ctx(c.Context)
}
