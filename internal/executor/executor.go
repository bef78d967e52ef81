// Package executor 实现插件宿主：驱动 tick 循环、分发加载事件并调用插件与脚本回调。
//
// 所有插件回调都在调用 Tick 的协程上串行执行。
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-garden-scene/internal/loader"
	"github.com/lk2023060901/danmu-garden-scene/internal/plugin"
	"github.com/lk2023060901/danmu-garden-scene/internal/scene"
	"github.com/lk2023060901/danmu-garden-scene/internal/visitor"
	"github.com/lk2023060901/danmu-garden-scene/pkg/log"
	"github.com/lk2023060901/danmu-garden-scene/pkg/metrics"
)

type scriptInstance struct {
	node   scene.NodeHandle
	name   string
	script plugin.Script
}

// Executor 持有场景容器、加载器和插件列表。
type Executor struct {
	log.Binder

	cfg      Config
	fs       afero.Fs
	loader   *loader.Loader
	scenes   *scene.Container
	registry *plugin.Registry
	plugins  []plugin.Plugin
	scripts  map[scene.Handle][]*scriptInstance
	pctx     *plugin.Context

	tick    uint64
	started time.Time
	last    time.Time

	exit     atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New 创建一个从 fs 加载场景的宿主，opts 用于解析场景与存档。
func New(fs afero.Fs, cfg Config, opts ...visitor.Option) *Executor {
	e := &Executor{
		cfg:      cfg,
		fs:       fs,
		loader:   loader.New(fs, cfg.Loader, opts...),
		scenes:   scene.NewContainer(),
		registry: plugin.NewRegistry(),
		scripts:  make(map[scene.Handle][]*scriptInstance),
		stopCh:   make(chan struct{}),
	}
	e.BindComponent("executor")
	e.pctx = plugin.NewContext(log.WithModule(context.Background(), "plugin"), e.scenes, e.loader, fs, e.requestExit)
	return e
}

// AddPlugin 添加一个插件。实现了 Registrant 的插件会先注册脚本，
// 实现了 Initializer 的插件随后被初始化。
func (e *Executor) AddPlugin(p plugin.Plugin) error {
	name := fmt.Sprintf("%T", p)
	if r, ok := p.(plugin.Registrant); ok {
		if err := r.Register(plugin.NewRegistrationContext(name, e.registry)); err != nil {
			return err
		}
	}
	if in, ok := p.(plugin.Initializer); ok {
		if err := in.Init(e.pctx); err != nil {
			return err
		}
	}
	e.plugins = append(e.plugins, p)
	e.Logger().Info("plugin added", zap.String("plugin", name), zap.Int("scripts", e.registry.Len()))
	return nil
}

func (e *Executor) Scenes() *scene.Container {
	return e.scenes
}

func (e *Executor) Loader() *loader.Loader {
	return e.loader
}

func (e *Executor) Registry() *plugin.Registry {
	return e.registry
}

// Context 返回传给插件的宿主上下文。
func (e *Executor) Context() *plugin.Context {
	return e.pctx
}

// TickCount 返回已经执行的 tick 数。
func (e *Executor) TickCount() uint64 {
	return e.tick
}

// ExitRequested 判断是否有插件请求了退出。
func (e *Executor) ExitRequested() bool {
	return e.exit.Load()
}

func (e *Executor) requestExit() {
	e.exit.Store(true)
}

// Tick 执行一次更新：分发加载事件，更新脚本，最后调用插件的 OnUpdate。
func (e *Executor) Tick() {
	now := time.Now()
	if e.started.IsZero() {
		e.started = now
		e.last = now
	}
	e.tick++
	e.pctx.Tick = e.tick
	e.pctx.Dt = now.Sub(e.last)
	e.pctx.Elapsed = now.Sub(e.started)
	e.last = now

	for _, ev := range e.loader.Poll() {
		e.dispatch(ev)
	}

	e.updateScripts()

	for _, p := range e.plugins {
		p.OnUpdate(e.pctx)
	}
	metrics.ExecutorHookTotal.WithLabelValues(metrics.UpdateHookLabel).Add(float64(len(e.plugins)))
	metrics.ExecutorTickTotal.Inc()
	metrics.ExecutorLiveScenes.Set(float64(e.scenes.Len()))
}

func (e *Executor) dispatch(ev loader.Event) {
	switch ev.Kind {
	case loader.EventBeginLoading:
		for _, p := range e.plugins {
			p.OnSceneBeginLoading(ev.Path, e.pctx)
		}
		metrics.ExecutorHookTotal.WithLabelValues(metrics.BeginLoadingHookLabel).Add(float64(len(e.plugins)))
	case loader.EventLoaded:
		if !ev.OK() {
			e.Logger().Warn("scene load failed", log.FieldPath(ev.Path), zap.Error(ev.Err))
			for _, p := range e.plugins {
				p.OnSceneLoadFailed(ev.Path, ev.Err, e.pctx)
			}
			metrics.ExecutorHookTotal.WithLabelValues(metrics.LoadFailedHookLabel).Add(float64(len(e.plugins)))
			return
		}
		h := e.scenes.Insert(ev.Scene)
		e.instantiateScripts(h, ev.Scene)
		e.Logger().Info("scene resident",
			log.FieldPath(ev.Path),
			log.FieldHandle("scene", h.Index(), h.Generation()),
			zap.Int("nodes", ev.Scene.Len()),
			zap.Int("scripts", len(e.scripts[h])))
		for _, p := range e.plugins {
			p.OnSceneLoaded(ev.Path, h, ev.Data, e.pctx)
		}
		metrics.ExecutorHookTotal.WithLabelValues(metrics.LoadedHookLabel).Add(float64(len(e.plugins)))
	}
}

// instantiateScripts 为场景中所有引用了脚本的节点创建并初始化脚本实例。
// 未注册的脚本和初始化失败的脚本只记录日志，不影响场景本身。
func (e *Executor) instantiateScripts(h scene.Handle, s *scene.Scene) {
	var instances []*scriptInstance
	s.Range(func(nh scene.NodeHandle, n *scene.Node) bool {
		if n.Script == "" {
			return true
		}
		script, err := e.registry.New(n.Script)
		if err != nil {
			e.Logger().Warn("skip node script", zap.String("node", n.Name), zap.Error(err))
			return true
		}
		instances = append(instances, &scriptInstance{node: nh, name: n.Script, script: script})
		return true
	})

	live := instances[:0]
	for _, inst := range instances {
		sc := &plugin.ScriptContext{Context: e.pctx, Scene: h, Node: inst.node}
		if err := inst.script.OnInit(sc); err != nil {
			e.Logger().Warn("script init failed", zap.String("script", inst.name), zap.Error(err))
			continue
		}
		live = append(live, inst)
	}
	if len(live) > 0 {
		e.scripts[h] = live
	}
}

// updateScripts 按场景句柄顺序更新脚本，已被移除的场景或节点上的脚本会被丢弃。
func (e *Executor) updateScripts() {
	for h := range e.scripts {
		if !e.scenes.IsValid(h) {
			delete(e.scripts, h)
		}
	}
	for _, h := range e.scenes.Handles() {
		instances, ok := e.scripts[h]
		if !ok {
			continue
		}
		s := e.scenes.MustGet(h)
		live := instances[:0]
		for _, inst := range instances {
			if !s.IsValid(inst.node) {
				continue
			}
			inst.script.OnUpdate(&plugin.ScriptContext{Context: e.pctx, Scene: h, Node: inst.node})
			live = append(live, inst)
		}
		e.scripts[h] = live
	}
}

// Run 以配置的频率循环执行 Tick，直到 ctx 结束、调用 Stop 或有插件请求退出。
// 返回前会关闭加载器。
func (e *Executor) Run(ctx context.Context) error {
	interval := e.cfg.Interval()
	e.pctx.Context = ctx
	e.Logger().Info("executor started", zap.Duration("interval", interval), zap.Int("plugins", len(e.plugins)))
	defer e.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Logger().Info("executor context done", zap.Error(ctx.Err()))
			return nil
		case <-e.stopCh:
			e.Logger().Info("executor stopped")
			return nil
		case <-ticker.C:
			e.Tick()
			if e.ExitRequested() {
				e.Logger().Info("exit requested by plugin", zap.Uint64("tick", e.tick))
				return nil
			}
		}
	}
}

// Stop 通知 Run 退出，可以从任意协程调用，重复调用无副作用。
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
}

// Close 关闭加载器并等待后台请求结束。
func (e *Executor) Close() {
	e.loader.Close()
}
