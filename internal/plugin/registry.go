package plugin

import (
	"github.com/lk2023060901/danmu-garden-scene/internal/scene"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/typeutil"
)

// Script 是挂在场景节点上的行为，由 Node.Script 按名称引用。
type Script interface {
	// OnInit 在脚本所属场景驻留后调用一次。
	OnInit(sc *ScriptContext) error
	// OnUpdate 在每个 tick 中、插件 OnUpdate 之前调用。
	OnUpdate(sc *ScriptContext)
}

// ScriptContext 是脚本回调的上下文。
type ScriptContext struct {
	*Context

	Scene scene.Handle
	Node  scene.NodeHandle
}

// ScriptFactory 创建一个新的脚本实例。
type ScriptFactory func() Script

// Registry 维护脚本名到工厂函数的映射，同名脚本不允许重复注册。
type Registry struct {
	names     typeutil.Set[string]
	factories map[string]ScriptFactory
	owners    map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		names:     typeutil.NewSet[string](),
		factories: make(map[string]ScriptFactory),
		owners:    make(map[string]string),
	}
}

// Register 注册一个脚本工厂，owner 用于在冲突时定位来源插件。
func (r *Registry) Register(owner, name string, factory ScriptFactory) error {
	if name == "" {
		return merr.WrapErrParameterMissing("script name")
	}
	if factory == nil {
		return merr.WrapErrParameterInvalidMsg("script %s has nil factory", name)
	}
	if r.names.Contain(name) {
		return merr.WrapErrPluginDuplicateScript(name + " registered by " + r.owners[name])
	}
	r.names.Insert(name)
	r.factories[name] = factory
	r.owners[name] = owner
	return nil
}

// Has 判断脚本是否已注册。
func (r *Registry) Has(name string) bool {
	return r.names.Contain(name)
}

// New 创建名为 name 的脚本实例。
func (r *Registry) New(name string) (Script, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, merr.WrapErrPluginUnknownScript(name)
	}
	return factory(), nil
}

// Names 返回按字典序排列的已注册脚本名。
func (r *Registry) Names() []string {
	return typeutil.Sorted(r.names)
}

func (r *Registry) Len() int {
	return r.names.Len()
}

// RegistrationContext 是插件注册脚本时使用的上下文。
type RegistrationContext struct {
	owner    string
	registry *Registry
}

// NewRegistrationContext 创建一个以 owner 名义向 registry 注册的上下文。
func NewRegistrationContext(owner string, registry *Registry) *RegistrationContext {
	return &RegistrationContext{owner: owner, registry: registry}
}

// RegisterScript 注册脚本。
func (rc *RegistrationContext) RegisterScript(name string, factory ScriptFactory) error {
	return rc.registry.Register(rc.owner, name, factory)
}

// Owner 返回注册方名称。
func (rc *RegistrationContext) Owner() string {
	return rc.owner
}
