package scene

import (
	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
)

// Handle 是场景容器中场景的句柄。
type Handle = handle.Handle[*Scene]

// Container 以句柄管理所有驻留的场景，由宿主在驱动线程上独占访问。
type Container struct {
	pool *handle.Pool[*Scene]
}

func NewContainer() *Container {
	return &Container{pool: handle.NewPool[*Scene]()}
}

// Insert 放入场景并返回其句柄。
func (c *Container) Insert(s *Scene) Handle {
	return c.pool.Spawn(s)
}

// Remove 移除场景，旧句柄随之失效；对无效句柄调用不做任何事。
func (c *Container) Remove(h Handle) (*Scene, bool) {
	return c.pool.Remove(h)
}

// Get 返回句柄对应的场景。
func (c *Container) Get(h Handle) (*Scene, bool) {
	return c.pool.Get(h)
}

// MustGet 返回句柄对应的场景，句柄无效时 panic。
func (c *Container) MustGet(h Handle) *Scene {
	return c.pool.MustGet(h)
}

// IsValid 判断句柄是否指向驻留中的场景。
func (c *Container) IsValid(h Handle) bool {
	return c.pool.IsValid(h)
}

func (c *Container) Len() int {
	return c.pool.Len()
}

// Range 按句柄下标顺序遍历场景，回调返回 false 时提前结束。
func (c *Container) Range(fn func(h Handle, s *Scene) bool) {
	c.pool.Range(fn)
}

// Handles 返回所有驻留场景的句柄。
func (c *Container) Handles() []Handle {
	return c.pool.Handles()
}
