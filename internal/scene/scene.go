// Package scene 实现以句柄组织的场景图以及场景容器。
//
// 场景中的节点存放在对象池中，父子关系、模板来源等引用全部使用句柄表达，
// 因此场景可以被 visitor 无损地保存与加载，加载后句柄的下标与代数保持不变。
package scene

import (
	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
	"github.com/lk2023060901/danmu-garden-scene/internal/visitor"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

const (
	// RegionName 是场景在存档中使用的默认区域名。
	RegionName = "Scene"

	rootNodeName = "__ROOT__"
)

// Scene 是一张场景图。Scene 不是并发安全的，由宿主在驱动线程上独占访问。
type Scene struct {
	Name string
	// Source 是场景的来源资源路径。
	Source string
	// Derived 表示场景是否由模板派生而来。
	Derived bool

	nodes *handle.Pool[*Node]
	root  NodeHandle
}

// New 创建只包含根节点的空场景。
func New(name string) *Scene {
	s := &Scene{
		Name:  name,
		nodes: handle.NewPool[*Node](),
	}
	s.root = s.nodes.Spawn(NewNode(rootNodeName, NodeKindPivot))
	return s
}

// Root 返回根节点句柄。
func (s *Scene) Root() NodeHandle {
	return s.root
}

// Len 返回节点数量（包括根节点）。
func (s *Scene) Len() int {
	return s.nodes.Len()
}

// AddNode 把 node 挂到 parent 下并返回其句柄，parent 为 NONE 时挂到根节点下。
func (s *Scene) AddNode(parent NodeHandle, node *Node) (NodeHandle, error) {
	if node == nil {
		return NodeHandle{}, merr.WrapErrParameterMissing("node")
	}
	if parent.IsNone() {
		parent = s.root
	}
	p, ok := s.nodes.Get(parent)
	if !ok {
		return NodeHandle{}, merr.WrapErrSceneNodeNotFound(parent.String(), "parent")
	}
	node.Parent = parent
	node.Children = nil
	h := s.nodes.Spawn(node)
	p.Children = append(p.Children, h)
	return h, nil
}

// RemoveNode 移除节点及其整棵子树，返回是否移除成功。
// 根节点不可移除；对 NONE 或已失效的句柄调用不做任何事。
func (s *Scene) RemoveNode(h NodeHandle) bool {
	if h == s.root {
		return false
	}
	n, ok := s.nodes.Get(h)
	if !ok {
		return false
	}
	if p, ok := s.nodes.Get(n.Parent); ok {
		for i, c := range p.Children {
			if c == h {
				p.Children = append(p.Children[:i], p.Children[i+1:]...)
				break
			}
		}
	}
	s.removeSubtree(h)
	return true
}

func (s *Scene) removeSubtree(h NodeHandle) {
	n, ok := s.nodes.Remove(h)
	if !ok {
		return
	}
	for _, c := range n.Children {
		s.removeSubtree(c)
	}
}

// Node 返回句柄对应的节点。
func (s *Scene) Node(h NodeHandle) (*Node, bool) {
	return s.nodes.Get(h)
}

// MustNode 返回句柄对应的节点，句柄无效时 panic。
func (s *Scene) MustNode(h NodeHandle) *Node {
	return s.nodes.MustGet(h)
}

// IsValid 判断句柄是否指向场景中的存活节点。
func (s *Scene) IsValid(h NodeHandle) bool {
	return s.nodes.IsValid(h)
}

// FindByName 从根节点开始按广度优先顺序查找第一个名为 name 的节点。
func (s *Scene) FindByName(name string) (NodeHandle, bool) {
	queue := []NodeHandle{s.root}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		n, ok := s.nodes.Get(h)
		if !ok {
			continue
		}
		if n.Name == name {
			return h, true
		}
		queue = append(queue, n.Children...)
	}
	return NodeHandle{}, false
}

// Range 按句柄下标顺序遍历节点，回调返回 false 时提前结束。
func (s *Scene) Range(fn func(h NodeHandle, n *Node) bool) {
	s.nodes.Range(fn)
}

// Derive 以当前场景为模板派生出一个工作副本。
// 副本中的节点与模板节点句柄一一对应，并通过 Original 记录来源。
func (s *Scene) Derive(path string) *Scene {
	slots := s.nodes.Slots()
	for i := range slots {
		if !slots[i].Occupied {
			continue
		}
		original := handle.New[*Node](uint32(i), slots[i].Generation)
		clone := slots[i].Value.Clone()
		clone.Original = original
		slots[i].Value = clone
	}
	return &Scene{
		Name:    s.Name,
		Source:  path,
		Derived: true,
		nodes:   handle.FromSlots(slots),
		root:    s.root,
	}
}

// Visit 写入或读取场景。读模式下的结构校验由 Load 负责。
func (s *Scene) Visit(name string, v *visitor.Visitor) error {
	guard, err := v.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	if err := visitor.VisitValue(v, "Name", &s.Name); err != nil {
		return err
	}
	if err := visitor.VisitOptional(v, "Source", &s.Source, ""); err != nil {
		return err
	}
	if err := visitor.VisitOptional(v, "Derived", &s.Derived, false); err != nil {
		return err
	}
	if err := visitor.VisitHandle(v, "Root", &s.root); err != nil {
		return err
	}
	if s.nodes == nil {
		s.nodes = handle.NewPool[*Node]()
	}
	return visitor.VisitPool(v, "Nodes", s.nodes, visitNode)
}

// Save 把场景写入名为 name 的区域。
func (s *Scene) Save(name string, v *visitor.Visitor) error {
	if !v.IsWriting() {
		return merr.WrapErrVisitorModeMismatch(visitor.ModeWrite, v.Mode(), "Scene.Save")
	}
	return s.Visit(name, v)
}

// Load 从名为 name 的区域读取场景，并校验节点之间的引用。
// 失败时 s 保持不变。
func (s *Scene) Load(name string, v *visitor.Visitor) error {
	if !v.IsReading() {
		return merr.WrapErrVisitorModeMismatch(visitor.ModeRead, v.Mode(), "Scene.Load")
	}
	loaded := &Scene{nodes: handle.NewPool[*Node]()}
	if err := loaded.Visit(name, v); err != nil {
		return err
	}
	if err := loaded.validate(); err != nil {
		return err
	}
	*s = *loaded
	return nil
}

// validate 检查根节点存在、父子引用互相一致。
func (s *Scene) validate() error {
	root, ok := s.nodes.Get(s.root)
	if !ok {
		return merr.WrapErrSceneNodeNotFound(s.root.String(), "root")
	}
	if root.Parent.IsSome() {
		return merr.WrapErrParameterInvalidMsg("root node %s has parent %s", s.root, root.Parent)
	}
	var err error
	s.nodes.Range(func(h NodeHandle, n *Node) bool {
		if h != s.root {
			p, ok := s.nodes.Get(n.Parent)
			if !ok {
				err = merr.WrapErrSceneNodeNotFound(n.Parent.String(), "parent of "+h.String())
				return false
			}
			found := false
			for _, c := range p.Children {
				if c == h {
					found = true
					break
				}
			}
			if !found {
				err = merr.WrapErrParameterInvalidMsg("node %s is not a child of its parent %s", h, n.Parent)
				return false
			}
		}
		for _, c := range n.Children {
			child, ok := s.nodes.Get(c)
			if !ok {
				err = merr.WrapErrSceneNodeNotFound(c.String(), "child of "+h.String())
				return false
			}
			if child.Parent != h {
				err = merr.WrapErrParameterInvalidMsg("node %s lists %s as child but its parent is %s", h, c, child.Parent)
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}

	// 所有节点都必须能从根节点到达，且只出现一次。
	reached := 0
	queue := []NodeHandle{s.root}
	for len(queue) > 0 {
		n := s.nodes.MustGet(queue[0])
		queue = append(queue[1:], n.Children...)
		reached++
		if reached > s.nodes.Len() {
			return merr.WrapErrParameterInvalidMsg("node listed more than once in scene %s", s.Name)
		}
	}
	if reached != s.nodes.Len() {
		return merr.WrapErrParameterInvalidMsg("%d nodes unreachable from root in scene %s", s.nodes.Len()-reached, s.Name)
	}
	return nil
}

// FromVisitor 从读模式的 Visitor 中加载名为 RegionName 的场景。
func FromVisitor(v *visitor.Visitor) (*Scene, error) {
	s := &Scene{}
	if err := s.Load(RegionName, v); err != nil {
		return nil, err
	}
	return s, nil
}

// FromBytes 从二进制存档中加载场景。
func FromBytes(data []byte, opts ...visitor.Option) (*Scene, error) {
	v, err := visitor.LoadFromBytes(data, opts...)
	if err != nil {
		return nil, err
	}
	return FromVisitor(v)
}

// ToBytes 把场景编码为二进制存档。
func (s *Scene) ToBytes(opts ...visitor.Option) ([]byte, error) {
	v := visitor.NewVisitor(opts...)
	if err := s.Save(RegionName, v); err != nil {
		return nil, err
	}
	return v.SaveToBytes()
}
