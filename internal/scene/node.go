package scene

import (
	"maps"
	"slices"

	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
	"github.com/lk2023060901/danmu-garden-scene/internal/visitor"
)

// NodeHandle 是场景内节点的句柄。
type NodeHandle = handle.Handle[*Node]

// NodeKind 区分节点的用途。
type NodeKind uint8

const (
	NodeKindPivot NodeKind = iota
	NodeKindMesh
	NodeKindSprite
	NodeKindLight
	NodeKindCamera
	NodeKindSound
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindPivot:
		return "pivot"
	case NodeKindMesh:
		return "mesh"
	case NodeKindSprite:
		return "sprite"
	case NodeKindLight:
		return "light"
	case NodeKindCamera:
		return "camera"
	case NodeKindSound:
		return "sound"
	default:
		return "unknown"
	}
}

// Vec3 是三维向量。
type Vec3 struct {
	X, Y, Z float32
}

func (v *Vec3) Visit(name string, vis *visitor.Visitor) error {
	guard, err := vis.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	if err := visitor.VisitValue(vis, "X", &v.X); err != nil {
		return err
	}
	if err := visitor.VisitValue(vis, "Y", &v.Y); err != nil {
		return err
	}
	return visitor.VisitValue(vis, "Z", &v.Z)
}

// Transform 是节点相对父节点的局部变换，旋转以欧拉角（弧度）表示。
type Transform struct {
	Position Vec3
	Rotation Vec3
	Scale    Vec3
}

// IdentityTransform 返回单位变换。
func IdentityTransform() Transform {
	return Transform{Scale: Vec3{X: 1, Y: 1, Z: 1}}
}

func (t *Transform) Visit(name string, vis *visitor.Visitor) error {
	guard, err := vis.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	if err := t.Position.Visit("Position", vis); err != nil {
		return err
	}
	if err := t.Rotation.Visit("Rotation", vis); err != nil {
		return err
	}
	return t.Scale.Visit("Scale", vis)
}

// Node 是场景图中的一个节点。节点之间只通过句柄互相引用。
type Node struct {
	Name     string
	Kind     NodeKind
	Parent   NodeHandle
	Children []NodeHandle
	// Original 指向派生来源模板中的对应节点，非派生场景中为 NONE。
	Original   NodeHandle
	Transform  Transform
	Visible    bool
	Script     string
	Properties map[string]string
}

// NewNode 创建一个可见的、带单位变换的节点。
func NewNode(name string, kind NodeKind) *Node {
	return &Node{
		Name:       name,
		Kind:       kind,
		Transform:  IdentityTransform(),
		Visible:    true,
		Properties: make(map[string]string),
	}
}

// Clone 返回节点的深拷贝。
func (n *Node) Clone() *Node {
	c := *n
	c.Children = slices.Clone(n.Children)
	c.Properties = maps.Clone(n.Properties)
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	return &c
}

func (n *Node) Visit(name string, vis *visitor.Visitor) error {
	guard, err := vis.Region(name)
	if err != nil {
		return err
	}
	defer guard.Close()

	if err := visitor.VisitValue(vis, "Name", &n.Name); err != nil {
		return err
	}
	if err := visitor.VisitEnum(vis, "Kind", &n.Kind); err != nil {
		return err
	}
	if err := visitor.VisitHandle(vis, "Parent", &n.Parent); err != nil {
		return err
	}
	if err := visitor.VisitHandles(vis, "Children", &n.Children); err != nil {
		return err
	}
	if err := visitor.VisitHandle(vis, "Original", &n.Original); err != nil {
		return err
	}
	if err := n.Transform.Visit("Transform", vis); err != nil {
		return err
	}
	if err := visitor.VisitOptional(vis, "Visible", &n.Visible, true); err != nil {
		return err
	}
	if err := visitor.VisitOptional(vis, "Script", &n.Script, ""); err != nil {
		return err
	}
	if vis.IsReading() && !vis.HasRegion("Properties") {
		n.Properties = make(map[string]string)
		return nil
	}
	if n.Properties == nil {
		n.Properties = make(map[string]string)
	}
	return visitor.VisitStringMap(vis, "Properties", &n.Properties)
}

func visitNode(vis *visitor.Visitor, name string, n **Node) error {
	if *n == nil {
		*n = &Node{}
	}
	return (*n).Visit(name, vis)
}
