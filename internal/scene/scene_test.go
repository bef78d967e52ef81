package scene

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/danmu-garden-scene/internal/pool/handle"
	"github.com/lk2023060901/danmu-garden-scene/internal/visitor"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

type SceneSuite struct {
	suite.Suite

	scene  *Scene
	house  NodeHandle
	door   NodeHandle
	garden NodeHandle
}

func (s *SceneSuite) SetupTest() {
	s.scene = New("garden")
	s.scene.Source = "data/garden.rgs"

	var err error
	house := NewNode("House", NodeKindMesh)
	house.Transform.Position = Vec3{X: 1, Y: 2, Z: 3}
	house.Properties["material"] = "brick"
	s.house, err = s.scene.AddNode(NodeHandle{}, house)
	s.Require().NoError(err)

	door := NewNode("Door", NodeKindMesh)
	door.Script = "door"
	door.Visible = false
	s.door, err = s.scene.AddNode(s.house, door)
	s.Require().NoError(err)

	s.garden, err = s.scene.AddNode(s.scene.Root(), NewNode("Garden", NodeKindPivot))
	s.Require().NoError(err)
}

func (s *SceneSuite) TestGraph() {
	s.Equal(4, s.scene.Len())
	root := s.scene.MustNode(s.scene.Root())
	s.Equal([]NodeHandle{s.house, s.garden}, root.Children)
	s.Equal(s.house, s.scene.MustNode(s.door).Parent)

	h, ok := s.scene.FindByName("Door")
	s.True(ok)
	s.Equal(s.door, h)
	_, ok = s.scene.FindByName("Shed")
	s.False(ok)

	_, err := s.scene.AddNode(handle.New[*Node](42, 1), NewNode("Orphan", NodeKindPivot))
	s.ErrorIs(err, merr.ErrSceneNodeNotFound)
	_, err = s.scene.AddNode(NodeHandle{}, nil)
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func (s *SceneSuite) TestRemoveNode() {
	s.True(s.scene.RemoveNode(s.house))
	s.False(s.scene.IsValid(s.house))
	s.False(s.scene.IsValid(s.door))
	s.Equal(2, s.scene.Len())
	s.Equal([]NodeHandle{s.garden}, s.scene.MustNode(s.scene.Root()).Children)

	// 重复移除与移除根节点都是无操作。
	s.False(s.scene.RemoveNode(s.house))
	s.False(s.scene.RemoveNode(NodeHandle{}))
	s.False(s.scene.RemoveNode(s.scene.Root()))

	// 复用槽位后旧句柄依然无效。
	h, err := s.scene.AddNode(NodeHandle{}, NewNode("Shed", NodeKindMesh))
	s.Require().NoError(err)
	s.NotEqual(s.house, h)
	s.False(s.scene.IsValid(s.house))
	s.Panics(func() { s.scene.MustNode(s.door) })
}

func (s *SceneSuite) TestSaveLoadRoundTrip() {
	// 制造空闲槽位，验证代数在存档后保持一致。
	tmp, err := s.scene.AddNode(s.garden, NewNode("Tmp", NodeKindSound))
	s.Require().NoError(err)
	s.True(s.scene.RemoveNode(tmp))

	data, err := s.scene.ToBytes()
	s.Require().NoError(err)
	loaded, err := FromBytes(data)
	s.Require().NoError(err)

	s.Equal(s.scene.Name, loaded.Name)
	s.Equal(s.scene.Source, loaded.Source)
	s.Equal(s.scene.Root(), loaded.Root())
	s.Equal(slotShape(s.scene), slotShape(loaded))
	s.False(loaded.IsValid(tmp))

	door := loaded.MustNode(s.door)
	s.Equal("door", door.Script)
	s.False(door.Visible)
	s.Equal("brick", loaded.MustNode(s.house).Properties["material"])
	s.Equal(Vec3{X: 1, Y: 2, Z: 3}, loaded.MustNode(s.house).Transform.Position)
	s.Equal(Vec3{X: 1, Y: 1, Z: 1}, loaded.MustNode(s.house).Transform.Scale)

	again, err := loaded.ToBytes()
	s.Require().NoError(err)
	s.Equal(data, again)
}

func (s *SceneSuite) TestLoadKeepsSceneOnFailure() {
	w := visitor.NewVisitor()
	g, err := w.BeginRegion(RegionName)
	s.Require().NoError(err)
	s.Require().NoError(visitor.Write(w, "Name", "broken"))
	g.Close()
	r, err := visitor.LoadFromBytes(s.mustBytes(w))
	s.Require().NoError(err)

	before := s.scene.Len()
	err = s.scene.Load(RegionName, r)
	s.ErrorIs(err, merr.ErrVisitorMissingField)
	s.Equal("garden", s.scene.Name)
	s.Equal(before, s.scene.Len())
}

func (s *SceneSuite) TestLoadRejectsOversizedNodePool() {
	w := visitor.NewVisitor()
	g, err := w.BeginRegion(RegionName)
	s.Require().NoError(err)
	s.Require().NoError(visitor.Write(w, "Name", "forged"))
	s.Require().NoError(w.WriteHandle("Root", handle.Raw{Index: 0, Generation: 1}))
	nodes, err := w.BeginRegion("Nodes")
	s.Require().NoError(err)
	s.Require().NoError(visitor.Write(w, "Capacity", uint32(0xFFFFFFFF)))
	nodes.Close()
	g.Close()

	_, err = FromBytes(s.mustBytes(w))
	s.ErrorIs(err, merr.ErrVisitorMalformedData)
}

func (s *SceneSuite) TestLoadRejectsDanglingReferences() {
	garden := s.scene.MustNode(s.garden)
	garden.Children = append(garden.Children, handle.New[*Node](99, 1))

	w := visitor.NewVisitor()
	s.Require().NoError(s.scene.Save(RegionName, w))
	r, err := visitor.LoadFromBytes(s.mustBytes(w))
	s.Require().NoError(err)

	_, err = FromVisitor(r)
	s.ErrorIs(err, merr.ErrSceneNodeNotFound)
}

func (s *SceneSuite) TestLoadRejectsInconsistentChildren() {
	garden := s.scene.MustNode(s.garden)
	garden.Children = append(garden.Children, s.door)

	data, err := s.scene.ToBytes()
	s.Require().NoError(err)
	_, err = FromBytes(data)
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *SceneSuite) TestSaveLoadModes() {
	r, err := visitor.LoadFromBytes(s.mustBytes(visitor.NewVisitor()))
	s.Require().NoError(err)
	s.ErrorIs(s.scene.Save(RegionName, r), merr.ErrVisitorModeMismatch)
	s.ErrorIs(s.scene.Load(RegionName, visitor.NewVisitor()), merr.ErrVisitorModeMismatch)

	_, err = FromVisitor(r)
	s.ErrorIs(err, merr.ErrVisitorMissingRegion)
}

func (s *SceneSuite) TestDerive() {
	derived := s.scene.Derive("saves/garden-1")
	s.True(derived.Derived)
	s.Equal("saves/garden-1", derived.Source)
	s.Equal(s.scene.Len(), derived.Len())

	door := derived.MustNode(s.door)
	s.Equal(s.door, door.Original)
	s.Equal(s.house, door.Parent)

	// 派生副本与模板互不影响。
	door.Name = "Gate"
	door.Properties["locked"] = "true"
	s.Equal("Door", s.scene.MustNode(s.door).Name)
	s.Empty(s.scene.MustNode(s.door).Properties)
	_, err := derived.AddNode(s.garden, NewNode("Bench", NodeKindMesh))
	s.Require().NoError(err)
	s.Len(s.scene.MustNode(s.garden).Children, 0)

	data, err := derived.ToBytes()
	s.Require().NoError(err)
	loaded, err := FromBytes(data)
	s.Require().NoError(err)
	s.True(loaded.Derived)
	s.Equal(s.door, loaded.MustNode(s.door).Original)
}

func (s *SceneSuite) TestTextRoundTrip() {
	w := visitor.NewVisitor()
	s.Require().NoError(s.scene.Save(RegionName, w))
	text, err := w.SaveToText()
	s.Require().NoError(err)

	r, err := visitor.LoadFromText(text)
	s.Require().NoError(err)
	loaded, err := FromVisitor(r)
	s.Require().NoError(err)
	s.Equal(slotShape(s.scene), slotShape(loaded))

	expected, err := s.scene.ToBytes()
	s.Require().NoError(err)
	actual, err := loaded.ToBytes()
	s.Require().NoError(err)
	s.Equal(expected, actual)
}

func (s *SceneSuite) mustBytes(v *visitor.Visitor) []byte {
	data, err := v.SaveToBytes()
	s.Require().NoError(err)
	return data
}

// slotShape 描述对象池中每个槽位的代数与占用情况。
func slotShape(sc *Scene) []string {
	var shape []string
	for _, slot := range sc.nodes.Slots() {
		shape = append(shape, fmt.Sprintf("%d/%t", slot.Generation, slot.Occupied))
	}
	return shape
}

func TestScene(t *testing.T) {
	suite.Run(t, new(SceneSuite))
}
