package visitor

import (
	"strings"
)

// RootRegionName 是每棵区域树根节点的名称。
const RootRegionName = "__root"

// Field 是挂在区域上的一条字段记录。
type Field struct {
	Name    string
	Kind    Kind
	Payload []byte
}

// Value 返回字段值。
func (f *Field) Value() Value {
	return Value{kind: f.Kind, payload: f.Payload}
}

// Region 是序列化树中的一个具名节点，按写入顺序保存字段与子区域。
type Region struct {
	Name string

	parent     *Region
	fields     []*Field
	fieldIndex map[string]int
	children   []*Region
	childIndex map[string]int
}

func newRegion(name string) *Region {
	return &Region{
		Name:       name,
		fieldIndex: make(map[string]int),
		childIndex: make(map[string]int),
	}
}

// Parent 返回父区域，根区域返回 nil。
func (r *Region) Parent() *Region {
	return r.parent
}

// Path 返回从根区域到当前区域的路径，用于错误信息。
func (r *Region) Path() string {
	var names []string
	for cur := r; cur != nil; cur = cur.parent {
		names = append(names, cur.Name)
	}
	var sb strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		sb.WriteString(names[i])
		if i > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// addField 追加字段，同名字段已存在时返回 false。
func (r *Region) addField(f *Field) bool {
	if _, ok := r.fieldIndex[f.Name]; ok {
		return false
	}
	r.fieldIndex[f.Name] = len(r.fields)
	r.fields = append(r.fields, f)
	return true
}

// addChild 追加子区域，同名子区域已存在时返回 false。
func (r *Region) addChild(c *Region) bool {
	if _, ok := r.childIndex[c.Name]; ok {
		return false
	}
	c.parent = r
	r.childIndex[c.Name] = len(r.children)
	r.children = append(r.children, c)
	return true
}

// Field 按名称查找字段。
func (r *Region) Field(name string) (*Field, bool) {
	i, ok := r.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return r.fields[i], true
}

// Child 按名称查找子区域。
func (r *Region) Child(name string) (*Region, bool) {
	i, ok := r.childIndex[name]
	if !ok {
		return nil, false
	}
	return r.children[i], true
}

// Fields 按写入顺序返回字段列表，调用方不得修改。
func (r *Region) Fields() []*Field {
	return r.fields
}

// Children 按写入顺序返回子区域列表，调用方不得修改。
func (r *Region) Children() []*Region {
	return r.children
}

// Equal 判断两棵区域树在名称、字段与子区域顺序上是否完全一致。
func (r *Region) Equal(o *Region) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Name != o.Name || len(r.fields) != len(o.fields) || len(r.children) != len(o.children) {
		return false
	}
	for i, f := range r.fields {
		g := o.fields[i]
		if f.Name != g.Name || !f.Value().Equal(g.Value()) {
			return false
		}
	}
	for i, c := range r.children {
		if !c.Equal(o.children[i]) {
			return false
		}
	}
	return true
}
