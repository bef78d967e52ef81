package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

func TestContainer(t *testing.T) {
	c := NewContainer()
	a := c.Insert(New("a"))
	b := c.Insert(New("b"))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "a", c.MustGet(a).Name)

	removed, ok := c.Remove(a)
	assert.True(t, ok)
	assert.Equal(t, "a", removed.Name)
	assert.False(t, c.IsValid(a))
	_, ok = c.Get(a)
	assert.False(t, ok)

	_, ok = c.Remove(a)
	assert.False(t, ok)
	_, ok = c.Remove(Handle{})
	assert.False(t, ok)

	reused := c.Insert(New("c"))
	assert.Equal(t, a.Index(), reused.Index())
	assert.NotEqual(t, a, reused)
	assert.Equal(t, []Handle{reused, b}, c.Handles())

	assert.PanicsWithError(t, merr.WrapErrHandleInvalid(a.Index(), a.Generation()).Error(), func() {
		c.MustGet(a)
	})

	var names []string
	c.Range(func(_ Handle, s *Scene) bool {
		names = append(names, s.Name)
		return true
	})
	assert.Equal(t, []string{"c", "b"}, names)
}
