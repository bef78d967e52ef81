package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

type PoolSuite struct {
	suite.Suite
	pool *Pool[string]
}

func (s *PoolSuite) SetupTest() {
	s.pool = NewPool[string]()
}

func (s *PoolSuite) TestSpawnAndGet() {
	a := s.pool.Spawn("a")
	b := s.pool.Spawn("b")

	s.Equal(uint32(0), a.Index())
	s.Equal(uint32(1), b.Index())
	s.Equal(uint32(1), a.Generation())
	s.True(a.IsSome())

	v, ok := s.pool.Get(a)
	s.True(ok)
	s.Equal("a", v)
	s.Equal("b", s.pool.MustGet(b))
	s.Equal(2, s.pool.Len())
	s.Equal(2, s.pool.Capacity())
}

func (s *PoolSuite) TestRemoveInvalidatesAndReuses() {
	a := s.pool.Spawn("a")
	removed, ok := s.pool.Remove(a)
	s.True(ok)
	s.Equal("a", removed)
	s.False(s.pool.IsValid(a))

	_, ok = s.pool.Get(a)
	s.False(ok)

	c := s.pool.Spawn("c")
	s.Equal(a.Index(), c.Index())
	s.Equal(a.Generation()+1, c.Generation())
	s.False(s.pool.IsValid(a))
	s.True(s.pool.IsValid(c))
	s.Equal(1, s.pool.Capacity())
}

func (s *PoolSuite) TestRemoveInvalidIsNoop() {
	a := s.pool.Spawn("a")
	_, ok := s.pool.Remove(a)
	s.True(ok)

	_, ok = s.pool.Remove(a)
	s.False(ok)
	_, ok = s.pool.Remove(None[string]())
	s.False(ok)
	_, ok = s.pool.Remove(New[string](42, 1))
	s.False(ok)
	s.Equal(0, s.pool.Len())
}

func (s *PoolSuite) TestNoneNeverResolves() {
	s.pool.Spawn("a")
	none := None[string]()
	s.True(none.IsNone())
	s.False(s.pool.IsValid(none))
	s.Equal("none", none.String())

	// 下标 0 的槽位已被占用，但 NONE 仍然无效。
	_, ok := s.pool.Get(none)
	s.False(ok)
}

func (s *PoolSuite) TestMustGetPanicsOnStale() {
	a := s.pool.Spawn("a")
	s.pool.Remove(a)

	defer func() {
		r := recover()
		s.Require().NotNil(r)
		err, ok := r.(error)
		s.Require().True(ok)
		s.ErrorIs(err, merr.ErrHandleInvalid)
	}()
	s.pool.MustGet(a)
}

func (s *PoolSuite) TestBorrow() {
	counters := NewPool[int]()
	h := counters.Spawn(1)
	p, ok := counters.Borrow(h)
	s.Require().True(ok)
	*p = 5
	s.Equal(5, counters.MustGet(h))

	counters.Remove(h)
	_, ok = counters.Borrow(h)
	s.False(ok)
}

func (s *PoolSuite) TestRangeAndHandles() {
	a := s.pool.Spawn("a")
	b := s.pool.Spawn("b")
	c := s.pool.Spawn("c")
	s.pool.Remove(b)

	s.Equal([]Handle[string]{a, c}, s.pool.Handles())

	var visited []string
	s.pool.Range(func(_ Handle[string], v string) bool {
		visited = append(visited, v)
		return false
	})
	s.Equal([]string{"a"}, visited)

	s.Equal(c, s.pool.HandleAt(2))
	s.True(s.pool.HandleAt(1).IsNone())
	s.True(s.pool.HandleAt(99).IsNone())
}

func (s *PoolSuite) TestSlotsRoundTrip() {
	a := s.pool.Spawn("a")
	b := s.pool.Spawn("b")
	s.pool.Remove(a)
	a2 := s.pool.Spawn("a2")
	s.pool.Remove(b)

	restored := FromSlots(s.pool.Slots())
	s.Equal(s.pool.Len(), restored.Len())
	s.Equal(s.pool.Capacity(), restored.Capacity())
	s.Equal("a2", restored.MustGet(a2))
	s.False(restored.IsValid(a))
	s.False(restored.IsValid(b))

	// 被释放的槽位在恢复后仍会以更高代数复用。
	reused := restored.Spawn("x")
	s.Equal(b.Index(), reused.Index())
	s.Equal(b.Generation()+1, reused.Generation())
}

func (s *PoolSuite) TestClear() {
	a := s.pool.Spawn("a")
	s.pool.Spawn("b")
	s.pool.Clear()
	s.Equal(0, s.pool.Len())
	s.False(s.pool.IsValid(a))
}

func TestPool(t *testing.T) {
	suite.Run(t, new(PoolSuite))
}

func TestRaw(t *testing.T) {
	h := New[int](3, 2)
	raw := h.Raw()
	assert.Equal(t, Raw{Index: 3, Generation: 2}, raw)
	assert.Equal(t, "3:2", raw.String())
	require.Equal(t, h, FromRaw[int](raw))
	assert.True(t, Raw{}.IsNone())
}
