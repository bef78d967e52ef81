package loader

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/danmu-garden-scene/internal/scene"
	"github.com/lk2023060901/danmu-garden-scene/internal/visitor"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

// flakyFs 在前 failures 次 Open 时返回 io.ErrUnexpectedEOF。
type flakyFs struct {
	afero.Fs
	failures int32
	opens    atomic.Int32
}

func (f *flakyFs) Open(name string) (afero.File, error) {
	if f.opens.Add(1) <= f.failures {
		return nil, io.ErrUnexpectedEOF
	}
	return f.Fs.Open(name)
}

type LoaderSuite struct {
	suite.Suite

	fs       afero.Fs
	template *scene.Scene
	door     scene.NodeHandle
	data     []byte
	loader   *Loader
}

func (s *LoaderSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()
	s.template = scene.New("garden")
	var err error
	s.door, err = s.template.AddNode(scene.NodeHandle{}, scene.NewNode("Door", scene.NodeKindMesh))
	s.Require().NoError(err)

	s.data, err = s.template.ToBytes()
	s.Require().NoError(err)
	s.Require().NoError(afero.WriteFile(s.fs, "data/garden.rgs", s.data, 0o644))

	s.loader = New(s.fs, Config{Workers: 2, RetryAttempts: 3, RetrySleep: time.Millisecond})
}

func (s *LoaderSuite) TearDownTest() {
	s.loader.Close()
}

// collect 持续 Poll，直到收到 n 个 EventLoaded。
func (s *LoaderSuite) collect(l *Loader, n int) []Event {
	var events []Event
	loaded := 0
	s.Require().Eventually(func() bool {
		for _, ev := range l.Poll() {
			events = append(events, ev)
			if ev.Kind == EventLoaded {
				loaded++
			}
		}
		return loaded >= n
	}, 5*time.Second, time.Millisecond)
	return events
}

func (s *LoaderSuite) TestRequestDerives() {
	s.loader.Request("data/garden.rgs")
	events := s.collect(s.loader, 1)
	s.Require().Len(events, 2)

	s.Equal(EventBeginLoading, events[0].Kind)
	s.Equal("data/garden.rgs", events[0].Path)
	s.False(events[0].OK())

	loaded := events[1]
	s.Equal(EventLoaded, loaded.Kind)
	s.Require().True(loaded.OK())
	s.False(loaded.Raw)
	s.True(loaded.Scene.Derived)
	s.Equal("data/garden.rgs", loaded.Scene.Source)
	s.Equal(s.data, loaded.Data)
	s.Equal(s.door, loaded.Scene.MustNode(s.door).Original)
}

func (s *LoaderSuite) TestRequestRaw() {
	s.loader.RequestRaw("data/garden.rgs")
	events := s.collect(s.loader, 1)
	s.Require().Len(events, 2)

	loaded := events[1]
	s.Require().True(loaded.OK())
	s.True(loaded.Raw)
	s.False(loaded.Scene.Derived)
	s.True(loaded.Scene.MustNode(s.door).Original.IsNone())
	s.Equal(s.template.Len(), loaded.Scene.Len())
}

func (s *LoaderSuite) TestBeginEventsInRequestOrder() {
	paths := []string{"data/garden.rgs", "missing-1.rgs", "data/garden.rgs", "missing-2.rgs"}
	for i, path := range paths {
		if i%2 == 0 {
			s.loader.Request(path)
		} else {
			s.loader.RequestRaw(path)
		}
	}
	events := s.collect(s.loader, len(paths))

	var begins []string
	seen := make(map[string]int)
	for _, ev := range events {
		switch ev.Kind {
		case EventBeginLoading:
			begins = append(begins, ev.Path)
			seen[ev.Path]++
		case EventLoaded:
			// 每个 Loaded 之前必然已经出现过同一路径的 BeginLoading。
			s.Positive(seen[ev.Path])
		}
	}
	s.Equal(paths, begins)
}

func (s *LoaderSuite) TestMissingFile() {
	s.loader.Request("nope.rgs")
	events := s.collect(s.loader, 1)
	loaded := events[len(events)-1]
	s.False(loaded.OK())
	s.Nil(loaded.Scene)
	s.ErrorIs(loaded.Err, merr.ErrIoFailed)
}

func (s *LoaderSuite) TestMalformedFile() {
	s.Require().NoError(afero.WriteFile(s.fs, "broken.rgs", s.data[:len(s.data)-3], 0o644))
	s.loader.RequestRaw("broken.rgs")
	events := s.collect(s.loader, 1)
	s.ErrorIs(events[len(events)-1].Err, merr.ErrVisitorMalformedData)
}

func (s *LoaderSuite) TestTextFile() {
	v := visitor.NewVisitor()
	s.Require().NoError(s.template.Save(scene.RegionName, v))
	text, err := v.SaveToText()
	s.Require().NoError(err)
	s.Require().NoError(afero.WriteFile(s.fs, "garden.json", text, 0o644))

	s.loader.RequestRaw("garden.json")
	events := s.collect(s.loader, 1)
	loaded := events[len(events)-1]
	s.Require().True(loaded.OK())
	s.Equal("garden", loaded.Scene.Name)
	s.True(IsTextPath("A.JSON"))
	s.False(IsTextPath("a.rgs"))
}

func (s *LoaderSuite) TestRetryTransientErrors() {
	fs := &flakyFs{Fs: s.fs, failures: 2}
	l := New(fs, Config{Workers: 1, RetryAttempts: 3, RetrySleep: time.Millisecond})
	defer l.Close()

	l.RequestRaw("data/garden.rgs")
	events := s.collect(l, 1)
	s.True(events[len(events)-1].OK())
	s.EqualValues(3, fs.opens.Load())
}

func (s *LoaderSuite) TestRetryGivesUp() {
	fs := &flakyFs{Fs: s.fs, failures: 10}
	l := New(fs, Config{Workers: 1, RetryAttempts: 2, RetrySleep: time.Millisecond})
	defer l.Close()

	l.RequestRaw("data/garden.rgs")
	events := s.collect(l, 1)
	s.ErrorIs(events[len(events)-1].Err, merr.ErrIoUnexpectEOF)
	s.EqualValues(2, fs.opens.Load())
}

func (s *LoaderSuite) TestClose() {
	s.loader.Request("data/garden.rgs")
	s.loader.Close()
	// Close 等待进行中的请求完成，事件仍可取出。
	s.Equal(2, s.loader.Pending())
	s.Len(s.loader.Poll(), 2)

	s.loader.Request("data/garden.rgs")
	events := s.loader.Poll()
	s.Require().Len(events, 2)
	s.Equal(EventBeginLoading, events[0].Kind)
	s.ErrorIs(events[1].Err, merr.ErrLoaderClosed)

	s.loader.Close()
}

func TestLoader(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}
