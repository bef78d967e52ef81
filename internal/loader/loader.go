// Package loader 实现异步场景加载。
//
// 请求是“发出即忘”的：Request/RequestRaw 立即返回，文件读取与解析在协程池中完成，
// 结果以事件的形式进入队列，由宿主在驱动线程上通过 Poll 取出并分发，
// 因此回调永远不会与插件的其它方法并发执行。
package loader

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/danmu-garden-scene/internal/scene"
	"github.com/lk2023060901/danmu-garden-scene/internal/visitor"
	"github.com/lk2023060901/danmu-garden-scene/pkg/buffer/ring"
	"github.com/lk2023060901/danmu-garden-scene/pkg/log"
	"github.com/lk2023060901/danmu-garden-scene/pkg/metrics"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/conc"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/hardware"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/retry"
)

const tracerName = "github.com/lk2023060901/danmu-garden-scene/internal/loader"

type result struct {
	scene *scene.Scene
	data  []byte
}

// Loader 是异步场景加载器，可以被多个协程同时调用。
type Loader struct {
	log.Binder

	fs    afero.Fs
	cfg   Config
	opts  []visitor.Option
	pool  *conc.Pool[*result]
	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	events *ring.Queue[Event]
	closed bool
	wg     sync.WaitGroup
}

// New 创建一个从 fs 读取场景的加载器，opts 用于解析存档。
func New(fs afero.Fs, cfg Config, opts ...visitor.Option) *Loader {
	if cfg.Workers <= 0 {
		cfg.Workers = hardware.GetCPUNum()
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetrySleep <= 0 {
		cfg.RetrySleep = DefaultRetrySleep
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		fs:     fs,
		cfg:    cfg,
		opts:   opts,
		pool:   conc.NewPool[*result](cfg.Workers, conc.WithConcealPanic(true)),
		ctx:    ctx,
		cancel: cancel,
		events: ring.New[Event](ring.DefaultQueueSize),
	}
	l.BindComponent("loader")
	return l
}

// Request 以 path 处的场景为模板，异步派生出一个工作副本。
func (l *Loader) Request(path string) {
	l.request(path, false)
}

// RequestRaw 原样异步加载 path 处的场景（例如之前的存档），不做派生。
func (l *Loader) RequestRaw(path string) {
	l.request(path, true)
}

func (l *Loader) request(path string, raw bool) {
	kind := requestKind(raw)
	l.Logger().Debug("scene load requested", log.FieldPath(path), zap.Bool("raw", raw))

	l.mu.Lock()
	l.pushLocked(Event{Kind: EventBeginLoading, Path: path, Raw: raw})
	if l.closed {
		l.pushLocked(Event{Kind: EventLoaded, Path: path, Raw: raw, Err: merr.WrapErrLoaderClosed(path)})
		l.mu.Unlock()
		metrics.LoaderRequestTotal.WithLabelValues(kind, metrics.FailLabel).Inc()
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	start := time.Now()
	go func() {
		defer l.wg.Done()

		future := l.pool.Submit(func() (*result, error) {
			return l.load(path, raw)
		})
		res, err := future.Await()

		ev := Event{Kind: EventLoaded, Path: path, Raw: raw, Err: err}
		if err == nil {
			ev.Scene = res.scene
			ev.Data = res.data
			metrics.LoaderRequestTotal.WithLabelValues(kind, metrics.SuccessLabel).Inc()
			metrics.LoaderRequestLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
			l.Logger().Debug("scene loaded", log.FieldPath(path), zap.Bool("raw", raw), zap.Int("size", len(res.data)))
		} else {
			metrics.LoaderRequestTotal.WithLabelValues(kind, metrics.FailLabel).Inc()
			l.Logger().WithRateGroup("loader.failure", 1, 10).
				RatedWarn(1, "scene load failed", log.FieldPath(path), zap.Bool("raw", raw), zap.Error(err))
		}

		l.mu.Lock()
		l.pushLocked(ev)
		l.mu.Unlock()
	}()
}

func (l *Loader) load(path string, raw bool) (*result, error) {
	ctx, span := log.NewIntentContext(l.ctx, tracerName, "Loader.load",
		trace.WithAttributes(attribute.String("path", path), attribute.Bool("raw", raw)))
	defer span.End()

	res, err := l.doLoad(ctx, path, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (l *Loader) doLoad(ctx context.Context, path string, raw bool) (*result, error) {
	v, err, _ := l.group.Do(path, func() (any, error) {
		return l.read(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	data := v.([]byte)

	sc, err := l.decode(path, data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode scene %s", path)
	}
	if !raw {
		sc = sc.Derive(path)
	}
	return &result{scene: sc, data: data}, nil
}

// read 读取整个文件，仅对 ErrIoUnexpectEOF 之类的可重试错误重试。
func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, func() error {
		b, err := afero.ReadFile(l.fs, path)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return merr.WrapErrIoUnexpectEOF(path, err)
			}
			return merr.WrapErrIoFailed(path, err, "read")
		}
		data = b
		return nil
	},
		retry.Attempts(l.cfg.RetryAttempts),
		retry.Sleep(l.cfg.RetrySleep),
		retry.RetryErr(merr.IsRetryableErr),
	)
	return data, err
}

func (l *Loader) decode(path string, data []byte) (*scene.Scene, error) {
	var (
		v   *visitor.Visitor
		err error
	)
	if IsTextPath(path) {
		v, err = visitor.LoadFromText(data, l.opts...)
	} else {
		v, err = visitor.LoadFromBytes(data, l.opts...)
	}
	if err != nil {
		return nil, err
	}
	return scene.FromVisitor(v)
}

func (l *Loader) pushLocked(ev Event) {
	l.events.Push(ev)
	metrics.LoaderPendingEvents.Set(float64(l.events.Len()))
}

// Poll 按产生顺序取出所有待处理事件，应当只在驱动线程上调用。
func (l *Loader) Poll() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.events.Drain()
	metrics.LoaderPendingEvents.Set(0)
	return events
}

// Pending 返回队列中等待 Poll 的事件数量。
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events.Len()
}

// Close 停止受理新请求并等待所有进行中的请求完成。
// 关闭后提交的请求会立即以 ErrLoaderClosed 完成，已排队的事件仍可通过 Poll 取出。
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
	l.pool.Release()
	l.cancel()
	l.Logger().Info("loader closed")
}

// IsTextPath 判断 path 是否指向文本存档。
func IsTextPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func requestKind(raw bool) string {
	if raw {
		return metrics.RawRequestLabel
	}
	return metrics.DerivedRequestLabel
}
