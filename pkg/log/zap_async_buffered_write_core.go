// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"sync"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/danmu-garden-scene/pkg/metrics"
)

var _ zapcore.Core = (*asyncCore)(nil)

// asyncCore 把编码好的日志放入队列，由后台协程写入带缓冲的 WriteSyncer。
type asyncCore struct {
	zapcore.LevelEnabler

	enc zapcore.Encoder
	w   *asyncWriter
}

// asyncWriter 是同一个 asyncCore 及其 With 副本共享的写入端。
type asyncWriter struct {
	bws            *zapcore.BufferedWriteSyncer
	pending        chan pendingEntry
	dropTimeout    time.Duration
	keepLevel      zapcore.Level
	stopTimeout    time.Duration
	maxBytesPerLog int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// pendingEntry 是一条等待写入的日志。
type pendingEntry struct {
	buf   *buffer.Buffer
	level zapcore.Level
}

// NewAsyncCore 创建一个异步写入的 Core，cfg 中未设置的 AsyncWrite* 项使用默认值。
func NewAsyncCore(cfg *Config, ws zapcore.WriteSyncer, enab zapcore.LevelEnabler) *asyncCore {
	cfg.initialize()
	keepLevel, _ := zapcore.ParseLevel(cfg.AsyncWriteNonDroppableLevel)
	w := &asyncWriter{
		bws: &zapcore.BufferedWriteSyncer{
			WS:            ws,
			Size:          cfg.AsyncWriteBufferSize,
			FlushInterval: cfg.AsyncWriteFlushInterval,
		},
		pending:        make(chan pendingEntry, cfg.AsyncWritePendingLength),
		dropTimeout:    cfg.AsyncWriteDroppedTimeout,
		keepLevel:      keepLevel,
		stopTimeout:    cfg.AsyncWriteStopTimeout,
		maxBytesPerLog: cfg.AsyncWriteMaxBytesPerLog,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	go w.background()
	return &asyncCore{
		LevelEnabler: enab,
		enc:          newZapEncoder(cfg),
		w:            w,
	}
}

func (c *asyncCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &asyncCore{
		LevelEnabler: c.LevelEnabler,
		enc:          enc,
		w:            c.w,
	}
}

func (c *asyncCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write 编码日志并放入队列。队列满时，低于 AsyncWriteNonDroppableLevel 的日志
// 最多等待 AsyncWriteDroppedTimeout，超时即丢弃；更高级别的日志一直等待。
func (c *asyncCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	if buf.Len() == 0 {
		buf.Free()
		return nil
	}
	c.w.enqueue(pendingEntry{buf: buf, level: ent.Level})
	return nil
}

// Sync 不等待队列排空，缓冲区按 AsyncWriteFlushInterval 定期刷新，Stop 时全部写出。
func (c *asyncCore) Sync() error {
	return nil
}

// Stop 停止后台协程，并在 AsyncWriteStopTimeout 内尽量写出剩余日志。
func (c *asyncCore) Stop() {
	c.w.stopOnce.Do(func() { close(c.w.stop) })
	<-c.w.done
}

func (w *asyncWriter) enqueue(e pendingEntry) {
	select {
	case <-w.stop:
		metrics.LoggingDroppedWrites.Inc()
		e.buf.Free()
		return
	default:
	}
	length := float64(e.buf.Len())
	var timeout <-chan time.Time
	if e.level < w.keepLevel {
		t := time.NewTimer(w.dropTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case w.pending <- e:
		metrics.LoggingPendingWriteLength.Inc()
		metrics.LoggingPendingWriteBytes.Add(length)
	case <-timeout:
		metrics.LoggingDroppedWrites.Inc()
		e.buf.Free()
	case <-w.stop:
		metrics.LoggingDroppedWrites.Inc()
		e.buf.Free()
	}
}

func (w *asyncWriter) background() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			w.drain()
			return
		case e := <-w.pending:
			w.consume(e)
		}
	}
}

// drain 在 stopTimeout 内写出队列中剩余的日志，然后关闭缓冲 WriteSyncer。
func (w *asyncWriter) drain() {
	deadline := time.NewTimer(w.stopTimeout)
	defer deadline.Stop()
loop:
	for {
		select {
		case <-deadline.C:
			break loop
		case e := <-w.pending:
			w.consume(e)
		default:
			break loop
		}
	}
	if err := w.bws.Stop(); err != nil {
		metrics.LoggingIOFailure.Inc()
	}
}

func (w *asyncWriter) consume(e pendingEntry) {
	metrics.LoggingPendingWriteLength.Dec()
	metrics.LoggingPendingWriteBytes.Sub(float64(e.buf.Len()))
	if _, err := w.bws.Write(w.truncate(e.buf.Bytes())); err != nil {
		metrics.LoggingIOFailure.Inc()
	}
	e.buf.Free()
	if e.level >= zapcore.ErrorLevel {
		if err := w.bws.Sync(); err != nil {
			metrics.LoggingIOFailure.Inc()
		}
	}
}

// truncate 把超长日志截断到 maxBytesPerLog，并保留原来的结尾换行。
func (w *asyncWriter) truncate(p []byte) []byte {
	if len(p) <= w.maxBytesPerLog {
		return p
	}
	metrics.LoggingTruncatedWrites.Inc()
	metrics.LoggingTruncatedWriteBytes.Add(float64(len(p) - w.maxBytesPerLog))
	last := p[len(p)-1]
	p = p[:w.maxBytesPerLog]
	p[len(p)-1] = last
	return p
}
