package log

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// lockedBuffer 是可并发写入的 WriteSyncer。
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error {
	return nil
}

func (b *lockedBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSpace(b.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestAsyncCoreFlushOnStop(t *testing.T) {
	out := &lockedBuffer{}
	cfg := &Config{Level: "info", Format: "json", AsyncWriteEnable: true, AsyncWriteMaxBytesPerLog: 256}
	lg, props, err := InitLoggerWithWriteSyncer(cfg, out)
	require.NoError(t, err)
	core, ok := props.Core.(*asyncCore)
	require.True(t, ok)

	lg.With(zap.String("component", "loader")).Info("scene queued")
	lg.Debug("below level")
	lg.Info(strings.Repeat("x", 1024))
	core.Stop()

	lines := out.lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"component":"loader"`)
	assert.Contains(t, lines[0], "scene queued")
	assert.Len(t, lines[1], 255)

	// 停止后的写入被丢弃，不会阻塞。
	lg.Error("after stop")
	assert.Len(t, out.lines(), 2)
	core.Stop()
}

func TestCleanupStopsAsyncCores(t *testing.T) {
	out := &lockedBuffer{}
	lg, _, err := InitLoggerWithWriteSyncer(&Config{Level: "debug", AsyncWriteEnable: true}, out)
	require.NoError(t, err)

	lg.Debug("flushed by cleanup")
	Cleanup()

	lines := out.lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "flushed by cleanup")

	// 重复调用不会再次停止已停止的 Core。
	Cleanup()
}

func TestAsyncConfigDefaults(t *testing.T) {
	cfg := &Config{AsyncWriteNonDroppableLevel: "bogus"}
	cfg.initialize()
	assert.Equal(t, "error", cfg.AsyncWriteNonDroppableLevel)
	assert.Equal(t, 1024, cfg.AsyncWritePendingLength)
	assert.Equal(t, 4*1024, cfg.AsyncWriteBufferSize)
	assert.Equal(t, 1024*1024, cfg.AsyncWriteMaxBytesPerLog)
	assert.Positive(t, cfg.AsyncWriteFlushInterval)
	assert.Positive(t, cfg.AsyncWriteDroppedTimeout)
	assert.Positive(t, cfg.AsyncWriteStopTimeout)
}
