package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-garden-scene/internal/plugin"
	zlog "github.com/lk2023060901/danmu-garden-scene/pkg/log"
)

type exitAfter struct {
	plugin.Base
	ticks uint64
}

func (p *exitAfter) OnUpdate(ctx *plugin.Context) {
	if ctx.Tick >= p.ticks {
		ctx.RequestExit()
	}
}

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleConfig = `
executor:
  tick-rate: 500
loader:
  workers: 2
  retry-attempts: 1
visitor:
  compress: true
  zstd-min-size: 64
logging:
  loader:
    level: debug
`

func TestInitFromFlag(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	app := New(WithFs(afero.NewMemMapFs()), WithArgs([]string{"--config", path}))
	require.NoError(t, app.Init())

	assert.Equal(t, 500, app.Config().GetInt("executor.tick-rate", 0))
	assert.True(t, app.Config().GetBool("visitor.compress", false))
	assert.NotNil(t, app.Executor())
	assert.NotNil(t, app.Logger("loader"))
	assert.NotNil(t, app.Logger("unknown"))
	app.Executor().Close()
}

func TestModuleLoggersBound(t *testing.T) {
	t.Setenv("GARDEN_LOG_LEVEL", "info")
	path := writeConfig(t, `
logging:
  executor:
    level: debug
  loader:
    level: error
    async-write-enable: true
    async-write-flush-interval: 1s
`)
	app := New(WithFs(afero.NewMemMapFs()), WithArgs([]string{"--config=" + path}))
	require.NoError(t, app.Init())
	defer app.Executor().Close()
	defer zlog.Cleanup()

	exec := app.Executor().Logger()
	assert.True(t, exec.Core().Enabled(zap.DebugLevel))

	ld := app.Executor().Loader().Logger()
	assert.False(t, ld.Core().Enabled(zap.InfoLevel))
	assert.True(t, ld.Core().Enabled(zap.ErrorLevel))
}

func TestConfigResolution(t *testing.T) {
	envPath := writeConfig(t, "executor:\n  tick-rate: 10\n")
	flagPath := writeConfig(t, "executor:\n  tick-rate: 20\n")
	t.Setenv(configPathEnv, envPath)

	app := New(WithArgs(nil))
	cfg, err := app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.GetInt("executor.tick-rate", 0))

	app = New(WithArgs([]string{"--config=" + flagPath}))
	cfg, err = app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.GetInt("executor.tick-rate", 0))
}

func TestConfigErrors(t *testing.T) {
	_, err := New(WithArgs([]string{"--config"})).loadConfig()
	assert.Error(t, err)

	_, err = New(WithArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})).loadConfig()
	assert.Error(t, err)

	// 默认路径不存在时使用空配置。
	cfg, err := New(WithArgs(nil)).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.GetInt("executor.tick-rate", 60))
}

func TestRunUntilExit(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	app := New(WithFs(afero.NewMemMapFs()), WithArgs([]string{"--config", path}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx, &exitAfter{ticks: 2}))
	assert.True(t, app.Executor().ExitRequested())
	assert.Equal(t, uint64(2), app.Executor().TickCount())
	app.Stop()
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("GARDEN_TEST_BOOL", "on")
	assert.True(t, getenvBool("GARDEN_TEST_BOOL", false))
	t.Setenv("GARDEN_TEST_BOOL", "maybe")
	assert.False(t, getenvBool("GARDEN_TEST_BOOL", false))
	assert.Equal(t, "x", getenvDefault("GARDEN_TEST_UNSET", "x"))
}
