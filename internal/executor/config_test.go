package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/danmu-garden-scene/pkg/util/viper"
)

func TestConfigFromViper(t *testing.T) {
	v := viper.New()
	v.Set("executor.tick-rate", 20)
	v.Set("loader.workers", 3)

	cfg := ConfigFromViper(v)
	assert.Equal(t, 20, cfg.TickRate)
	assert.Equal(t, 3, cfg.Loader.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Interval())

	assert.Equal(t, time.Second/DefaultTickRate, Config{}.Interval())
	assert.Equal(t, DefaultTickRate, ConfigFromViper(nil).TickRate)
}
