package loader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/danmu-garden-scene/pkg/util/viper"
)

func TestConfigFromViper(t *testing.T) {
	def := ConfigFromViper(nil)
	assert.Equal(t, DefaultConfig(), def)
	assert.EqualValues(t, DefaultRetryAttempts, def.RetryAttempts)
	assert.Positive(t, def.Workers)

	v := viper.New()
	v.Set("loader.workers", 3)
	v.Set("loader.retry-attempts", 5)
	v.Set("loader.retry-sleep", "10ms")
	cfg := ConfigFromViper(v)
	assert.Equal(t, Config{Workers: 3, RetryAttempts: 5, RetrySleep: 10 * time.Millisecond}, cfg)
}
