package executor

import (
	"time"

	"github.com/lk2023060901/danmu-garden-scene/internal/loader"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/viper"
)

const DefaultTickRate = 60

// Config 是宿主的配置，对应配置文件中的 executor 段。
type Config struct {
	// TickRate 为每秒的 tick 次数。
	TickRate int `mapstructure:"tick-rate"`

	Loader loader.Config `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		TickRate: DefaultTickRate,
		Loader:   loader.DefaultConfig(),
	}
}

// ConfigFromViper 读取 executor.* 与 loader.* 配置项。
func ConfigFromViper(v *viper.Config) Config {
	return Config{
		TickRate: v.GetInt("executor.tick-rate", DefaultTickRate),
		Loader:   loader.ConfigFromViper(v),
	}
}

// Interval 返回两次 tick 之间的间隔。
func (c Config) Interval() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return time.Second / time.Duration(rate)
}
