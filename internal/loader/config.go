package loader

import (
	"time"

	"github.com/lk2023060901/danmu-garden-scene/pkg/util/hardware"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/viper"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetrySleep    = 50 * time.Millisecond
)

// Config 是加载器的配置，对应配置文件中的 loader 段。
type Config struct {
	// Workers 为后台 I/O 协程池容量，<= 0 时使用 CPU 核心数。
	Workers int `mapstructure:"workers"`
	// RetryAttempts 为读取文件时的最大尝试次数。
	RetryAttempts uint `mapstructure:"retry-attempts"`
	// RetrySleep 为首次重试前的等待时间。
	RetrySleep time.Duration `mapstructure:"retry-sleep"`
}

func DefaultConfig() Config {
	return Config{
		Workers:       hardware.GetCPUNum(),
		RetryAttempts: DefaultRetryAttempts,
		RetrySleep:    DefaultRetrySleep,
	}
}

// ConfigFromViper 读取 loader.* 配置项，缺省项使用默认值。
func ConfigFromViper(v *viper.Config) Config {
	def := DefaultConfig()
	return Config{
		Workers:       v.GetInt("loader.workers", def.Workers),
		RetryAttempts: uint(v.GetInt("loader.retry-attempts", int(def.RetryAttempts))),
		RetrySleep:    v.GetDuration("loader.retry-sleep", def.RetrySleep),
	}
}
