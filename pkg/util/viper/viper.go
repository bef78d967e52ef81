package viper

import (
	"path/filepath"
	"time"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
// 未加载文件时所有 Get 方法返回调用方提供的默认值。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	if c.v == nil {
		c.v = spfviper.New()
	}

	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return c.v.ReadInConfig()
}

// Set 覆盖指定 key 的取值，主要用于测试与命令行覆盖。
func (c *Config) Set(key string, value any) {
	if c.v == nil {
		c.v = spfviper.New()
	}
	c.v.Set(key, value)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) UnmarshalKey(key string, dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.UnmarshalKey(key, dst)
}

func (c *Config) GetInt(key string, def int) int {
	if c == nil || c.v == nil || !c.v.IsSet(key) {
		return def
	}
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string, def bool) bool {
	if c == nil || c.v == nil || !c.v.IsSet(key) {
		return def
	}
	return c.v.GetBool(key)
}

func (c *Config) GetString(key string, def string) string {
	if c == nil || c.v == nil || !c.v.IsSet(key) {
		return def
	}
	return c.v.GetString(key)
}

func (c *Config) GetDuration(key string, def time.Duration) time.Duration {
	if c == nil || c.v == nil || !c.v.IsSet(key) {
		return def
	}
	return c.v.GetDuration(key)
}
