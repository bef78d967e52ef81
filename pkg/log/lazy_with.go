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

	"go.uber.org/zap/zapcore"
)

// lazyCore 推迟 With 字段的编码，直到该 Core 第一次真正输出日志。
// 组件在构造时绑定的 Logger 多数从不输出低级别日志，字段编码也就不会发生。
type lazyCore struct {
	base   zapcore.Core
	fields []zapcore.Field
	bound  func() zapcore.Core
}

var _ zapcore.Core = (*lazyCore)(nil)

// NewLazyWith 返回一个在首次使用时才执行 core.With(fields) 的 Core。
func NewLazyWith(core zapcore.Core, fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return core
	}
	c := &lazyCore{base: core, fields: fields}
	c.bound = sync.OnceValue(func() zapcore.Core {
		return c.base.With(c.fields)
	})
	return c
}

// Enabled 只读取级别，不触发字段编码。
func (c *lazyCore) Enabled(level zapcore.Level) bool {
	return c.base.Enabled(level)
}

func (c *lazyCore) With(fields []zapcore.Field) zapcore.Core {
	return c.bound().With(fields)
}

func (c *lazyCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.base.Enabled(e.Level) {
		return ce
	}
	return c.bound().Check(e, ce)
}

func (c *lazyCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	return c.bound().Write(e, fields)
}

// Sync 与底层 Core 共享同一个 WriteSyncer，无需初始化。
func (c *lazyCore) Sync() error {
	return c.base.Sync()
}
