// Copyright (c) 2019 The Gnet Authors. All rights reserved.
// Copyright (c) 2016 Aliaksandr Valialkin, VertaMedia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Use of this source code is governed by a MIT license that can be found
// at https://github.com/valyala/bytebufferpool/blob/master/LICENSE

// Package bytebuffer 实现了可自校准的字节缓冲区对象池，供存档编码复用临时内存。
package bytebuffer

import (
	"math/bits"
	"slices"
	"sync"
	"sync/atomic"
)

const (
	minBitSize = 6 // 2**6=64，为典型 CPU cache line 大小
	steps      = 20

	minSize = 1 << minBitSize

	calibrateCallsThreshold = 42000
	maxPercentile           = 0.95
)

// ByteBuffer 是一个可追加的字节缓冲区，B 可直接被 append 系列函数使用。
type ByteBuffer struct {
	B []byte
}

// Len 返回已写入的字节数。
func (b *ByteBuffer) Len() int {
	return len(b.B)
}

// Bytes 返回已写入的内容，在 Put 之前有效。
func (b *ByteBuffer) Bytes() []byte {
	return b.B
}

// Write 实现 io.Writer。
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.B = append(b.B, p...)
	return len(p), nil
}

// Reset 清空内容并保留容量。
func (b *ByteBuffer) Reset() {
	b.B = b.B[:0]
}

// Pool 是 ByteBuffer 的对象池。
//
// 不同用途可以使用不同的 Pool；池会根据归还时的缓冲区长度自动校准
// 新建缓冲区的默认容量以及允许回收的最大容量。
type Pool struct {
	calls       [steps]uint64
	calibrating uint64

	defaultSize uint64
	maxSize     uint64

	pool sync.Pool
}

var builtinPool Pool

// Get 从默认池中获取一个空缓冲区。
func Get() *ByteBuffer { return builtinPool.Get() }

// Put 将缓冲区归还到默认池中，归还后不允许再访问。
func Put(b *ByteBuffer) { builtinPool.Put(b) }

// Get 从 Pool 中获取一个空缓冲区。
func (p *Pool) Get() *ByteBuffer {
	if v := p.pool.Get(); v != nil {
		return v.(*ByteBuffer)
	}
	return &ByteBuffer{
		B: make([]byte, 0, atomic.LoadUint64(&p.defaultSize)),
	}
}

// Put 将通过 Get 获取的缓冲区归还到 Pool 中。
// 超过校准后最大容量的缓冲区会被丢弃，避免偶发的大存档长期占用内存。
func (p *Pool) Put(b *ByteBuffer) {
	if b == nil {
		return
	}
	if atomic.AddUint64(&p.calls[index(len(b.B))], 1) > calibrateCallsThreshold {
		p.calibrate()
	}

	maxSize := int(atomic.LoadUint64(&p.maxSize))
	if maxSize == 0 || cap(b.B) <= maxSize {
		b.Reset()
		p.pool.Put(b)
	}
}

type callSize struct {
	calls uint64
	size  uint64
}

func (p *Pool) calibrate() {
	if !atomic.CompareAndSwapUint64(&p.calibrating, 0, 1) {
		return
	}

	sizes := make([]callSize, 0, steps)
	var callsSum uint64
	for i := uint64(0); i < steps; i++ {
		calls := atomic.SwapUint64(&p.calls[i], 0)
		callsSum += calls
		sizes = append(sizes, callSize{calls: calls, size: minSize << i})
	}
	// 调用次数多的尺寸排在前面。
	slices.SortFunc(sizes, func(a, b callSize) int {
		switch {
		case a.calls > b.calls:
			return -1
		case a.calls < b.calls:
			return 1
		default:
			return 0
		}
	})

	defaultSize := sizes[0].size
	maxSize := defaultSize

	maxSum := uint64(float64(callsSum) * maxPercentile)
	callsSum = 0
	for _, s := range sizes {
		if callsSum > maxSum {
			break
		}
		callsSum += s.calls
		maxSize = max(maxSize, s.size)
	}

	atomic.StoreUint64(&p.defaultSize, defaultSize)
	atomic.StoreUint64(&p.maxSize, maxSize)
	atomic.StoreUint64(&p.calibrating, 0)
}

func index(n int) int {
	n--
	n >>= minBitSize
	idx := 0
	if n > 0 {
		idx = bits.Len(uint(n))
	}
	return min(idx, steps-1)
}
