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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// gardenNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	gardenNamespace = "garden"

	visitorSubsystem  = "visitor"
	loaderSubsystem   = "loader"
	executorSubsystem = "executor"
	loggingSubsystem  = "logging"

	// 以下为当前使用的通用标签名。
	formatLabelName = "format"
	opLabelName     = "op"
	statusLabelName = "status"
	kindLabelName   = "kind"
	hookLabelName   = "hook"

	SuccessLabel = "success"
	FailLabel    = "fail"

	SaveLabel = "save"
	LoadLabel = "load"

	BinaryFormatLabel = "binary"
	TextFormatLabel   = "text"

	DerivedRequestLabel = "derived"
	RawRequestLabel     = "raw"

	BeginLoadingHookLabel = "begin_loading"
	LoadedHookLabel       = "loaded"
	LoadFailedHookLabel   = "load_failed"
	UpdateHookLabel       = "update"
)

var (
	// buckets 为耗时直方图的桶划分，单位为秒，覆盖 100us 到约 13s。
	buckets = prometheus.ExponentialBuckets(0.0001, 2, 18)

	// sizeBuckets 为数据大小的桶划分，单位为字节。
	sizeBuckets = prometheus.ExponentialBuckets(256, 4, 12)

	VisitorOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: visitorSubsystem,
			Name:      "op_total",
			Help:      "number of visitor save/load operations",
		}, []string{opLabelName, formatLabelName, statusLabelName})

	VisitorOpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: gardenNamespace,
			Subsystem: visitorSubsystem,
			Name:      "op_latency_seconds",
			Help:      "latency of visitor save/load operations in seconds",
			Buckets:   buckets,
		}, []string{opLabelName, formatLabelName})

	VisitorPayloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: gardenNamespace,
			Subsystem: visitorSubsystem,
			Name:      "payload_bytes",
			Help:      "size of encoded visitor payloads in bytes",
			Buckets:   sizeBuckets,
		}, []string{opLabelName, formatLabelName})

	LoaderRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: loaderSubsystem,
			Name:      "request_total",
			Help:      "number of scene load requests",
		}, []string{kindLabelName, statusLabelName})

	LoaderRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: gardenNamespace,
			Subsystem: loaderSubsystem,
			Name:      "request_latency_seconds",
			Help:      "latency of scene load requests in seconds",
			Buckets:   buckets,
		}, []string{kindLabelName})

	LoaderPendingEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: gardenNamespace,
			Subsystem: loaderSubsystem,
			Name:      "pending_events",
			Help:      "number of loader events waiting to be drained by the executor",
		})

	ExecutorTickTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: executorSubsystem,
			Name:      "tick_total",
			Help:      "number of executor ticks",
		})

	ExecutorHookTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: executorSubsystem,
			Name:      "hook_total",
			Help:      "number of plugin hook invocations",
		}, []string{hookLabelName})

	ExecutorLiveScenes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: gardenNamespace,
			Subsystem: executorSubsystem,
			Name:      "live_scenes",
			Help:      "number of scenes resident in the scene container",
		})

	LoggingPendingWriteLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: gardenNamespace,
			Subsystem: loggingSubsystem,
			Name:      "pending_write_length",
			Help:      "number of log entries waiting for the async writer",
		})

	LoggingPendingWriteBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: gardenNamespace,
			Subsystem: loggingSubsystem,
			Name:      "pending_write_bytes",
			Help:      "bytes of log entries waiting for the async writer",
		})

	LoggingDroppedWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: loggingSubsystem,
			Name:      "dropped_writes",
			Help:      "number of log entries dropped because the async queue stayed full",
		})

	LoggingTruncatedWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: loggingSubsystem,
			Name:      "truncated_writes",
			Help:      "number of log entries cut to the per-entry size limit",
		})

	LoggingTruncatedWriteBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: loggingSubsystem,
			Name:      "truncated_write_bytes",
			Help:      "bytes removed from truncated log entries",
		})

	LoggingIOFailure = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: gardenNamespace,
			Subsystem: loggingSubsystem,
			Name:      "io_failure",
			Help:      "number of failed writes to the underlying log sink",
		})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(VisitorOpTotal)
		r.MustRegister(VisitorOpLatency)
		r.MustRegister(VisitorPayloadBytes)
		r.MustRegister(LoaderRequestTotal)
		r.MustRegister(LoaderRequestLatency)
		r.MustRegister(LoaderPendingEvents)
		r.MustRegister(ExecutorTickTotal)
		r.MustRegister(ExecutorHookTotal)
		r.MustRegister(ExecutorLiveScenes)
		r.MustRegister(LoggingPendingWriteLength)
		r.MustRegister(LoggingPendingWriteBytes)
		r.MustRegister(LoggingDroppedWrites)
		r.MustRegister(LoggingTruncatedWrites)
		r.MustRegister(LoggingTruncatedWriteBytes)
		r.MustRegister(LoggingIOFailure)
		metricRegisterer = r
	})
}
