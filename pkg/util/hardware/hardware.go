// Package hardware 提供主机资源信息的查询能力。
package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-garden-scene/pkg/log"
)

var (
	cpuNumOnce sync.Once
	cpuNum     int
)

// GetCPUNum 返回主机逻辑 CPU 核心数。
// gopsutil 查询失败时退回到 runtime.NumCPU。
func GetCPUNum() int {
	cpuNumOnce.Do(func() {
		n, err := cpu.Counts(true)
		if err != nil || n <= 0 {
			log.Warn("failed to get cpu counts, fallback to runtime.NumCPU", zap.Error(err))
			n = runtime.NumCPU()
		}
		// 容器内 GOMAXPROCS 可能已被 automaxprocs 收紧，取两者较小值。
		cpuNum = min(n, runtime.GOMAXPROCS(0))
	})
	return cpuNum
}
