package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// ResourceMonitor 系统资源监控器
// 根据可用内存和CPU负载计算可同时运行的单元数 (worker 或 浏览器标签页)
type ResourceMonitor struct {
	config ResourceMonitorConfig

	mu           sync.RWMutex
	availableMem int64   // 最近一次采样的可用内存(字节)
	cpuUsage     float64 // 最近一次采样的CPU使用率(%)

	// Capacity 结果缓存1秒
	cacheMu       sync.Mutex
	cachedCap     int
	lastCacheTime time.Time

	cancel context.CancelFunc
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SafetyThreshold     int64 // 低于该可用内存时不再扩容(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200表示不检查
	MaxLimit            int   // 绝对上限
	UnitMemoryUsage     int64 // 单个单元平均内存消耗(字节)
}

// NewResourceMonitor 创建监控器并立即采样一次内存
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.UnitMemoryUsage <= 0 {
		config.UnitMemoryUsage = 100 * mb
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 16
	}
	if config.CPULoadThreshold <= 0 {
		config.CPULoadThreshold = 90
	}

	rm := &ResourceMonitor{config: config}
	rm.sampleMemory()
	return rm
}

// sampleMemory 使用gopsutil读取系统可用内存
func (rm *ResourceMonitor) sampleMemory() {
	available := int64(4 * 1024 * mb)
	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值4GB")
	} else {
		available = int64(vm.Available)
	}

	rm.mu.Lock()
	rm.availableMem = available - rm.config.SafetyReserveMemory
	rm.mu.Unlock()
}

// sampleCPU 100ms采样间隔
func (rm *ResourceMonitor) sampleCPU() {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		log.Debug().Err(err).Msg("获取CPU使用率失败")
		return
	}
	rm.mu.Lock()
	rm.cpuUsage = percentages[0]
	rm.mu.Unlock()
}

// StartMonitoring 启动后台采样,重复调用无效果
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.sampleMemory()
				rm.sampleCPU()
			}
		}
	}()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		rm.cancel()
		rm.cancel = nil
	}
}

// Capacity 当前允许的单元数: min(内存余量/单元内存, CPU核数, 上限),至少为1
func (rm *ResourceMonitor) Capacity() int {
	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()
	if rm.cachedCap > 0 && time.Since(rm.lastCacheTime) < time.Second {
		return rm.cachedCap
	}

	rm.mu.RLock()
	available := rm.availableMem
	rm.mu.RUnlock()

	byMemory := 1
	if available > rm.config.SafetyThreshold {
		byMemory = int((available - rm.config.SafetyThreshold) / rm.config.UnitMemoryUsage)
	}

	result := min(byMemory, runtime.NumCPU(), rm.config.MaxLimit)
	result = max(result, 1)

	rm.cachedCap = result
	rm.lastCacheTime = time.Now()
	return result
}

// SuggestWorkers 根据资源计算worker数,每个worker只持有一个连接,按CPU核数放大
func (rm *ResourceMonitor) SuggestWorkers() int {
	rm.mu.RLock()
	available := rm.availableMem
	rm.mu.RUnlock()

	byMemory := 1
	if available > rm.config.SafetyThreshold {
		byMemory = int((available - rm.config.SafetyThreshold) / (8 * mb))
	}
	return max(min(byMemory, runtime.NumCPU()*4, rm.config.MaxLimit), 1)
}

// CheckAvailability 判断是否可以再创建一个单元
func (rm *ResourceMonitor) CheckAvailability() (bool, string) {
	rm.mu.RLock()
	available := rm.availableMem
	usage := rm.cpuUsage
	rm.mu.RUnlock()

	if available < rm.config.SafetyThreshold {
		log.Warn().Msgf("可用内存不足(当前%dMB),创建受限", available/mb)
		return false, fmt.Sprintf("内存不足(当前%dMB)", available/mb)
	}
	if rm.config.CPULoadThreshold < 200 && usage > float64(rm.config.CPULoadThreshold) {
		return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
	}
	return true, ""
}
