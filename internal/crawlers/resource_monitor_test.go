package crawlers

import (
	"runtime"
	"testing"
	"time"
)

func TestResourceMonitor_CapacityBounds(t *testing.T) {
	tests := []struct {
		name      string
		config    ResourceMonitorConfig
		wantMax   int
		wantExact int
	}{
		{"上限为1", ResourceMonitorConfig{MaxLimit: 1}, 1, 1},
		{"上限为3", ResourceMonitorConfig{MaxLimit: 3}, 3, 0},
		{"安全阈值极高时为1", ResourceMonitorConfig{MaxLimit: 8, SafetyThreshold: 1 << 62}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := NewResourceMonitor(tt.config)
			got := rm.Capacity()
			if got < 1 || got > tt.wantMax || got > runtime.NumCPU() {
				t.Errorf("Capacity() = %d, 超出范围 [1, %d]", got, tt.wantMax)
			}
			if tt.wantExact > 0 && got != tt.wantExact {
				t.Errorf("Capacity() = %d, want %d", got, tt.wantExact)
			}
		})
	}
}

func TestResourceMonitor_SuggestWorkers(t *testing.T) {
	rm := NewResourceMonitor(ResourceMonitorConfig{MaxLimit: 10})
	if n := rm.SuggestWorkers(); n < 1 || n > 10 {
		t.Errorf("SuggestWorkers() = %d, 超出范围 [1, 10]", n)
	}
}

func TestResourceMonitor_CheckAvailability(t *testing.T) {
	rm := NewResourceMonitor(ResourceMonitorConfig{SafetyThreshold: 1 << 62})
	if ok, reason := rm.CheckAvailability(); ok || reason == "" {
		t.Errorf("内存阈值无法满足时应拒绝: ok=%v reason=%q", ok, reason)
	}
}

func TestResourceMonitor_StartStop(t *testing.T) {
	rm := NewResourceMonitor(ResourceMonitorConfig{})
	rm.StartMonitoring(10 * time.Millisecond)
	rm.StartMonitoring(10 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	rm.StopMonitoring()
	rm.StopMonitoring()
}
