package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFeed    int64
	errorsStorage int64
	warnsFeed     int64
	warnsStorage  int64
	ticksReceived int64
	ticksDropped  int64
	flushWrites   int64
	flushErrors   int64
	reconnects    int64
	channels      sync.Map // map[string]*channelStat
)

// storage-side components; everything else counts as feed side.
var storageComponents = []string{"scheduler", "writer", "s3", "parquet", "buffer"}

func isStorageComponent(component string) bool {
	for _, c := range storageComponents {
		if strings.Contains(component, c) {
			return true
		}
	}
	return false
}

func recordWarn(component string) {
	if isStorageComponent(component) {
		atomic.AddInt64(&warnsStorage, 1)
	} else {
		atomic.AddInt64(&warnsFeed, 1)
	}
}

func recordError(component string) {
	if isStorageComponent(component) {
		atomic.AddInt64(&errorsStorage, 1)
	} else {
		atomic.AddInt64(&errorsFeed, 1)
	}
}

func IncrementTicksReceived(size int) {
	atomic.AddInt64(&ticksReceived, 1)
	recordChannel("depth_quotes", size)
}

func IncrementTicksDropped() {
	atomic.AddInt64(&ticksDropped, 1)
}

func IncrementFlushWrite(rows int) {
	atomic.AddInt64(&flushWrites, 1)
	recordChannel("flush_rows", rows)
}

func IncrementFlushError() {
	atomic.AddInt64(&flushErrors, 1)
}

func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// Counters is a snapshot of the process counters.
type Counters struct {
	TicksReceived int64 `json:"ticks_received"`
	TicksDropped  int64 `json:"ticks_dropped"`
	FlushWrites   int64 `json:"flush_writes"`
	FlushErrors   int64 `json:"flush_errors"`
	Reconnects    int64 `json:"reconnects"`
}

func Snapshot() Counters {
	return Counters{
		TicksReceived: atomic.LoadInt64(&ticksReceived),
		TicksDropped:  atomic.LoadInt64(&ticksDropped),
		FlushWrites:   atomic.LoadInt64(&flushWrites),
		FlushErrors:   atomic.LoadInt64(&flushErrors),
		Reconnects:    atomic.LoadInt64(&reconnects),
	}
}

// StartReport logs host and pipeline statistics every interval until ctx is
// cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	var memUsed, diskUsed uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsed = vm.Used
	}
	if du, err := disk.Usage("/"); err == nil {
		diskUsed = du.Used
	}

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		cs := v.(*channelStat)
		channelData[k.(string)] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	c := Snapshot()
	log.WithComponent("report").WithFields(Fields{
		"errors_feed":    atomic.LoadInt64(&errorsFeed),
		"errors_storage": atomic.LoadInt64(&errorsStorage),
		"warns_feed":     atomic.LoadInt64(&warnsFeed),
		"warns_storage":  atomic.LoadInt64(&warnsStorage),
		"ticks_received": c.TicksReceived,
		"ticks_dropped":  c.TicksDropped,
		"flush_writes":   c.FlushWrites,
		"flush_errors":   c.FlushErrors,
		"reconnects":     c.Reconnects,
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      int64(memUsed) / 1024 / 1024,
		"disk_mb":        int64(diskUsed) / 1024 / 1024,
		"channels":       channelData,
	}).Info("runtime report")

	count := func(name string, v int64) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{MetricName: aws.String(name), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(v))}
	}
	publishMetrics(ctx, []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memUsed) / 1024 / 1024)},
		count("TicksReceived", c.TicksReceived),
		count("TicksDropped", c.TicksDropped),
		count("FlushWrites", c.FlushWrites),
		count("FlushErrors", c.FlushErrors),
		count("Reconnects", c.Reconnects),
	})
}
