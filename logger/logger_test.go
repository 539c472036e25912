package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "futuresflow.log")

	log := Logger()
	if err := log.Configure("debug", "json", path, 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	log.WithComponent("scheduler").Info("flushed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, data)
	}
	if line["message"] != "flushed" || line["component"] != "scheduler" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestReportLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "report")

	log := Logger()
	if err := log.Configure("warn", "text", "stdout", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !ReportEnabled("info") {
		t.Fatalf("expected report to be enabled by LOG_LEVEL")
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestCounters(t *testing.T) {
	before := Snapshot()
	IncrementTicksReceived(64)
	IncrementTicksDropped()
	IncrementFlushWrite(3)
	IncrementFlushError()
	IncrementReconnect()
	after := Snapshot()

	if after.TicksReceived != before.TicksReceived+1 ||
		after.TicksDropped != before.TicksDropped+1 ||
		after.FlushWrites != before.FlushWrites+1 ||
		after.FlushErrors != before.FlushErrors+1 ||
		after.Reconnects != before.Reconnects+1 {
		t.Fatalf("counters did not advance: before=%+v after=%+v", before, after)
	}
}

type fakePutter struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakePutter) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func (f *fakePutter) PutDashboard(context.Context, *cloudwatch.PutDashboardInput, ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	return &cloudwatch.PutDashboardOutput{}, nil
}

func TestLogMetricPublishes(t *testing.T) {
	fake := &fakePutter{}
	setCloudWatchClient(fake, "FuturesFlowTest", "")
	t.Cleanup(func() { setCloudWatchClient(nil, "FuturesFlow", "FuturesFlow") })

	Logger().LogMetric("scheduler", "FlushWrites", 2, "", Fields{"market": "SHFE"})
	Logger().LogMetric("scheduler", "ignored", "not-a-number", "", nil)

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one publish, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.Namespace != "FuturesFlowTest" || *in.MetricData[0].MetricName != "FlushWrites" {
		t.Fatalf("unexpected metric input: %+v", in)
	}
	if len(in.MetricData[0].Dimensions) != 2 {
		t.Fatalf("expected component and market dimensions, got %d", len(in.MetricData[0].Dimensions))
	}
}

func TestPublishErrorIsSwallowed(t *testing.T) {
	fake := &fakePutter{err: errors.New("throttled")}
	setCloudWatchClient(fake, "", "")
	t.Cleanup(func() { setCloudWatchClient(nil, "FuturesFlow", "FuturesFlow") })

	logReport(context.Background(), Logger())
	if len(fake.inputs) != 1 {
		t.Fatalf("expected report to publish once, got %d", len(fake.inputs))
	}
}
