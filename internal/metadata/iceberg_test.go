package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGeneratorCreatesMetadata(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir, "s3://bucket/ticks", "futures_ticks")
	df := DataFile{
		Path:        "s3://bucket/ticks/SHFE/cu/20240115/cu2309_20240115_a.parquet",
		FileSize:    100,
		RecordCount: 10,
		Partition: map[string]any{
			"market":      "SHFE",
			"symbol":      "cu",
			"trading_day": "20240115",
		},
		Timestamp: time.Unix(0, 0),
	}
	if err := gen.AddFile(df); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "metadata", "metadata.json"))
	if err != nil {
		t.Fatalf("metadata not written: %v", err)
	}
	var tm TableMetadata
	if err := json.Unmarshal(b, &tm); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if tm.Location != "s3://bucket/ticks" || len(tm.Snapshots) != 1 || tm.CurrentSnapshotID != tm.Snapshots[0].SnapshotID {
		t.Fatalf("unexpected table metadata: %+v", tm)
	}

	catalogDir := filepath.Join(dir, "catalog")
	if err := gen.WriteCatalogEntry(catalogDir); err != nil {
		t.Fatalf("catalog entry: %v", err)
	}
	if _, err := os.Stat(filepath.Join(catalogDir, "futures_ticks.json")); err != nil {
		t.Fatalf("catalog entry not written: %v", err)
	}
}

func TestGeneratorSnapshotIDsAreUnique(t *testing.T) {
	gen := NewGenerator(t.TempDir(), "s3://bucket/ticks", "futures_ticks")
	at := time.Unix(100, 0)
	for i := 0; i < 3; i++ {
		if err := gen.AddFile(DataFile{Path: "p", Timestamp: at}); err != nil {
			t.Fatalf("AddFile: %v", err)
		}
	}

	snaps := gen.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	seen := map[int64]bool{}
	for _, s := range snaps {
		if seen[s.SnapshotID] {
			t.Fatalf("duplicate snapshot id %d", s.SnapshotID)
		}
		seen[s.SnapshotID] = true
	}
}
