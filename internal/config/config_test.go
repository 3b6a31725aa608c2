package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plantcore/internal/blob"
	"plantcore/internal/core"
	"plantcore/pkg/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.SiteID != "tolkar_aosb" || cfg.Storage.Driver != core.StorageMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Blob.Driver != blob.DriverMemory || cfg.Blob.S3.Region != "us-east-1" || !cfg.SeedArchive || cfg.SeedRestore {
		t.Fatalf("unexpected blob defaults %+v", cfg.Blob)
	}
	if cfg.SeedStaleAfter != 2*time.Hour || cfg.EventLimit != 20 || cfg.EventLimitMax != 200 {
		t.Fatalf("unexpected limits %+v", cfg)
	}
	if cfg.MetricsBackend != MetricsPrometheus || cfg.SeedArchiveKeep != 50 {
		t.Fatalf("unexpected metrics/retention defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PLANTCORE_HTTP_ADDR":            "127.0.0.1:9000",
		"PLANTCORE_STORAGE_DRIVER":       "sqlite",
		"PLANTCORE_STORAGE_SQLITE_PATH":  "/tmp/p.db",
		"PLANTCORE_BLOB_DRIVER":          "s3",
		"PLANTCORE_BLOB_S3_BUCKET":       "plant-seeds",
		"PLANTCORE_BLOB_S3_PATH_STYLE":   "true",
		"PLANTCORE_NATS_URL":             "nats://localhost:4222",
		"PLANTCORE_SEED_STALE_AFTER":     "30m",
		"PLANTCORE_EVENT_LIMIT":          "10",
		"PLANTCORE_EVENT_LIMIT_MAX":      "50",
		"PLANTCORE_SEED_RESTORE":         "true",
		"PLANTCORE_LAYOUT_FILE":          "plant.yaml",
		"PLANTCORE_METRICS_NAMESPACE":    "tolkar",
		"PLANTCORE_METRICS_BACKEND":      "expvar",
		"PLANTCORE_SEED_ARCHIVE_KEEP":    "5",
		"PLANTCORE_STORAGE_POSTGRES_DSN": "ignored-for-sqlite",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.Storage.Driver != core.StorageSQLite || cfg.Storage.SQLitePath != "/tmp/p.db" {
		t.Fatalf("unexpected storage %+v", cfg)
	}
	if cfg.Blob.Driver != blob.DriverS3 || cfg.Blob.S3.Bucket != "plant-seeds" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if cfg.SeedStaleAfter != 30*time.Minute || cfg.EventLimit != 10 || cfg.EventLimitMax != 50 || !cfg.SeedRestore {
		t.Fatalf("unexpected seed/limit config %+v", cfg)
	}
	if cfg.MetricsBackend != MetricsExpvar || cfg.SeedArchiveKeep != 5 {
		t.Fatalf("unexpected metrics/retention config %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without dsn": {"PLANTCORE_STORAGE_DRIVER": "postgres"},
		"unknown storage":      {"PLANTCORE_STORAGE_DRIVER": "mongo"},
		"s3 without bucket":    {"PLANTCORE_BLOB_DRIVER": "s3"},
		"unknown blob":         {"PLANTCORE_BLOB_DRIVER": "gcs"},
		"inverted limits":      {"PLANTCORE_EVENT_LIMIT": "50", "PLANTCORE_EVENT_LIMIT_MAX": "10"},
		"bad duration":         {"PLANTCORE_SEED_STALE_AFTER": "soon"},
		"zero staleness":       {"PLANTCORE_SEED_STALE_AFTER": "0s"},
		"unknown metrics":      {"PLANTCORE_METRICS_BACKEND": "statsd"},
		"negative retention":   {"PLANTCORE_SEED_ARCHIVE_KEEP": "-1"},
	}
	for name, vars := range cases {
		if _, err := LoadFrom(vars); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadLayout(t *testing.T) {
	def, err := LoadLayout("")
	if err != nil {
		t.Fatalf("default layout: %v", err)
	}
	if len(def.Stations) != 5 || def.Policy() != domain.DefaultPolicy() {
		t.Fatalf("unexpected default layout %+v", def)
	}

	doc := `
stations:
  - {id: 1, name: "Metal Kesim", wip: 2, cycle_time_sec: 40, fpy: 97, oee: 91}
  - {id: 2, name: "Boya Kabini", wip: 5, cycle_time_sec: 75, fpy: 95, oee: 86}
shock:
  marker: boya
  wip: 12
  cycle_time_delta_sec: 20
  fpy_delta: 4
  oee_delta: 10
`
	path := filepath.Join(t.TempDir(), "plant.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	l, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("load layout: %v", err)
	}
	if len(l.Stations) != 2 || l.Stations[1].Name != "Boya Kabini" || l.Stations[1].CycleTimeSec != 75 {
		t.Fatalf("unexpected stations %+v", l.Stations)
	}
	p := l.Policy()
	if p.Shock.Marker != "boya" || p.Shock.WIP != 12 || p.Bounds != domain.DefaultBounds() || p.Kaizen != domain.DefaultPolicy().Kaizen {
		t.Fatalf("unexpected policy %+v", p)
	}
	if _, err := LoadLayout(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestParseLayoutValidation(t *testing.T) {
	cases := map[string]string{
		"duplicate id":   "stations:\n  - {id: 1, name: a, cycle_time_sec: 1}\n  - {id: 1, name: b, cycle_time_sec: 1}\n",
		"missing name":   "stations:\n  - {id: 1, cycle_time_sec: 1}\n",
		"zero ct":        "stations:\n  - {id: 1, name: a}\n",
		"bad id":         "stations:\n  - {id: 0, name: a, cycle_time_sec: 1}\n",
		"negative wip":   "stations:\n  - {id: 1, name: a, wip: -2, cycle_time_sec: 1}\n",
		"inverted bound": "bounds: {fpy_floor: 99, fpy_ceiling: 90, oee_floor: 70, oee_ceiling: 98}\n",
		"bad kaizen":     "kaizen: {wip_step: -1, wip_floor: 1, fpy_step: 1, oee_step: 1}\n",
		"not yaml":       "stations: [",
	}
	for name, doc := range cases {
		if _, err := ParseLayout([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if strings.TrimSpace(err.Error()) == "" {
			t.Fatalf("%s: empty error", name)
		}
	}
	empty, err := ParseLayout([]byte("stations: []\n"))
	if err != nil || len(empty.Stations) != 0 {
		t.Fatalf("explicit empty station list should be kept, got %+v %v", empty.Stations, err)
	}
}
