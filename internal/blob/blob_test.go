package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func drivers(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3mock": NewMockS3ForTests(),
	}
}

func TestStoreContract(t *testing.T) { //nolint:cyclop
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			body := `{"stations":[{"station_id":1}]}`
			info, err := store.Put(ctx, "seeds/0001.json", strings.NewReader(body), PutOptions{ContentType: "application/json"})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "seeds/0001.json" || info.Size != int64(len(body)) {
				t.Fatalf("unexpected info %+v", info)
			}
			if _, err := store.Put(ctx, "seeds/0001.json", strings.NewReader("{}"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := store.Put(ctx, "seeds/0002.json", strings.NewReader("{}"), PutOptions{}); err != nil {
				t.Fatalf("put second: %v", err)
			}
			if _, err := store.Put(ctx, "other/x.json", strings.NewReader("{}"), PutOptions{}); err != nil {
				t.Fatalf("put other: %v", err)
			}

			_, rc, err := store.Get(ctx, "seeds/0001.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			got, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(got) != body {
				t.Fatalf("expected original body, got %q", got)
			}
			if _, _, err := store.Get(ctx, "seeds/missing.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			list, err := store.List(ctx, "seeds/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].Key != "seeds/0001.json" || list[1].Key != "seeds/0002.json" {
				t.Fatalf("unexpected list %+v", list)
			}

			ok, err := store.Delete(ctx, "seeds/0002.json")
			if err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			ok, err = store.Delete(ctx, "seeds/0002.json")
			if err != nil || ok {
				t.Fatalf("second delete should report false, got %v %v", ok, err)
			}
		})
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  Config
		want Driver
	}{
		{Config{}, DriverMemory},
		{Config{Driver: DriverMemory}, DriverMemory},
		{Config{Driver: DriverFilesystem, FSRoot: t.TempDir()}, DriverFilesystem},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %q: %v", tc.cfg.Driver, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
