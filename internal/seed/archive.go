package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"plantcore/internal/blob"
)

// ArchivePrefix is the key prefix seed archives are written under.
const ArchivePrefix = "seeds/"

// Record is one archived upload.
type Record struct {
	UploadedAt time.Time       `json:"uploaded_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Entry describes an archived upload without its payload.
type Entry struct {
	Key        string    `json:"key"`
	UploadedAt time.Time `json:"uploaded_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

// Archive keeps a history of accepted uploads.
type Archive interface {
	Save(ctx context.Context, rec Record) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Latest(ctx context.Context) (Record, bool, error)
}

// BlobArchive stores each upload as a JSON object in a blob store. Keys sort
// by upload time.
type BlobArchive struct {
	store blob.Store
	newID func() string
	keep  int
}

// ArchiveOption configures a BlobArchive.
type ArchiveOption func(*BlobArchive)

// WithRetention keeps only the newest keep uploads. Zero keeps everything.
func WithRetention(keep int) ArchiveOption {
	return func(a *BlobArchive) {
		if keep > 0 {
			a.keep = keep
		}
	}
}

// NewBlobArchive wraps store.
func NewBlobArchive(store blob.Store, opts ...ArchiveOption) *BlobArchive {
	a := &BlobArchive{store: store, newID: func() string { return uuid.NewString() }}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Save writes rec under a fresh key.
func (a *BlobArchive) Save(ctx context.Context, rec Record) (Entry, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return Entry{}, fmt.Errorf("encode seed record: %w", err)
	}
	key := fmt.Sprintf("%s%020d-%s.json", ArchivePrefix, rec.UploadedAt.UnixNano(), a.newID())
	info, err := a.store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"uploaded-at": rec.UploadedAt.UTC().Format(time.RFC3339Nano)},
	})
	if err != nil {
		return Entry{}, err
	}
	// A failed prune leaves extra entries for the next save to remove.
	_, _ = a.Prune(ctx)
	return Entry{Key: info.Key, UploadedAt: rec.UploadedAt, SizeBytes: info.Size}, nil
}

// Prune deletes uploads older than the retention window and reports how
// many were removed.
func (a *BlobArchive) Prune(ctx context.Context) (int, error) {
	if a.keep <= 0 {
		return 0, nil
	}
	entries, err := a.List(ctx)
	if err != nil || len(entries) <= a.keep {
		return 0, err
	}
	removed := 0
	for _, e := range entries[a.keep:] {
		ok, err := a.store.Delete(ctx, e.Key)
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", e.Key, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// List returns archived uploads newest first.
func (a *BlobArchive) List(ctx context.Context) ([]Entry, error) {
	infos, err := a.store.List(ctx, ArchivePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, Entry{Key: info.Key, UploadedAt: uploadedAt(info), SizeBytes: info.Size})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Latest loads the newest archived upload.
func (a *BlobArchive) Latest(ctx context.Context) (Record, bool, error) {
	entries, err := a.List(ctx)
	if err != nil || len(entries) == 0 {
		return Record{}, false, err
	}
	_, rc, err := a.store.Get(ctx, entries[0].Key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	defer func() { _ = rc.Close() }()
	var rec Record
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return Record{}, false, fmt.Errorf("decode %s: %w", entries[0].Key, err)
	}
	return rec, true, nil
}

func uploadedAt(info blob.Info) time.Time {
	if v, ok := info.Metadata["uploaded-at"]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts
		}
	}
	return info.LastModified
}
