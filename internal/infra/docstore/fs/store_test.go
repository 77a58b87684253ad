package fs

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"strings"
	"testing"

	"epdcore/internal/docstore/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	payload := `{"id":"epd-1","version":"1"}`

	info, err := store.Put(ctx, "src.epd-1", strings.NewReader(payload), core.PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) || info.ETag == "" {
		t.Fatalf("put info: %+v", info)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("content type defaulting: %q", info.ContentType)
	}

	got, rc, err := store.Get(ctx, "src.epd-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("payload = %q", data)
	}
	if got.ETag != info.ETag {
		t.Fatalf("etag mismatch: %q vs %q", got.ETag, info.ETag)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "src.dup", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "src.dup", strings.NewReader("{}"), core.PutOptions{}); err == nil {
		t.Fatal("expected error on duplicate key")
	}
}

func TestKeySanitization(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, bad := range []string{"", "../escape", "/abs/path", "a/../../b"} {
		if _, err := store.Put(ctx, bad, strings.NewReader("{}"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q should be rejected", bad)
		}
	}
}

func TestGetMissingWrapsNotExist(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.Get(context.Background(), "src.absent")
	if !errors.Is(err, iofs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if _, err := store.Head(context.Background(), "src.absent"); !errors.Is(err, iofs.ErrNotExist) {
		t.Fatalf("head: expected fs.ErrNotExist, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"src.a", "src.b", "other.c"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list size = %d", len(all))
	}
	if all[0].Key != "other.c" || all[1].Key != "src.a" || all[2].Key != "src.b" {
		t.Fatalf("list order: %v, %v, %v", all[0].Key, all[1].Key, all[2].Key)
	}

	prefixed, err := store.List(ctx, "src.")
	if err != nil {
		t.Fatalf("list prefix: %v", err)
	}
	if len(prefixed) != 2 {
		t.Fatalf("prefixed size = %d", len(prefixed))
	}

	removed, err := store.Delete(ctx, "src.a")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, "src.a")
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestPresignURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "src.sign", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	url, err := store.PresignURL(ctx, "src.sign", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "http://local.docs/") {
		t.Fatalf("url = %q", url)
	}
	if _, err := store.PresignURL(ctx, "src.sign", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}
