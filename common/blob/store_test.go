package blob

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "blobs"), logger.New("error", "text"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestPutGet_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	data := []byte(`{"answer": 42}`)
	cc, err := store.Put(data)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if !cc.Marker {
		t.Errorf("claim check marker should be set")
	}

	sum := sha256.Sum256(data)
	if want := hex.EncodeToString(sum[:]); cc.SHA256 != want {
		t.Errorf("expected sha256 %s, got %s", want, cc.SHA256)
	}

	if cc.Size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), cc.Size)
	}

	// Path layout: <dir>/<hash[0:2]>/<hash>
	if filepath.Base(filepath.Dir(cc.Path)) != cc.SHA256[:2] {
		t.Errorf("blob path %s not under two-hex prefix dir", cc.Path)
	}

	got, err := store.Resolve(cc)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %s, got %s", data, got)
	}
}

func TestPut_Dedup(t *testing.T) {
	store := newTestStore(t)

	data := []byte(`{"v": "same content"}`)
	first, err := store.Put(data)
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}

	second, err := store.Put(data)
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	if first.Path != second.Path || first.SHA256 != second.SHA256 {
		t.Errorf("content-addressed Put should dedup: %+v vs %+v", first, second)
	}

	// Exactly one file in the prefix dir
	entries, err := os.ReadDir(filepath.Dir(first.Path))
	if err != nil {
		t.Fatalf("read prefix dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 blob file, got %d", len(entries))
	}
}

func TestGet_HashMismatch(t *testing.T) {
	store := newTestStore(t)

	cc, err := store.Put([]byte(`"original"`))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the blob on disk
	if err := os.WriteFile(cc.Path, []byte(`"tampered"`), 0o644); err != nil {
		t.Fatalf("corrupt blob: %v", err)
	}

	_, err = store.Resolve(cc)
	if err == nil {
		t.Fatalf("expected hash mismatch error")
	}
	if !errors.Is(err, models.ErrDataLoss) {
		t.Errorf("expected ErrDataLoss, got %v", err)
	}
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(filepath.Join(t.TempDir(), "nope"), "00")
	if err == nil {
		t.Errorf("expected error for missing blob")
	}
}

func TestPut_LargePayload(t *testing.T) {
	store := newTestStore(t)

	// 1 MiB payload, the claim-check scenario
	data := bytes.Repeat([]byte("x"), 1<<20)
	cc, err := store.Put(data)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if cc.Size != 1<<20 {
		t.Errorf("expected size %d, got %d", 1<<20, cc.Size)
	}

	info, err := os.Stat(cc.Path)
	if err != nil {
		t.Fatalf("stat blob: %v", err)
	}
	if info.Size() != 1<<20 {
		t.Errorf("blob file size %d, want %d", info.Size(), 1<<20)
	}
}
