package walog

import (
	"encoding/binary"
	"path/filepath"
	"testing"
)

var uint64StringCodec = FuncCodec[uint64, string]{
	EncodeK: func(k uint64) ([]byte, error) {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, k)
		return b, nil
	},
	DecodeK: func(b []byte) (uint64, error) {
		return binary.BigEndian.Uint64(b), nil
	},
	EncodeV: func(v string) ([]byte, error) { return []byte(v), nil },
	DecodeV: func(b []byte) (string, error) { return string(b), nil },
}

func TestFileStorePutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.db")
	fs, err := OpenFileStore[uint64, string](path, uint64StringCodec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer fs.Close()

	if err := fs.Put(1, "alpha"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.Put(2, "beta"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.Put(1, "alpha-v2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok, err := fs.Get(1)
	if err != nil || !ok || v != "alpha-v2" {
		t.Fatalf("expected latest value for an overwritten key, got %q ok=%v err=%v", v, ok, err)
	}
	v, ok, err = fs.Get(2)
	if err != nil || !ok || v != "beta" {
		t.Fatalf("expected %q, got %q ok=%v err=%v", "beta", v, ok, err)
	}
}

func TestFileStoreRemoveThenReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.db")
	fs, err := OpenFileStore[uint64, string](path, uint64StringCodec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.Put(1, "alpha"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.Put(2, "beta"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.Remove(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := OpenFileStore[uint64, string](path, uint64StringCodec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reopened.Close()

	if _, ok, _ := reopened.Get(1); ok {
		t.Fatalf("expected removed key to stay removed after replay")
	}
	v, ok, err := reopened.Get(2)
	if err != nil || !ok || v != "beta" {
		t.Fatalf("expected surviving key to replay correctly, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.db")
	fs, err := OpenFileStore[uint64, string](path, uint64StringCodec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer fs.Close()

	if err := fs.Put(1, "alpha"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := fs.Get(1); ok {
		t.Fatalf("expected store to be empty after Clear")
	}
}
