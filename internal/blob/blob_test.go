package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"meeting-insights-go/internal/domain"
)

func TestDirRoundTrip(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}
	ctx := context.Background()

	payload := bytes.Repeat([]byte("x"), 1<<16)
	ref, err := d.Put(ctx, payload)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := d.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from payload")
	}

	if err := d.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := d.Get(ctx, ref); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after delete error = %v, want ErrNotFound", err)
	}
}

func TestDirRejectsPathTraversal(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}

	if _, err := d.Get(context.Background(), "../../etc/passwd"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("traversal get error = %v, want ErrNotFound", err)
	}
}

func TestMemoryIsolatesStoredBytes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	payload := []byte("original")
	ref, _ := m.Put(ctx, payload)
	payload[0] = 'X'

	got, err := m.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "original" {
		t.Fatal("caller mutation leaked into stored object")
	}
}
