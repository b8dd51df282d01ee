package modelstore

import (
	"context"
	"testing"

	"gocause/internal/errors"
)

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	blob := []byte{0x01, 0x02, 0x00, 0xff}
	if err := fs.Save(ctx, "demand", blob); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := fs.Load(ctx, "demand")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("Load = %v, want %v", got, blob)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	_, err = fs.Load(context.Background(), "absent")
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("Load = %v, want not-found", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()
	if err := fs.Save(ctx, "demand", []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := fs.Delete(ctx, "demand"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := fs.Delete(ctx, "demand"); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("second Delete = %v, want not-found", err)
	}
}

func TestFileStore_List(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()
	for _, name := range []string{"alpha", "beta"} {
		if err := fs.Save(ctx, name, []byte(name)); err != nil {
			t.Fatalf("Save %s failed: %v", name, err)
		}
	}
	infos, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List returned %d models, want 2", len(infos))
	}
	seen := map[string]int64{}
	for _, info := range infos {
		seen[info.Name] = info.Size
		if info.UpdatedAt.IsZero() {
			t.Errorf("model %s has zero UpdatedAt", info.Name)
		}
	}
	if seen["alpha"] != 5 || seen["beta"] != 4 {
		t.Errorf("sizes = %v, want alpha=5 beta=4", seen)
	}
}

func TestFileStore_InvalidName(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()
	for _, name := range []string{"", "../escape", "has space"} {
		if err := fs.Save(ctx, name, []byte("x")); !errors.HasCode(err, errors.CodeInvalidInput) {
			t.Errorf("Save(%q) = %v, want invalid-input", name, err)
		}
	}
}
