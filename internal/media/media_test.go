package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewStore(dir, 1024)

	up, err := s.Save(ctx, "Photo.JPG", strings.NewReader("jpegdata"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(up.FileName, ".jpg") || up.FilePath != "/uploads/"+up.FileName {
		t.Fatalf("unexpected upload: %+v", up)
	}
	b, err := os.ReadFile(filepath.Join(dir, up.FileName))
	if err != nil || string(b) != "jpegdata" {
		t.Fatalf("stored content: %q err=%v", b, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	imgs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(imgs) != 1 || imgs[0].Name != up.FileName || imgs[0].URL != up.FilePath {
		t.Fatalf("listing: %+v", imgs)
	}
}

func TestSaveRejects(t *testing.T) {
	ctx := context.Background()
	s := NewStore(t.TempDir(), 4)

	if _, err := s.Save(ctx, "page.html", strings.NewReader("<b>")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := s.Save(ctx, "big.png", bytes.NewReader(make([]byte, 5))); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := s.Save(ctx, "empty.png", strings.NewReader("")); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	imgs, _ := s.List(ctx)
	if len(imgs) != 0 {
		t.Fatalf("rejected uploads left files: %+v", imgs)
	}
}

func TestListMissingDirectory(t *testing.T) {
	imgs, err := NewStore(filepath.Join(t.TempDir(), "nope"), 10).List(context.Background())
	if err != nil || imgs == nil || len(imgs) != 0 {
		t.Fatalf("expected empty non-nil list, got %v err=%v", imgs, err)
	}
}
