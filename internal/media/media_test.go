package media

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		filename string
		kind     Kind
		wantExt  string
		wantOK   bool
	}{
		{"poster.png", Image, "png", true},
		{"POSTER.JPEG", Image, "jpeg", true},
		{"a.b.webp", Image, "webp", true},
		{"clip.MOV", Video, "mov", true},
		{"clip.ogg", Video, "ogg", true},
		{"clip.mp4", Image, "mp4", false},
		{"poster.png", Video, "png", false},
		{"script.sh", Image, "sh", false},
		{"noext", Image, "", false},
		{"", Video, "", false},
	}
	for _, tt := range tests {
		ext, ok := Allowed(tt.filename, tt.kind)
		if ext != tt.wantExt || ok != tt.wantOK {
			t.Errorf("Allowed(%q, %s) = (%q, %v), want (%q, %v)", tt.filename, tt.kind, ext, ok, tt.wantExt, tt.wantOK)
		}
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	in := &Ingestor{Dir: filepath.Join(dir, "uploads"), MaxBytes: 16}

	ref, ok, err := in.Save(strings.NewReader("PNGDATA"), "Poster.PNG", Image)
	if err != nil || !ok {
		t.Fatalf("Save() = %q, %v, %v", ref, ok, err)
	}
	if !strings.HasPrefix(ref, RefPrefix) || !strings.HasSuffix(ref, ".png") {
		t.Fatalf("ref = %q, want uploads/<uuid>.png", ref)
	}
	data, err := os.ReadFile(filepath.Join(in.Dir, strings.TrimPrefix(ref, RefPrefix)))
	if err != nil || string(data) != "PNGDATA" {
		t.Fatalf("stored file = %q, %v", data, err)
	}

	second, _, err := in.Save(strings.NewReader("PNGDATA"), "Poster.PNG", Image)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if second == ref {
		t.Fatalf("two uploads share a name: %q", ref)
	}
}

func TestSaveRejectsExtensionWithoutError(t *testing.T) {
	in := &Ingestor{Dir: t.TempDir()}
	ref, ok, err := in.Save(strings.NewReader("#!/bin/sh"), "evil.sh", Image)
	if err != nil || ok || ref != "" {
		t.Fatalf("Save() = %q, %v, %v; want rejection without error", ref, ok, err)
	}
	entries, _ := os.ReadDir(in.Dir)
	if len(entries) != 0 {
		t.Fatalf("rejected upload left %d files", len(entries))
	}
}

func TestSaveTooLarge(t *testing.T) {
	in := &Ingestor{Dir: t.TempDir(), MaxBytes: 8}

	_, ok, err := in.Save(bytes.NewReader(make([]byte, 9)), "clip.mp4", Video)
	if !errors.Is(err, ErrTooLarge) || ok {
		t.Fatalf("Save() = %v, %v; want ErrTooLarge", ok, err)
	}
	entries, _ := os.ReadDir(in.Dir)
	if len(entries) != 0 {
		t.Fatalf("oversized upload left %d files", len(entries))
	}

	if _, ok, err := in.Save(bytes.NewReader(make([]byte, 8)), "clip.mp4", Video); err != nil || !ok {
		t.Fatalf("upload at the limit rejected: %v", err)
	}
}

func TestOpenAndRemove(t *testing.T) {
	in := &Ingestor{Dir: t.TempDir()}
	ref, _, err := in.Save(strings.NewReader("video"), "clip.webm", Video)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	stored := "/" + ref
	if !IsRef(stored) || IsRef("https://example.com/uploads/x.png") {
		t.Fatalf("IsRef misclassifies references")
	}

	f, err := in.Open(strings.TrimPrefix(ref, RefPrefix))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "video" {
		t.Fatalf("Open content = %q", data)
	}

	if err := in.Remove(stored); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := in.Remove(stored); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := in.Open(strings.TrimPrefix(ref, RefPrefix)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Open removed = %v, want ErrNotFound", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	in := &Ingestor{Dir: filepath.Join(dir, "uploads")}

	for _, name := range []string{"../secret.txt", "..", ".", "", `..\secret.txt`, "a/b.png"} {
		if f, err := in.Open(name); !errors.Is(err, domain.ErrNotFound) {
			if f != nil {
				f.Close()
			}
			t.Errorf("Open(%q) = %v, want ErrNotFound", name, err)
		}
	}
}

func FuzzAllowed(f *testing.F) {
	for _, seed := range []string{"a.png", "B.MP4", "..", "x.", ".jpg", "a/b/c.gif"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, filename string) {
		for _, kind := range []Kind{Image, Video} {
			ext, ok := Allowed(filename, kind)
			if ok && ext != strings.ToLower(ext) {
				t.Fatalf("accepted non-lowercased ext %q", ext)
			}
			if ok && strings.ContainsAny(ext, `./\`) {
				t.Fatalf("accepted ext %q with separators", ext)
			}
		}
	})
}
