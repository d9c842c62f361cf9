package upload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newDisk(t *testing.T, max int64) *Disk {
	t.Helper()
	d, err := NewDisk(filepath.Join(t.TempDir(), "uploads"), "http://localhost:8080/", max)
	if err != nil {
		t.Fatal(err)
	}
	d.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return d
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"my file (1).png":     "my_file__1_.png",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\cv.docx`: "cv.docx",
		"":                    "file",
		"naïve.txt":           "na_ve.txt",
	}
	for in, want := range cases {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSave(t *testing.T) {
	d := newDisk(t, 1024)
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	s, err := d.Save(context.Background(), "my photo.png", bytes.NewReader(png))
	if err != nil {
		t.Fatal(err)
	}
	if s.Filename != "1700000000000-my_photo.png" {
		t.Fatalf("unexpected stored name %q", s.Filename)
	}
	if s.URL != "http://localhost:8080/uploads/1700000000000-my_photo.png" {
		t.Fatalf("unexpected url %q", s.URL)
	}
	if s.ContentType != "image/png" || s.OriginalName != "my photo.png" || s.Size != int64(len(png)) {
		t.Fatalf("unexpected metadata %+v", s)
	}
	got, err := os.ReadFile(filepath.Join(d.Dir, s.Filename))
	if err != nil || !bytes.Equal(got, png) {
		t.Fatalf("content not written (%v)", err)
	}

	again, err := d.Upload(context.Background(), "my photo.png", bytes.NewReader(png))
	if err != nil {
		t.Fatal(err)
	}
	if again.Filename == s.Filename {
		t.Fatalf("same name in the same millisecond must not overwrite")
	}
}

func TestSaveTooLarge(t *testing.T) {
	d := newDisk(t, 10)
	_, err := d.Save(context.Background(), "big.txt", strings.NewReader(strings.Repeat("x", 11)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(d.Dir)
	if len(entries) != 0 {
		t.Fatalf("partial file left behind")
	}

	if _, err := d.Save(context.Background(), "fits.txt", strings.NewReader(strings.Repeat("x", 10))); err != nil {
		t.Fatalf("file at the limit must be accepted: %v", err)
	}
}

func TestSaveCancelled(t *testing.T) {
	d := newDisk(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Save(ctx, "big.bin", bytes.NewReader(make([]byte, sniffLen*2)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
