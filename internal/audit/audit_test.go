package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want string
	}{
		{tag: "GPSLatitude", want: KindGPS},
		{tag: "GPSLongitudeRef", want: KindGPS},
		{tag: "Make", want: KindDevice},
		{tag: "BodySerialNumber", want: KindDevice},
		{tag: "HostComputer", want: KindDevice},
		{tag: "Artist", want: KindAuthor},
		{tag: "XPAuthor", want: KindAuthor},
		{tag: "Software", want: KindSoftware},
		{tag: "DateTimeOriginal", want: KindTimestamp},
		{tag: "ExposureTime", want: ""},
		{tag: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.tag); got != tt.want {
				t.Errorf("Classify(%q): expected %q, got %q", tt.tag, tt.want, got)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"images/a.jpg":   true,
		"images/a.JPEG":  true,
		"images/a.tif":   true,
		"images/a.heic":  true,
		"images/a.png":   false,
		"images/a.svg":   false,
		"css/jpg.css":    false,
		"other/file.jpg": true,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q): expected %v, got %v", path, want, got)
		}
	}
}

func TestInspectWithoutExif(t *testing.T) {
	t.Parallel()

	data := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x43, 0x00, 0xFF, 0xD9}
	if findings := Inspect(data, "images/plain.jpg"); len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
	if findings := Inspect(nil, "images/empty.jpg"); len(findings) != 0 {
		t.Errorf("expected no findings for empty data, got %+v", findings)
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	t.Run("skips unsupported, missing and oversized files", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "images"), 0750); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(root, "images", "big.jpg"), make([]byte, 64), 0600); err != nil {
			t.Fatalf("failed to write image: %v", err)
		}
		if err := os.WriteFile(filepath.Join(root, "images", "a.png"), []byte("png"), 0600); err != nil {
			t.Fatalf("failed to write image: %v", err)
		}

		a := New(WithMaxImageSize(16))
		findings, err := a.Audit(context.Background(), root, []string{"images/big.jpg", "images/a.png", "images/missing.jpg"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != 0 {
			t.Errorf("expected no findings, got %+v", findings)
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New().Audit(ctx, t.TempDir(), []string{"images/a.jpg"})
		if err == nil {
			t.Error("expected context error")
		}
	})
}
