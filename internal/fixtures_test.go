package internal

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTestImage creates a small gradient image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: uint8((x + y) % 255),
				A: 255,
			})
		}
	}
	return img
}

// jpegBytes encodes a plain JPEG without any metadata
func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(16, 12), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// exifJPEGBytes returns a JPEG whose APP1 segment carries DateTimeOriginal.
// dateTime must use the EXIF layout "2006:01:02 15:04:05".
func exifJPEGBytes(t *testing.T, dateTime string) []byte {
	t.Helper()
	if len(dateTime) != 19 {
		t.Fatalf("bad exif date %q", dateTime)
	}

	// Little-endian TIFF: IFD0 at 8 holds the Exif IFD pointer, the Exif IFD at
	// 26 holds DateTimeOriginal, whose 20 byte value sits at 44.
	le := binary.LittleEndian
	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, le, uint16(42))
	binary.Write(&tiff, le, uint32(8))

	binary.Write(&tiff, le, uint16(1))
	binary.Write(&tiff, le, uint16(0x8769)) // ExifIFDPointer
	binary.Write(&tiff, le, uint16(4))      // LONG
	binary.Write(&tiff, le, uint32(1))
	binary.Write(&tiff, le, uint32(26))
	binary.Write(&tiff, le, uint32(0))

	binary.Write(&tiff, le, uint16(1))
	binary.Write(&tiff, le, uint16(0x9003)) // DateTimeOriginal
	binary.Write(&tiff, le, uint16(2))      // ASCII
	binary.Write(&tiff, le, uint32(20))
	binary.Write(&tiff, le, uint32(44))
	binary.Write(&tiff, le, uint32(0))

	tiff.WriteString(dateTime)
	tiff.WriteByte(0)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var app1 bytes.Buffer
	app1.Write([]byte{0xFF, 0xE1})
	binary.Write(&app1, binary.BigEndian, uint16(len(payload)+2))
	app1.Write(payload)

	plain := jpegBytes(t)
	out := []byte{0xFF, 0xD8}
	out = append(out, app1.Bytes()...)
	return append(out, plain[2:]...)
}

// sidecarJSON is a minimal Takeout sidecar for the given instant
func sidecarJSON(ts time.Time) []byte {
	return []byte(fmt.Sprintf(`{
  "title": "photo.jpg",
  "photoTakenTime": {"timestamp": "%d", "formatted": "%s"}
}`, ts.Unix(), ts.UTC().Format(time.RFC1123)))
}

type zipFile struct {
	name     string
	data     []byte
	modified time.Time
}

// writeZip creates a zip archive in dir and returns its path
func writeZip(t *testing.T, dir, name string, files []zipFile) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, zf := range files {
		hdr := &zip.FileHeader{Name: zf.name, Method: zip.Deflate}
		if !zf.modified.IsZero() {
			hdr.Modified = zf.modified
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(zf.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

// writeFile writes data under dir, creating parent directories
func writeFile(t *testing.T, dir, rel string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// testConfig returns a validated config writing into t.TempDir()
func testConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	cfg := &Config{
		OutputDir:        filepath.Join(root, "out"),
		WorkDir:          filepath.Join(root, "work"),
		PhotoExt:         []string{".jpg", ".jpeg", ".png", ".heic", ".webp", ".gif"},
		VideoExt:         []string{".mp4", ".mov", ".avi", ".mkv", ".webm"},
		ExifExt:          []string{".jpg", ".jpeg", ".png", ".webp", ".heic"},
		SidecarSuffix:    ".json",
		LogLevel:         "info",
		LargeFileWarning: "5GiB",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}
