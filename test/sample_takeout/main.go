// Command sample_takeout writes a small set of Takeout-style archives for
// trying the organizer by hand:
//
//	go run ./test/sample_takeout ./samples
//	takeout-organizer organize ./samples/*.zip -o ./samples/library
package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8((x + y) % 255)
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	return img
}

func jpegData() []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, createTestImage(400, 300), &jpeg.Options{Quality: 85})
	return buf.Bytes()
}

func sidecar(title string, taken time.Time) []byte {
	return []byte(fmt.Sprintf(`{
  "title": %q,
  "photoTakenTime": {"timestamp": "%d", "formatted": %q}
}
`, title, taken.Unix(), taken.UTC().Format("Jan 2, 2006, 3:04:05 PM UTC")))
}

type entry struct {
	name     string
	data     []byte
	modified time.Time
}

func writeArchive(path string, entries []entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: e.modified}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if _, err := w.Write(e.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func main() {
	dir := "samples"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Error creating %s: %v\n", dir, err)
		os.Exit(1)
	}

	img := jpegData()
	summer := time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)
	winter := time.Date(2018, 11, 2, 9, 30, 0, 0, time.UTC)
	exported := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	part1 := []entry{
		{"Takeout/Google Photos/Photos from 2020/IMG_0001.jpg", img, exported},
		{"Takeout/Google Photos/Photos from 2020/IMG_0001.jpg.json", sidecar("IMG_0001.jpg", summer), exported},
		{"Takeout/Google Photos/Trip/IMG_0001.jpg", img, exported},
		{"Takeout/Google Photos/Trip/IMG_0001.jpg.json", sidecar("IMG_0001.jpg", summer), exported},
		{"Takeout/Google Photos/Trip/metadata.json", []byte(`{"title": "Trip"}`), exported},
		{"Takeout/Google Photos/Photos from 2018/scan.jpg", img, winter},
		{"Takeout/Google Photos/Photos from 2018/broken.jpg", img, winter},
		{"Takeout/Google Photos/Photos from 2018/broken.jpg.json", []byte(`{"photoTakenTime": `), exported},
		{"Takeout/archive_browser.html", []byte("<html><body>Takeout</body></html>"), exported},
	}
	part2 := []entry{
		{"Takeout/Google Photos/Photos from 2020/VID_0002.mp4", []byte("not really a video"), summer},
		{"Takeout/Google Photos/Photos from 2020/notes.txt", []byte("unrecognized"), exported},
	}

	archives := map[string][]entry{
		"takeout-20240301T080000Z-001.zip": part1,
		"takeout-20240301T080000Z-002.zip": part2,
	}
	for name, entries := range archives {
		p := filepath.Join(dir, name)
		if err := writeArchive(p, entries); err != nil {
			fmt.Printf("Error creating %s: %v\n", p, err)
			continue
		}
		fmt.Printf("Created archive: %s (%d entries)\n", p, len(entries))
	}

	corrupt := filepath.Join(dir, "takeout-20240301T080000Z-003.zip")
	if err := os.WriteFile(corrupt, []byte("PK\x03\x04 truncated download"), 0644); err != nil {
		fmt.Printf("Error creating %s: %v\n", corrupt, err)
	} else {
		fmt.Printf("Created corrupt archive: %s\n", corrupt)
	}

	fmt.Println("\nSample Takeout archives ready.")
}
