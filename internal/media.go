package internal

import (
	"path"
	"strings"
)

// Category is the destination class of a media file
type Category int

const (
	Unrecognized Category = iota
	Photo
	Video
)

func (c Category) String() string {
	switch c {
	case Photo:
		return "photo"
	case Video:
		return "video"
	default:
		return "unrecognized"
	}
}

// Dir is the top-level output folder for the category
func (c Category) Dir() string {
	switch c {
	case Photo:
		return "photos"
	case Video:
		return "videos"
	default:
		return ""
	}
}

// Classifier maps lowercase extensions to a category.
// Photo extensions are registered first, so an extension listed in both sets is a photo.
type Classifier struct {
	table map[string]Category
}

func NewClassifier(photoExt, videoExt []string) *Classifier {
	c := &Classifier{table: make(map[string]Category, len(photoExt)+len(videoExt))}
	for _, e := range photoExt {
		c.register(e, Photo)
	}
	for _, e := range videoExt {
		c.register(e, Video)
	}
	return c
}

func (c *Classifier) register(ext string, cat Category) {
	ext = normalizeExt(ext)
	if ext == "" {
		return
	}
	if _, ok := c.table[ext]; ok {
		return
	}
	c.table[ext] = cat
}

// Classify returns the category for an extension, with or without the leading dot
func (c *Classifier) Classify(ext string) Category {
	return c.table[normalizeExt(ext)]
}

// ClassifyPath classifies an archive entry by its extension
func (c *Classifier) ClassifyPath(name string) Category {
	return c.Classify(path.Ext(name))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// extSet builds a lookup set of normalized extensions
func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if n := normalizeExt(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
