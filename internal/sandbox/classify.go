package sandbox

import (
	"path"
	"strings"
)

// Kind classifies a file by its extension.
type Kind int

const (
	KindUnsupported Kind = iota
	KindDocument
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindImage:
		return "image"
	default:
		return "unsupported"
	}
}

// documentTypes and imageTypes are disjoint.
var documentTypes = map[string]string{
	".md":       "text/markdown; charset=utf-8",
	".markdown": "text/markdown; charset=utf-8",
	".mdx":      "text/markdown; charset=utf-8",
	".mmd":      "text/plain; charset=utf-8",
	".txt":      "text/plain; charset=utf-8",
}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

// Classify returns the lower-cased extension of name and its kind.
func Classify(name string) (string, Kind) {
	ext := strings.ToLower(path.Ext(name))
	if _, ok := documentTypes[ext]; ok {
		return ext, KindDocument
	}
	if _, ok := imageTypes[ext]; ok {
		return ext, KindImage
	}
	return ext, KindUnsupported
}

// ContentType maps a whitelisted extension to its MIME type.
func ContentType(ext string) string {
	ext = strings.ToLower(ext)
	if ct, ok := documentTypes[ext]; ok {
		return ct
	}
	if ct, ok := imageTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
