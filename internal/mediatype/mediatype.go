// Package mediatype classifies NFT media URIs by file extension and
// validates that candidate URIs are well-formed URLs.
package mediatype

import (
	"net/url"
	"path"
	"strings"
)

// Class is the coarse media classification used by the verification pipeline.
type Class string

const (
	ClassVideo  Class = "video"
	ClassImage  Class = "image"
	ClassAudio  Class = "audio"
	ClassBinary Class = "binary"
)

func (c Class) String() string {
	return string(c)
}

var classByExt = map[string]Class{
	".jpg":  ClassImage,
	".jpeg": ClassImage,
	".png":  ClassImage,
	".gif":  ClassImage,
	".bmp":  ClassImage,
	".webp": ClassImage,
	".svg":  ClassImage,
	".mp4":  ClassVideo,
	".avi":  ClassVideo,
	".mov":  ClassVideo,
	".mkv":  ClassVideo,
	".webm": ClassVideo,
	".mp3":  ClassAudio,
	".wav":  ClassAudio,
	".ogg":  ClassAudio,
	".flac": ClassAudio,
	".m4a":  ClassAudio,
}

// ClassOf classifies a URI by its path extension. URIs without a known
// media extension classify as binary.
func ClassOf(uri string) Class {
	if c, ok := classByExt[Ext(uri)]; ok {
		return c
	}
	return ClassBinary
}

// IsImage reports whether the URI points at image content.
func IsImage(uri string) bool {
	return ClassOf(uri) == ClassImage
}

// IsAudio reports whether the URI points at audio content.
func IsAudio(uri string) bool {
	return ClassOf(uri) == ClassAudio
}

// IsVideo reports whether the URI points at video content.
func IsVideo(uri string) bool {
	return ClassOf(uri) == ClassVideo
}

// Ext returns the lowercase path extension of a URI, ignoring any query
// or fragment. Unparseable URIs fall back to a raw suffix scan.
func Ext(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return strings.ToLower(path.Ext(u.Path))
	}
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	return strings.ToLower(path.Ext(uri))
}

// IsURL reports whether the string is a well-formed absolute URL with a
// scheme and a host (or an opaque part, for schemes such as ipfs).
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}
