package sightings

import (
	"fmt"
	"strings"
	"time"
)

const defaultExtension = "jpg"

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heic": "image/heic",
	"heif": "image/heif",
}

// Extension returns the lowercase text after the last '.' of ref, or "jpg".
// Query strings and path segments after the dot are ignored.
func Extension(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	i := strings.LastIndexByte(ref, '.')
	if i < 0 {
		return defaultExtension
	}
	ext := strings.ToLower(ref[i+1:])
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return defaultExtension
	}
	return ext
}

// ContentType maps an extension to its MIME type, defaulting to image/jpeg.
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return contentTypes[defaultExtension]
}

// ObjectPath is the storage path of a photo: <userID>/<unix-ms>.<ext>.
func ObjectPath(userID string, at time.Time, ref string) string {
	return fmt.Sprintf("%s/%d.%s", userID, at.UnixMilli(), Extension(ref))
}
