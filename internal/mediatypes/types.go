package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
	".jxl":  true,
	".dng":  true,
	".cr2":  true,
	".nef":  true,
	".arw":  true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
	".mts":  true,
	".m2ts": true,
}

// sniffedTypes maps the names returned by content sniffing to a FileType.
var sniffedTypes = map[string]FileType{
	"jpeg":          FileTypeImage,
	"png":           FileTypeImage,
	"gif":           FileTypeImage,
	"webp":          FileTypeImage,
	"bmp":           FileTypeImage,
	"tiff":          FileTypeImage,
	"heif":          FileTypeImage,
	"avif":          FileTypeImage,
	"jxl":           FileTypeImage,
	"mp4-container": FileTypeVideo,
	"matroska":      FileTypeVideo,
	"avi":           FileTypeVideo,
	"asf":           FileTypeVideo,
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// FromPath returns the FileType for path based on its extension, ignoring
// case. Backslash-separated paths are accepted on every platform.
func FromPath(path string) FileType {
	base := path
	if i := strings.LastIndexAny(base, `\/`); i >= 0 {
		base = base[i+1:]
	}
	return GetFileType(strings.ToLower(filepath.Ext(base)))
}

// FromSniffed maps a sniffed container name to a FileType.
func FromSniffed(name string) FileType {
	if t, ok := sniffedTypes[name]; ok {
		return t
	}
	return FileTypeOther
}
