package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// knownTypes covers the formats this service writes, independent of the
// host's mime.types.
var knownTypes = map[string]string{
	".mp3": "audio/mpeg",
	".m4a": "audio/mp4",
	".wav": "audio/wav",
	".ogg": "audio/ogg",
}

// DetectContentType determines the MIME type of an object.
//
// Detection priority:
// 1. providedType, if non-empty
// 2. the built-in table for audio extensions
// 3. mime.TypeByExtension
// 4. "application/octet-stream"
func DetectContentType(providedType, key string) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(key))
	if contentType, ok := knownTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	return "application/octet-stream"
}

// IsAudio returns true if the content type is any audio format.
func IsAudio(contentType string) bool {
	baseType := strings.Split(contentType, ";")[0]
	baseType = strings.TrimSpace(strings.ToLower(baseType))
	return strings.HasPrefix(baseType, "audio/")
}
