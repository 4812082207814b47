package analysis

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Storage prefixes a face_path or image_path is allowed to live under.
// Anything else is treated as a suspicious path and never fetched.
const (
	StorageOriginalPrefix = "storage/original/"
	StorageFacesPrefix    = "storage/faces/"
)

// storageIndexPattern matches the trailing "_<index>.<ext>" segment of a
// face_path. The numeric suffix is the only correlation key between a face
// entry and its fetchable crop image; if upstream ever changes its path
// format this is the single function that breaks.
var storageIndexPattern = regexp.MustCompile(`_(\d+)\.[A-Za-z0-9]+$`)

// imagePathPattern is the fixed shape a session's image_path must match
// before it is joined into a fetch URL.
var imagePathPattern = regexp.MustCompile(`^/?storage/original/[A-Za-z0-9][A-Za-z0-9._-]*$`)

// IsAllowedStoragePath reports whether p points into one of the known
// upstream storage directories and is free of traversal tricks.
func IsAllowedStoragePath(p string) bool {
	if strings.Contains(p, "..") || strings.Contains(p, "//") {
		return false
	}
	trimmed := strings.TrimPrefix(p, "/")
	return strings.HasPrefix(trimmed, StorageOriginalPrefix) ||
		strings.HasPrefix(trimmed, StorageFacesPrefix)
}

// IsValidImagePath reports whether an upstream-supplied image_path matches
// the fixed original-image path shape.
func IsValidImagePath(p string) bool {
	if strings.Contains(p, "..") || strings.Contains(strings.TrimPrefix(p, "/"), "//") {
		return false
	}
	return imagePathPattern.MatchString(p)
}

// StorageIndex extracts the 0-based storage index encoded in a face_path's
// trailing "_<index>.<ext>" segment.
func StorageIndex(facePath string) (int, error) {
	m := storageIndexPattern.FindStringSubmatch(facePath)
	if m == nil {
		return 0, fmt.Errorf("face path %q has no trailing index segment", facePath)
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("face path %q index: %w", facePath, err)
	}
	return idx, nil
}

// StorageFilename returns the bare filename component of a storage path.
func StorageFilename(p string) string {
	return path.Base(p)
}
