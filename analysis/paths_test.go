package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageIndex(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/storage/faces/abc_0.png", 0},
		{"/storage/faces/abc_3.png", 3},
		{"storage/faces/photo_2024_12.jpg", 12},
		{"/storage/faces/a_b_c_7.jpeg", 7},
	}
	for _, tt := range tests {
		got, err := StorageIndex(tt.path)
		require.NoError(t, err, "path %q", tt.path)
		assert.Equal(t, tt.want, got, "path %q", tt.path)
	}
}

func TestStorageIndexRejectsUnsuffixedPaths(t *testing.T) {
	bad := []string{
		"/storage/faces/abc.png",
		"/storage/faces/abc_x.png",
		"/storage/faces/abc_3",
		"/storage/faces/abc_3.png.bak_",
		"",
	}
	for _, p := range bad {
		_, err := StorageIndex(p)
		assert.Error(t, err, "path %q", p)
	}
}

func TestIsAllowedStoragePath(t *testing.T) {
	allowed := []string{
		"/storage/faces/abc_0.png",
		"storage/faces/abc_1.png",
		"/storage/original/2021.jpg",
		"storage/original/photo.jpeg",
	}
	for _, p := range allowed {
		assert.True(t, IsAllowedStoragePath(p), "path %q should be allowed", p)
	}

	rejected := []string{
		"/etc/passwd",
		"/storage/other/abc_0.png",
		"/storage/faces/../original/2021.jpg",
		"/storage/faces/..%2fsecret_0.png",
		"//storage/faces/abc_0.png",
		"/storage//faces/abc_0.png",
		"storagex/faces/abc_0.png",
		"",
	}
	for _, p := range rejected {
		assert.False(t, IsAllowedStoragePath(p), "path %q should be rejected", p)
	}
}

func TestIsValidImagePath(t *testing.T) {
	valid := []string{
		"/storage/original/2021.jpg",
		"storage/original/photo_1.png",
		"/storage/original/a-b.c_d.jpeg",
	}
	for _, p := range valid {
		assert.True(t, IsValidImagePath(p), "path %q should be valid", p)
	}

	invalid := []string{
		"/storage/faces/abc_0.png",
		"/storage/original/../faces/abc_0.png",
		"/storage/original/.hidden",
		"/storage/original/sub/dir.jpg",
		"/etc/passwd",
		"",
	}
	for _, p := range invalid {
		assert.False(t, IsValidImagePath(p), "path %q should be invalid", p)
	}
}

func TestStorageFilename(t *testing.T) {
	assert.Equal(t, "abc_0.png", StorageFilename("/storage/faces/abc_0.png"))
	assert.Equal(t, "2021.jpg", StorageFilename("storage/original/2021.jpg"))
}
