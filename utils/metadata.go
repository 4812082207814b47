package utils

import (
	"fmt"
	"image"
	"io"
	"log"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureMetadata is the subset of image metadata recorded into the local
// analysis history for direct file uploads.
type CaptureMetadata struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"` // Unix timestamp
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	// val string might have null chars at the end
	val := strings.TrimRight(tag.String(), "\x00")
	if val == "" {
		return nil
	}
	return &val
}

// GetCaptureMetadata extracts dimensions and basic EXIF fields from an
// uploaded image. Missing EXIF data is not an error; whatever could be read
// is returned.
func GetCaptureMetadata(r io.ReadSeeker) (*CaptureMetadata, error) {
	config, format, err := image.DecodeConfig(r)
	var width, height *int
	if err == nil {
		w, h := config.Width, config.Height
		width = &w
		height = &h
		log.Printf("metadata: decoded dimensions (format: %s): %dx%d", format, *width, *height)
	} else {
		log.Printf("metadata: Warning - could not decode config for dimensions: %v", err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("metadata: failed to seek upload: %w", err)
	}

	exifData, err := exif.Decode(r)
	if err != nil {
		// not necessarily a fatal error, file might just lack EXIF data
		return &CaptureMetadata{Width: width, Height: height}, nil
	}

	meta := &CaptureMetadata{
		Width:       width,
		Height:      height,
		CameraMake:  getString(exifData, exif.Make),
		CameraModel: getString(exifData, exif.Model),
	}

	dt, err := exifData.DateTime()
	if err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}

	return meta, nil
}
