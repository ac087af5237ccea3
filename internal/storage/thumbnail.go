package storage

import (
	"bytes"
	"errors"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailMaxSide = 480
	thumbnailQuality = 80
)

var ErrNotImage = errors.New("content is not a decodable image")

// IsImage reports whether contentType names an image format we thumbnail.
func IsImage(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif":
		return true
	}
	return false
}

// MakeThumbnail fits the image inside a 480x480 box, keeping its aspect
// ratio, and encodes it as JPEG. Images already inside the box are re-encoded
// at their own size.
func MakeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}
	bounds := img.Bounds()
	if bounds.Dx() > ThumbnailMaxSide || bounds.Dy() > ThumbnailMaxSide {
		img = imaging.Fit(img, ThumbnailMaxSide, ThumbnailMaxSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
