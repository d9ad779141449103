package stickers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
)

// MaxDrawingBytes caps the decoded size of a drawing payload. The canvas
// is small (a few hundred px), honest snapshots stay well below this.
const MaxDrawingBytes = 256 << 10

const pngDataURLPrefix = "data:image/png;base64,"

var (
	ErrDrawingMissing  = errors.New("sticker drawing missing")
	ErrDrawingFormat   = errors.New("sticker drawing is not a valid png data url")
	ErrDrawingTooLarge = errors.New("sticker drawing too large")
	ErrDrawingBlank    = errors.New("sticker drawing is blank")
)

// ValidateDrawing checks that the submitted payload is a PNG data URL of
// bounded size whose raster contains at least one non-background pixel.
// An untouched canvas must be rejected before any store call.
func ValidateDrawing(dataURL string) error {
	if dataURL == "" {
		return ErrDrawingMissing
	}

	payload, found := strings.CutPrefix(dataURL, pngDataURLPrefix)
	if !found {
		return ErrDrawingFormat
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ErrDrawingFormat
	}
	if len(raw) > MaxDrawingBytes {
		return ErrDrawingTooLarge
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return ErrDrawingFormat
	}

	if canvasIsBlank(img) {
		return ErrDrawingBlank
	}

	return nil
}

// canvasIsBlank reports whether every pixel is background: fully
// transparent (untouched canvas) or pure white (cleared canvas).
func canvasIsBlank(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			if r == 0xffff && g == 0xffff && b == 0xffff {
				continue
			}
			return false
		}
	}
	return true
}
