package upscale

import (
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the encoder quality for every written thumbnail.
const JPEGQuality = 95

var ErrDecode = errors.New("cannot decode image")

// Decode reads a JPEG, PNG, GIF, BMP, TIFF or WebP image, applying any EXIF
// orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Encode writes img as a JPEG.
func Encode(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
}

// FileName names an upscaled file after its source:
// "<base>_upscaled_[<RES>_]<w>x<h>.jpg".
func FileName(source string, target Resolution, width, height int) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	label := ""
	if target != ResolutionNone {
		label = string(target) + "_"
	}
	return fmt.Sprintf("%s_upscaled_%s%dx%d.jpg", base, label, width, height)
}
