package upscale

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

var ErrUnsupportedLayout = errors.New("sharpening needs at least 3 colour channels")

// Kernel is a 3x3 convolution weight matrix.
type Kernel [3][3]float64

var (
	// StandardKernel is used for scale factors up to 4.
	StandardKernel = scaleKernel(Kernel{
		{-1, -1, -1},
		{-1, 9, -1},
		{-1, -1, -1},
	}, 1.0/9.0)

	// GentleKernel is used above 4x.
	GentleKernel = scaleKernel(Kernel{
		{-0.5, -0.5, -0.5},
		{-0.5, 5.0, -0.5},
		{-0.5, -0.5, -0.5},
	}, 1.0/5.0)
)

func scaleKernel(k Kernel, f float64) Kernel {
	for y := range k {
		for x := range k[y] {
			k[y][x] *= f
		}
	}
	return k
}

// Channels reports how many samples a pixel of img carries: 1 for gray and
// alpha-only images, 3 for YCbCr (decoded JPEG), 4 for everything else.
func Channels(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return 1
	case color.YCbCrModel:
		return 3
	}
	return 4
}

// Sharpen convolves the red, green and blue channels of img with k. Alpha is
// copied unchanged. Pixels outside the image take the value of the nearest
// edge pixel, which for a 3x3 kernel equals half-sample reflection. Results
// are rounded and clamped to 0..255. img is not modified.
func Sharpen(img image.Image, k Kernel) (*image.NRGBA, error) {
	if Channels(img) < 3 {
		return nil, ErrUnsupportedLayout
	}

	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [3]float64
			for ky := 0; ky < 3; ky++ {
				sy := clampIndex(y+ky-1, h)
				for kx := 0; kx < 3; kx++ {
					weight := k[ky][kx]
					if weight == 0 {
						continue
					}
					off := sy*src.Stride + clampIndex(x+kx-1, w)*4
					sum[0] += weight * float64(src.Pix[off])
					sum[1] += weight * float64(src.Pix[off+1])
					sum[2] += weight * float64(src.Pix[off+2])
				}
			}

			i := y*dst.Stride + x*4
			dst.Pix[i] = clampByte(sum[0])
			dst.Pix[i+1] = clampByte(sum[1])
			dst.Pix[i+2] = clampByte(sum[2])
			dst.Pix[i+3] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	return dst, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
