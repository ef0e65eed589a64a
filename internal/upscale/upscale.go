package upscale

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// MaxPixels caps the output size of a single upscale (8K is ~33M pixels).
const MaxPixels = 64 << 20

var (
	ErrResample = errors.New("resampling failed")
	ErrTooLarge = errors.New("output exceeds pixel limit")
)

// Outcome classifies the result of an upscale.
type Outcome int

const (
	// OutcomeUpscaled means the image was resampled (and sharpened when it
	// has colour channels).
	OutcomeUpscaled Outcome = iota
	// OutcomeDegraded means enhancement failed and Result.Image is the
	// unmodified input.
	OutcomeDegraded
	// OutcomeDecodeError means the input bytes could not be decoded at all.
	OutcomeDecodeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpscaled:
		return "upscaled"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeDecodeError:
		return "decode_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is what Upscale and Process hand back. Err is set for
// OutcomeDegraded and OutcomeDecodeError.
type Result struct {
	Image     image.Image
	Plan      Plan
	Outcome   Outcome
	Sharpened bool
	Err       error
}

// Degraded reports whether the original image was returned in place of an
// enhanced one.
func (r Result) Degraded() bool {
	return r.Outcome == OutcomeDegraded
}

// sharpenFunc is swapped in tests to simulate sharpening failures.
var sharpenFunc = Sharpen

// Upscale resizes img per opts with a Lanczos filter, in two passes above 4x,
// then sharpens the colour channels. It never fails: any error or panic while
// planning, resampling or sharpening yields the untouched img with
// OutcomeDegraded. Gray images are resampled but not sharpened.
func Upscale(img image.Image, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = degraded(img, res.Plan, fmt.Errorf("%w: %v", ErrResample, r))
		}
	}()

	b := img.Bounds()
	plan, err := PlanFor(b.Dx(), b.Dy(), opts)
	res.Plan = plan
	if err != nil {
		return degraded(img, plan, err)
	}
	resampled := resample(img, plan)

	if Channels(img) < 3 {
		return Result{Image: toGray(resampled), Plan: plan, Outcome: OutcomeUpscaled}
	}

	sharpened, err := sharpenFunc(resampled, plan.Kernel)
	if err != nil {
		return degraded(img, plan, fmt.Errorf("sharpen: %w", err))
	}
	return Result{Image: sharpened, Plan: plan, Outcome: OutcomeUpscaled, Sharpened: true}
}

// Process decodes data and upscales it. Decoding failures are the only case
// that does not return an image.
func Process(data []byte, opts Options) Result {
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Result{Outcome: OutcomeDecodeError, Err: err}
	}
	return Upscale(img, opts)
}

func resample(img image.Image, plan Plan) *image.NRGBA {
	if plan.Stages == 2 {
		intermediate := imaging.Resize(img, plan.IntermediateWidth, plan.IntermediateHeight, imaging.Lanczos)
		return imaging.Resize(intermediate, plan.Width, plan.Height, imaging.Lanczos)
	}
	return imaging.Resize(img, plan.Width, plan.Height, imaging.Lanczos)
}

func toGray(img *image.NRGBA) *image.Gray {
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray
}

func degraded(img image.Image, plan Plan, err error) Result {
	return Result{Image: img, Plan: plan, Outcome: OutcomeDegraded, Err: err}
}
