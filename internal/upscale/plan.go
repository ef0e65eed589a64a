package upscale

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultScale is used when Options.ScaleFactor is left at zero.
const DefaultScale = 2.0

// twoStageThreshold is the scale above which resampling runs in two passes and
// the gentler kernel is used.
const twoStageThreshold = 4.0

// MaxScale bounds ScaleFactor. Even the smallest thumbnail tier (120x90)
// would exceed MaxPixels well before this.
const MaxScale = 64.0

var (
	ErrInvalidScale      = errors.New("scale factor must be a finite number between 1 and 64")
	ErrUnknownResolution = errors.New("unknown target resolution")
	ErrEmptyImage        = errors.New("image has no pixels")
)

// Resolution is a named output size class.
type Resolution string

const (
	ResolutionNone Resolution = ""
	Resolution4K   Resolution = "4K"
	Resolution8K   Resolution = "8K"
)

// ParseResolution accepts "", "4k", "4K", "8k" and "8K".
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ResolutionNone, nil
	case "4K":
		return Resolution4K, nil
	case "8K":
		return Resolution8K, nil
	}
	return ResolutionNone, fmt.Errorf("%w: %q", ErrUnknownResolution, s)
}

// Size returns the pixel box of the resolution class.
func (r Resolution) Size() (width, height int) {
	switch r {
	case Resolution4K:
		return 3840, 2160
	case Resolution8K:
		return 7680, 4320
	}
	return 0, 0
}

// Options controls a single upscale.
type Options struct {
	ScaleFactor float64    `json:"scale_factor"`
	Target      Resolution `json:"target_resolution,omitempty"`
}

// Plan is the resolved geometry of an upscale.
type Plan struct {
	SourceWidth  int        `json:"source_width"`
	SourceHeight int        `json:"source_height"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Scale        float64    `json:"scale"`
	Target       Resolution `json:"target_resolution,omitempty"`
	Stages       int        `json:"stages"`

	IntermediateWidth  int `json:"intermediate_width,omitempty"`
	IntermediateHeight int `json:"intermediate_height,omitempty"`

	Kernel Kernel `json:"-"`
}

// Label names the plan for display: the resolution class if one was asked
// for, the scale factor otherwise ("2x", "2.5x").
func (p Plan) Label() string {
	if p.Target != ResolutionNone {
		return string(p.Target)
	}
	return strconv.FormatFloat(p.Scale, 'f', -1, 64) + "x"
}

// PlanFor computes output dimensions for a width x height source.
//
// With a target resolution the source aspect ratio is fitted inside the target
// box and Scale becomes the effective factor rounded to one decimal. That value
// only drives the stage and kernel choice. Otherwise each side is multiplied by
// ScaleFactor and rounded.
func PlanFor(width, height int, opts Options) (Plan, error) {
	plan := Plan{SourceWidth: width, SourceHeight: height, Target: opts.Target}
	if width <= 0 || height <= 0 {
		return plan, ErrEmptyImage
	}

	switch opts.Target {
	case ResolutionNone:
		scale := opts.ScaleFactor
		if scale == 0 {
			scale = DefaultScale
		}
		if !ValidScale(scale) {
			return plan, fmt.Errorf("%w: %v", ErrInvalidScale, opts.ScaleFactor)
		}
		plan.Scale = scale
		w, h := float64(width)*scale, float64(height)*scale
		if w*h > MaxPixels {
			return plan, fmt.Errorf("%w: %.0fx%.0f", ErrTooLarge, w, h)
		}
		plan.Width = roundDim(w)
		plan.Height = roundDim(h)

	case Resolution4K, Resolution8K:
		tw, th := opts.Target.Size()
		if float64(width)/float64(height) > float64(tw)/float64(th) {
			plan.Width = tw
			plan.Height = roundDim(float64(height) * float64(tw) / float64(width))
		} else {
			plan.Height = th
			plan.Width = roundDim(float64(width) * float64(th) / float64(height))
		}
		effective := math.Max(float64(plan.Width)/float64(width), float64(plan.Height)/float64(height))
		plan.Scale = math.Round(effective*10) / 10

	default:
		return plan, fmt.Errorf("%w: %q", ErrUnknownResolution, string(opts.Target))
	}

	plan.Stages = 1
	plan.Kernel = StandardKernel
	if plan.Scale > twoStageThreshold {
		inter := math.Min(2, plan.Scale/2)
		plan.Stages = 2
		plan.IntermediateWidth = roundDim(float64(width) * inter)
		plan.IntermediateHeight = roundDim(float64(height) * inter)
		plan.Kernel = GentleKernel
	}
	return plan, nil
}

// ValidScale reports whether s is a usable scale factor: finite and within
// [1, MaxScale].
func ValidScale(s float64) bool {
	return !math.IsNaN(s) && s >= 1 && s <= MaxScale
}

func roundDim(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}
