package media

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions indicates a width or height that cannot describe a video frame.
var ErrInvalidDimensions = errors.New("invalid video dimensions")

// Orientation classifies a frame by its aspect ratio.
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
	Square    Orientation = "square"
)

// Dimensions describes a video frame.
type Dimensions struct {
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	AspectRatio float64     `json:"aspectRatio"`
	IsLandscape bool        `json:"isLandscape"`
	Orientation Orientation `json:"orientation"`
}

// AspectRatio returns width/height.
func AspectRatio(width, height int) (float64, error) {
	if height == 0 {
		return 0, fmt.Errorf("%w: height cannot be zero", ErrInvalidDimensions)
	}
	return float64(width) / float64(height), nil
}

// IsLandscape reports whether ratio is strictly wider than square.
func IsLandscape(ratio float64) bool {
	return ratio > 1
}

// OrientationOf buckets ratio with a ±10% band around square.
func OrientationOf(ratio float64) Orientation {
	switch {
	case ratio > 1.1:
		return Landscape
	case ratio < 0.9:
		return Portrait
	default:
		return Square
	}
}

// NewDimensions derives ratio and orientation from a frame size.
func NewDimensions(width, height int) (Dimensions, error) {
	if width <= 0 || height <= 0 {
		return Dimensions{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	ratio, err := AspectRatio(width, height)
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{
		Width:       width,
		Height:      height,
		AspectRatio: ratio,
		IsLandscape: IsLandscape(ratio),
		Orientation: OrientationOf(ratio),
	}, nil
}

// Validation collects blocking errors and advisory warnings for a frame size.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether no blocking errors were found.
func (v Validation) Valid() bool { return len(v.Errors) == 0 }

// Validate checks a frame size for upload.
func Validate(width, height int) Validation {
	var v Validation
	if width <= 0 {
		v.Errors = append(v.Errors, "width must be greater than 0")
	}
	if height <= 0 {
		v.Errors = append(v.Errors, "height must be greater than 0")
	}
	if width > 7680 {
		v.Warnings = append(v.Warnings, "width is larger than 8K")
	}
	if height > 4320 {
		v.Warnings = append(v.Warnings, "height is larger than 8K")
	}
	if ratio, err := AspectRatio(width, height); err == nil && height > 0 && width > 0 {
		if ratio > 3 {
			v.Warnings = append(v.Warnings, "very wide aspect ratio may not display well on mobile")
		}
		if ratio < 0.3 {
			v.Warnings = append(v.Warnings, "very tall aspect ratio may not display well on mobile")
		}
	}
	return v
}

var standardRatios = []struct {
	name  string
	ratio float64
}{
	{"16:9", 16.0 / 9},
	{"21:9", 21.0 / 9},
	{"4:3", 4.0 / 3},
	{"3:2", 3.0 / 2},
	{"9:16", 9.0 / 16},
	{"4:5", 4.0 / 5},
	{"3:4", 3.0 / 4},
	{"2:3", 2.0 / 3},
	{"1:1", 1},
}

// ClosestStandardRatio names the common ratio nearest to ratio.
func ClosestStandardRatio(ratio float64) string {
	best := standardRatios[0]
	for _, candidate := range standardRatios[1:] {
		if math.Abs(ratio-candidate.ratio) < math.Abs(ratio-best.ratio) {
			best = candidate
		}
	}
	return best.name
}

// Quality buckets a frame by pixel count.
func Quality(width, height int) string {
	pixels := width * height
	switch {
	case pixels >= 7680*4320:
		return "8K"
	case pixels >= 3840*2160:
		return "4K"
	case pixels >= 2560*1440:
		return "QHD"
	case pixels >= 1920*1080:
		return "FHD"
	case pixels >= 1280*720:
		return "HD"
	default:
		return "SD"
	}
}
