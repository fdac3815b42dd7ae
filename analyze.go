package psd

import "math"

// AnalyzeOptions tunes the content classifier. The thresholds are
// presentation-layer heuristics, not part of the decoder contract, so they
// are exposed rather than baked in.
type AnalyzeOptions struct {
	// MinColorStdDev is the RGB standard deviation below which pixels
	// count as a single flat color.
	MinColorStdDev float64
}

// DefaultAnalyzeOptions mirrors the thresholds of the original export
// pipeline.
func DefaultAnalyzeOptions() AnalyzeOptions {
	return AnalyzeOptions{MinColorStdDev: 1.0}
}

// ContentAnalysis is the classifier's verdict on a decoded image.
type ContentAnalysis struct {
	Empty  bool
	Reason string

	OpaquePixels int
	TotalPixels  int
	ColorStdDev  float64
	UniqueColors int
}

// Analyze classifies a decoded image as empty or carrying content: fully
// transparent buffers and flat single-color buffers without alpha count as
// empty. It only consumes the DecodedImage; it never touches the document.
func Analyze(img *DecodedImage, opts AnalyzeOptions) ContentAnalysis {
	res := ContentAnalysis{TotalPixels: img.Width * img.Height}
	if res.TotalPixels == 0 {
		res.Empty = true
		res.Reason = "no_image"
		return res
	}

	hasAlpha := img.Format == FormatRGBA

	// Collect RGB statistics over covered pixels only: transparent pixels
	// carry no visible color.
	var sum, sumSq float64
	var samples int
	seen := make(map[[3]uint8]struct{})
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b, a := img.RGBAAt(x, y)
			if hasAlpha && a == 0 {
				continue
			}
			res.OpaquePixels++
			seen[[3]uint8{r, g, b}] = struct{}{}
			for _, v := range []uint8{r, g, b} {
				f := float64(v)
				sum += f
				sumSq += f * f
				samples++
			}
		}
	}
	res.UniqueColors = len(seen)

	if hasAlpha && res.OpaquePixels == 0 {
		res.Empty = true
		res.Reason = "fully_transparent"
		return res
	}

	mean := sum / float64(samples)
	res.ColorStdDev = math.Sqrt(sumSq/float64(samples) - mean*mean)

	if hasAlpha {
		// Anything visible through the alpha channel is content, flat or
		// not: a solid shape on transparency is not an empty layer.
		res.Empty = false
		res.Reason = "has_content"
		return res
	}

	if res.ColorStdDev < opts.MinColorStdDev && res.UniqueColors <= 1 {
		res.Empty = true
		res.Reason = "no_color_variation"
		return res
	}
	res.Reason = "has_content"
	return res
}
