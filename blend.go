package psd

import "math"

// BlendMode is a layer blend-mode tag.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendPassThrough
	BlendDissolve
	BlendDarken
	BlendMultiply
	BlendColorBurn
	BlendLinearBurn
	BlendDarkerColor
	BlendLighten
	BlendScreen
	BlendColorDodge
	BlendLinearDodge
	BlendLighterColor
	BlendOverlay
	BlendSoftLight
	BlendHardLight
	BlendVividLight
	BlendLinearLight
	BlendPinLight
	BlendHardMix
	BlendDifference
	BlendExclusion
	BlendSubtract
	BlendDivide
	BlendHue
	BlendSaturation
	BlendColor
	BlendLuminosity
)

var blendModeKeys = map[string]BlendMode{
	"norm": BlendNormal,
	"pass": BlendPassThrough,
	"diss": BlendDissolve,
	"dark": BlendDarken,
	"mul ": BlendMultiply,
	"idiv": BlendColorBurn,
	"lbrn": BlendLinearBurn,
	"dkCl": BlendDarkerColor,
	"lite": BlendLighten,
	"scrn": BlendScreen,
	"div ": BlendColorDodge,
	"lddg": BlendLinearDodge,
	"lgCl": BlendLighterColor,
	"over": BlendOverlay,
	"sLit": BlendSoftLight,
	"hLit": BlendHardLight,
	"vLit": BlendVividLight,
	"lLit": BlendLinearLight,
	"pLit": BlendPinLight,
	"hMix": BlendHardMix,
	"diff": BlendDifference,
	"smud": BlendExclusion,
	"fsub": BlendSubtract,
	"fdiv": BlendDivide,
	"hue ": BlendHue,
	"sat ": BlendSaturation,
	"colr": BlendColor,
	"lum ": BlendLuminosity,
}

var blendModeNames = map[BlendMode]string{
	BlendNormal:       "normal",
	BlendPassThrough:  "pass_through",
	BlendDissolve:     "dissolve",
	BlendDarken:       "darken",
	BlendMultiply:     "multiply",
	BlendColorBurn:    "color_burn",
	BlendLinearBurn:   "linear_burn",
	BlendDarkerColor:  "darker_color",
	BlendLighten:      "lighten",
	BlendScreen:       "screen",
	BlendColorDodge:   "color_dodge",
	BlendLinearDodge:  "linear_dodge",
	BlendLighterColor: "lighter_color",
	BlendOverlay:      "overlay",
	BlendSoftLight:    "soft_light",
	BlendHardLight:    "hard_light",
	BlendVividLight:   "vivid_light",
	BlendLinearLight:  "linear_light",
	BlendPinLight:     "pin_light",
	BlendHardMix:      "hard_mix",
	BlendDifference:   "difference",
	BlendExclusion:    "exclusion",
	BlendSubtract:     "subtract",
	BlendDivide:       "divide",
	BlendHue:          "hue",
	BlendSaturation:   "saturation",
	BlendColor:        "color",
	BlendLuminosity:   "luminosity",
}

func (m BlendMode) String() string {
	if name, ok := blendModeNames[m]; ok {
		return name
	}
	return "normal"
}

// blendModeFromKey maps a 4-byte file tag to a BlendMode. Unknown tags fall
// back to normal.
func blendModeFromKey(key string) BlendMode {
	if m, ok := blendModeKeys[key]; ok {
		return m
	}
	return BlendNormal
}

// separableBlend returns the per-channel blend function for m, or nil for
// the non-separable HSL modes. Inputs and outputs are in [0, 1]; s is the
// source (layer) channel, d the destination (backdrop) channel.
func separableBlend(m BlendMode) func(s, d float64) float64 {
	switch m {
	case BlendDarken:
		return math.Min
	case BlendLighten:
		return math.Max
	case BlendMultiply:
		return func(s, d float64) float64 { return s * d }
	case BlendScreen:
		return func(s, d float64) float64 { return 1 - (1-s)*(1-d) }
	case BlendOverlay:
		return func(s, d float64) float64 {
			if d < 0.5 {
				return 2 * s * d
			}
			return 1 - 2*(1-s)*(1-d)
		}
	case BlendHardLight:
		return func(s, d float64) float64 {
			if s < 0.5 {
				return 2 * s * d
			}
			return 1 - 2*(1-s)*(1-d)
		}
	case BlendSoftLight:
		// Pegtop formula.
		return func(s, d float64) float64 { return (1-2*s)*d*d + 2*s*d }
	case BlendColorDodge:
		return func(s, d float64) float64 {
			if s >= 1 {
				return 1
			}
			return math.Min(d/(1-s), 1)
		}
	case BlendColorBurn:
		return func(s, d float64) float64 {
			if s <= 0 {
				return 0
			}
			return math.Max(1-(1-d)/s, 0)
		}
	case BlendLinearDodge:
		return func(s, d float64) float64 { return math.Min(s+d, 1) }
	case BlendLinearBurn:
		return func(s, d float64) float64 { return math.Max(s+d-1, 0) }
	case BlendLinearLight:
		return func(s, d float64) float64 { return clamp01(d + 2*s - 1) }
	case BlendVividLight:
		return func(s, d float64) float64 {
			if s < 0.5 {
				if s <= 0 {
					return 0
				}
				return math.Max(1-(1-d)/(2*s), 0)
			}
			if s >= 1 {
				return 1
			}
			return math.Min(d/(2*(1-s)), 1)
		}
	case BlendPinLight:
		return func(s, d float64) float64 {
			if s < 0.5 {
				return math.Min(d, 2*s)
			}
			return math.Max(d, 2*s-1)
		}
	case BlendHardMix:
		return func(s, d float64) float64 {
			if s+d >= 1 {
				return 1
			}
			return 0
		}
	case BlendDifference:
		return func(s, d float64) float64 { return math.Abs(s - d) }
	case BlendExclusion:
		return func(s, d float64) float64 { return s + d - 2*s*d }
	case BlendSubtract:
		return func(s, d float64) float64 { return math.Max(d-s, 0) }
	case BlendDivide:
		return func(s, d float64) float64 {
			if s <= 0 {
				return 1
			}
			return math.Min(d/s, 1)
		}
	case BlendDarkerColor, BlendLighterColor:
		// Component-wise approximation; the exact modes compare summed
		// luminance, handled in blendRGB.
		return nil
	default:
		return nil
	}
}

// blendRGB applies mode to one source/backdrop color pair, both in [0, 1].
func blendRGB(m BlendMode, sr, sg, sb, dr, dg, db float64) (float64, float64, float64) {
	if f := separableBlend(m); f != nil {
		return f(sr, dr), f(sg, dg), f(sb, db)
	}

	switch m {
	case BlendDarkerColor:
		if sr+sg+sb < dr+dg+db {
			return sr, sg, sb
		}
		return dr, dg, db
	case BlendLighterColor:
		if sr+sg+sb > dr+dg+db {
			return sr, sg, sb
		}
		return dr, dg, db
	case BlendHue:
		h, _, _ := rgbToHSL(sr, sg, sb)
		_, s, l := rgbToHSL(dr, dg, db)
		return hslToRGB(h, s, l)
	case BlendSaturation:
		_, s, _ := rgbToHSL(sr, sg, sb)
		h, _, l := rgbToHSL(dr, dg, db)
		return hslToRGB(h, s, l)
	case BlendColor:
		h, s, _ := rgbToHSL(sr, sg, sb)
		_, _, l := rgbToHSL(dr, dg, db)
		return hslToRGB(h, s, l)
	case BlendLuminosity:
		_, _, l := rgbToHSL(sr, sg, sb)
		h, s, _ := rgbToHSL(dr, dg, db)
		return hslToRGB(h, s, l)
	default:
		// Normal, dissolve, pass-through and anything unrecognized.
		return sr, sg, sb
	}
}

// compositePixel layers one source pixel over a backdrop pixel with standard
// alpha-over compositing. The layer opacity scales the source alpha before
// compositing.
func compositePixel(m BlendMode, src, dst [4]uint8, opacity uint8) [4]uint8 {
	sa := float64(src[3]) / 255 * float64(opacity) / 255
	da := float64(dst[3]) / 255
	if sa == 0 {
		return dst
	}

	sr := float64(src[0]) / 255
	sg := float64(src[1]) / 255
	sb := float64(src[2]) / 255
	dr := float64(dst[0]) / 255
	dg := float64(dst[1]) / 255
	db := float64(dst[2]) / 255

	br, bg, bb := blendRGB(m, sr, sg, sb, dr, dg, db)

	// Blend modes only take effect over existing backdrop coverage; over
	// transparent backdrop the source color passes through.
	if da < 1 {
		br = br*da + sr*(1-da)
		bg = bg*da + sg*(1-da)
		bb = bb*da + sb*(1-da)
	}

	oa := sa + da*(1-sa)
	if oa == 0 {
		return [4]uint8{}
	}
	or := (br*sa + dr*da*(1-sa)) / oa
	og := (bg*sa + dg*da*(1-sa)) / oa
	ob := (bb*sa + db*da*(1-sa)) / oa

	return [4]uint8{
		uint8(clamp01(or)*255 + 0.5),
		uint8(clamp01(og)*255 + 0.5),
		uint8(clamp01(ob)*255 + 0.5),
		uint8(clamp01(oa)*255 + 0.5),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rgbToHSL converts normalized RGB to hue (0-360), saturation and lightness
// (0-1).
func rgbToHSL(r, g, b float64) (h, s, l float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	l = (max + min) / 2
	if delta == 0 {
		return 0, 0, l
	}

	if l < 0.5 {
		s = delta / (max + min)
	} else {
		s = delta / (2 - max - min)
	}

	switch max {
	case r:
		h = (g - b) / delta
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h *= 60
	return h, s, l
}

// hslToRGB converts hue (0-360), saturation and lightness back to
// normalized RGB.
func hslToRGB(h, s, l float64) (r, g, b float64) {
	if s == 0 {
		return l, l, l
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	hue := func(t float64) float64 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		switch {
		case t < 1.0/6:
			return p + (q-p)*6*t
		case t < 0.5:
			return q
		case t < 2.0/3:
			return p + (q-p)*(2.0/3-t)*6
		}
		return p
	}

	h /= 360
	return hue(h + 1.0/3), hue(h), hue(h - 1.0/3)
}
