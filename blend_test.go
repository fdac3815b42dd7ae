package psd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlendModeFromKey(t *testing.T) {
	assert.Equal(t, BlendNormal, blendModeFromKey("norm"))
	assert.Equal(t, BlendMultiply, blendModeFromKey("mul "))
	assert.Equal(t, BlendScreen, blendModeFromKey("scrn"))
	assert.Equal(t, BlendPassThrough, blendModeFromKey("pass"))
	assert.Equal(t, BlendLuminosity, blendModeFromKey("lum "))

	// Unknown tags render as normal rather than failing.
	assert.Equal(t, BlendNormal, blendModeFromKey("????"))
}

func TestBlendModeString(t *testing.T) {
	assert.Equal(t, "multiply", BlendMultiply.String())
	assert.Equal(t, "pass_through", BlendPassThrough.String())
	assert.Equal(t, "normal", BlendMode(999).String())
}

func TestBlendRGB_Separable(t *testing.T) {
	cases := []struct {
		mode BlendMode
		s, d float64
		want float64
	}{
		{BlendMultiply, 0.5, 0.5, 0.25},
		{BlendScreen, 0.5, 0.5, 0.75},
		{BlendDarken, 0.3, 0.7, 0.3},
		{BlendLighten, 0.3, 0.7, 0.7},
		{BlendLinearDodge, 0.6, 0.6, 1.0},
		{BlendLinearBurn, 0.3, 0.3, 0.0},
		{BlendDifference, 0.2, 0.9, 0.7},
		{BlendSubtract, 0.3, 0.8, 0.5},
		{BlendOverlay, 0.5, 0.25, 0.25},
		{BlendHardMix, 0.6, 0.6, 1.0},
		{BlendHardMix, 0.2, 0.2, 0.0},
	}
	for _, tc := range cases {
		r, g, b := blendRGB(tc.mode, tc.s, tc.s, tc.s, tc.d, tc.d, tc.d)
		assert.InDelta(t, tc.want, r, 1e-9, "mode %v", tc.mode)
		assert.InDelta(t, tc.want, g, 1e-9, "mode %v", tc.mode)
		assert.InDelta(t, tc.want, b, 1e-9, "mode %v", tc.mode)
	}
}

func TestBlendRGB_ColorComparison(t *testing.T) {
	// Darker/lighter color pick whole colors by summed intensity.
	r, g, b := blendRGB(BlendDarkerColor, 0.9, 0.1, 0.1, 0.2, 0.2, 0.2)
	assert.Equal(t, [3]float64{0.2, 0.2, 0.2}, [3]float64{r, g, b})

	r, g, b = blendRGB(BlendLighterColor, 0.9, 0.1, 0.1, 0.2, 0.2, 0.2)
	assert.Equal(t, [3]float64{0.9, 0.1, 0.1}, [3]float64{r, g, b})
}

func TestBlendRGB_Luminosity(t *testing.T) {
	// Luminosity keeps the backdrop hue and saturation with the source
	// lightness: a white source over any color yields white.
	r, g, b := blendRGB(BlendLuminosity, 1, 1, 1, 0.8, 0.2, 0.2)
	assert.InDelta(t, 1.0, r, 1e-9)
	assert.InDelta(t, 1.0, g, 1e-9)
	assert.InDelta(t, 1.0, b, 1e-9)
}

func TestHSLRoundTrip(t *testing.T) {
	colors := [][3]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.5, 0.5, 0.5},
		{0.9, 0.4, 0.1},
		{0, 0, 0},
		{1, 1, 1},
	}
	for _, c := range colors {
		h, s, l := rgbToHSL(c[0], c[1], c[2])
		r, g, b := hslToRGB(h, s, l)
		assert.InDelta(t, c[0], r, 1e-9)
		assert.InDelta(t, c[1], g, 1e-9)
		assert.InDelta(t, c[2], b, 1e-9)
	}
}

func TestCompositePixel_NormalOverTransparent(t *testing.T) {
	src := [4]uint8{255, 0, 0, 255}
	out := compositePixel(BlendNormal, src, [4]uint8{}, 255)
	assert.Equal(t, src, out)
}

func TestCompositePixel_NormalOverOpaque(t *testing.T) {
	src := [4]uint8{0, 0, 255, 255}
	dst := [4]uint8{255, 0, 0, 255}
	out := compositePixel(BlendNormal, src, dst, 255)
	assert.Equal(t, src, out)
}

func TestCompositePixel_TransparentSourceKeepsBackdrop(t *testing.T) {
	dst := [4]uint8{10, 20, 30, 255}
	out := compositePixel(BlendNormal, [4]uint8{255, 255, 255, 0}, dst, 255)
	assert.Equal(t, dst, out)
}

func TestCompositePixel_ZeroOpacityKeepsBackdrop(t *testing.T) {
	dst := [4]uint8{10, 20, 30, 255}
	out := compositePixel(BlendNormal, [4]uint8{255, 255, 255, 255}, dst, 0)
	assert.Equal(t, dst, out)
}

func TestCompositePixel_HalfOpacity(t *testing.T) {
	src := [4]uint8{255, 255, 255, 255}
	dst := [4]uint8{0, 0, 0, 255}
	out := compositePixel(BlendNormal, src, dst, 128)

	// White at ~50% over black lands mid-gray, alpha stays full.
	assert.InDelta(t, 128, int(out[0]), 1)
	assert.InDelta(t, 128, int(out[1]), 1)
	assert.InDelta(t, 128, int(out[2]), 1)
	assert.Equal(t, uint8(255), out[3])
}

func TestCompositePixel_MultiplyOverWhite(t *testing.T) {
	src := [4]uint8{100, 150, 200, 255}
	dst := [4]uint8{255, 255, 255, 255}
	out := compositePixel(BlendMultiply, src, dst, 255)

	assert.InDelta(t, 100, int(out[0]), 1)
	assert.InDelta(t, 150, int(out[1]), 1)
	assert.InDelta(t, 200, int(out[2]), 1)
}

func TestCompositePixel_BlendIgnoredOverTransparent(t *testing.T) {
	// With no backdrop coverage the blend function has nothing to act on;
	// the source color passes through unchanged.
	src := [4]uint8{100, 150, 200, 255}
	out := compositePixel(BlendMultiply, src, [4]uint8{}, 255)
	assert.Equal(t, src, out)
}

func TestCompositePixel_AlphaAccumulates(t *testing.T) {
	src := [4]uint8{255, 0, 0, 128}
	dst := [4]uint8{0, 255, 0, 128}
	out := compositePixel(BlendNormal, src, dst, 255)

	// 0.5 + 0.5 * 0.5 = 0.75 coverage.
	assert.InDelta(t, 191, int(out[3]), 1)
}
