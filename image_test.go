package psd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodedImage_Components(t *testing.T) {
	assert.Equal(t, 1, newDecodedImage(1, 1, FormatGray).Components())
	assert.Equal(t, 3, newDecodedImage(1, 1, FormatRGB).Components())
	assert.Equal(t, 4, newDecodedImage(1, 1, FormatRGBA).Components())
}

func TestDecodedImage_RGBAAt(t *testing.T) {
	gray := newDecodedImage(2, 1, FormatGray)
	gray.Pix = []byte{7, 200}
	r, g, b, a := gray.RGBAAt(1, 0)
	assert.Equal(t, [4]uint8{200, 200, 200, 255}, [4]uint8{r, g, b, a})

	rgb := newDecodedImage(1, 1, FormatRGB)
	rgb.Pix = []byte{1, 2, 3}
	r, g, b, a = rgb.RGBAAt(0, 0)
	assert.Equal(t, [4]uint8{1, 2, 3, 255}, [4]uint8{r, g, b, a})

	rgba := newDecodedImage(1, 1, FormatRGBA)
	rgba.Pix = []byte{1, 2, 3, 4}
	r, g, b, a = rgba.RGBAAt(0, 0)
	assert.Equal(t, [4]uint8{1, 2, 3, 4}, [4]uint8{r, g, b, a})
}

func TestDecodedImage_ToRGBA(t *testing.T) {
	img := newDecodedImage(2, 2, FormatRGB)
	copy(img.Pix, []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 9, 9, 9,
	})

	std := img.ToRGBA()
	require.Equal(t, 2, std.Bounds().Dx())
	require.Equal(t, 2, std.Bounds().Dy())

	c := std.RGBAAt(1, 0)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(255), c.G)
	assert.Equal(t, uint8(255), c.A)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "rgba", FormatRGBA.String())
	assert.Equal(t, "gray", FormatGray.String())

	assert.Equal(t, "RGB", ColorModeRGB.String())
	assert.Equal(t, "CMYK", ColorModeCMYK.String())
	assert.Equal(t, "Unknown(42)", ColorMode(42).String())

	assert.Equal(t, "group", KindGroup.String())
	assert.Equal(t, "smart-object", KindSmartObject.String())

	assert.Equal(t, "rle", CompressionRLE.String())
	assert.Equal(t, "zip-prediction", CompressionZipPrediction.String())
}
