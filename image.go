package psd

import (
	"fmt"
	"image"
	"image/color"
)

// PixelFormat describes the component layout of a DecodedImage.
type PixelFormat int

const (
	FormatGray PixelFormat = iota
	FormatRGB
	FormatRGBA
)

func (f PixelFormat) String() string {
	switch f {
	case FormatGray:
		return "gray"
	case FormatRGB:
		return "rgb"
	case FormatRGBA:
		return "rgba"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// DecodedImage is an owned, interleaved pixel buffer produced by a decode
// operation. It never aliases the source document bytes, so callers keep it
// independently of the Document.
type DecodedImage struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

func newDecodedImage(width, height int, format PixelFormat) *DecodedImage {
	img := &DecodedImage{Width: width, Height: height, Format: format}
	img.Pix = make([]byte, width*height*img.Components())
	return img
}

// Components returns the number of bytes per pixel.
func (im *DecodedImage) Components() int {
	switch im.Format {
	case FormatGray:
		return 1
	case FormatRGB:
		return 3
	default:
		return 4
	}
}

// RGBAAt returns the pixel at (x, y) expanded to RGBA. Formats without an
// alpha component read as fully opaque.
func (im *DecodedImage) RGBAAt(x, y int) (r, g, b, a uint8) {
	i := (y*im.Width + x) * im.Components()
	switch im.Format {
	case FormatGray:
		v := im.Pix[i]
		return v, v, v, 255
	case FormatRGB:
		return im.Pix[i], im.Pix[i+1], im.Pix[i+2], 255
	default:
		return im.Pix[i], im.Pix[i+1], im.Pix[i+2], im.Pix[i+3]
	}
}

// ToRGBA copies the buffer into a stdlib image for PNG export.
func (im *DecodedImage) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			r, g, b, a := im.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: a})
		}
	}
	return out
}

// decodeMergedImage decodes the composite image-data section at the end of
// the file. Only raw and RLE compression appear in this section.
func decodeMergedImage(data []byte, h *header) (*DecodedImage, error) {
	if len(data) < 2 {
		return nil, ErrNoPreview
	}

	r := NewReader(data)
	method, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("merged image: %w", err)
	}

	width, height := int(h.Width), int(h.Height)
	bps, err := bytesPerSample(h.Depth)
	if err != nil {
		return nil, fmt.Errorf("merged image: %w", err)
	}
	rowBytes := width * bps
	channels := int(h.Channels)

	planes := make([][]byte, channels)
	switch CompressionMethod(method) {
	case CompressionRaw:
		for ch := 0; ch < channels; ch++ {
			raw, err := r.ReadBytes(rowBytes * height)
			if err != nil {
				return nil, fmt.Errorf("merged channel %d: %w", ch, err)
			}
			planes[ch] = append([]byte(nil), raw...)
		}

	case CompressionRLE:
		// One count table covers every channel's scanlines, in channel
		// order, ahead of all the packed rows.
		counts := make([]int, channels*height)
		for i := range counts {
			if h.psb() {
				v, err := r.ReadUint32()
				if err != nil {
					return nil, fmt.Errorf("merged rle counts: %w", err)
				}
				counts[i] = int(v)
			} else {
				v, err := r.ReadUint16()
				if err != nil {
					return nil, fmt.Errorf("merged rle counts: %w", err)
				}
				counts[i] = int(v)
			}
		}
		for ch := 0; ch < channels; ch++ {
			plane := make([]byte, 0, rowBytes*height)
			for row := 0; row < height; row++ {
				count := counts[ch*height+row]
				if count == 0 {
					plane = append(plane, make([]byte, rowBytes)...)
					continue
				}
				packed, err := r.ReadBytes(count)
				if err != nil {
					return nil, fmt.Errorf("merged channel %d row %d: %w", ch, row, err)
				}
				line, err := decodePackBits(packed, rowBytes)
				if err != nil {
					return nil, fmt.Errorf("merged channel %d row %d: %w", ch, row, err)
				}
				plane = append(plane, line...)
			}
			planes[ch] = plane
		}

	default:
		return nil, fmt.Errorf("%w: merged image tag %d", ErrUnsupportedCompression, method)
	}

	if h.Depth == 16 {
		for i := range planes {
			planes[i] = foldTo8(planes[i])
		}
	}

	// Re-key the positional planes to channel ids: any plane past the
	// mode's color components is treated as alpha.
	keyed := make(map[ChannelID][]byte)
	colorComponents := 3
	if h.Mode == ColorModeGrayscale || h.Mode == ColorModeDuotone || h.Mode == ColorModeBitmap {
		colorComponents = 1
	}
	if h.Mode == ColorModeCMYK {
		colorComponents = 4
	}
	for i, plane := range planes {
		if i < colorComponents {
			keyed[ChannelID(i)] = plane
		} else if i == colorComponents {
			keyed[ChannelAlpha] = plane
		}
	}

	return assemblePlanes(keyed, width, height, h.Mode)
}
