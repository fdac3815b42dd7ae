package psd

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// decodeChannel decompresses one channel plane into width*height samples of
// bytesPerSample(depth) bytes each. The result is fresh memory; it never
// aliases the compressed input.
func decodeChannel(desc *ChannelDescriptor, width, height int, depth uint16, psb bool) ([]byte, error) {
	bps, err := bytesPerSample(depth)
	if err != nil {
		return nil, err
	}
	rowBytes := width * bps
	planeBytes := rowBytes * height

	switch desc.Compression {
	case CompressionRaw:
		if len(desc.Data) < planeBytes {
			return nil, fmt.Errorf("%w: raw channel has %d of %d bytes", ErrOutOfBounds, len(desc.Data), planeBytes)
		}
		return append([]byte(nil), desc.Data[:planeBytes]...), nil

	case CompressionRLE:
		return decodeRLEChannel(desc.Data, rowBytes, height, psb)

	case CompressionZip:
		return inflate(desc.Data, planeBytes)

	case CompressionZipPrediction:
		plane, err := inflate(desc.Data, planeBytes)
		if err != nil {
			return nil, err
		}
		deltaDecodePlane(plane, rowBytes, height, depth)
		return plane, nil

	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnsupportedCompression, uint16(desc.Compression))
	}
}

func bytesPerSample(depth uint16) (int, error) {
	switch depth {
	case 8:
		return 1, nil
	case 16:
		return 2, nil
	}
	// 1-bit and 32-bit planes are not decoded; the layer surfaces as
	// having no pixel data.
	return 0, fmt.Errorf("%w: %d-bit channel data", ErrUnsupportedCompression, depth)
}

// decodeRLEChannel decodes a PackBits channel: a per-scanline byte-count
// table (16-bit entries, 32-bit in PSB files) followed by the packed rows.
func decodeRLEChannel(data []byte, rowBytes, height int, psb bool) ([]byte, error) {
	r := NewReader(data)
	counts := make([]int, height)
	for i := range counts {
		if psb {
			v, err := r.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("rle count table: %w", err)
			}
			counts[i] = int(v)
		} else {
			v, err := r.ReadUint16()
			if err != nil {
				return nil, fmt.Errorf("rle count table: %w", err)
			}
			counts[i] = int(v)
		}
	}

	plane := make([]byte, 0, rowBytes*height)
	for row := 0; row < height; row++ {
		if counts[row] == 0 {
			plane = append(plane, make([]byte, rowBytes)...)
			continue
		}
		packed, err := r.ReadBytes(counts[row])
		if err != nil {
			return nil, fmt.Errorf("rle row %d: %w", row, err)
		}
		line, err := decodePackBits(packed, rowBytes)
		if err != nil {
			return nil, fmt.Errorf("rle row %d: %w", row, err)
		}
		plane = append(plane, line...)
	}
	return plane, nil
}

func inflate(data []byte, expected int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zip channel: %w", err)
	}
	defer zr.Close()

	out := make([]byte, expected)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: zip channel short read: %v", ErrOutOfBounds, err)
	}
	return out, nil
}

// deltaDecodePlane undoes the horizontal predictor applied before deflate:
// each sample is the running sum of the stored deltas along its row. 8-bit
// rows sum per byte; 16-bit rows are stored as separate high/low byte
// planes per row, so they are re-interleaved into big-endian words first and
// summed per word.
func deltaDecodePlane(plane []byte, rowBytes, height int, depth uint16) {
	for row := 0; row < height; row++ {
		line := plane[row*rowBytes : (row+1)*rowBytes]
		if depth == 8 {
			for i := 1; i < len(line); i++ {
				line[i] += line[i-1]
			}
			continue
		}

		// 16-bit: interleave the high and low byte planes into words.
		w := rowBytes / 2
		words := make([]uint16, w)
		for i := 0; i < w; i++ {
			words[i] = uint16(line[i])<<8 | uint16(line[w+i])
		}
		var acc uint16
		for i := 0; i < w; i++ {
			acc += words[i]
			line[2*i] = byte(acc >> 8)
			line[2*i+1] = byte(acc)
		}
	}
}

// decodeLayerImage decompresses and assembles all of a layer's color planes
// into an interleaved DecodedImage. A zero-area box or an empty channel set
// yields ErrNoPixelData; so does any channel that fails to decode, keeping
// decode failures isolated to the one layer.
func decodeLayerImage(l *Layer, mode ColorMode) (*DecodedImage, error) {
	width, height := l.Width(), l.Height()
	if width <= 0 || height <= 0 || len(l.Channels) == 0 {
		return nil, fmt.Errorf("layer %q: %w", l.Name, ErrNoPixelData)
	}

	planes := make(map[ChannelID][]byte)
	for i := range l.Channels {
		desc := &l.Channels[i]
		if desc.ID <= ChannelUserMask {
			// Layer and vector mask planes are not part of the image.
			continue
		}
		plane, err := decodeChannel(desc, width, height, l.depth, l.psb)
		if err != nil {
			return nil, fmt.Errorf("layer %q channel %d: %w: %w", l.Name, desc.ID, ErrNoPixelData, err)
		}
		if l.depth == 16 {
			plane = foldTo8(plane)
		}
		planes[desc.ID] = plane
	}
	if len(planes) == 0 {
		return nil, fmt.Errorf("layer %q: %w", l.Name, ErrNoPixelData)
	}

	return assemblePlanes(planes, width, height, mode)
}

// foldTo8 reduces 16-bit big-endian samples to 8 bits by keeping the high
// byte.
func foldTo8(plane []byte) []byte {
	out := make([]byte, len(plane)/2)
	for i := range out {
		out[i] = plane[2*i]
	}
	return out
}

// assemblePlanes interleaves decoded planes into a pixel buffer, mapping
// channel ids to output components by color mode. Layers without an alpha
// plane come out in the opaque format for their mode.
func assemblePlanes(planes map[ChannelID][]byte, width, height int, mode ColorMode) (*DecodedImage, error) {
	n := width * height
	alpha, hasAlpha := planes[ChannelAlpha]

	pick := func(id ChannelID) []byte { return planes[id] }
	sample := func(p []byte, i int) byte {
		if p == nil || i >= len(p) {
			return 0
		}
		return p[i]
	}

	switch mode {
	case ColorModeGrayscale, ColorModeDuotone:
		gray := pick(ChannelRed)
		if !hasAlpha {
			img := newDecodedImage(width, height, FormatGray)
			for i := 0; i < n; i++ {
				img.Pix[i] = sample(gray, i)
			}
			return img, nil
		}
		img := newDecodedImage(width, height, FormatRGBA)
		for i := 0; i < n; i++ {
			g := sample(gray, i)
			img.Pix[4*i+0] = g
			img.Pix[4*i+1] = g
			img.Pix[4*i+2] = g
			img.Pix[4*i+3] = sample(alpha, i)
		}
		return img, nil

	case ColorModeCMYK:
		c, m, y, k := pick(0), pick(1), pick(2), pick(3)
		format := FormatRGB
		if hasAlpha {
			format = FormatRGBA
		}
		img := newDecodedImage(width, height, format)
		comps := img.Components()
		for i := 0; i < n; i++ {
			// Photoshop stores CMYK planes inverted (255 = no ink).
			r, g, b := cmykToRGB(sample(c, i), sample(m, i), sample(y, i), sample(k, i))
			img.Pix[comps*i+0] = r
			img.Pix[comps*i+1] = g
			img.Pix[comps*i+2] = b
			if hasAlpha {
				img.Pix[comps*i+3] = sample(alpha, i)
			}
		}
		return img, nil

	default:
		// RGB, plus the best-effort treatment of anything unrecognized.
		r, g, b := pick(ChannelRed), pick(ChannelGreen), pick(ChannelBlue)
		format := FormatRGB
		if hasAlpha {
			format = FormatRGBA
		}
		img := newDecodedImage(width, height, format)
		comps := img.Components()
		for i := 0; i < n; i++ {
			img.Pix[comps*i+0] = sample(r, i)
			img.Pix[comps*i+1] = sample(g, i)
			img.Pix[comps*i+2] = sample(b, i)
			if hasAlpha {
				img.Pix[comps*i+3] = sample(alpha, i)
			}
		}
		return img, nil
	}
}

// cmykToRGB converts inverted-storage CMYK samples to RGB.
func cmykToRGB(c, m, y, k byte) (byte, byte, byte) {
	r := int(c) * int(k) / 255
	g := int(m) * int(k) / 255
	b := int(y) * int(k) / 255
	return byte(r), byte(g), byte(b)
}
