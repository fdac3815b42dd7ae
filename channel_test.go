package psd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zlib.NewWriter(buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// deltaEncode8 applies the horizontal predictor: each byte becomes its
// difference from the previous byte in the row.
func deltaEncode8(plane []byte, rowBytes int) []byte {
	out := make([]byte, len(plane))
	for row := 0; row*rowBytes < len(plane); row++ {
		line := plane[row*rowBytes : (row+1)*rowBytes]
		dst := out[row*rowBytes : (row+1)*rowBytes]
		dst[0] = line[0]
		for i := 1; i < len(line); i++ {
			dst[i] = line[i] - line[i-1]
		}
	}
	return out
}

// deltaEncode16 predicts per 16-bit word, then splits each row into its
// high-byte plane followed by its low-byte plane, the layout the decoder
// re-interleaves.
func deltaEncode16(plane []byte, rowBytes int) []byte {
	out := make([]byte, len(plane))
	w := rowBytes / 2
	for row := 0; row*rowBytes < len(plane); row++ {
		line := plane[row*rowBytes : (row+1)*rowBytes]
		dst := out[row*rowBytes : (row+1)*rowBytes]
		prev := uint16(0)
		for i := 0; i < w; i++ {
			word := uint16(line[2*i])<<8 | uint16(line[2*i+1])
			var delta uint16
			if i == 0 {
				delta = word
			} else {
				delta = word - prev
			}
			prev = word
			dst[i] = byte(delta >> 8)
			dst[w+i] = byte(delta)
		}
	}
	return out
}

func TestDecodeChannel_Raw(t *testing.T) {
	plane := []byte{1, 2, 3, 4, 5, 6}
	desc := &ChannelDescriptor{ID: ChannelRed, Compression: CompressionRaw, Data: plane}

	got, err := decodeChannel(desc, 3, 2, 8, false)
	require.NoError(t, err)
	assert.Equal(t, plane, got)

	// The result is owned memory, not a view of the input.
	got[0] = 99
	assert.Equal(t, byte(1), plane[0])
}

func TestDecodeChannel_RawTruncated(t *testing.T) {
	desc := &ChannelDescriptor{Compression: CompressionRaw, Data: []byte{1, 2}}
	_, err := decodeChannel(desc, 3, 2, 8, false)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDecodeChannel_RLE(t *testing.T) {
	rows := [][]byte{
		{9, 9, 9, 9},
		{1, 2, 3, 4},
		nil, // zero-length count entry decodes as a zero row
	}

	buf := new(bytes.Buffer)
	var packed [][]byte
	for _, row := range rows {
		if row == nil {
			binary.Write(buf, binary.BigEndian, uint16(0))
			packed = append(packed, nil)
			continue
		}
		p := packPackBits(row)
		binary.Write(buf, binary.BigEndian, uint16(len(p)))
		packed = append(packed, p)
	}
	for _, p := range packed {
		buf.Write(p)
	}

	desc := &ChannelDescriptor{Compression: CompressionRLE, Data: buf.Bytes()}
	got, err := decodeChannel(desc, 4, 3, 8, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9, 1, 2, 3, 4, 0, 0, 0, 0}, got)
}

func TestDecodeChannel_RLEWideCounts(t *testing.T) {
	// PSB files widen the per-row count entries to 32 bits.
	row := []byte{5, 5, 5, 5, 5}
	p := packPackBits(row)

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(p)))
	buf.Write(p)

	desc := &ChannelDescriptor{Compression: CompressionRLE, Data: buf.Bytes()}
	got, err := decodeChannel(desc, 5, 1, 8, true)
	require.NoError(t, err)
	assert.Equal(t, row, got)
}

func TestDecodeChannel_RLETruncatedTable(t *testing.T) {
	desc := &ChannelDescriptor{Compression: CompressionRLE, Data: []byte{0}}
	_, err := decodeChannel(desc, 4, 2, 8, false)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDecodeChannel_Zip(t *testing.T) {
	plane := []byte{10, 20, 30, 40, 50, 60}
	desc := &ChannelDescriptor{Compression: CompressionZip, Data: deflate(t, plane)}

	got, err := decodeChannel(desc, 3, 2, 8, false)
	require.NoError(t, err)
	assert.Equal(t, plane, got)
}

func TestDecodeChannel_ZipShort(t *testing.T) {
	desc := &ChannelDescriptor{Compression: CompressionZip, Data: deflate(t, []byte{1, 2})}
	_, err := decodeChannel(desc, 3, 2, 8, false)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDecodeChannel_ZipGarbage(t *testing.T) {
	desc := &ChannelDescriptor{Compression: CompressionZip, Data: []byte{0xDE, 0xAD}}
	_, err := decodeChannel(desc, 1, 1, 8, false)
	assert.Error(t, err)
}

func TestDecodeChannel_ZipPrediction8(t *testing.T) {
	plane := []byte{
		0, 10, 20, 30,
		255, 128, 0, 64,
	}
	encoded := deltaEncode8(plane, 4)
	desc := &ChannelDescriptor{Compression: CompressionZipPrediction, Data: deflate(t, encoded)}

	got, err := decodeChannel(desc, 4, 2, 8, false)
	require.NoError(t, err)
	assert.Equal(t, plane, got)
}

func TestDecodeChannel_ZipPrediction16(t *testing.T) {
	samples := []uint16{0, 1000, 65535, 32768, 500, 499}
	plane := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(plane[2*i:], s)
	}

	// Two rows of three samples each.
	encoded := deltaEncode16(plane, 6)
	desc := &ChannelDescriptor{Compression: CompressionZipPrediction, Data: deflate(t, encoded)}

	got, err := decodeChannel(desc, 3, 2, 16, false)
	require.NoError(t, err)
	assert.Equal(t, plane, got)
}

func TestDecodeChannel_ZipPrediction16ExtremeRows(t *testing.T) {
	mkrow := func(v uint16, n int) []byte {
		row := make([]byte, n*2)
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint16(row[2*i:], v)
		}
		return row
	}
	plane := append(mkrow(0, 4), mkrow(0xFFFF, 4)...)

	encoded := deltaEncode16(plane, 8)
	desc := &ChannelDescriptor{Compression: CompressionZipPrediction, Data: deflate(t, encoded)}

	got, err := decodeChannel(desc, 4, 2, 16, false)
	require.NoError(t, err)
	assert.Equal(t, plane, got)
}

func TestDecodeChannel_UnsupportedTag(t *testing.T) {
	desc := &ChannelDescriptor{Compression: CompressionMethod(7), Data: []byte{1}}
	_, err := decodeChannel(desc, 1, 1, 8, false)
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestDecodeChannel_UnsupportedDepth(t *testing.T) {
	desc := &ChannelDescriptor{Compression: CompressionRaw, Data: []byte{1}}
	_, err := decodeChannel(desc, 1, 1, 32, false)
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestFoldTo8(t *testing.T) {
	plane := []byte{0x12, 0x34, 0xFF, 0x00}
	assert.Equal(t, []byte{0x12, 0xFF}, foldTo8(plane))
}

func newRawLayer(t *testing.T, left, top, width, height int32, planes map[ChannelID][]byte) *Layer {
	t.Helper()
	l := &Layer{
		Name:    "layer",
		Left:    left,
		Top:     top,
		Right:   left + width,
		Bottom:  top + height,
		Opacity: 255,
		depth:   8,
	}
	for id, plane := range planes {
		l.Channels = append(l.Channels, ChannelDescriptor{
			ID:          id,
			Compression: CompressionRaw,
			Data:        plane,
		})
	}
	return l
}

func TestDecodeLayerImage_RGBA(t *testing.T) {
	fill := func(v byte) []byte { return bytes.Repeat([]byte{v}, 4) }
	l := newRawLayer(t, 0, 0, 2, 2, map[ChannelID][]byte{
		ChannelRed:   fill(200),
		ChannelGreen: fill(100),
		ChannelBlue:  fill(50),
		ChannelAlpha: fill(255),
	})

	img, err := decodeLayerImage(l, ColorModeRGB)
	require.NoError(t, err)
	assert.Equal(t, FormatRGBA, img.Format)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 2, img.Height)

	r, g, b, a := img.RGBAAt(1, 1)
	assert.Equal(t, uint8(200), r)
	assert.Equal(t, uint8(100), g)
	assert.Equal(t, uint8(50), b)
	assert.Equal(t, uint8(255), a)
}

func TestDecodeLayerImage_OpaqueRGB(t *testing.T) {
	fill := func(v byte) []byte { return bytes.Repeat([]byte{v}, 4) }
	l := newRawLayer(t, 0, 0, 2, 2, map[ChannelID][]byte{
		ChannelRed:   fill(10),
		ChannelGreen: fill(20),
		ChannelBlue:  fill(30),
	})

	img, err := decodeLayerImage(l, ColorModeRGB)
	require.NoError(t, err)
	assert.Equal(t, FormatRGB, img.Format)

	_, _, _, a := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(255), a)
}

func TestDecodeLayerImage_Grayscale(t *testing.T) {
	l := newRawLayer(t, 0, 0, 2, 1, map[ChannelID][]byte{
		ChannelRed: {11, 22},
	})

	img, err := decodeLayerImage(l, ColorModeGrayscale)
	require.NoError(t, err)
	assert.Equal(t, FormatGray, img.Format)

	r, g, b, _ := img.RGBAAt(1, 0)
	assert.Equal(t, uint8(22), r)
	assert.Equal(t, uint8(22), g)
	assert.Equal(t, uint8(22), b)
}

func TestDecodeLayerImage_CMYK(t *testing.T) {
	fill := func(v byte) []byte { return []byte{v} }
	// Inverted storage: 255 everywhere decodes to white.
	l := newRawLayer(t, 0, 0, 1, 1, map[ChannelID][]byte{
		0: fill(255), 1: fill(255), 2: fill(255), 3: fill(255),
	})

	img, err := decodeLayerImage(l, ColorModeCMYK)
	require.NoError(t, err)

	r, g, b, _ := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(255), g)
	assert.Equal(t, uint8(255), b)
}

func TestDecodeLayerImage_EmptyBounds(t *testing.T) {
	l := newRawLayer(t, 5, 5, 0, 0, map[ChannelID][]byte{ChannelRed: nil})
	_, err := decodeLayerImage(l, ColorModeRGB)
	assert.ErrorIs(t, err, ErrNoPixelData)
}

func TestDecodeLayerImage_NoChannels(t *testing.T) {
	l := newRawLayer(t, 0, 0, 4, 4, nil)
	_, err := decodeLayerImage(l, ColorModeRGB)
	assert.ErrorIs(t, err, ErrNoPixelData)
}

func TestDecodeLayerImage_MaskOnly(t *testing.T) {
	// A layer whose only plane is a mask has nothing to show.
	l := newRawLayer(t, 0, 0, 2, 2, map[ChannelID][]byte{
		ChannelUserMask: bytes.Repeat([]byte{1}, 4),
	})
	_, err := decodeLayerImage(l, ColorModeRGB)
	assert.ErrorIs(t, err, ErrNoPixelData)
}

func TestDecodeLayerImage_CorruptChannel(t *testing.T) {
	l := newRawLayer(t, 0, 0, 4, 4, map[ChannelID][]byte{
		ChannelRed: {1, 2}, // short plane
	})
	_, err := decodeLayerImage(l, ColorModeRGB)
	assert.ErrorIs(t, err, ErrNoPixelData)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDecodeLayerImage_Fold16(t *testing.T) {
	plane := []byte{0xAB, 0xCD, 0x12, 0x34}
	l := newRawLayer(t, 0, 0, 2, 1, map[ChannelID][]byte{ChannelRed: plane})
	l.depth = 16

	img, err := decodeLayerImage(l, ColorModeGrayscale)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0x12}, img.Pix)
}
