package psd

import "fmt"

// ColorMode identifies the document color mode from the file header.
type ColorMode uint16

const (
	ColorModeBitmap       ColorMode = 0
	ColorModeGrayscale    ColorMode = 1
	ColorModeIndexed      ColorMode = 2
	ColorModeRGB          ColorMode = 3
	ColorModeCMYK         ColorMode = 4
	ColorModeMultichannel ColorMode = 7
	ColorModeDuotone      ColorMode = 8
	ColorModeLab          ColorMode = 9
)

var colorModeNames = map[ColorMode]string{
	ColorModeBitmap:       "Bitmap",
	ColorModeGrayscale:    "Grayscale",
	ColorModeIndexed:      "Indexed",
	ColorModeRGB:          "RGB",
	ColorModeCMYK:         "CMYK",
	ColorModeMultichannel: "Multichannel",
	ColorModeDuotone:      "Duotone",
	ColorModeLab:          "Lab",
}

func (m ColorMode) String() string {
	if name, ok := colorModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint16(m))
}

func (m ColorMode) valid() bool {
	_, ok := colorModeNames[m]
	return ok
}

const fileSignature = "8BPS"

// header holds the fixed-size file header plus the color mode data section
// that immediately follows it.
type header struct {
	Version  uint16
	Channels uint16
	Height   uint32
	Width    uint32
	Depth    uint16
	Mode     ColorMode

	// Palette or duotone specification bytes for Indexed/Duotone modes,
	// retained opaque for every other mode.
	ColorModeData []byte
}

// psb reports whether the file is a large-document (PSB) file, which widens
// section and channel length fields to 64 bits.
func (h *header) psb() bool { return h.Version == 2 }

func parseHeader(r *Reader, bestEffort bool) (*header, error) {
	sig, err := r.ReadString(4)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if sig != fileSignature {
		return nil, fmt.Errorf("%w: %q", ErrBadSignature, sig)
	}

	h := &header{}
	if h.Version, err = r.ReadUint16(); err != nil {
		return nil, fmt.Errorf("header version: %w", err)
	}
	if h.Version != 1 && h.Version != 2 {
		return nil, fmt.Errorf("%w: version %d", ErrBadSignature, h.Version)
	}

	// 6 reserved bytes.
	if err := r.Skip(6); err != nil {
		return nil, fmt.Errorf("header reserved: %w", err)
	}

	if h.Channels, err = r.ReadUint16(); err != nil {
		return nil, fmt.Errorf("header channels: %w", err)
	}
	if h.Height, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("header height: %w", err)
	}
	if h.Width, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("header width: %w", err)
	}
	if h.Depth, err = r.ReadUint16(); err != nil {
		return nil, fmt.Errorf("header depth: %w", err)
	}

	mode, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("header color mode: %w", err)
	}
	h.Mode = ColorMode(mode)
	if !h.Mode.valid() && !bestEffort {
		return nil, fmt.Errorf("%w: mode tag %d", ErrUnsupportedColorMode, mode)
	}

	// Color mode data section: length-prefixed, opaque unless the mode is
	// Indexed or Duotone, but always retained.
	dataLen, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("color mode data length: %w", err)
	}
	if dataLen > 0 {
		data, err := r.ReadBytes(int(dataLen))
		if err != nil {
			return nil, fmt.Errorf("color mode data: %w", err)
		}
		h.ColorModeData = append([]byte(nil), data...)
	}

	return h, nil
}
