package psd

import (
	"fmt"
)

// LayerKind is the variant of a layer, selected once at parse time from the
// layer's tagged blocks.
type LayerKind int

const (
	KindPixel LayerKind = iota
	KindGroup
	KindGroupEnd
	KindText
	KindShape
	KindSmartObject
	KindAdjustment
)

var layerKindNames = map[LayerKind]string{
	KindPixel:       "pixel",
	KindGroup:       "group",
	KindGroupEnd:    "group-end",
	KindText:        "text",
	KindShape:       "shape",
	KindSmartObject: "smart-object",
	KindAdjustment:  "adjustment",
}

func (k LayerKind) String() string {
	if name, ok := layerKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ChannelID tags one plane of a layer's pixel data.
type ChannelID int16

const (
	ChannelRealUserMask ChannelID = -3
	ChannelUserMask     ChannelID = -2
	ChannelAlpha        ChannelID = -1
	ChannelRed          ChannelID = 0 // gray plane in grayscale mode
	ChannelGreen        ChannelID = 1
	ChannelBlue         ChannelID = 2
)

// CompressionMethod is the per-channel compression tag.
type CompressionMethod uint16

const (
	CompressionRaw           CompressionMethod = 0
	CompressionRLE           CompressionMethod = 1
	CompressionZip           CompressionMethod = 2
	CompressionZipPrediction CompressionMethod = 3
)

func (c CompressionMethod) String() string {
	switch c {
	case CompressionRaw:
		return "raw"
	case CompressionRLE:
		return "rle"
	case CompressionZip:
		return "zip"
	case CompressionZipPrediction:
		return "zip-prediction"
	}
	return fmt.Sprintf("compression(%d)", uint16(c))
}

// ChannelDescriptor is one compressed channel plane: its id, compression tag
// and the compressed byte span (without the 2-byte method prefix).
type ChannelDescriptor struct {
	ID          ChannelID
	Compression CompressionMethod
	Data        []byte
}

// Layer is a single record from the layer-and-mask section. Immutable once
// the document is parsed.
type Layer struct {
	ID   int32
	Name string
	Kind LayerKind

	Top    int32
	Left   int32
	Bottom int32
	Right  int32

	BlendMode   BlendMode
	Opacity     uint8
	FillOpacity uint8
	Clipping    bool
	Flags       uint8

	HasPixelMask  bool
	HasVectorMask bool
	HasEffects    bool

	Channels []ChannelDescriptor

	// Blocks holds every tagged metadata block keyed by its 4-byte key.
	// Unknown keys are preserved as opaque payloads.
	Blocks map[string][]byte

	// Text is set for text layers, best-effort.
	Text *TextRecord

	depth          uint16
	psb            bool
	channelLengths []int
}

// Width returns the bounding-box width.
func (l *Layer) Width() int { return int(l.Right - l.Left) }

// Height returns the bounding-box height.
func (l *Layer) Height() int { return int(l.Bottom - l.Top) }

// Visible reports the layer visibility flag.
func (l *Layer) Visible() bool { return l.Flags&0x02 == 0 }

// IsGroupMarker reports whether this record only delimits the layer tree.
func (l *Layer) IsGroupMarker() bool {
	return l.Kind == KindGroup || l.Kind == KindGroupEnd
}

const blockSignature64 = "8B64"

// parseLayerRecord reads one layer record (everything except the channel
// image data, which follows all records).
func parseLayerRecord(r *Reader, h *header) (*Layer, error) {
	l := &Layer{
		ID:          -1,
		Opacity:     255,
		FillOpacity: 255,
		depth:       h.Depth,
		psb:         h.psb(),
	}

	var err error
	if l.Top, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if l.Left, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if l.Bottom, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if l.Right, err = r.ReadInt32(); err != nil {
		return nil, err
	}

	channels, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	l.Channels = make([]ChannelDescriptor, channels)
	lengths := make([]int, channels)
	for i := range l.Channels {
		id, err := r.ReadInt16()
		if err != nil {
			return nil, err
		}
		length, err := r.ReadLength(h.psb())
		if err != nil {
			return nil, err
		}
		l.Channels[i].ID = ChannelID(id)
		lengths[i] = length
	}

	sig, err := r.ReadString(4)
	if err != nil {
		return nil, err
	}
	if sig != resourceSignature {
		return nil, fmt.Errorf("blend mode signature %q", sig)
	}
	key, err := r.ReadString(4)
	if err != nil {
		return nil, err
	}
	l.BlendMode = blendModeFromKey(key)

	opacity, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	l.Opacity = opacity

	clipping, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	l.Clipping = clipping != 0

	if l.Flags, err = r.ReadUint8(); err != nil {
		return nil, err
	}
	if err := r.Skip(1); err != nil { // filler
		return nil, err
	}

	extraLen, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	extra, err := r.SubReader(int(extraLen))
	if err != nil {
		return nil, err
	}
	if err := l.parseExtraData(extra); err != nil {
		return nil, err
	}

	l.classify()
	l.applyBlocks()

	// Channel payloads follow after all records; the section parser fills
	// them in using these declared lengths.
	l.channelLengths = lengths
	return l, nil
}

// parseExtraData reads the variable-length tail of a layer record: mask
// data, blending ranges, the layer name and the tagged block list.
func (l *Layer) parseExtraData(r *Reader) error {
	maskLen, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("mask data length: %w", err)
	}
	if maskLen > 0 {
		l.HasPixelMask = true
		if err := r.Skip(int(maskLen)); err != nil {
			return fmt.Errorf("mask data: %w", err)
		}
	}

	rangesLen, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("blending ranges length: %w", err)
	}
	if err := r.Skip(int(rangesLen)); err != nil {
		return fmt.Errorf("blending ranges: %w", err)
	}

	// The legacy name is a Pascal string padded to 4; a 'luni' block
	// overrides it below.
	if l.Name, err = r.ReadPascalString(4); err != nil {
		return fmt.Errorf("layer name: %w", err)
	}

	l.Blocks = make(map[string][]byte)
	for r.Remaining() >= 12 {
		sig, err := r.ReadString(4)
		if err != nil {
			return err
		}
		if sig != resourceSignature && sig != blockSignature64 {
			break
		}
		key, err := r.ReadString(4)
		if err != nil {
			return err
		}
		length, err := r.ReadUint32()
		if err != nil {
			return err
		}
		payload, err := r.ReadBytes(int(length))
		if err != nil {
			return fmt.Errorf("block %q: %w", key, err)
		}
		l.Blocks[key] = append([]byte(nil), payload...)
	}

	return nil
}

// Block keys that mark a layer as an adjustment or fill layer.
var adjustmentKeys = []string{
	"brit", "levl", "curv", "expA", "vibA", "hue ", "hue2", "blnc",
	"blwh", "phfl", "mixr", "clrL", "nvrt", "post", "thrs", "grdm",
	"selc", "SoCo", "GdFl", "PtFl",
}

// classify selects the layer kind from its tagged blocks. The variant is
// fixed here, at parse time, instead of probed on every access.
func (l *Layer) classify() {
	if _, ok := l.Blocks["vmsk"]; ok {
		l.HasVectorMask = true
	}
	if _, ok := l.Blocks["vsms"]; ok {
		l.HasVectorMask = true
	}
	if _, ok := l.Blocks["lrFX"]; ok {
		l.HasEffects = true
	}
	if _, ok := l.Blocks["lfx2"]; ok {
		l.HasEffects = true
	}

	if data := l.sectionDividerData(); data != nil {
		switch sectionDividerType(data) {
		case sectionDividerOpen, sectionDividerClosed:
			l.Kind = KindGroup
			return
		case sectionDividerBounding:
			l.Kind = KindGroupEnd
			return
		}
		// Type 0 marks any other kind of layer; classify it by content
		// like a layer with no divider block at all.
	}

	if _, ok := l.Blocks["TySh"]; ok {
		l.Kind = KindText
		return
	}
	if _, ok := l.Blocks["SoLd"]; ok {
		l.Kind = KindSmartObject
		return
	}
	if _, ok := l.Blocks["SoLE"]; ok {
		l.Kind = KindSmartObject
		return
	}

	for _, key := range adjustmentKeys {
		if _, ok := l.Blocks[key]; ok {
			// Fill layers carrying a vector mask render as shapes.
			if l.HasVectorMask && (key == "SoCo" || key == "GdFl" || key == "PtFl") {
				l.Kind = KindShape
			} else {
				l.Kind = KindAdjustment
			}
			return
		}
	}

	if l.HasVectorMask && len(l.Channels) == 0 {
		l.Kind = KindShape
		return
	}

	l.Kind = KindPixel
}

// applyBlocks folds well-known tagged blocks into first-class fields.
func (l *Layer) applyBlocks() {
	if data, ok := l.Blocks["luni"]; ok {
		if name := parseUnicodeNameBlock(data); name != "" {
			l.Name = name
		}
	}
	if data, ok := l.Blocks["lyid"]; ok && len(data) >= 4 {
		l.ID = int32(uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]))
	}
	if data, ok := l.Blocks["iOpa"]; ok && len(data) >= 1 {
		l.FillOpacity = data[0]
	}
	if data, ok := l.Blocks["TySh"]; ok {
		// Text interpretation is strictly best-effort: a malformed TySh
		// never fails the layer.
		if rec, err := parseTypeTool(data); err == nil {
			l.Text = rec
		}
	}
}

func (l *Layer) sectionDividerData() []byte {
	if data, ok := l.Blocks["lsct"]; ok {
		return data
	}
	if data, ok := l.Blocks["lsdk"]; ok {
		return data
	}
	return nil
}

// Section divider types stored in 'lsct'/'lsdk' blocks.
const (
	sectionDividerOther    = 0
	sectionDividerOpen     = 1
	sectionDividerClosed   = 2
	sectionDividerBounding = 3 // group end marker
)

func sectionDividerType(data []byte) int {
	if len(data) < 4 {
		return sectionDividerOther
	}
	return int(uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]))
}

func parseUnicodeNameBlock(data []byte) string {
	r := NewReader(data)
	name, err := r.ReadUnicodeString()
	if err != nil {
		return ""
	}
	return name
}
