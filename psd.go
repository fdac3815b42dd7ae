// Package psd decodes layered Photoshop documents: the section framing,
// the layer tree, per-channel compressed pixel data and text-layer engine
// data. A Document is parsed once from an in-memory buffer and is read-only
// afterwards; every decode operation returns a freshly-owned pixel buffer,
// so concurrent decodes need no locking.
package psd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options controls parsing behavior. The zero value is fine.
type Options struct {
	// BestEffort downgrades an unrecognized color mode tag to an RGB-like
	// opaque treatment instead of failing the parse. Some producers write
	// technically invalid mode tags that should not block extraction.
	BestEffort bool

	// Logger receives parse and decode diagnostics. Nil discards them.
	// The decoder holds no process-wide logger state.
	Logger logrus.FieldLogger
}

func (o *Options) logger() logrus.FieldLogger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	return silent
}

// Document is a parsed layered document. Immutable once Parse returns.
type Document struct {
	Width     int
	Height    int
	ColorMode ColorMode
	Depth     int
	Channels  int
	PSB       bool

	// ColorModeData is the raw color-mode section (indexed palette or
	// duotone spec when applicable).
	ColorModeData []byte

	// Resources maps image resource ids to their payloads; unknown ids
	// are retained.
	Resources map[uint16]*Resource

	layers []*Layer
	root   *Node
	merged []byte
	log    logrus.FieldLogger
}

// Parse decodes a complete document from an in-memory buffer. The buffer
// must stay unmodified for the lifetime of the Document, but every decoded
// image copies out of it.
func Parse(data []byte, opts *Options) (*Document, error) {
	log := opts.logger()
	bestEffort := opts != nil && opts.BestEffort

	r := NewReader(data)
	h, err := parseHeader(r, bestEffort)
	if err != nil {
		return nil, err
	}
	if !h.Mode.valid() {
		log.WithField("mode", uint16(h.Mode)).Warn("unrecognized color mode, continuing best-effort as RGB-like")
	}

	resources, err := parseResourceSection(r, log)
	if err != nil {
		return nil, err
	}

	layers, err := parseLayerSection(r, h, log)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Width:         int(h.Width),
		Height:        int(h.Height),
		ColorMode:     h.Mode,
		Depth:         int(h.Depth),
		Channels:      int(h.Channels),
		PSB:           h.psb(),
		ColorModeData: h.ColorModeData,
		Resources:     resources,
		layers:        layers,
		root:          buildTree(layers, h),
		log:           log,
	}

	// Whatever follows the layer section is the merged image data; kept
	// raw and decoded on demand.
	if r.Remaining() > 0 {
		rest, _ := r.ReadBytes(r.Remaining())
		doc.merged = append([]byte(nil), rest...)
	}

	log.WithFields(logrus.Fields{
		"width":  doc.Width,
		"height": doc.Height,
		"mode":   doc.ColorMode.String(),
		"depth":  doc.Depth,
		"layers": len(layers),
	}).Debug("document parsed")

	return doc, nil
}

// Open reads a file fully into memory and parses it.
func Open(path string, opts *Options) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, opts)
}

// Layers returns the flat layer list in top-to-bottom order, including
// group markers.
func (d *Document) Layers() []*Layer { return d.layers }

// Root returns the root of the reconstructed layer tree.
func (d *Document) Root() *Node { return d.root }

// Layer finds a layer by id, or nil.
func (d *Document) Layer(id int32) *Layer {
	for _, l := range d.layers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// DecodeLayer decompresses and assembles a single layer's pixel data into a
// freshly-allocated image. It returns ErrLayerNotFound for an unknown id
// and ErrNoPixelData for layers with nothing to decode; failures are always
// confined to the requested layer.
func (d *Document) DecodeLayer(id int32) (*DecodedImage, error) {
	l := d.Layer(id)
	if l == nil {
		return nil, fmt.Errorf("%w: id %d", ErrLayerNotFound, id)
	}
	return d.Decode(l)
}

// Decode decompresses and assembles the given layer's pixel data.
func (d *Document) Decode(l *Layer) (*DecodedImage, error) {
	return decodeLayerImage(l, d.ColorMode)
}

// Flatten composites the whole document bottom-to-top into an RGBA buffer
// of the document's dimensions.
func (d *Document) Flatten() (*DecodedImage, error) {
	return flattenNode(d.root, d.ColorMode, d.log)
}

// FlattenNode composites a single subtree into an RGBA buffer of the node's
// bounds.
func (d *Document) FlattenNode(n *Node) (*DecodedImage, error) {
	return flattenNode(n, d.ColorMode, d.log)
}

// Preview decodes the merged composite image stored at the end of the file,
// or ErrNoPreview when the section is absent.
func (d *Document) Preview() (*DecodedImage, error) {
	if len(d.merged) == 0 {
		return nil, ErrNoPreview
	}
	h := &header{
		Version:  1,
		Channels: uint16(d.Channels),
		Height:   uint32(d.Height),
		Width:    uint32(d.Width),
		Depth:    uint16(d.Depth),
		Mode:     d.ColorMode,
	}
	if d.PSB {
		h.Version = 2
	}
	return decodeMergedImage(d.merged, h)
}
