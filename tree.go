package psd

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NodeKind distinguishes the three node shapes in the layer tree.
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeGroup
	NodeLayer
)

// Node is one node of the reconstructed layer hierarchy. Children are kept
// in on-disk order (top to bottom); nothing is sorted.
type Node struct {
	Kind     NodeKind
	Name     string
	Layer    *Layer // nil for the root and for dangling-end placeholders
	Parent   *Node
	Children []*Node

	Visible   bool
	Opacity   uint8
	BlendMode BlendMode

	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// Width returns the node's bounding-box width.
func (n *Node) Width() int { return int(n.Right - n.Left) }

// Height returns the node's bounding-box height.
func (n *Node) Height() int { return int(n.Bottom - n.Top) }

// IsEmpty reports whether the node covers no pixels.
func (n *Node) IsEmpty() bool { return n.Width() <= 0 || n.Height() <= 0 }

// IsRoot reports whether this is the document root.
func (n *Node) IsRoot() bool { return n.Kind == NodeRoot }

// Descendants returns every node below this one, depth first, in child
// order.
func (n *Node) Descendants() []*Node {
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c)
		out = append(out, c.Descendants()...)
	}
	return out
}

// parseLayerSection decodes the layer-and-mask information section into a
// flat list of layer records, returned in top-to-bottom order.
func parseLayerSection(r *Reader, h *header, log logrus.FieldLogger) ([]*Layer, error) {
	length, err := r.ReadLength(h.psb())
	if err != nil {
		return nil, fmt.Errorf("layer section length: %w", err)
	}
	if length == 0 {
		return nil, nil
	}

	section, err := r.SubReader(length)
	if err != nil {
		return nil, fmt.Errorf("layer section: %w", err)
	}

	layers, err := parseLayerInfo(section, h)
	if err != nil {
		return nil, err
	}

	// 8-bit files store records in the layer info block; 16/32-bit files
	// move them into a global 'Lr16'/'Lr32' tagged block after the global
	// mask info.
	if len(layers) == 0 {
		if deep := parseGlobalLayerBlocks(section, h, log); deep != nil {
			layers = deep
		}
	}

	// On-disk order is bottom to top; the tree builder and compositor work
	// top to bottom.
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	return layers, nil
}

func parseLayerInfo(r *Reader, h *header) ([]*Layer, error) {
	length, err := r.ReadLength(h.psb())
	if err != nil {
		return nil, fmt.Errorf("layer info length: %w", err)
	}
	if length == 0 {
		return nil, nil
	}
	info, err := r.SubReader(length)
	if err != nil {
		return nil, fmt.Errorf("layer info: %w", err)
	}
	return parseLayerList(info, h)
}

func parseLayerList(info *Reader, h *header) ([]*Layer, error) {
	count, err := info.ReadInt16()
	if err != nil {
		return nil, fmt.Errorf("layer count: %w", err)
	}
	// A negative count flags merged-image transparency; the magnitude is
	// the record count either way.
	if count < 0 {
		count = -count
	}

	layers := make([]*Layer, count)
	for i := range layers {
		l, err := parseLayerRecord(info, h)
		if err != nil {
			return nil, fmt.Errorf("layer record %d: %w", i, err)
		}
		layers[i] = l
	}

	// Channel image data follows all records, per layer, per channel, in
	// record order.
	for i, l := range layers {
		if err := readChannelData(info, l); err != nil {
			return nil, fmt.Errorf("channel data for layer %d (%s): %w", i, l.Name, err)
		}
	}

	return layers, nil
}

// readChannelData fills the compressed payload of every channel descriptor
// of l. Each channel occupies exactly its declared length in the stream, so
// a sub-reader keeps the stream aligned no matter what the payload holds.
func readChannelData(r *Reader, l *Layer) error {
	for i := range l.Channels {
		length := l.channelLengths[i]
		ch, err := r.SubReader(length)
		if err != nil {
			return fmt.Errorf("channel %d: %w", l.Channels[i].ID, err)
		}
		if length < 2 {
			// No room for a compression tag; an empty plane.
			l.Channels[i].Compression = CompressionRaw
			continue
		}
		method, err := ch.ReadUint16()
		if err != nil {
			return fmt.Errorf("channel %d: %w", l.Channels[i].ID, err)
		}
		l.Channels[i].Compression = CompressionMethod(method)
		payload, err := ch.ReadBytes(ch.Remaining())
		if err != nil {
			return fmt.Errorf("channel %d: %w", l.Channels[i].ID, err)
		}
		l.Channels[i].Data = append([]byte(nil), payload...)
	}
	l.channelLengths = nil
	return nil
}

// Global tagged blocks whose length field widens to 64 bits in PSB files.
var wideGlobalBlocks = map[string]bool{
	"Lr16": true, "Lr32": true, "Layr": true, "LMsk": true,
	"Mt16": true, "Mt32": true, "Mtrn": true, "Alph": true,
}

// parseGlobalLayerBlocks scans past the global mask info for 'Lr16'/'Lr32'/
// 'Layr' blocks holding the real layer records of deep-color files. Any
// failure here degrades to an empty layer list rather than a parse error.
func parseGlobalLayerBlocks(r *Reader, h *header, log logrus.FieldLogger) []*Layer {
	maskLen, err := r.ReadUint32()
	if err != nil {
		return nil
	}
	if err := r.Skip(int(maskLen)); err != nil {
		return nil
	}

	for r.Remaining() >= 12 {
		sig, err := r.ReadString(4)
		if err != nil || (sig != resourceSignature && sig != blockSignature64) {
			return nil
		}
		key, err := r.ReadString(4)
		if err != nil {
			return nil
		}
		var length int
		if h.psb() && wideGlobalBlocks[key] {
			length, err = r.ReadLength(true)
		} else {
			length, err = r.ReadLength(false)
		}
		if err != nil {
			return nil
		}
		block, err := r.SubReader(length)
		if err != nil {
			return nil
		}

		switch key {
		case "Lr16", "Lr32", "Layr":
			layers, err := parseLayerList(block, h)
			if err != nil {
				log.WithError(err).WithField("block", key).Warn("failed to parse deep layer block")
				return nil
			}
			return layers
		}
	}
	return nil
}

// buildTree reassembles the flat, top-to-bottom record list into a tree by
// matching group-open and group-end markers with stack discipline.
func buildTree(layers []*Layer, h *header) *Node {
	root := &Node{
		Kind:    NodeRoot,
		Name:    "Root",
		Visible: true,
		Opacity: 255,
		Right:   int32(h.Width),
		Bottom:  int32(h.Height),
	}

	stack := []*Node{root}
	for _, l := range layers {
		switch l.Kind {
		case KindGroup:
			node := newNode(NodeGroup, l)
			node.Parent = stack[len(stack)-1]
			stack = append(stack, node)

		case KindGroupEnd:
			if len(stack) > 1 {
				group := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, group)
			} else {
				// Dangling end marker with no open group: tolerated as a
				// top-level empty placeholder so malformed nesting never
				// fails the parse.
				placeholder := newNode(NodeGroup, l)
				placeholder.Layer = nil
				placeholder.Parent = root
				root.Children = append(root.Children, placeholder)
			}

		default:
			node := newNode(NodeLayer, l)
			parent := stack[len(stack)-1]
			node.Parent = parent
			parent.Children = append(parent.Children, node)
		}
	}

	// Unclosed groups: attach whatever was collected.
	for len(stack) > 1 {
		group := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, group)
	}

	updateGroupBounds(root)
	return root
}

func newNode(kind NodeKind, l *Layer) *Node {
	return &Node{
		Kind:      kind,
		Name:      l.Name,
		Layer:     l,
		Visible:   l.Visible(),
		Opacity:   l.Opacity,
		BlendMode: l.BlendMode,
		Left:      l.Left,
		Top:       l.Top,
		Right:     l.Right,
		Bottom:    l.Bottom,
	}
}

// updateGroupBounds recomputes group bounding boxes as the union of their
// non-empty children. Group markers carry empty boxes on disk.
func updateGroupBounds(n *Node) {
	for _, c := range n.Children {
		updateGroupBounds(c)
	}
	if n.Kind != NodeGroup {
		return
	}

	first := true
	for _, c := range n.Children {
		if c.IsEmpty() {
			continue
		}
		if first {
			n.Left, n.Top, n.Right, n.Bottom = c.Left, c.Top, c.Right, c.Bottom
			first = false
			continue
		}
		if c.Left < n.Left {
			n.Left = c.Left
		}
		if c.Top < n.Top {
			n.Top = c.Top
		}
		if c.Right > n.Right {
			n.Right = c.Right
		}
		if c.Bottom > n.Bottom {
			n.Bottom = c.Bottom
		}
	}
	if first {
		n.Left, n.Top, n.Right, n.Bottom = 0, 0, 0, 0
	}
}
