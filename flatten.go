package psd

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// flattenNode composites a subtree into a fresh RGBA buffer covering the
// node's bounds (the document bounds for the root). Children are drawn
// bottom to top — on-disk order is back to front — with alpha-over
// compositing, each layer's opacity scaling its alpha and its blend mode
// applied against what is already on the canvas. Invisible nodes are skipped
// along with their whole subtree. A single layer's decode failure never
// aborts the flatten.
func flattenNode(node *Node, mode ColorMode, log logrus.FieldLogger) (*DecodedImage, error) {
	width, height := node.Width(), node.Height()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("flatten %q: %w", node.Name, ErrNoPixelData)
	}

	canvas := newDecodedImage(width, height, FormatRGBA)
	renderInto(canvas, node.Left, node.Top, node, 255, mode, log)
	return canvas, nil
}

func renderInto(canvas *DecodedImage, originX, originY int32, node *Node, opacity uint8, mode ColorMode, log logrus.FieldLogger) {
	if !node.Visible && !node.IsRoot() {
		return
	}

	if node.Kind == NodeLayer {
		renderLayer(canvas, originX, originY, node, opacity, mode, log)
		return
	}

	// Group opacity applies to everything the group contains.
	scaled := opacity
	if !node.IsRoot() {
		scaled = uint8(int(opacity) * int(node.Opacity) / 255)
	}
	for i := len(node.Children) - 1; i >= 0; i-- {
		renderInto(canvas, originX, originY, node.Children[i], scaled, mode, log)
	}
}

func renderLayer(canvas *DecodedImage, originX, originY int32, node *Node, opacity uint8, mode ColorMode, log logrus.FieldLogger) {
	layer := node.Layer
	if layer == nil {
		return
	}

	img, err := decodeLayerImage(layer, mode)
	if err != nil {
		// Nothing to draw; failures stay local to this layer.
		log.WithError(err).WithField("layer", layer.Name).Debug("layer skipped during flatten")
		return
	}

	effective := uint8(int(opacity) * int(layer.Opacity) / 255)
	offsetX := int(layer.Left - originX)
	offsetY := int(layer.Top - originY)

	for y := 0; y < img.Height; y++ {
		dy := offsetY + y
		if dy < 0 || dy >= canvas.Height {
			continue
		}
		for x := 0; x < img.Width; x++ {
			dx := offsetX + x
			if dx < 0 || dx >= canvas.Width {
				continue
			}

			sr, sg, sb, sa := img.RGBAAt(x, y)
			di := (dy*canvas.Width + dx) * 4
			dst := [4]uint8{canvas.Pix[di], canvas.Pix[di+1], canvas.Pix[di+2], canvas.Pix[di+3]}
			out := compositePixel(node.BlendMode, [4]uint8{sr, sg, sb, sa}, dst, effective)
			canvas.Pix[di] = out[0]
			canvas.Pix[di+1] = out[1]
			canvas.Pix[di+2] = out[2]
			canvas.Pix[di+3] = out[3]
		}
	}
}
