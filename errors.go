package psd

import "errors"

// Error kinds returned by parsing and decoding. Callers are expected to test
// with errors.Is; most errors carry additional context from fmt.Errorf
// wrapping.
var (
	// ErrBadSignature means the file does not start with a recognized
	// magic signature or declares an unsupported version. Fatal for the
	// whole parse.
	ErrBadSignature = errors.New("psd: bad signature")

	// ErrOutOfBounds means a length field points past the end of the
	// buffer. Fatal for the section being read; section parsers may catch
	// it to skip a single corrupt resource or layer.
	ErrOutOfBounds = errors.New("psd: read out of bounds")

	// ErrUnsupportedCompression means a channel carries an unknown
	// compression tag. It fails that channel's decode only; the owning
	// layer surfaces as having no pixel data.
	ErrUnsupportedCompression = errors.New("psd: unsupported compression")

	// ErrUnsupportedColorMode fails the whole parse unless
	// Options.BestEffort is set, in which case the mode is treated as
	// RGB-like and decoding proceeds.
	ErrUnsupportedColorMode = errors.New("psd: unsupported color mode")

	// ErrNoPixelData marks a layer with nothing to decode: zero-area
	// bounds, no channel descriptors, or channels that could not be
	// decompressed. Distinct from a successfully decoded transparent
	// buffer.
	ErrNoPixelData = errors.New("psd: layer has no pixel data")

	// ErrLayerNotFound is returned by Document.DecodeLayer for an unknown
	// layer id.
	ErrLayerNotFound = errors.New("psd: layer not found")

	// ErrNoPreview is returned by Document.Preview when the file carries
	// no merged image section.
	ErrNoPreview = errors.New("psd: no merged image data")
)
