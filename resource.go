package psd

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Well-known image resource ids.
const (
	ResourceResolutionInfo uint16 = 1005
	ResourceGuides         uint16 = 1032
	ResourceUnicodeAlpha   uint16 = 1045
	ResourceVersionInfo    uint16 = 1057
)

// Resource is a single image resource. Unknown ids are retained with their
// raw payload so metadata survives a parse round trip.
type Resource struct {
	ID   uint16
	Name string
	Data []byte
}

// Guide is one document guide from resource 1032.
type Guide struct {
	// Position in document coordinates (fixed-point, 32 units per pixel).
	Position   int32
	Horizontal bool
}

// ResolutionInfo is the parsed form of resource 1005.
type ResolutionInfo struct {
	// Resolutions are pixels per inch as 16.16 fixed-point values.
	HorizontalPPI float64
	VerticalPPI   float64
}

const resourceSignature = "8BIM"

// parseResourceSection reads the image resources section into an id-keyed
// map. A single corrupt resource is skipped with a diagnostic instead of
// failing the section: everything before it (and the section framing) stays
// usable.
func parseResourceSection(r *Reader, log logrus.FieldLogger) (map[uint16]*Resource, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("resource section length: %w", err)
	}

	resources := make(map[uint16]*Resource)
	if length == 0 {
		return resources, nil
	}

	section, err := r.SubReader(int(length))
	if err != nil {
		return nil, fmt.Errorf("resource section: %w", err)
	}

	for section.Remaining() >= 4 {
		res, err := parseResource(section)
		if err != nil {
			// The remainder of the section cannot be re-synchronized once a
			// length field is corrupt, but everything parsed so far is kept.
			log.WithError(err).Warn("skipping corrupt image resource")
			break
		}
		resources[res.ID] = res
	}

	return resources, nil
}

func parseResource(r *Reader) (*Resource, error) {
	sig, err := r.ReadString(4)
	if err != nil {
		return nil, err
	}
	if sig != resourceSignature {
		return nil, fmt.Errorf("resource signature %q", sig)
	}

	res := &Resource{}
	if res.ID, err = r.ReadUint16(); err != nil {
		return nil, err
	}

	// Resource names are Pascal strings padded to even length.
	if res.Name, err = r.ReadPascalString(2); err != nil {
		return nil, err
	}

	size, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if size > 0 {
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		res.Data = append([]byte(nil), data...)

		// Payloads are padded to even length.
		if size%2 != 0 && r.Remaining() > 0 {
			if err := r.Skip(1); err != nil {
				return nil, err
			}
		}
	}

	return res, nil
}

// ParseGuides decodes the guides resource (1032). Files without guides yield
// an empty slice.
func ParseGuides(resources map[uint16]*Resource) ([]Guide, error) {
	res, ok := resources[ResourceGuides]
	if !ok || len(res.Data) == 0 {
		return nil, nil
	}

	r := NewReader(res.Data)
	// Version (4 bytes) and grid cycle (8 bytes).
	if err := r.Skip(12); err != nil {
		return nil, fmt.Errorf("guides resource: %w", err)
	}
	count, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("guides resource: %w", err)
	}

	guides := make([]Guide, 0, count)
	for i := uint32(0); i < count; i++ {
		pos, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("guide %d: %w", i, err)
		}
		dir, err := r.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("guide %d: %w", i, err)
		}
		guides = append(guides, Guide{Position: pos, Horizontal: dir == 0})
	}
	return guides, nil
}

// ParseResolution decodes the resolution info resource (1005).
func ParseResolution(resources map[uint16]*Resource) (*ResolutionInfo, error) {
	res, ok := resources[ResourceResolutionInfo]
	if !ok || len(res.Data) == 0 {
		return nil, nil
	}

	r := NewReader(res.Data)
	h, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("resolution resource: %w", err)
	}
	// Display unit fields (2+2 bytes) sit between the two values.
	if err := r.Skip(4); err != nil {
		return nil, fmt.Errorf("resolution resource: %w", err)
	}
	v, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("resolution resource: %w", err)
	}

	return &ResolutionInfo{
		HorizontalPPI: float64(h) / 65536.0,
		VerticalPPI:   float64(v) / 65536.0,
	}, nil
}
