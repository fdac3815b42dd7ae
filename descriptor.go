package psd

import "fmt"

// Descriptor values are decoded into plain Go types: string, bool, int32,
// int64, float64, []byte, []any, Enum, UnitValue and nested
// map[string]any for Objc items.

// Enum is a descriptor enumeration value.
type Enum struct {
	Type  string
	Value string
}

// UnitValue is a descriptor double tagged with a unit (points, pixels,
// percent...).
type UnitValue struct {
	Unit  string
	Value float64
}

// parseDescriptor decodes a descriptor structure: a unicode class name, a
// class id and a counted list of key/typed-value items.
func parseDescriptor(r *Reader) (map[string]any, error) {
	if _, err := r.ReadUnicodeString(); err != nil {
		return nil, fmt.Errorf("descriptor class name: %w", err)
	}
	if _, err := readDescriptorID(r); err != nil {
		return nil, fmt.Errorf("descriptor class id: %w", err)
	}

	count, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("descriptor item count: %w", err)
	}

	items := make(map[string]any, count)
	for i := uint32(0); i < count; i++ {
		key, err := readDescriptorID(r)
		if err != nil {
			return nil, fmt.Errorf("descriptor key %d: %w", i, err)
		}
		value, err := readDescriptorItem(r)
		if err != nil {
			return nil, fmt.Errorf("descriptor value %q: %w", key, err)
		}
		items[key] = value
	}
	return items, nil
}

// readDescriptorID reads a length-prefixed id; a zero length means a fixed
// 4-byte code.
func readDescriptorID(r *Reader) (string, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return r.ReadString(4)
	}
	return r.ReadString(int(length))
}

func readDescriptorItem(r *Reader) (any, error) {
	kind, err := r.ReadString(4)
	if err != nil {
		return nil, err
	}
	return readDescriptorValue(r, kind)
}

func readDescriptorValue(r *Reader, kind string) (any, error) {
	switch kind {
	case "Objc", "GlbO":
		return parseDescriptor(r)

	case "VlLs":
		count, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		list := make([]any, count)
		for i := range list {
			if list[i], err = readDescriptorItem(r); err != nil {
				return nil, err
			}
		}
		return list, nil

	case "TEXT":
		return r.ReadUnicodeString()

	case "doub":
		return r.ReadFloat64()

	case "UntF":
		unit, err := r.ReadString(4)
		if err != nil {
			return nil, err
		}
		value, err := r.ReadFloat64()
		if err != nil {
			return nil, err
		}
		return UnitValue{Unit: unit, Value: value}, nil

	case "enum":
		typ, err := readDescriptorID(r)
		if err != nil {
			return nil, err
		}
		value, err := readDescriptorID(r)
		if err != nil {
			return nil, err
		}
		return Enum{Type: typ, Value: value}, nil

	case "long":
		return r.ReadInt32()

	case "comp":
		v, err := r.ReadUint64()
		return int64(v), err

	case "bool":
		b, err := r.ReadUint8()
		return b != 0, err

	case "type", "GlbC":
		if _, err := r.ReadUnicodeString(); err != nil {
			return nil, err
		}
		return readDescriptorID(r)

	case "alis", "tdta":
		length, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		data, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil

	case "obj ":
		return readDescriptorReference(r)

	default:
		return nil, fmt.Errorf("descriptor type %q", kind)
	}
}

func readDescriptorReference(r *Reader) ([]any, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	items := make([]any, count)
	for i := range items {
		kind, err := r.ReadString(4)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "Clss":
			if _, err := r.ReadUnicodeString(); err != nil {
				return nil, err
			}
			items[i], err = readDescriptorID(r)
			if err != nil {
				return nil, err
			}
		case "Enmr":
			if _, err := r.ReadUnicodeString(); err != nil {
				return nil, err
			}
			if _, err := readDescriptorID(r); err != nil {
				return nil, err
			}
			typ, err := readDescriptorID(r)
			if err != nil {
				return nil, err
			}
			value, err := readDescriptorID(r)
			if err != nil {
				return nil, err
			}
			items[i] = Enum{Type: typ, Value: value}
		case "name":
			if _, err := r.ReadUnicodeString(); err != nil {
				return nil, err
			}
			if _, err := readDescriptorID(r); err != nil {
				return nil, err
			}
			items[i], err = r.ReadUnicodeString()
			if err != nil {
				return nil, err
			}
		case "Idnt", "indx", "rele":
			items[i], err = r.ReadInt32()
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("reference type %q", kind)
		}
	}
	return items, nil
}
