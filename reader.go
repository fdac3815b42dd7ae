package psd

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// Reader is a cursor over an immutable byte buffer. All multi-byte reads are
// big-endian. Any read past the end of the buffer returns ErrOutOfBounds; no
// operation silently returns truncated data. The only side effect of a read
// is advancing the cursor.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf. The buffer must not be mutated while the Reader (or
// any SubReader derived from it) is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor position.
func (r *Reader) Pos() int { return r.pos }

// Size returns the total buffer length.
func (r *Reader) Size() int { return len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrOutOfBounds, n, r.pos, len(r.buf))
	}
	return nil
}

// ReadBytes returns the next n bytes. The returned slice aliases the
// underlying buffer and must be treated as read-only.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString reads n raw bytes as a string.
func (r *Reader) ReadString(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadUint16 reads a big-endian 16-bit unsigned integer.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadInt16 reads a big-endian 16-bit signed integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a big-endian 32-bit unsigned integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadInt32 reads a big-endian 32-bit signed integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a big-endian 64-bit unsigned integer. PSB files use
// 64-bit section and channel lengths.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadFloat64 reads a big-endian IEEE 754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadLength reads a section length: 32 bits normally, 64 bits when psb is
// set.
func (r *Reader) ReadLength(psb bool) (int, error) {
	if psb {
		v, err := r.ReadUint64()
		if err != nil {
			return 0, err
		}
		if v > uint64(len(r.buf)) {
			return 0, fmt.Errorf("%w: declared length %d exceeds buffer size %d", ErrOutOfBounds, v, len(r.buf))
		}
		return int(v), nil
	}
	v, err := r.ReadUint32()
	return int(v), err
}

// ReadPascalString reads a length-prefixed string padded so that the prefix
// byte plus content occupy a multiple of pad bytes. PSD uses pad 2 for
// resource names and pad 4 for layer names.
func (r *Reader) ReadPascalString(pad int) (string, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return "", err
	}
	s, err := r.ReadString(int(n))
	if err != nil {
		return "", err
	}
	if pad > 1 {
		if rem := (int(n) + 1) % pad; rem != 0 {
			if err := r.Skip(pad - rem); err != nil {
				return "", err
			}
		}
	}
	return s, nil
}

// ReadUnicodeString reads a UTF-16BE string prefixed with a 32-bit code unit
// count.
func (r *Reader) ReadUnicodeString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	raw, err := r.ReadBytes(int(n) * 2)
	if err != nil {
		return "", err
	}
	return decodeUTF16BE(raw), nil
}

// Seek moves the cursor to an absolute position inside the buffer.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: seek to %d of %d", ErrOutOfBounds, pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// SubReader consumes the next n bytes and returns an independent cursor over
// them. The parent cursor ends up positioned after the sub-section, so a
// short or failed read inside the section never desynchronizes the parent.
func (r *Reader) SubReader(n int) (*Reader, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

func decodeUTF16BE(raw []byte) string {
	// A fresh decoder per call: encoding.Decoder carries transform state
	// and concurrent parses must not share it.
	s, err := utf16be.NewDecoder().Bytes(raw)
	if err != nil {
		// Decoder replaces invalid sequences; err only fires on internal
		// failure, in which case the raw bytes are better than nothing.
		return string(raw)
	}
	// Photoshop sometimes stores a trailing NUL in unicode names.
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s)
}
