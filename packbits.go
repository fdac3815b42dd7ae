package psd

import "fmt"

// decodePackBits expands one PackBits-compressed scanline into exactly
// rowBytes output bytes. Control bytes 0..127 copy n+1 literal bytes,
// 129..255 repeat the following byte 257-n times, 128 is a no-op. Decoding
// stops once the declared row length is reached.
func decodePackBits(src []byte, rowBytes int) ([]byte, error) {
	dst := make([]byte, 0, rowBytes)
	pos := 0
	for len(dst) < rowBytes {
		if pos >= len(src) {
			return nil, fmt.Errorf("%w: packbits row truncated at %d of %d bytes", ErrOutOfBounds, len(dst), rowBytes)
		}
		n := int(src[pos])
		pos++
		switch {
		case n < 128:
			count := n + 1
			if pos+count > len(src) {
				return nil, fmt.Errorf("%w: packbits literal run past end", ErrOutOfBounds)
			}
			if len(dst)+count > rowBytes {
				count = rowBytes - len(dst)
			}
			dst = append(dst, src[pos:pos+count]...)
			pos += n + 1
		case n > 128:
			count := 257 - n
			if pos >= len(src) {
				return nil, fmt.Errorf("%w: packbits repeat run past end", ErrOutOfBounds)
			}
			v := src[pos]
			pos++
			if len(dst)+count > rowBytes {
				count = rowBytes - len(dst)
			}
			for i := 0; i < count; i++ {
				dst = append(dst, v)
			}
		default:
			// 128: no-op filler byte.
		}
	}
	return dst, nil
}
