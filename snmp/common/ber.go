package common

import (
	"github.com/pkg/errors"
)

// Content encoders and decoders for the primitive types whose shape the generic BER library
// cannot express: unsigned application integers and object identifiers with 64-bit arcs.

// EncodeInteger returns the minimal two's complement content octets of v.
func EncodeInteger(v int64) []byte {
	n := 1
	for x := v; x > 127 || x < -128; x >>= 8 {
		n++
	}
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// EncodeUnsigned returns the content octets of an unsigned application integer.
// A leading zero octet is added when the high bit would otherwise be set.
func EncodeUnsigned(v uint64) []byte {
	n := 1
	for x := v; x > 0xff; x >>= 8 {
		n++
	}
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

func decodeSigned(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, errors.New("empty integer")
	}
	if len(data) > 8 {
		return 0, errors.Errorf("integer too large (%d bytes)", len(data))
	}
	var v int64
	if data[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range data {
		v = v<<8 | int64(b)
	}
	return v, nil
}

func decodeUnsigned(data []byte, bits uint) (uint64, error) {
	if len(data) == 0 {
		return 0, errors.New("empty integer")
	}
	for len(data) > 1 && data[0] == 0 {
		data = data[1:]
	}
	if len(data) > 8 {
		return 0, errors.Errorf("unsigned integer too large (%d bytes)", len(data))
	}
	var v uint64
	for _, b := range data {
		v = v<<8 | uint64(b)
	}
	if bits < 64 && v>>bits != 0 {
		return 0, errors.Errorf("value %d exceeds %d bits", v, bits)
	}
	return v, nil
}

// EncodeOID returns the content octets of an object identifier.
func EncodeOID(o OID) []byte {
	if len(o) == 0 {
		return nil
	}
	first := o[0] * 40
	rest := o[1:]
	if len(o) > 1 {
		first += o[1]
		rest = o[2:]
	}
	b := appendBase128(nil, first)
	for _, v := range rest {
		b = appendBase128(b, v)
	}
	return b
}

func appendBase128(b []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
	}
	return append(b, tmp[i:]...)
}

// DecodeOID parses the content octets of an object identifier.
func DecodeOID(data []byte) (OID, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrOIDParse, "empty encoding")
	}
	var oid OID
	var v uint64
	var n int
	for i, b := range data {
		if n == 0 && b == 0x80 {
			return nil, errors.Wrap(ErrOIDParse, "non-minimal arc")
		}
		if v>>57 != 0 {
			return nil, errors.Wrap(ErrOIDParse, "arc overflows 64 bits")
		}
		v = v<<7 | uint64(b&0x7f)
		n++
		if b&0x80 != 0 {
			if i == len(data)-1 {
				return nil, errors.Wrap(ErrOIDParse, "truncated arc")
			}
			continue
		}
		if oid == nil {
			switch {
			case v < 40:
				oid = OID{0, v}
			case v < 80:
				oid = OID{1, v - 40}
			default:
				oid = OID{2, v - 80}
			}
		} else {
			oid = append(oid, v)
		}
		v, n = 0, 0
	}
	return oid, nil
}
