package canon

import (
	"sort"

	"github.com/atsproto/go-ats/utils/fast"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// Encode renders a value as its unique canonical byte sequence.
func Encode(v Value) ([]byte, error) {
	w := fast.NewWriter(make([]byte, 0, 256))
	if err := encodeValue(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// MustEncode is Encode for values known to be well-formed (no nils, valid
// UTF-8 strings). It panics on error and exists for the hot paths where the
// value is constructed by the kernel itself.
func MustEncode(v Value) []byte {
	raw, err := Encode(v)
	if err != nil {
		panic("canon: " + err.Error())
	}
	return raw
}

func encodeValue(w *fast.Writer, v Value) error {
	switch x := v.(type) {
	case Bytes:
		w.WriteByte(tagBytes)
		writeUintCompact(w, uint64(len(x)))
		w.Write(x)
	case String:
		if !validString(string(x)) {
			return ErrInvalidUTF8
		}
		w.WriteByte(tagString)
		writeUintCompact(w, uint64(len(x)))
		w.Write([]byte(x))
	case Uint:
		w.WriteByte(tagUint)
		writeUintCompact(w, uint64(x))
	case Q:
		// Fixed-point numbers are encoded through their exact decimal
		// rendering, never through a platform-dependent binary form.
		dec := qfixed.QFixed(x).String()
		w.WriteByte(tagQFixed)
		writeUintCompact(w, uint64(len(dec)))
		w.Write([]byte(dec))
	case List:
		w.WriteByte(tagList)
		writeUintCompact(w, uint64(len(x)))
		for _, el := range x {
			if err := encodeValue(w, el); err != nil {
				return err
			}
		}
	case Map:
		keys := make([]string, 0, len(x))
		for k := range x {
			if !validString(k) {
				return ErrInvalidUTF8
			}
			keys = append(keys, k)
		}
		// Lexicographic byte order; Go map iteration order never leaks.
		sort.Strings(keys)
		w.WriteByte(tagMap)
		writeUintCompact(w, uint64(len(keys)))
		for _, k := range keys {
			writeUintCompact(w, uint64(len(k)))
			w.Write([]byte(k))
			if err := encodeValue(w, x[k]); err != nil {
				return err
			}
		}
	default:
		return ErrUnsupportedValue
	}
	return nil
}

// writeUintCompact encodes v as a minimal varint: 7 bits of payload per
// byte, with the high bit set on the final byte. Small values cost one
// byte and the encoding of any value is unique.
func writeUintCompact(w *fast.Writer, v uint64) {
	for {
		chunk := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			w.WriteByte(chunk | 0x80)
			return
		}
		w.WriteByte(chunk)
	}
}

// readUintCompact decodes a minimal varint. A non-minimal encoding (a final
// chunk of zero after at least one byte, or more than ten bytes) panics with
// errNonCanonical, which Decode converts into ErrNonCanonicalEncoding.
func readUintCompact(r *fast.Reader) uint64 {
	var v uint64
	for i := 0; ; i++ {
		if i >= 10 {
			panic(errMalformed)
		}
		chunk := r.ReadByte()
		payload := uint64(chunk & 0x7f)
		if i == 9 && payload > 1 {
			// The tenth byte may only carry the single top bit of a uint64.
			panic(errMalformed)
		}
		v |= payload << (7 * uint(i))
		if chunk&0x80 != 0 {
			if i > 0 && payload == 0 {
				panic(errNonCanonical)
			}
			return v
		}
	}
}
