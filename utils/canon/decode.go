package canon

import (
	"errors"

	"github.com/atsproto/go-ats/utils/fast"
	"github.com/atsproto/go-ats/utils/qfixed"
)

// Internal sentinels carried by panic through the recursive decoder.
// Decode converts them into the exported errors; anything else (slice
// bounds panics from truncated input) becomes ErrMalformedEncoding.
var (
	errNonCanonical = errors.New("non canonical")
	errMalformed    = errors.New("malformed")
	errTooLarge     = errors.New("too large")
)

// Decode parses the unique canonical encoding of a value. Input that is
// valid but not canonical (non-minimal varints, unsorted or duplicate map
// keys, non-canonical decimal renderings, trailing bytes) is rejected with
// ErrNonCanonicalEncoding, so decode(encode(x)) == x and encode(decode(b))
// == b whenever Decode succeeds.
func Decode(raw []byte) (v Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			switch rec {
			case errNonCanonical:
				v, err = nil, ErrNonCanonicalEncoding
			case errTooLarge:
				v, err = nil, ErrTooLargeAlloc
			default:
				v, err = nil, ErrMalformedEncoding
			}
		}
	}()

	r := fast.NewReader(raw)
	v = decodeValue(r)
	if !r.Empty() {
		return nil, ErrNonCanonicalEncoding
	}
	return v, nil
}

func decodeValue(r *fast.Reader) Value {
	switch tag := r.ReadByte(); tag {
	case tagBytes:
		n := readLen(r)
		return Bytes(append([]byte(nil), r.Read(n)...))
	case tagString:
		n := readLen(r)
		s := string(r.Read(n))
		if !validString(s) {
			panic(errMalformed)
		}
		return String(s)
	case tagUint:
		return Uint(readUintCompact(r))
	case tagQFixed:
		n := readLen(r)
		dec := string(r.Read(n))
		q, qerr := qfixed.FromDecimal(dec)
		if qerr != nil {
			panic(errMalformed)
		}
		if q.String() != dec {
			// Parses, but is not the canonical rendering (e.g. "0.50").
			panic(errNonCanonical)
		}
		return Q(q)
	case tagList:
		n := readLen(r)
		list := make(List, 0, n)
		for i := 0; i < n; i++ {
			list = append(list, decodeValue(r))
		}
		return list
	case tagMap:
		n := readLen(r)
		m := make(Map, n)
		prevKey := ""
		for i := 0; i < n; i++ {
			kn := readLen(r)
			k := string(r.Read(kn))
			if !validString(k) {
				panic(errMalformed)
			}
			if i > 0 && k <= prevKey {
				// Keys must be strictly increasing: sorted and unique.
				panic(errNonCanonical)
			}
			prevKey = k
			m[k] = decodeValue(r)
		}
		return m
	default:
		panic(errMalformed)
	}
}

func readLen(r *fast.Reader) int {
	n := readUintCompact(r)
	if n > MaxAlloc {
		panic(errTooLarge)
	}
	return int(n)
}
