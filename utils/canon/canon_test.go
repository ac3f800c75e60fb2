package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsproto/go-ats/utils/qfixed"
)

func sampleValue() Value {
	return Map{
		"risk":   QVal(qfixed.MustFromDecimal("0.4")),
		"step":   Uint(7),
		"digest": Bytes{0xde, 0xad, 0xbe, 0xef},
		"tags":   List{String("alpha"), String("beta")},
		"nested": Map{"k": Uint(1)},
	}
}

// TestEncode_deterministic verifies serialize(x) == serialize(x) across
// repeated calls. Map iteration order must never leak into the output.
func TestEncode_deterministic(t *testing.T) {
	first, err := Encode(sampleValue())
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Encode(sampleValue())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestEncode_distinctValues verifies structurally distinct values encode
// differently.
func TestEncode_distinctValues(t *testing.T) {
	a := MustEncode(Map{"a": Uint(1)})
	b := MustEncode(Map{"a": Uint(2)})
	c := MustEncode(Map{"b": Uint(1)})
	d := MustEncode(List{Uint(1)})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)

	// Type tags keep equal payloads of different kinds apart.
	assert.NotEqual(t, MustEncode(String("ab")), MustEncode(Bytes("ab")))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"bytes", Bytes{1, 2, 3}},
		{"empty bytes", Bytes{}},
		{"string", String("hello")},
		{"uint zero", Uint(0)},
		{"uint big", Uint(1<<63 + 5)},
		{"qfixed", QVal(qfixed.MustFromDecimal("1.25"))},
		{"list", List{Uint(1), String("x")}},
		{"empty list", List{}},
		{"map", sampleValue()},
		{"empty map", Map{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.v)
			require.NoError(t, err)
			back, err := Decode(raw)
			require.NoError(t, err)
			again, err := Encode(back)
			require.NoError(t, err)
			assert.Equal(t, raw, again)
		})
	}
}

// TestDecode_rejectsNonCanonical feeds deliberately corrupted encodings and
// expects the strict decoder to refuse each one.
func TestDecode_rejectsNonCanonical(t *testing.T) {
	t.Run("trailing bytes", func(t *testing.T) {
		raw := append(MustEncode(Uint(1)), 0x00)
		_, err := Decode(raw)
		assert.Equal(t, ErrNonCanonicalEncoding, err)
	})

	t.Run("non-minimal varint", func(t *testing.T) {
		// Uint(1) is 'u' 0x81; the padded form 'u' 0x01 0x80 denotes the
		// same value with a zero final chunk.
		_, err := Decode([]byte{tagUint, 0x01, 0x80})
		assert.Equal(t, ErrNonCanonicalEncoding, err)
	})

	t.Run("unsorted map keys", func(t *testing.T) {
		raw := []byte{tagMap, 0x82} // 2 entries
		raw = append(raw, 0x81, 'b')
		raw = append(raw, tagUint, 0x81)
		raw = append(raw, 0x81, 'a')
		raw = append(raw, tagUint, 0x82)
		_, err := Decode(raw)
		assert.Equal(t, ErrNonCanonicalEncoding, err)
	})

	t.Run("duplicate map keys", func(t *testing.T) {
		raw := []byte{tagMap, 0x82}
		raw = append(raw, 0x81, 'a')
		raw = append(raw, tagUint, 0x81)
		raw = append(raw, 0x81, 'a')
		raw = append(raw, tagUint, 0x82)
		_, err := Decode(raw)
		assert.Equal(t, ErrNonCanonicalEncoding, err)
	})

	t.Run("non-canonical decimal", func(t *testing.T) {
		raw := []byte{tagQFixed, 0x84}
		raw = append(raw, []byte("0.50")...)
		_, err := Decode(raw)
		assert.Equal(t, ErrNonCanonicalEncoding, err)
	})

	t.Run("truncated input", func(t *testing.T) {
		raw := MustEncode(sampleValue())
		_, err := Decode(raw[:len(raw)-3])
		assert.Equal(t, ErrMalformedEncoding, err)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := Decode([]byte{'z', 0x81})
		assert.Equal(t, ErrMalformedEncoding, err)
	})

	t.Run("oversized length", func(t *testing.T) {
		raw := []byte{tagBytes}
		// varint for MaxAlloc+1
		n := uint64(MaxAlloc + 1)
		for n >= 0x80 {
			raw = append(raw, byte(n&0x7f))
			n >>= 7
		}
		raw = append(raw, byte(n)|0x80)
		_, err := Decode(raw)
		assert.Equal(t, ErrTooLargeAlloc, err)
	})
}

func TestEncode_rejectsInvalidUTF8(t *testing.T) {
	_, err := Encode(String([]byte{0xff, 0xfe}))
	assert.Equal(t, ErrInvalidUTF8, err)

	_, err = Encode(Map{string([]byte{0xff}): Uint(1)})
	assert.Equal(t, ErrInvalidUTF8, err)
}

// TestHashBytes_domainSeparation verifies that the same payload hashed under
// two different purpose tags yields two different digests.
func TestHashBytes_domainSeparation(t *testing.T) {
	payload := []byte("identical payload")
	a := HashBytes("ats/receipt-id_V1\n", payload)
	b := HashBytes("ats/chain-link_V1\n", payload)
	assert.NotEqual(t, a, b)
}

func TestHashTagged_deterministic(t *testing.T) {
	h1 := MustHashTagged("ats/test_V1\n", sampleValue())
	h2 := MustHashTagged("ats/test_V1\n", sampleValue())
	assert.Equal(t, h1, h2)
}
