package claimcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
	}{
		{name: "bare token", raw: "3f7b1c7e-7d0c-4c1e-9d35-5f7f5c0d3a11", kind: KindOnline},
		{name: "static", raw: `{"type":"static","eid":"e1","bid":"b1"}`, kind: KindStatic},
		{name: "static without badge", raw: `{"type":"static","eid":"e1"}`, kind: KindStatic},
		{name: "secure", raw: `{"type":"secure","eid":"e1","blob":"aa:bb"}`, kind: KindSecure},
		{name: "unknown json type", raw: `{"type":"other"}`, kind: KindOnline},
		{name: "broken json", raw: `{"type":`, kind: KindOnline},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, err := Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, code.Kind)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		`{"type":"static"}`,
		`{"type":"secure","eid":"e1"}`,
		`{"type":"secure","blob":"aa:bb"}`,
	} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestSecure_WinProof(t *testing.T) {
	blob := `{"team":["u1","u2"],"proofs":["a","b"],"bid":"b1","ts":1}`
	s := NewSecure("e1", blob)
	require.True(t, s.IsWinProof())

	w, err := s.WinProof()
	require.NoError(t, err)
	assert.True(t, w.HasMember("u2"))
	assert.False(t, w.HasMember("u3"))
	assert.Equal(t, "b1", w.BadgeID)

	assert.False(t, NewSecure("e1", "aa:bb").IsWinProof())
}

func TestEncodeRoundTrip(t *testing.T) {
	code, err := Parse(NewStatic("e1", "b1").Encode())
	require.NoError(t, err)
	assert.Equal(t, "b1", code.Static.BadgeID)

	code, err = Parse(NewSecure("e1", "aa:bb").Encode())
	require.NoError(t, err)
	assert.Equal(t, "aa:bb", code.Secure.Blob)
}
