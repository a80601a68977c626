package rsync

import (
	"bytes"
	"crypto/sha256"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		a, b []byte
	}{
		{"identical", []byte("hello world"), []byte("hello world")},
		{"append", []byte("AAAA BBBB"), []byte("AAAA BBBB CCCC")},
		{"middle edit", []byte("AAAA BBBB CCCC"), []byte("AAAA XXXX CCCC")},
		{"empty to content", []byte(""), []byte("new content")},
		{"content to empty", []byte("old content"), []byte("")},
		{"large random", randomBytes(5, 50000), randomBytes(6, 50000)},
		{"large with shared prefix", largeSharedPrefix(), append(largeSharedPrefix(), []byte("tail appended")...)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig, err := ComputeSignature(bytes.NewReader(tc.a))
			require.NoError(t, err)

			diff := ComputeDiff(sig, tc.b)
			got, err := Apply(tc.a, diff)
			require.NoError(t, err)

			assert.Equal(t, tc.b, got)
			assert.Equal(t, sha256.Sum256(tc.b), sha256.Sum256(got))
		})
	}
}

func TestSignatureEncodeDecodeRoundTrip(t *testing.T) {
	sig, err := ComputeSignature(bytes.NewReader(randomBytes(1, 40000)))
	require.NoError(t, err)

	encoded := sig.Encode()
	decoded, err := DecodeSignature(encoded)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)
}

func TestDiffEncodeDecodeRoundTrip(t *testing.T) {
	a := randomBytes(2, 20000)
	b := append(append([]byte{}, a[:10000]...), randomBytes(3, 5000)...)

	sig, err := ComputeSignature(bytes.NewReader(a))
	require.NoError(t, err)
	diff := ComputeDiff(sig, b)

	encoded := diff.Encode()
	decoded, err := DecodeDiff(encoded)
	require.NoError(t, err)

	got, err := Apply(a, decoded)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func randomBytes(seed int64, n int) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

func largeSharedPrefix() []byte {
	return randomBytes(42, 70000)
}
