package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnappyFramedRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	compressed, err := CompressSnappyFramed(payload)
	require.NoError(t, err)
	decompressed, err := DecompressSnappyFramed(compressed)
	require.NoError(t, err)
	require.Equal(t, payload, decompressed)
}

func TestSnappyFramedEmpty(t *testing.T) {
	compressed, err := CompressSnappyFramed(nil)
	require.NoError(t, err)
	decompressed, err := DecompressSnappyFramed(compressed)
	require.NoError(t, err)
	require.Empty(t, decompressed)
}

func TestSnappyFramedCorrupt(t *testing.T) {
	payload := []byte("some archived consensus data")
	compressed, err := CompressSnappyFramed(payload)
	require.NoError(t, err)
	// Flip a byte inside the frame body.
	compressed[len(compressed)-2] ^= 0xff
	_, err = DecompressSnappyFramed(compressed)
	require.Error(t, err)
}

func TestSnappyFramedTruncated(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	compressed, err := CompressSnappyFramed(payload)
	require.NoError(t, err)
	_, err = DecompressSnappyFramed(compressed[:len(compressed)/2])
	require.Error(t, err)
}
