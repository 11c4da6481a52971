package sha256

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashMatchesReader(t *testing.T) {
	t.Parallel()

	h := New()
	fromBytes, err := h.Hash([]byte("menu"))
	require.NoError(t, err)
	fromReader, err := h.HashReader(strings.NewReader("menu"))
	require.NoError(t, err)
	require.Equal(t, fromBytes, fromReader)
	require.Len(t, fromBytes, 64)
}

func TestHashEmpty(t *testing.T) {
	t.Parallel()

	got, err := New().Hash(nil)
	require.NoError(t, err)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestHashReaderError(t *testing.T) {
	t.Parallel()

	_, err := New().HashReader(failingReader{})
	require.EqualError(t, err, "hash content: boom")
}
