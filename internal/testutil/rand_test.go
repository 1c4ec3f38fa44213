package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountingReader_Sequence(t *testing.T) {
	r := NewCountingReader(254)

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{254, 255, 0, 1}, buf)

	n, err = r.Read(buf[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(2), buf[0])
}

func TestCountingReader_SameSeedSameBytes(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	_, _ = NewCountingReader(7).Read(a)
	_, _ = NewCountingReader(7).Read(b)
	assert.Equal(t, a, b)
}
