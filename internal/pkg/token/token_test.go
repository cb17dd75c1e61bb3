package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UniqueHex(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestHash_StableAndOpaque(t *testing.T) {
	tok, err := New()
	require.NoError(t, err)

	assert.Equal(t, Hash(tok), Hash(tok))
	assert.NotEqual(t, tok, Hash(tok))
	assert.Len(t, Hash(tok), 64)
}
