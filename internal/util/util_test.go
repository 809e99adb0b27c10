package util

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIKey(t *testing.T) {
	key, err := NewAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "av_"))
	assert.Len(t, key, 3+64)
	assert.True(t, LooksLikeAPIKey(key))

	other, err := NewAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestHashAPIKey(t *testing.T) {
	h := HashAPIKey("av_abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashAPIKey("av_abc"))
	assert.NotEqual(t, h, HashAPIKey("av_abd"))
}

func TestDisplayPrefix(t *testing.T) {
	assert.Equal(t, "av_0123456...", DisplayPrefix("av_0123456789abcdef"))
	assert.Equal(t, "av_...", DisplayPrefix("av_"))
}

func TestNewVerificationCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewVerificationCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.GreaterOrEqual(t, code, "100000")
		assert.LessOrEqual(t, code, "999999")
	}
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidUsername("nova_artist1"))
	assert.False(t, ValidUsername("nova artist"))
	assert.False(t, ValidUsername("nova-artist"))
	assert.False(t, ValidUsername(""))

	assert.True(t, ValidEmail("a@b.co"))
	assert.False(t, ValidEmail("a@b"))
	assert.False(t, ValidEmail("a b@c.de"))

	assert.Equal(t, "nova@example.com", NormalizeLogin("  Nova@Example.COM "))
}

func TestNewULID(t *testing.T) {
	id := New()
	_, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, New())
}
