package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	s := NewTokenStore(keyring.NewArrayKeyring(nil))

	_, ok := s.Get()
	assert.False(t, ok)

	require.NoError(t, s.Save("abc"))
	token, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "abc", token)

	require.NoError(t, s.Save("def"))
	token, _ = s.Get()
	assert.Equal(t, "def", token)

	require.NoError(t, s.Remove())
	_, ok = s.Get()
	assert.False(t, ok)

	assert.NoError(t, s.Remove(), "removing twice is fine")
}
