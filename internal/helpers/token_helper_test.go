package helpers

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionToken(t *testing.T) {
	token, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, token, 32)
	_, err = hex.DecodeString(token)
	assert.NoError(t, err, "token must be valid hex")
}

func TestGenerateSessionTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateSessionToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "tokens must not repeat")
		seen[token] = true
	}
}
