package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveToken_ConfiguredWins(t *testing.T) {
	token, err := resolveToken("abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestResolveToken_NoTokenNoTerminal(t *testing.T) {
	// Under go test stdin is a pipe, so there is no interactive fallback.
	_, err := resolveToken("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOAA_TOKEN")
}
