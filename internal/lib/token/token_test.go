package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	seen := make(map[string]struct{})

	for range 100 {
		tok, err := New()
		require.NoError(t, err)
		assert.Len(t, tok, Length)
		for _, r := range tok {
			assert.Contains(t, alphabet, string(r))
		}
		_, dup := seen[tok]
		assert.False(t, dup, "generated duplicate token %s", tok)
		seen[tok] = struct{}{}
	}
}
