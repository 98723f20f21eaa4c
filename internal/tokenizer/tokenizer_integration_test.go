//go:build integration

package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs network access on first run to fetch the BPE ranks.
func TestEncode_Integration(t *testing.T) {
	enc, err := Load(DefaultName)
	if err != nil {
		t.Skipf("Encoding not available: %v", err)
	}
	assert.Equal(t, DefaultName, enc.Name())

	ids, err := enc.Encode("Hello world", 128)
	require.NoError(t, err)
	assert.NotEmpty(t, ids)

	long := strings.Repeat("token ", 500)
	ids, err = enc.Encode(long, 128)
	require.NoError(t, err)
	assert.Len(t, ids, 128)

	_, err = enc.Encode(string([]byte{0xff, 0xfe}), 128)
	assert.ErrorIs(t, err, ErrEncode)
}
