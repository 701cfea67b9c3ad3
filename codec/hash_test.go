// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shale-db/shale/codec"
)

func TestContentKeyIsDeterministic(t *testing.T) {
	a := map[string]any{"street": "1 Main St", "city": "Springfield", "zip": 12345}
	b := map[string]any{"zip": 12345, "city": "Springfield", "street": "1 Main St"}

	ka, err := codec.ContentKey(a)
	require.NoError(t, err)
	kb, err := codec.ContentKey(b)
	require.NoError(t, err)

	assert.Equal(t, ka, kb, "key order must not affect the content key")
	assert.True(t, codec.IsContentKey(ka))
	assert.Len(t, ka, len("sha256:")+64)
}

func TestContentKeyNormalisesUnicode(t *testing.T) {
	// "é" composed vs decomposed.
	composed := map[string]any{"name": "Café"}
	decomposed := map[string]any{"name": "Café"}

	kc, err := codec.ContentKey(composed)
	require.NoError(t, err)
	kd, err := codec.ContentKey(decomposed)
	require.NoError(t, err)
	assert.Equal(t, kc, kd)
}

func TestContentKeyDistinguishesDocuments(t *testing.T) {
	ka, err := codec.ContentKey(map[string]any{"city": "Springfield"})
	require.NoError(t, err)
	kb, err := codec.ContentKey(map[string]any{"city": "Shelbyville"})
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}

func TestContentKeyHandlesNestedValues(t *testing.T) {
	doc := map[string]any{
		"tags":   []any{"a", "b", map[string]any{"k": true}},
		"nested": map[string]any{"n": nil},
	}
	k, err := codec.ContentKey(doc)
	require.NoError(t, err)
	assert.True(t, codec.IsContentKey(k))
}

func TestIsContentKey(t *testing.T) {
	assert.False(t, codec.IsContentKey("sam"))
	assert.False(t, codec.IsContentKey(""))
	assert.True(t, codec.IsContentKey("sha256:abc"))
}
