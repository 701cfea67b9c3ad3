// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shale-db/shale/codec"
)

func TestISO8601RoundTrip(t *testing.T) {
	dates := codec.ISO8601()
	in := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

	s := dates.Encode(in)
	assert.Equal(t, "2026-03-14T09:26:53.589Z", s)

	out, ok := dates.Decode(s)
	require.True(t, ok)
	assert.True(t, in.Equal(out))
}

func TestISO8601TruncatesSubMillisecond(t *testing.T) {
	dates := codec.ISO8601()
	in := time.Date(2026, 3, 14, 9, 26, 53, 589_123_456, time.UTC)

	out, ok := dates.Decode(dates.Encode(in))
	require.True(t, ok)
	assert.True(t, out.Sub(in).Abs() < time.Millisecond)
}

func TestISO8601NormalisesToUTC(t *testing.T) {
	dates := codec.ISO8601()
	loc := time.FixedZone("plus2", 2*3600)
	in := time.Date(2026, 3, 14, 11, 0, 0, 0, loc)

	s := dates.Encode(in)
	assert.Equal(t, "2026-03-14T09:00:00.000Z", s)
}

func TestISO8601DecodesFullPrecision(t *testing.T) {
	dates := codec.ISO8601()

	out, ok := dates.Decode("2026-03-14T09:26:53.589123456Z")
	require.True(t, ok)
	assert.Equal(t, 589_123_456, out.Nanosecond())
}

func TestISO8601RejectsGarbage(t *testing.T) {
	dates := codec.ISO8601()

	_, ok := dates.Decode("not a date")
	assert.False(t, ok)
	_, ok = dates.Decode("")
	assert.False(t, ok)
}

func TestNoCipherIsIdentity(t *testing.T) {
	c := codec.NoCipher()

	blob, err := c.Encrypt([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, blob)

	plain, err := c.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), plain)
}
