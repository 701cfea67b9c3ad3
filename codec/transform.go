// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec

import "time"

// DateCodec converts dates to and from their wire string form. The
// default is a fixed ISO-8601 profile; callers may supply their own and
// swap it per scope through the coordinator.
type DateCodec interface {
	Encode(t time.Time) string
	Decode(s string) (time.Time, bool)
}

const iso8601Layout = "2006-01-02T15:04:05.000Z07:00"

type iso8601 struct{}

func (iso8601) Encode(t time.Time) string { return t.UTC().Format(iso8601Layout) }

func (iso8601) Decode(s string) (time.Time, bool) {
	if t, err := time.Parse(iso8601Layout, s); err == nil {
		return t, true
	}
	// Tolerate full RFC3339 precision from hand-written or foreign blobs.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ISO8601 returns the default date codec.
func ISO8601() DateCodec { return iso8601{} }

// Cipher transforms the serialized document to and from the stored blob.
// The default is the identity transform.
type Cipher interface {
	Encrypt(plain []byte) (string, error)
	Decrypt(blob string) ([]byte, error)
}

type identityCipher struct{}

func (identityCipher) Encrypt(plain []byte) (string, error) { return string(plain), nil }
func (identityCipher) Decrypt(blob string) ([]byte, error)  { return []byte(blob), nil }

// NoCipher returns the identity transform.
func NoCipher() Cipher { return identityCipher{} }
