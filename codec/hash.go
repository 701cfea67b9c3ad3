// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	shaleerr "github.com/shale-db/shale/pkg/errors"
)

// contentDomain separates shale content hashes from any other use of the
// same canonical bytes. The version suffix allows future algorithm
// migration.
const contentDomain = "shale/content/v1"

// contentKeyPrefix tags content-derived record identifiers so they can
// never collide with caller-chosen durable identifiers.
const contentKeyPrefix = "sha256:"

// ContentKey derives the record identifier for an anonymous-hashable
// document: SHA-256 over domain + 0x00 + canonical JSON. The null
// separator prevents domain/data boundary ambiguity.
func ContentKey(doc map[string]any) (string, error) {
	canonical, err := marshalCanonical(doc)
	if err != nil {
		return "", shaleerr.Wrap(err, shaleerr.CodeCodecDocumentInvalid,
			"canonicalizing document for content hash")
	}

	h := sha256.New()
	h.Write([]byte(contentDomain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return contentKeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// IsContentKey reports whether id is a content-derived key.
func IsContentKey(id string) bool {
	return strings.HasPrefix(id, contentKeyPrefix)
}
