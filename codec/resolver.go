// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec

import (
	"reflect"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

// Class is the identity mode resolved for one graph node.
type Class int

const (
	// ClassIdentified nodes carry a durable identifier and own a record;
	// containers embed only a reference.
	ClassIdentified Class = iota

	// ClassHashed nodes own a record keyed by a content-derived hash, so
	// structurally equal values collapse.
	ClassHashed

	// ClassInline nodes have no record of their own; they serialize
	// inside their container.
	ClassInline
)

// Classify resolves the identity mode for v, a value of info's Go type.
// Identified wins over hashed when both apply. An identified value whose
// identifier is empty or nil fails hard; it is never demoted to anonymous.
func (info *TypeInfo) Classify(v reflect.Value) (Class, string, error) {
	if info.identity != nil {
		id, ok := identityValue(v.Field(info.identity.index))
		if !ok {
			return 0, "", shaleerr.New(shaleerr.CodeCodecIdentityMissing,
				"identified object has no identifier value",
				shaleerr.FieldRecordType(info.name),
				shaleerr.Field("field", info.identity.name))
		}
		return ClassIdentified, id, nil
	}
	if info.hashed {
		return ClassHashed, "", nil
	}
	return ClassInline, "", nil
}

func identityValue(fv reflect.Value) (string, bool) {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return "", false
		}
		fv = fv.Elem()
	}
	id := fv.String()
	return id, id != ""
}

// StatusCarrier is implemented by objects that track their own sync
// status. The codec persists the carried status with the object's record
// (or inline, inside the container blob) and reapplies it on decode.
type StatusCarrier interface {
	SyncStatus() record.SyncStatus
	SetSyncStatus(record.SyncStatus)
}
