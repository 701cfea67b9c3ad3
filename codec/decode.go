// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

// Decoder reconstructs object graphs from records. A direct lookup miss
// is a soft absence; a reference that cannot be resolved while walking a
// graph is a hard consistency fault.
type Decoder struct {
	reg    *Registry
	dates  DateCodec
	cipher Cipher
}

// NewDecoder creates a decoder. A nil dates or cipher selects the
// default ISO-8601 codec and identity transform.
func NewDecoder(reg *Registry, dates DateCodec, cipher Cipher) *Decoder {
	if dates == nil {
		dates = ISO8601()
	}
	if cipher == nil {
		cipher = NoCipher()
	}
	return &Decoder{reg: reg, dates: dates, cipher: cipher}
}

// Retrieve decodes the record under (typeName, id). A missing record
// returns (nil, nil).
func (d *Decoder) Retrieve(ctx context.Context, tx record.Tx, typeName, id string) (any, error) {
	info, err := d.reg.Lookup(typeName)
	if err != nil {
		return nil, err
	}

	h, err := tx.Fetch(ctx, typeName, id)
	if err != nil {
		return nil, shaleerr.Wrap(err, shaleerr.CodeRecordDatabaseFailure, "fetching record",
			shaleerr.FieldRecordType(typeName), shaleerr.FieldIdentifier(id))
	}
	if h == nil {
		return nil, nil
	}

	s := newDecodeSession(d, tx)
	pv, err := s.decodeHandle(ctx, h, info)
	if err != nil {
		return nil, err
	}
	return pv.Interface(), nil
}

// RetrieveAll decodes every record of the given type.
func (d *Decoder) RetrieveAll(ctx context.Context, tx record.Tx, typeName string) ([]any, error) {
	info, err := d.reg.Lookup(typeName)
	if err != nil {
		return nil, err
	}

	hs, err := tx.FetchAll(ctx, typeName)
	if err != nil {
		return nil, shaleerr.Wrap(err, shaleerr.CodeRecordDatabaseFailure, "listing records",
			shaleerr.FieldRecordType(typeName))
	}

	s := newDecodeSession(d, tx)
	out := make([]any, 0, len(hs))
	for _, h := range hs {
		pv, err := s.decodeHandle(ctx, h, info)
		if err != nil {
			return nil, err
		}
		out = append(out, pv.Interface())
	}
	return out, nil
}

// DecodeHandle decodes one already-fetched record, resolving its type by
// the record's type tag. Used by status queries and the migration bridge.
func (d *Decoder) DecodeHandle(ctx context.Context, tx record.Tx, h record.Handle) (any, error) {
	info, err := d.reg.Lookup(h.Type())
	if err != nil {
		return nil, err
	}

	s := newDecodeSession(d, tx)
	pv, err := s.decodeHandle(ctx, h, info)
	if err != nil {
		return nil, err
	}
	return pv.Interface(), nil
}

// DecodeHandleAs decodes one record into the named registered type,
// regardless of the record's own tag. The migration bridge uses this to
// read legacy-shaped blobs into the current type.
func (d *Decoder) DecodeHandleAs(ctx context.Context, tx record.Tx, h record.Handle, typeName string) (any, error) {
	info, err := d.reg.Lookup(typeName)
	if err != nil {
		return nil, err
	}

	s := newDecodeSession(d, tx)
	pv, err := s.decodeHandle(ctx, h, info)
	if err != nil {
		return nil, err
	}
	return pv.Interface(), nil
}

type decodeSession struct {
	dec *Decoder
	tx  record.Tx

	// cache holds decoded identified/hashed nodes by key, terminating
	// cycles and sharing instances within one call.
	cache map[refKey]reflect.Value
}

func newDecodeSession(d *Decoder, tx record.Tx) *decodeSession {
	return &decodeSession{dec: d, tx: tx, cache: make(map[refKey]reflect.Value)}
}

// decodeHandle materialises a record into a *T reflect value.
func (s *decodeSession) decodeHandle(ctx context.Context, h record.Handle, info *TypeInfo) (reflect.Value, error) {
	k := refKey{typ: h.Type(), id: h.ID()}
	if pv, ok := s.cache[k]; ok {
		return pv, nil
	}

	blob, err := h.Blob()
	if err != nil {
		return reflect.Value{}, shaleerr.Wrap(err, shaleerr.CodeRecordDatabaseFailure,
			"reading blob", shaleerr.FieldRecordType(k.typ), shaleerr.FieldIdentifier(k.id))
	}
	if blob == "" {
		return reflect.Value{}, shaleerr.New(shaleerr.CodeRecordBlobCorrupt,
			"record has no blob",
			shaleerr.FieldRecordType(k.typ), shaleerr.FieldIdentifier(k.id))
	}

	plain, err := s.dec.cipher.Decrypt(blob)
	if err != nil {
		return reflect.Value{}, shaleerr.Wrap(err, shaleerr.CodeRecordBlobCorrupt,
			"decrypting blob", shaleerr.FieldRecordType(k.typ), shaleerr.FieldIdentifier(k.id))
	}

	var doc map[string]any
	if err := json.Unmarshal(plain, &doc); err != nil {
		return reflect.Value{}, shaleerr.Wrap(err, shaleerr.CodeRecordBlobCorrupt,
			"parsing blob", shaleerr.FieldRecordType(k.typ), shaleerr.FieldIdentifier(k.id))
	}

	pv := reflect.New(info.goType)
	// Cache before walking fields so cycles resolve to this instance.
	s.cache[k] = pv

	if info.identity != nil {
		setIdentity(pv.Elem().Field(info.identity.index), h.ID())
	}

	if err := s.decodeDoc(ctx, doc, pv.Elem(), info); err != nil {
		return reflect.Value{}, err
	}

	if carrier := carrierOf(pv.Interface()); carrier != nil {
		st, err := h.SyncStatus()
		if err != nil {
			return reflect.Value{}, shaleerr.Wrap(err, shaleerr.CodeRecordDatabaseFailure,
				"reading sync status", shaleerr.FieldRecordType(k.typ), shaleerr.FieldIdentifier(k.id))
		}
		carrier.SetSyncStatus(st)
	}

	return pv, nil
}

func (s *decodeSession) decodeDoc(ctx context.Context, doc map[string]any, rv reflect.Value, info *TypeInfo) error {
	for i := range info.fields {
		f := &info.fields[i]
		wire, ok := doc[f.key]
		if !ok || wire == nil {
			continue
		}
		if err := s.assign(ctx, wire, rv.Field(f.index)); err != nil {
			return shaleerr.With(err,
				shaleerr.FieldRecordType(info.name),
				shaleerr.Field("wire_key", f.key))
		}
	}
	return nil
}

// assign decodes one wire value into a settable destination, guided by
// the destination's static type.
func (s *decodeSession) assign(ctx context.Context, wire any, fv reflect.Value) error {
	switch kindOf(fv.Type()) {
	case kindDate:
		t, err := s.decodeDate(wire)
		if err != nil {
			return err
		}
		return setThroughPointer(fv, reflect.ValueOf(t))

	case kindObject:
		return s.assignObject(ctx, wire, fv)

	case kindSlice:
		arr, ok := wire.([]any)
		if !ok {
			return shaleerr.New(shaleerr.CodeCodecDocumentInvalid,
				"expected a sequence", shaleerr.Field("wire_value", wire))
		}
		for fv.Kind() == reflect.Pointer {
			fv.Set(reflect.New(fv.Type().Elem()))
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Array {
			if len(arr) > fv.Type().Len() {
				return shaleerr.New(shaleerr.CodeCodecDocumentInvalid,
					"sequence does not fit the array field",
					shaleerr.Field("wire_len", len(arr)),
					shaleerr.Field("array_len", fv.Type().Len()))
			}
			av := reflect.New(fv.Type()).Elem()
			for i, elem := range arr {
				if elem == nil {
					continue
				}
				if err := s.assign(ctx, elem, av.Index(i)); err != nil {
					return err
				}
			}
			fv.Set(av)
			return nil
		}
		sl := reflect.MakeSlice(fv.Type(), len(arr), len(arr))
		for i, elem := range arr {
			if elem == nil {
				continue
			}
			if err := s.assign(ctx, elem, sl.Index(i)); err != nil {
				return err
			}
		}
		fv.Set(sl)
		return nil

	case kindAny:
		v, err := s.decodeDynamic(ctx, wire)
		if err != nil {
			return err
		}
		if v != nil {
			fv.Set(reflect.ValueOf(v))
		}
		return nil

	default:
		return assignScalar(wire, fv)
	}
}

// assignObject resolves the wire value for a struct-typed destination:
// a reference (current bare string or legacy descriptor) for identified
// and hashed types, an inline document otherwise. References resolve by
// the destination's registered tag, not any embedded tag, so relabeled
// records keep working mid-migration.
func (s *decodeSession) assignObject(ctx context.Context, wire any, fv reflect.Value) error {
	t := fv.Type()
	isPtr := t.Kind() == reflect.Pointer
	st := t
	if isPtr {
		st = t.Elem()
	}

	info, err := s.dec.reg.LookupGoType(st)
	if err != nil {
		// Unregistered structs were stored as plain values.
		return assignScalar(wire, fv)
	}

	var pv reflect.Value
	switch w := wire.(type) {
	case string:
		pv, err = s.resolveRef(ctx, info, w)
		if err != nil {
			return err
		}

	case map[string]any:
		if _, id, ok := isRefDescriptor(w); ok {
			pv, err = s.resolveRef(ctx, info, id)
			if err != nil {
				return err
			}
		} else {
			pv = reflect.New(st)
			if err := s.decodeDoc(ctx, w, pv.Elem(), info); err != nil {
				return err
			}
			if raw, ok := w[wireStatusKey].(string); ok {
				if carrier := carrierOf(pv.Interface()); carrier != nil {
					carrier.SetSyncStatus(record.SyncStatus(raw))
				}
			}
		}

	default:
		return shaleerr.New(shaleerr.CodeCodecDocumentInvalid,
			"expected a reference or document",
			shaleerr.FieldRecordType(info.name), shaleerr.Field("wire_value", wire))
	}

	if isPtr {
		fv.Set(pv)
	} else {
		fv.Set(pv.Elem())
	}
	return nil
}

// resolveRef fetches and decodes a referenced record. A missing target is
// a hard consistency fault, unlike a root lookup miss.
func (s *decodeSession) resolveRef(ctx context.Context, info *TypeInfo, id string) (reflect.Value, error) {
	k := refKey{typ: info.name, id: id}
	if pv, ok := s.cache[k]; ok {
		return pv, nil
	}

	h, err := s.tx.Fetch(ctx, info.name, id)
	if err != nil {
		return reflect.Value{}, shaleerr.Wrap(err, shaleerr.CodeRecordDatabaseFailure,
			"fetching referenced record",
			shaleerr.FieldRecordType(info.name), shaleerr.FieldIdentifier(id))
	}
	if h == nil {
		return reflect.Value{}, shaleerr.New(shaleerr.CodeCodecReferenceDangling,
			"reference to a record that does not exist",
			shaleerr.FieldRecordType(info.name), shaleerr.FieldIdentifier(id))
	}
	return s.decodeHandle(ctx, h, info)
}

// decodeDate accepts the current plain string form first, then the legacy
// structured descriptor, then fails.
func (s *decodeSession) decodeDate(wire any) (time.Time, error) {
	switch w := wire.(type) {
	case string:
		if t, ok := s.dec.dates.Decode(w); ok {
			return t, nil
		}
	case map[string]any:
		if payload, ok := isDateDescriptor(w); ok {
			if t, ok := s.dec.dates.Decode(payload); ok {
				return t, nil
			}
		}
	}
	return time.Time{}, shaleerr.New(shaleerr.CodeCodecDateInvalid,
		"unparseable date value", shaleerr.Field("wire_value", wire))
}

// decodeDynamic reconstructs a value in a position with no static type:
// descriptors become references or dates, everything else passes through.
func (s *decodeSession) decodeDynamic(ctx context.Context, wire any) (any, error) {
	switch w := wire.(type) {
	case map[string]any:
		if typ, id, ok := isRefDescriptor(w); ok {
			info, err := s.dec.reg.Lookup(typ)
			if err != nil {
				return nil, err
			}
			pv, err := s.resolveRef(ctx, info, id)
			if err != nil {
				return nil, err
			}
			return pv.Interface(), nil
		}
		if _, ok := isDateDescriptor(w); ok {
			return s.decodeDate(w)
		}
		return w, nil

	case []any:
		out := make([]any, 0, len(w))
		for _, elem := range w {
			v, err := s.decodeDynamic(ctx, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	default:
		return wire, nil
	}
}

func setIdentity(fv reflect.Value, id string) {
	if fv.Kind() == reflect.Pointer {
		fv.Set(reflect.New(fv.Type().Elem()))
		fv = fv.Elem()
	}
	fv.SetString(id)
}

// setThroughPointer sets v into fv, allocating when fv is a pointer.
func setThroughPointer(fv, v reflect.Value) error {
	if fv.Kind() == reflect.Pointer {
		fv.Set(reflect.New(fv.Type().Elem()))
		fv = fv.Elem()
	}
	fv.Set(v)
	return nil
}

// assignScalar sets a JSON-decoded wire value into a scalar destination,
// converting through encoding/json when the types do not line up
// directly (e.g. float64 into an int field).
func assignScalar(wire any, fv reflect.Value) error {
	if fv.Kind() == reflect.Pointer {
		fv.Set(reflect.New(fv.Type().Elem()))
		fv = fv.Elem()
	}

	wv := reflect.ValueOf(wire)
	if !wv.IsValid() {
		return nil
	}
	if wv.Type().AssignableTo(fv.Type()) {
		fv.Set(wv)
		return nil
	}
	if wv.Kind() == reflect.Float64 && isNumeric(fv.Kind()) {
		fv.Set(wv.Convert(fv.Type()))
		return nil
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return shaleerr.Wrap(err, shaleerr.CodeCodecDocumentInvalid, "re-encoding scalar")
	}
	if err := json.Unmarshal(raw, fv.Addr().Interface()); err != nil {
		return shaleerr.Wrap(err, shaleerr.CodeCodecDocumentInvalid, "decoding scalar",
			shaleerr.Field("go_type", fv.Type().String()))
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
