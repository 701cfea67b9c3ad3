// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec

import (
	"context"
	"reflect"
	"time"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

// Encoder writes object graphs into records. One Encoder snapshot is
// built per public operation so scoped policy overrides never race.
type Encoder struct {
	reg    *Registry
	dates  DateCodec
	cipher Cipher
}

// NewEncoder creates an encoder. A nil dates or cipher selects the
// default ISO-8601 codec and identity transform.
func NewEncoder(reg *Registry, dates DateCodec, cipher Cipher) *Encoder {
	if dates == nil {
		dates = ISO8601()
	}
	if cipher == nil {
		cipher = NoCipher()
	}
	return &Encoder{reg: reg, dates: dates, cipher: cipher}
}

// Store encodes v and writes its record inside tx. Every identified or
// hashable node reachable from v gets its own record as a side effect;
// containers embed references in their place. Returns the root handle.
func (e *Encoder) Store(ctx context.Context, tx record.Tx, v any) (record.Handle, error) {
	s := newEncodeSession(e, tx, false)
	rv, orig, err := rootValue(v)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, rv, orig)
}

// EncodeBlob encodes v and returns its blob without touching v's own
// record. Nested identified and hashable nodes are still written. The
// migration bridge uses this to overwrite a relabeled record in place.
func (e *Encoder) EncodeBlob(ctx context.Context, tx record.Tx, v any) (string, error) {
	s := newEncodeSession(e, tx, false)
	rv, _, err := rootValue(v)
	if err != nil {
		return "", err
	}

	info, err := e.reg.LookupGoType(rv.Type())
	if err != nil {
		return "", err
	}
	class, id, err := info.Classify(rv)
	if err != nil {
		return "", err
	}
	if class == ClassIdentified {
		// The root's own record is managed by the caller; self-references
		// must short-circuit into plain reference emission.
		s.visited[refKey{typ: info.name, id: id}] = true
	}

	doc, err := s.encodeDoc(ctx, rv, info)
	if err != nil {
		return "", err
	}
	return s.serialize(doc)
}

// Key computes the record key for v without writing anything: the
// declared identifier for identified values, the content hash for
// hashable values. Inline-only values have no key.
func (e *Encoder) Key(ctx context.Context, v any) (typ, id string, err error) {
	s := newEncodeSession(e, nil, true)
	rv, _, err := rootValue(v)
	if err != nil {
		return "", "", err
	}

	info, err := e.reg.LookupGoType(rv.Type())
	if err != nil {
		return "", "", err
	}
	class, declared, err := info.Classify(rv)
	if err != nil {
		return "", "", err
	}

	switch class {
	case ClassIdentified:
		return info.name, declared, nil
	case ClassHashed:
		doc, err := s.encodeDoc(ctx, rv, info)
		if err != nil {
			return "", "", err
		}
		key, err := ContentKey(doc)
		if err != nil {
			return "", "", err
		}
		return info.name, key, nil
	default:
		return "", "", shaleerr.New(shaleerr.CodeCodecIdentityUnsupported,
			"inline-only object has no record key",
			shaleerr.FieldRecordType(info.name))
	}
}

type refKey struct {
	typ string
	id  string
}

type encodeSession struct {
	enc *Encoder
	tx  record.Tx

	// dry sessions compute keys and documents without writing records.
	dry bool

	// visited marks identified nodes already stored in this call so
	// cyclic graphs terminate: a revisit emits only the reference.
	visited map[refKey]bool

	// visiting guards against pointer cycles through anonymous nodes,
	// which have no reference form and cannot be represented.
	visiting map[uintptr]bool
}

func newEncodeSession(e *Encoder, tx record.Tx, dry bool) *encodeSession {
	return &encodeSession{
		enc:      e,
		tx:       tx,
		dry:      dry,
		visited:  make(map[refKey]bool),
		visiting: make(map[uintptr]bool),
	}
}

func rootValue(v any) (reflect.Value, any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, nil, shaleerr.New(shaleerr.CodeCodecDocumentInvalid,
				"cannot encode nil pointer")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, nil, shaleerr.New(shaleerr.CodeCodecDocumentInvalid,
			"can only encode structs or pointers to structs",
			shaleerr.Field("go_type", rv.Kind().String()))
	}
	return rv, v, nil
}

// store writes rv's record and returns its handle. orig is the caller's
// original value, kept for status-carrier access.
func (s *encodeSession) store(ctx context.Context, rv reflect.Value, orig any) (record.Handle, error) {
	info, err := s.enc.reg.LookupGoType(rv.Type())
	if err != nil {
		return nil, err
	}

	class, id, err := info.Classify(rv)
	if err != nil {
		return nil, err
	}

	switch class {
	case ClassIdentified:
		k := refKey{typ: info.name, id: id}
		if s.visited[k] {
			return s.tx.Upsert(ctx, info.name, id)
		}
		s.visited[k] = true

		doc, err := s.encodeDoc(ctx, rv, info)
		if err != nil {
			return nil, err
		}
		return s.write(ctx, info.name, id, doc, carrierOf(orig, addrOf(rv)))

	case ClassHashed:
		doc, err := s.encodeDoc(ctx, rv, info)
		if err != nil {
			return nil, err
		}
		key, err := ContentKey(doc)
		if err != nil {
			return nil, err
		}
		return s.write(ctx, info.name, key, doc, carrierOf(orig, addrOf(rv)))

	default:
		return nil, shaleerr.New(shaleerr.CodeCodecIdentityUnsupported,
			"object is neither identified nor hashable; it can only live inside a container",
			shaleerr.FieldRecordType(info.name))
	}
}

func (s *encodeSession) write(ctx context.Context, typ, id string, doc map[string]any, carrier StatusCarrier) (record.Handle, error) {
	blob, err := s.serialize(doc)
	if err != nil {
		return nil, err
	}

	h, err := s.tx.Upsert(ctx, typ, id)
	if err != nil {
		return nil, err
	}
	if err := h.SetBlob(blob); err != nil {
		return nil, err
	}
	if carrier != nil {
		if st := carrier.SyncStatus(); st != "" && st != record.StatusUndetermined {
			if err := h.SetSyncStatus(st); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

func (s *encodeSession) serialize(doc map[string]any) (string, error) {
	plain, err := jsonNoEscape(doc)
	if err != nil {
		return "", shaleerr.Wrap(err, shaleerr.CodeCodecDocumentInvalid,
			"serializing document")
	}
	blob, err := s.enc.cipher.Encrypt(plain)
	if err != nil {
		return "", shaleerr.Wrap(err, shaleerr.CodeCodecCipherFailure,
			"encrypting blob")
	}
	return blob, nil
}

func (s *encodeSession) encodeDoc(ctx context.Context, rv reflect.Value, info *TypeInfo) (map[string]any, error) {
	doc := make(map[string]any, len(info.fields))
	for i := range info.fields {
		f := &info.fields[i]
		wire, ok, err := s.encodeField(ctx, rv.Field(f.index), f)
		if err != nil {
			return nil, shaleerr.With(err,
				shaleerr.FieldRecordType(info.name),
				shaleerr.Field("wire_key", f.key))
		}
		if ok {
			doc[f.key] = wire
		}
	}
	return doc, nil
}

func (s *encodeSession) encodeField(ctx context.Context, fv reflect.Value, f *fieldInfo) (any, bool, error) {
	switch f.kind {
	case kindDate:
		fv, ok := derefField(fv)
		if !ok {
			return nil, false, nil
		}
		t := fv.Interface().(time.Time)
		if t.IsZero() {
			return nil, false, nil
		}
		return s.enc.dates.Encode(t), true, nil

	case kindObject:
		ptr := fieldPointer(fv)
		fv, ok := derefField(fv)
		if !ok {
			return nil, false, nil
		}
		wire, err := s.encodeNested(ctx, fv, ptr, false)
		if err != nil {
			return nil, false, err
		}
		return wire, true, nil

	case kindSlice:
		fv, ok := derefField(fv)
		if !ok {
			return nil, false, nil
		}
		if fv.Kind() == reflect.Slice && fv.IsNil() {
			return nil, false, nil
		}
		ambiguous := fv.Type().Elem().Kind() == reflect.Interface
		arr := make([]any, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			wire, err := s.encodeElem(ctx, fv.Index(i), ambiguous)
			if err != nil {
				return nil, false, err
			}
			arr = append(arr, wire)
		}
		return arr, true, nil

	case kindAny:
		if fv.IsNil() {
			return nil, false, nil
		}
		wire, err := s.encodeElem(ctx, fv.Elem(), true)
		if err != nil {
			return nil, false, err
		}
		return wire, true, nil

	default:
		fv, ok := derefField(fv)
		if !ok {
			return nil, false, nil
		}
		if fv.Kind() == reflect.Map && fv.IsNil() {
			return nil, false, nil
		}
		return fv.Interface(), true, nil
	}
}

// encodeElem encodes one dynamically-typed value: a slice element or the
// content of an interface field. In ambiguous positions the static type
// cannot guide decoding, so references use the verbose descriptor and
// dates the structured descriptor.
func (s *encodeSession) encodeElem(ctx context.Context, ev reflect.Value, ambiguous bool) (any, error) {
	if ev.Kind() == reflect.Interface {
		if ev.IsNil() {
			return nil, nil
		}
		ev = ev.Elem()
	}

	ptr := fieldPointer(ev)
	ev, ok := derefField(ev)
	if !ok {
		return nil, nil
	}

	switch {
	case ev.Type() == timeType:
		t := ev.Interface().(time.Time)
		if ambiguous {
			return map[string]any{
				wireTypeKey:    wireTransformable,
				wireFormatKey:  wireDateFormat,
				wirePayloadKey: s.enc.dates.Encode(t),
			}, nil
		}
		return s.enc.dates.Encode(t), nil

	case ev.Kind() == reflect.Struct:
		return s.encodeNested(ctx, ev, ptr, ambiguous)

	case ev.Kind() == reflect.Slice || ev.Kind() == reflect.Array:
		arr := make([]any, 0, ev.Len())
		for i := 0; i < ev.Len(); i++ {
			wire, err := s.encodeElem(ctx, ev.Index(i), ambiguous)
			if err != nil {
				return nil, err
			}
			arr = append(arr, wire)
		}
		return arr, nil

	default:
		return ev.Interface(), nil
	}
}

// encodeNested emits the wire value standing in for a nested object:
// a reference for identified and hashed nodes (stored as a side effect),
// the inline document for inline nodes.
func (s *encodeSession) encodeNested(ctx context.Context, rv reflect.Value, ptr uintptr, ambiguous bool) (any, error) {
	info, err := s.enc.reg.LookupGoType(rv.Type())
	if err != nil {
		// Unregistered structs pass through as plain values.
		return rv.Interface(), nil
	}

	class, id, err := info.Classify(rv)
	if err != nil {
		return nil, err
	}

	switch class {
	case ClassIdentified:
		if !s.dry {
			if _, err := s.store(ctx, rv, addrOf(rv)); err != nil {
				return nil, err
			}
		}
		if ambiguous {
			return map[string]any{wireTypeKey: info.name, wireIDKey: id}, nil
		}
		return id, nil

	case ClassHashed:
		release, err := s.enterAnonymous(ptr, info)
		if err != nil {
			return nil, err
		}
		defer release()

		doc, err := s.encodeDoc(ctx, rv, info)
		if err != nil {
			return nil, err
		}
		key, err := ContentKey(doc)
		if err != nil {
			return nil, err
		}
		if !s.dry {
			if _, err := s.write(ctx, info.name, key, doc, carrierOf(addrOf(rv))); err != nil {
				return nil, err
			}
		}
		if ambiguous {
			return map[string]any{wireTypeKey: info.name, wireIDKey: key}, nil
		}
		return key, nil

	default:
		if ambiguous {
			return nil, shaleerr.New(shaleerr.CodeCodecDocumentInvalid,
				"inline object in a position without static type information",
				shaleerr.FieldRecordType(info.name))
		}

		release, err := s.enterAnonymous(ptr, info)
		if err != nil {
			return nil, err
		}
		defer release()

		doc, err := s.encodeDoc(ctx, rv, info)
		if err != nil {
			return nil, err
		}
		if carrier := carrierOf(addrOf(rv)); carrier != nil {
			if st := carrier.SyncStatus(); st != "" && st != record.StatusUndetermined {
				doc[wireStatusKey] = string(st)
			}
		}
		return doc, nil
	}
}

// enterAnonymous guards against pointer cycles through anonymous nodes:
// unlike identified nodes they have no reference form to break the loop.
func (s *encodeSession) enterAnonymous(ptr uintptr, info *TypeInfo) (func(), error) {
	if ptr == 0 {
		return func() {}, nil
	}
	if s.visiting[ptr] {
		return nil, shaleerr.New(shaleerr.CodeCodecDocumentInvalid,
			"cycle through an anonymous object cannot be encoded",
			shaleerr.FieldRecordType(info.name))
	}
	s.visiting[ptr] = true
	return func() { delete(s.visiting, ptr) }, nil
}

// derefField unwraps pointer fields; ok is false for nil pointers.
func derefField(fv reflect.Value) (reflect.Value, bool) {
	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return fv, false
		}
		fv = fv.Elem()
	}
	return fv, true
}

// fieldPointer returns the pointer identity of a field value when it has
// one, for anonymous-cycle detection.
func fieldPointer(fv reflect.Value) uintptr {
	if fv.Kind() == reflect.Pointer && !fv.IsNil() {
		return fv.Pointer()
	}
	return 0
}

// addrOf returns a pointer interface to rv when addressable, so optional
// interfaces with pointer receivers are honored.
func addrOf(rv reflect.Value) any {
	if rv.CanAddr() {
		return rv.Addr().Interface()
	}
	if rv.IsValid() && rv.CanInterface() {
		return rv.Interface()
	}
	return nil
}

// carrierOf returns the first candidate implementing StatusCarrier.
func carrierOf(candidates ...any) StatusCarrier {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if carrier, ok := c.(StatusCarrier); ok {
			return carrier
		}
	}
	return nil
}
