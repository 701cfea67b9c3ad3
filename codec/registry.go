// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

// Package codec turns registered Go object graphs into flat opaque-blob
// records and back. Types are registered once with an explicit identity
// mode; registration builds the per-type field-mapping table so encode and
// decode never enumerate struct fields at runtime.
package codec

import (
	"reflect"
	"sync"
	"time"

	shaleerr "github.com/shale-db/shale/pkg/errors"
)

// tagName is the struct tag controlling wire keys: `shale:"wire_key"`,
// `shale:"-"` to skip a field. Untagged exported fields use the Go name.
const tagName = "shale"

var timeType = reflect.TypeOf(time.Time{})

// Registry maps registered type names to their Go types and field tables.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*TypeInfo
	byType map[reflect.Type]*TypeInfo
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*TypeInfo),
		byType: make(map[reflect.Type]*TypeInfo),
	}
}

// TypeInfo holds everything the codec knows about one registered type.
type TypeInfo struct {
	name     string
	goType   reflect.Type // the struct type, never a pointer
	identity *fieldInfo   // nil for anonymous types
	hashed   bool
	fields   []fieldInfo
}

// Name returns the registered wire name of the type.
func (info *TypeInfo) Name() string { return info.name }

// Identified reports whether values of this type carry a durable identifier.
func (info *TypeInfo) Identified() bool { return info.identity != nil }

type fieldKind int

const (
	kindScalar fieldKind = iota
	kindDate
	kindObject
	kindSlice
	kindAny
)

type fieldInfo struct {
	name  string // Go field name
	key   string // wire key
	index int
	typ   reflect.Type
	kind  fieldKind
}

type registerConfig struct {
	identityField string
	contentHash   bool
}

// RegisterOption configures one Register call.
type RegisterOption func(*registerConfig)

// WithIdentity marks the type as Identified: goFieldName names the struct
// field holding the durable identifier. The field must be a string or
// *string; an empty or nil value at encode time fails the operation.
func WithIdentity(goFieldName string) RegisterOption {
	return func(cfg *registerConfig) { cfg.identityField = goFieldName }
}

// WithContentHash marks the type as anonymous-hashable: records are keyed
// by a content-derived hash, so structurally equal values collapse to one
// record. Ignored when WithIdentity is also given.
func WithContentHash() RegisterOption {
	return func(cfg *registerConfig) { cfg.contentHash = true }
}

// Register adds a type under the given wire name. prototype is a value or
// pointer of the type, e.g. Register("Person", Person{}, WithIdentity("ID")).
// Types registered with neither identity nor content hash are inline-only:
// they serialize inside their container and never get their own record.
func (r *Registry) Register(name string, prototype any, opts ...RegisterOption) error {
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return shaleerr.New(shaleerr.CodeRegistryFieldInvalid,
			"prototype must be a struct or pointer to struct",
			shaleerr.FieldRecordType(name))
	}

	info := &TypeInfo{
		name:   name,
		goType: t,
		hashed: cfg.contentHash,
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := sf.Tag.Get(tagName)
		if key == "-" {
			continue
		}
		if key == "" {
			key = sf.Name
		}
		info.fields = append(info.fields, fieldInfo{
			name:  sf.Name,
			key:   key,
			index: i,
			typ:   sf.Type,
			kind:  kindOf(sf.Type),
		})
	}

	if cfg.identityField != "" {
		f := info.fieldByName(cfg.identityField)
		if f == nil {
			return shaleerr.New(shaleerr.CodeRegistryFieldInvalid,
				"identity field does not exist or is not serializable",
				shaleerr.FieldRecordType(name),
				shaleerr.Field("field", cfg.identityField))
		}
		if !identityFieldType(f.typ) {
			return shaleerr.New(shaleerr.CodeRegistryFieldInvalid,
				"identity field must be string or *string",
				shaleerr.FieldRecordType(name),
				shaleerr.Field("field", cfg.identityField))
		}
		info.identity = f
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return shaleerr.New(shaleerr.CodeRegistryTypeConflict,
			"type name already registered", shaleerr.FieldRecordType(name))
	}
	if prev, ok := r.byType[t]; ok {
		return shaleerr.New(shaleerr.CodeRegistryTypeConflict,
			"go type already registered",
			shaleerr.FieldRecordType(prev.name),
			shaleerr.Field("go_type", t.String()))
	}

	r.byName[name] = info
	r.byType[t] = info
	return nil
}

// Lookup resolves a registered type by wire name.
func (r *Registry) Lookup(name string) (*TypeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byName[name]
	if !ok {
		return nil, shaleerr.New(shaleerr.CodeRegistryTypeUnknown,
			"type not registered", shaleerr.FieldRecordType(name))
	}
	return info, nil
}

// LookupGoType resolves a registered type by its Go struct type.
func (r *Registry) LookupGoType(t reflect.Type) (*TypeInfo, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byType[t]
	if !ok {
		return nil, shaleerr.New(shaleerr.CodeRegistryTypeUnknown,
			"go type not registered", shaleerr.Field("go_type", t.String()))
	}
	return info, nil
}

func (info *TypeInfo) fieldByName(name string) *fieldInfo {
	for i := range info.fields {
		if info.fields[i].name == name {
			return &info.fields[i]
		}
	}
	return nil
}

func identityFieldType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String
}

// kindOf classifies a static field type once, at registration.
func kindOf(t reflect.Type) fieldKind {
	switch {
	case t == timeType:
		return kindDate
	case t.Kind() == reflect.Pointer:
		return kindOf(t.Elem())
	case t.Kind() == reflect.Struct:
		return kindObject
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		return kindSlice
	case t.Kind() == reflect.Interface:
		return kindAny
	default:
		return kindScalar
	}
}
