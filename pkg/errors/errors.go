// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

// Package errors provides structured, code-tagged errors for shale built on
// samber/oops. Every error carries a dotted machine-readable Code whose last
// segment classifies the failure reason.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeRecordFetchNotFound   Code = "record.fetch.not_found"
	CodeRecordBlobCorrupt     Code = "record.blob.corrupt"
	CodeRecordDatabaseFailure Code = "record.database.failure"
	CodeRecordTxFailure       Code = "record.transaction.failure"

	CodeCodecReferenceDangling   Code = "codec.reference.dangling"
	CodeCodecIdentityMissing     Code = "codec.identity.missing"
	CodeCodecIdentityUnsupported Code = "codec.identity.unsupported"
	CodeCodecDocumentInvalid     Code = "codec.document.invalid"
	CodeCodecDateInvalid         Code = "codec.date.invalid"
	CodeCodecCipherFailure       Code = "codec.cipher.failure"

	CodeRegistryTypeUnknown  Code = "registry.type.unknown"
	CodeRegistryTypeConflict Code = "registry.type.conflict"
	CodeRegistryFieldInvalid Code = "registry.field.invalid_value"

	CodeMigrateConvertFailure Code = "migrate.convert.failure"

	CodeConfigLoadFailure          Code = "config.load.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeInternalFailure Code = "internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// FieldRecordType tags an error with the record type involved.
func FieldRecordType(value string) Attr {
	return Field("record_type", value)
}

// FieldIdentifier tags an error with the record identifier involved.
func FieldIdentifier(value string) Attr {
	return Field("identifier", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, preserving its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsNotFound reports whether err classifies a direct lookup miss.
func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

// IsDanglingReference reports whether err is an unresolved in-graph reference.
func IsDanglingReference(err error) bool {
	return HasCode(err, CodeCodecReferenceDangling)
}

// IsMissingIdentity reports whether an identified object lacked its
// identifier value at encode time.
func IsMissingIdentity(err error) bool {
	return HasCode(err, CodeCodecIdentityMissing)
}

// IsUnsupportedIdentity reports whether an object was neither identified nor
// hashable where identity was required.
func IsUnsupportedIdentity(err error) bool {
	return HasCode(err, CodeCodecIdentityUnsupported)
}

// IsCorrupt reports whether a record was found but its blob was absent or
// unreadable.
func IsCorrupt(err error) bool {
	return reason(CodeOf(err)) == "corrupt"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_value" || r == "invalid_format"
}

func Join(errs ...error) error {
	return oops.Code(CodeInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
