// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec

// Wire-format keys. A record blob is a JSON document whose field values
// are one of: scalar, date string, reference descriptor (bare identifier
// string in the current form, {type, identifier} in the legacy/verbose
// form), nested inline document, or a sequence of those.
const (
	// wireStatusKey carries an inline object's own sync status inside
	// its container document.
	wireStatusKey = "_status"

	wireTypeKey    = "type"
	wireIDKey      = "identifier"
	wireFormatKey  = "format"
	wirePayloadKey = "payload"

	// Legacy date descriptor: {type:"transformable", format:"date",
	// payload:"<iso string>"}. Also the current form in positions where
	// the static field type cannot disambiguate a date from a string.
	wireTransformable = "transformable"
	wireDateFormat    = "date"
)

// isRefDescriptor reports whether m is a {type, identifier} reference
// descriptor. The legacy date descriptor carries a third key and never
// matches.
func isRefDescriptor(m map[string]any) (typ, id string, ok bool) {
	if len(m) != 2 {
		return "", "", false
	}
	typ, tok := m[wireTypeKey].(string)
	id, iok := m[wireIDKey].(string)
	if !tok || !iok {
		return "", "", false
	}
	return typ, id, true
}

// isDateDescriptor reports whether m is a structured date descriptor and
// returns its payload.
func isDateDescriptor(m map[string]any) (payload string, ok bool) {
	if t, _ := m[wireTypeKey].(string); t != wireTransformable {
		return "", false
	}
	if f, _ := m[wireFormatKey].(string); f != wireDateFormat {
		return "", false
	}
	payload, ok = m[wirePayloadKey].(string)
	return payload, ok
}
