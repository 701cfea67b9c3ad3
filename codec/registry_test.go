// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shale-db/shale/codec"
	shaleerr "github.com/shale-db/shale/pkg/errors"
)

func TestRegisterAndLookup(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, reg.Register("Person", Person{}, codec.WithIdentity("ID")))

	info, err := reg.Lookup("Person")
	require.NoError(t, err)
	assert.Equal(t, "Person", info.Name())
	assert.True(t, info.Identified())

	byType, err := reg.LookupGoType(typeOf(&Person{}))
	require.NoError(t, err)
	assert.Same(t, info, byType)
}

func TestRegisterAcceptsPointerPrototype(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, reg.Register("Person", &Person{}, codec.WithIdentity("ID")))

	_, err := reg.Lookup("Person")
	require.NoError(t, err)
}

func TestRegisterRejectsNonStruct(t *testing.T) {
	reg := codec.NewRegistry()
	err := reg.Register("Number", 42)
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryFieldInvalid, shaleerr.CodeOf(err))
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, reg.Register("Person", Person{}, codec.WithIdentity("ID")))

	err := reg.Register("Person", Pet{}, codec.WithIdentity("ID"))
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryTypeConflict, shaleerr.CodeOf(err))
}

func TestRegisterRejectsDuplicateGoType(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, reg.Register("Person", Person{}, codec.WithIdentity("ID")))

	err := reg.Register("Human", Person{}, codec.WithIdentity("ID"))
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryTypeConflict, shaleerr.CodeOf(err))
}

func TestRegisterRejectsUnknownIdentityField(t *testing.T) {
	reg := codec.NewRegistry()
	err := reg.Register("Person", Person{}, codec.WithIdentity("Nope"))
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryFieldInvalid, shaleerr.CodeOf(err))
}

func TestRegisterRejectsNonStringIdentityField(t *testing.T) {
	type counted struct {
		N int
	}
	reg := codec.NewRegistry()
	err := reg.Register("Counted", counted{}, codec.WithIdentity("N"))
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryFieldInvalid, shaleerr.CodeOf(err))
}

func TestLookupUnknownType(t *testing.T) {
	reg := codec.NewRegistry()

	_, err := reg.Lookup("Ghost")
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryTypeUnknown, shaleerr.CodeOf(err))

	_, err = reg.LookupGoType(typeOf(Person{}))
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryTypeUnknown, shaleerr.CodeOf(err))
}
