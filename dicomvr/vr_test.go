package dicomvr_test

import (
	"testing"

	"github.com/nmargas/dicomstream/dicomvr"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownVRs(t *testing.T) {
	ob, err := dicomvr.Lookup("OB")
	require.NoError(t, err)
	require.True(t, ob.Has4ByteLength)
	require.False(t, ob.IsCharacterString)

	pn, err := dicomvr.Lookup("PN")
	require.NoError(t, err)
	require.False(t, pn.Has4ByteLength)
	require.True(t, pn.IsCharacterString)
	require.EqualValues(t, ' ', pn.Padding)

	us, err := dicomvr.Lookup("US")
	require.NoError(t, err)
	require.False(t, us.Has4ByteLength)
	require.False(t, us.IsCharacterString)
}

func TestLookupUnknownVR(t *testing.T) {
	_, err := dicomvr.Lookup("ZZ")
	require.Error(t, err)
	require.False(t, dicomvr.IsValid("ZZ"))
	require.True(t, dicomvr.IsValid("SQ"))
}

func TestMustLookupPanics(t *testing.T) {
	require.Panics(t, func() { dicomvr.MustLookup("ZZ") })
}
