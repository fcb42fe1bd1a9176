package dicomuid_test

import (
	"testing"

	"github.com/nmargas/dicomstream/dicomuid"
	"github.com/stretchr/testify/require"
)

func TestLookupTransferSyntax(t *testing.T) {
	ts, err := dicomuid.LookupTransferSyntax(dicomuid.ImplicitVRLittleEndianUID)
	require.NoError(t, err)
	require.True(t, ts.ImplicitVR)
	require.False(t, ts.BigEndian)
	require.False(t, ts.Deflated)

	ts, err = dicomuid.LookupTransferSyntax(dicomuid.DeflatedExplicitVRLittleEndianUID)
	require.NoError(t, err)
	require.False(t, ts.ImplicitVR)
	require.True(t, ts.Deflated)

	_, err = dicomuid.LookupTransferSyntax("1.2.3.4.5.not.real")
	require.Error(t, err)
}

func TestIsEncapsulated(t *testing.T) {
	require.False(t, dicomuid.IsEncapsulated(dicomuid.ExplicitVRLittleEndianUID))
	require.True(t, dicomuid.IsEncapsulated(dicomuid.JPEGBaselineUID))
}

func TestLookupUID(t *testing.T) {
	info, err := dicomuid.LookupUID("1.2.840.10008.5.1.4.1.1.2")
	require.NoError(t, err)
	require.Equal(t, "CT Image Storage", info.Name)
	require.Equal(t, "SOP Class", info.Type)

	info, err = dicomuid.LookupUID(dicomuid.ExplicitVRLittleEndianUID)
	require.NoError(t, err)
	require.Equal(t, "Transfer Syntax", info.Type)
}
