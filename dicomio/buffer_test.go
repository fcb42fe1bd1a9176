package dicomio_test

import (
	"encoding/binary"
	"testing"

	"github.com/nmargas/dicomstream/dicomio"
	"github.com/nmargas/dicomstream/dicomtag"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	e.WriteUInt16(0x0010)
	e.WriteUInt16(0x0010)
	e.WriteUInt32(42)
	e.WriteString("PN")
	require.NoError(t, e.Error())

	d := dicomio.NewBytesDecoder(e.Bytes(), binary.LittleEndian, dicomio.ExplicitVR)
	require.Equal(t, uint16(0x0010), d.ReadUInt16())
	require.Equal(t, uint16(0x0010), d.ReadUInt16())
	require.Equal(t, uint32(42), d.ReadUInt32())
	require.Equal(t, "PN", d.ReadString(2))
	require.NoError(t, d.Finish())
}

func TestPushPopLimit(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	d := dicomio.NewBytesDecoder(data, binary.LittleEndian, dicomio.ExplicitVR)
	d.PushLimit(2)
	require.False(t, d.EOF())
	_ = d.ReadByte()
	_ = d.ReadByte()
	require.True(t, d.EOF())
	d.PopLimit()
	require.False(t, d.EOF())
	require.Equal(t, int64(2), d.BytesRead())
}

func TestPushPopTransferSyntax(t *testing.T) {
	d := dicomio.NewBytesDecoder(nil, binary.LittleEndian, dicomio.ExplicitVR)
	order, implicit := d.TransferSyntax()
	require.Equal(t, binary.LittleEndian, order)
	require.Equal(t, dicomio.ExplicitVR, implicit)

	d.PushTransferSyntax(binary.BigEndian, dicomio.ImplicitVR)
	order, implicit = d.TransferSyntax()
	require.Equal(t, binary.BigEndian, order)
	require.Equal(t, dicomio.ImplicitVR, implicit)

	d.PopTransferSyntax()
	order, implicit = d.TransferSyntax()
	require.Equal(t, binary.LittleEndian, order)
	require.Equal(t, dicomio.ExplicitVR, implicit)
}

func TestReadTagOrEOFAtBoundary(t *testing.T) {
	d := dicomio.NewBytesDecoder(nil, binary.LittleEndian, dicomio.ExplicitVR)
	_, err := d.ReadTagOrEOF()
	require.ErrorIs(t, err, dicomio.ErrExpectedEOF)
}

func TestReadTagOrEOFMidElement(t *testing.T) {
	// Two bytes is not enough for a full (group, element) tag pair.
	d := dicomio.NewBytesDecoder([]byte{0x10, 0x00}, binary.LittleEndian, dicomio.ExplicitVR)
	_, err := d.ReadTagOrEOF()
	require.Error(t, err)
	require.False(t, errIsExpectedEOF(err))
}

func TestReadTagOrEOFSuccess(t *testing.T) {
	e := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	e.WriteUInt16(0x0010)
	e.WriteUInt16(0x0020)
	d := dicomio.NewBytesDecoder(e.Bytes(), binary.LittleEndian, dicomio.ExplicitVR)
	tag, err := d.ReadTagOrEOF()
	require.NoError(t, err)
	require.Equal(t, dicomtag.Tag{Group: 0x0010, Element: 0x0020}, tag)
}

func errIsExpectedEOF(err error) bool {
	return err == dicomio.ErrExpectedEOF
}

func TestSkip(t *testing.T) {
	d := dicomio.NewBytesDecoder([]byte{1, 2, 3, 4}, binary.LittleEndian, dicomio.ExplicitVR)
	d.Skip(2)
	require.Equal(t, byte(3), d.ReadByte())
	require.NoError(t, d.Error())
}
