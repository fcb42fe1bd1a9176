package dicom_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	dicom "github.com/nmargas/dicomstream"
	"github.com/nmargas/dicomstream/dicomio"
	"github.com/nmargas/dicomstream/dicomstop"
	"github.com/nmargas/dicomstream/dicomtag"
	"github.com/nmargas/dicomstream/dicomuid"
)

// codeValueTag, codingSchemeDesignatorTag, and procedureCodeSeqTag
// aren't among dicomtag's declared well-known vars, so tests that need
// an SQ-VR tag and its children look them up by tag number instead.
var (
	codeValueTag              = dicomtag.MustFind(dicomtag.Tag{Group: 0x0008, Element: 0x0100}).Tag
	codingSchemeDesignatorTag = dicomtag.MustFind(dicomtag.Tag{Group: 0x0008, Element: 0x0102}).Tag
	procedureCodeSeqTag       = dicomtag.MustFind(dicomtag.Tag{Group: 0x0032, Element: 0x1064}).Tag
)

// sampleDataSet builds a minimal, but structurally complete, in-memory
// dataset: file-meta group, a handful of scalar elements, a nested SQ,
// and a small PixelData blob. Every test in this file synthesizes its
// own bytes rather than reading a fixture, since this exercise ships
// no sample .dcm files.
func sampleDataSet(transferSyntaxUID string) *dicom.DataSet {
	item := dicom.MustNewElement(dicomtag.Item,
		dicom.MustNewElement(codeValueTag, "T-D0050"),
		dicom.MustNewElement(codingSchemeDesignatorTag, "SRT"),
	)
	sq := dicom.MustNewElement(procedureCodeSeqTag, item)

	return &dicom.DataSet{
		Elements: []*dicom.Element{
			dicom.MustNewElement(dicomtag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.7"),
			dicom.MustNewElement(dicomtag.MediaStorageSOPInstanceUID, "1.2.3.4.5.6.7.8"),
			dicom.MustNewElement(dicomtag.TransferSyntaxUID, transferSyntaxUID),
			dicom.MustNewElement(dicomtag.PatientName, "Doe^Jane"),
			dicom.MustNewElement(dicomtag.PatientID, "ID0001"),
			sq,
			dicom.MustNewElement(dicomtag.PixelData, dicom.PixelDataInfo{
				Frames: [][]byte{{1, 2, 3, 4}},
			}),
		},
	}
}

func roundTrip(t *testing.T, transferSyntaxUID string) *dicom.DataSet {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, sampleDataSet(transferSyntaxUID)))

	ds, err := dicom.ReadDataSet(&buf, dicomstop.NewParseBehavior())
	require.NoError(t, err)
	return ds
}

func TestRoundTripExplicitVRLittleEndian(t *testing.T) {
	ds := roundTrip(t, dicomuid.ExplicitVRLittleEndianUID)

	name, err := ds.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	require.Equal(t, "Doe^Jane", name.MustGetString())

	sq, err := ds.FindElementByTag(procedureCodeSeqTag)
	require.NoError(t, err)
	require.Len(t, sq.Value, 1)
	item, ok := sq.Value[0].(*dicom.Element)
	require.True(t, ok)
	require.Equal(t, dicomtag.Item, item.Tag)

	pixels, err := ds.FindElementByTag(dicomtag.PixelData)
	require.NoError(t, err)
	image, ok := pixels.Value[0].(dicom.PixelDataInfo)
	require.True(t, ok)
	require.Equal(t, [][]byte{{1, 2, 3, 4}}, image.Frames)
}

func TestRoundTripImplicitVRLittleEndian(t *testing.T) {
	ds := roundTrip(t, dicomuid.ImplicitVRLittleEndianUID)
	name, err := ds.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	require.Equal(t, "Doe^Jane", name.MustGetString())
}

func TestRoundTripExplicitVRBigEndian(t *testing.T) {
	ds := roundTrip(t, dicomuid.ExplicitVRBigEndianUID)
	name, err := ds.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	require.Equal(t, "Doe^Jane", name.MustGetString())
}

func TestRoundTripDeflated(t *testing.T) {
	ds := roundTrip(t, dicomuid.DeflatedExplicitVRLittleEndianUID)
	name, err := ds.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	require.Equal(t, "Doe^Jane", name.MustGetString())

	pixels, err := ds.FindElementByTag(dicomtag.PixelData)
	require.NoError(t, err)
	image := pixels.Value[0].(dicom.PixelDataInfo)
	require.Equal(t, [][]byte{{1, 2, 3, 4}}, image.Frames)
}

func TestStopBeforePixelData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, sampleDataSet(dicomuid.ExplicitVRLittleEndianUID)))

	behavior := dicomstop.NewParseBehavior(
		dicomstop.WithStop(dicomstop.AtBeforeTagValue(dicomtag.NewTagPath(dicomtag.PixelData))))
	ds, err := dicom.ReadDataSet(&buf, behavior)
	require.NoError(t, err)

	_, err = ds.FindElementByTag(dicomtag.PatientID)
	require.NoError(t, err)
	_, err = ds.FindElementByTag(dicomtag.PixelData)
	require.Error(t, err)
}

func TestStopAfterTagValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, sampleDataSet(dicomuid.ExplicitVRLittleEndianUID)))

	behavior := dicomstop.NewParseBehavior(
		dicomstop.WithStop(dicomstop.AtAfterTagValue(dicomtag.NewTagPath(dicomtag.PatientID))))
	ds, err := dicom.ReadDataSet(&buf, behavior)
	require.NoError(t, err)

	_, err = ds.FindElementByTag(dicomtag.PatientID)
	require.NoError(t, err)
	_, err = ds.FindElementByTag(procedureCodeSeqTag)
	require.Error(t, err)
}

func TestAllowPartialObjectOnTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, sampleDataSet(dicomuid.ExplicitVRLittleEndianUID)))
	truncated := buf.Bytes()[:buf.Len()-10]

	_, err := dicom.ReadDataSetInBytes(truncated, dicomstop.NewParseBehavior())
	require.Error(t, err)

	behavior := dicomstop.NewParseBehavior(dicomstop.WithAllowPartialObject(true))
	ds, err := dicom.ReadDataSetInBytes(truncated, behavior)
	require.Error(t, err)
	require.NotNil(t, ds)
	_, ferr := ds.FindElementByTag(dicomtag.TransferSyntaxUID)
	require.NoError(t, ferr)
}

func TestHeaderlessDataSetFallback(t *testing.T) {
	e := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ImplicitVR)
	dicom.WriteElement(e, dicom.MustNewElement(dicomtag.PatientName, "Doe^Jane"))
	require.NoError(t, e.Error())

	ds, err := dicom.ReadDataSetInBytes(e.Bytes(), dicomstop.NewParseBehavior())
	require.NoError(t, err)
	name, err := ds.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	require.Equal(t, "Doe^Jane", name.MustGetString())
}

func TestSpecificCharacterSetSwitch(t *testing.T) {
	ds := &dicom.DataSet{
		Elements: []*dicom.Element{
			dicom.MustNewElement(dicomtag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.7"),
			dicom.MustNewElement(dicomtag.MediaStorageSOPInstanceUID, "1.2.3.4.5.6.7.8"),
			dicom.MustNewElement(dicomtag.TransferSyntaxUID, dicomuid.ExplicitVRLittleEndianUID),
			dicom.MustNewElement(dicomtag.SpecificCharacterSet, "ISO_IR 100"),
			dicom.MustNewElement(dicomtag.PatientName, "Müller^Jörg"),
		},
	}
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	out, err := dicom.ReadDataSet(&buf, dicomstop.NewParseBehavior())
	require.NoError(t, err)
	name, err := out.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	require.Equal(t, "Müller^Jörg", name.MustGetString())
}

func TestNewElementRejectsWrongType(t *testing.T) {
	_, err := dicom.NewElement(dicomtag.PatientName, 42)
	require.Error(t, err)
}

func TestUnknownExplicitVRIsFatal(t *testing.T) {
	metaElems := []*dicom.Element{
		dicom.MustNewElement(dicomtag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.7"),
		dicom.MustNewElement(dicomtag.MediaStorageSOPInstanceUID, "1.2.3.4.5.6.7.8"),
		dicom.MustNewElement(dicomtag.TransferSyntaxUID, dicomuid.ExplicitVRLittleEndianUID),
	}
	var buf bytes.Buffer
	e := dicomio.NewEncoder(&buf, nil, dicomio.UnknownVR)
	dicom.WriteFileHeader(e, metaElems)
	require.NoError(t, e.Error())

	// (0010,0010) PatientName, followed by an explicit VR code this
	// codec doesn't recognize.
	buf.Write([]byte{0x10, 0x00, 0x10, 0x00})
	buf.WriteString("ZZ")
	buf.Write([]byte{0x04, 0x00})

	_, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicomstop.NewParseBehavior())
	require.Error(t, err)
	require.ErrorIs(t, err, dicomio.ErrUnknownExplicitVR)
}

func TestFlattenSynthesizesDelimiters(t *testing.T) {
	item := dicom.MustNewElement(dicomtag.Item,
		dicom.MustNewElement(codeValueTag, "T-D0050"),
	)
	item.UndefinedLength = true
	sq := dicom.MustNewElement(procedureCodeSeqTag, item)
	sq.UndefinedLength = true

	ds := &dicom.DataSet{Elements: []*dicom.Element{sq}}
	flat := ds.Flatten()

	var sawItemDelim, sawSeqDelim bool
	for _, e := range flat {
		if e.Tag == dicomtag.ItemDelimitationItem {
			sawItemDelim = true
		}
		if e.Tag == dicomtag.SequenceDelimitationItem {
			sawSeqDelim = true
		}
	}
	require.True(t, sawItemDelim)
	require.True(t, sawSeqDelim)
}
