package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nmargas/dicomstream/dicomio"
	"github.com/nmargas/dicomstream/dicomtag"
	"github.com/nmargas/dicomstream/dicomvr"
)

// WriteFileHeader writes a DICOM Part 10 file header: the 128-byte
// preamble, "DICM" magic, and the Explicit-VR-Little-Endian file-meta
// group built from metaElements. metaElements must all have
// Tag.Group==dicomtag.MetadataGroup, and must include at least
// TransferSyntaxUID, MediaStorageSOPClassUID, and
// MediaStorageSOPInstanceUID.
//
// Errors are reported through e.Error().
func WriteFileHeader(e *dicomio.Encoder, metaElements []*Element) {
	e.PushTransferSyntax(binary.LittleEndian, dicomio.ExplicitVR)
	defer e.PopTransferSyntax()

	subEncoder := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)

	tagsUsed := make(map[dicomtag.Tag]bool)
	tagsUsed[dicomtag.FileMetaInformationGroupLength] = true

	writeRequiredMetaElement := func(tag dicomtag.Tag) {
		if elem, err := FindElementByTag(metaElements, tag); err == nil {
			WriteElement(subEncoder, elem)
		} else {
			subEncoder.SetErrorf("%v not found in metaElements: %v", dicomtag.DebugString(tag), err)
		}
		tagsUsed[tag] = true
	}

	writeOptionalMetaElement := func(tag dicomtag.Tag, defaultValue interface{}) {
		if elem, err := FindElementByTag(metaElements, tag); err == nil {
			WriteElement(subEncoder, elem)
		} else {
			WriteElement(subEncoder, MustNewElement(tag, defaultValue))
		}
		tagsUsed[tag] = true
	}

	writeOptionalMetaElement(dicomtag.FileMetaInformationVersion, []byte{0, 1})
	writeRequiredMetaElement(dicomtag.MediaStorageSOPClassUID)
	writeRequiredMetaElement(dicomtag.MediaStorageSOPInstanceUID)
	writeRequiredMetaElement(dicomtag.TransferSyntaxUID)
	writeOptionalMetaElement(dicomtag.ImplementationClassUID, GoDICOMImplementationClassUID)
	writeOptionalMetaElement(dicomtag.ImplementationVersionName, GoDICOMImplementationVersionName)

	for _, elem := range metaElements {
		if elem.Tag.Group == dicomtag.MetadataGroup {
			if _, ok := tagsUsed[elem.Tag]; !ok {
				WriteElement(subEncoder, elem)
			}
		}
	}

	if subEncoder.Error() != nil {
		e.SetError(subEncoder.Error())
		return
	}
	metaBytes := subEncoder.Bytes()

	e.WriteZeros(128)
	e.WriteString("DICM")
	WriteElement(e, MustNewElement(dicomtag.FileMetaInformationGroupLength, uint32(len(metaBytes))))
	e.WriteBytes(metaBytes)
}

func writeRawItem(e *dicomio.Encoder, data []byte) {
	encodeElementHeader(e, dicomtag.Item, "NA", uint32(len(data)))
	e.WriteBytes(data)
}

func writeBasicOffsetTable(e *dicomio.Encoder, offsets []uint32) {
	byteOrder, _ := e.TransferSyntax()
	subEncoder := dicomio.NewBytesEncoder(byteOrder, dicomio.ImplicitVR)
	for _, offset := range offsets {
		subEncoder.WriteUInt32(offset)
	}
	writeRawItem(e, subEncoder.Bytes())
}

// encodeElementHeader writes a tag, its VR (if the current transfer
// syntax is explicit), and its value length, using dicomvr to decide
// between explicit VR's 2-byte and 4-byte length framing.
func encodeElementHeader(e *dicomio.Encoder, tag dicomtag.Tag, vr string, vl uint32) {
	dicomio.DoAssert(vl == UndefinedLength || vl%2 == 0, vl)

	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)

	_, implicit := e.TransferSyntax()
	if tag.Group == ItemSeqGroup {
		implicit = dicomio.ImplicitVR
	}

	if implicit == dicomio.ExplicitVR {
		dicomio.DoAssert(len(vr) == 2, vr)
		e.WriteString(vr)

		if info, err := dicomvr.Lookup(vr); err == nil && info.Has4ByteLength {
			e.WriteZeros(2) // reserved
			e.WriteUInt32(vl)
		} else {
			e.WriteUInt16(uint16(vl))
		}
	} else {
		dicomio.DoAssert(implicit == dicomio.ImplicitVR, implicit)
		e.WriteUInt32(vl)
	}
}

// WriteElement encodes one data element. Errors are reported through
// e.Error(). Every value in elem.Value must match the VR of elem.Tag;
// see Element.Value's doc comment for the VR-to-Go-type mapping.
func WriteElement(e *dicomio.Encoder, elem *Element) {
	vr := elem.VR
	entry, err := dicomtag.Find(elem.Tag)

	if vr == "" {
		if err == nil {
			vr = entry.VR
		} else {
			vr = "UN"
		}
	} else if err == nil && entry.VR != vr {
		if dicomtag.GetVRKind(elem.Tag, entry.VR) != dicomtag.GetVRKind(elem.Tag, vr) {
			e.SetErrorf("dicom.WriteElement: VR mismatch for tag %s: element has %v, dictionary has %v",
				dicomtag.DebugString(elem.Tag), vr, entry.VR)
			return
		}
		logrus.Warnf("dicom.WriteElement: VR mismatch for tag %s: element has %v, dictionary has %v (continuing)",
			dicomtag.DebugString(elem.Tag), vr, entry.VR)
	}
	dicomio.DoAssert(vr != "", vr)

	switch {
	case elem.Tag == dicomtag.PixelData:
		writePixelData(e, elem, vr)

	case vr == "SQ":
		writeSQ(e, elem, vr)

	case elem.Tag == dicomtag.Item:
		writeItem(e, elem, vr)

	default:
		if elem.UndefinedLength {
			e.SetErrorf("dicom.WriteElement: undefined length is not supported for VR %s: %v", vr, elem)
			return
		}
		byteOrder, _ := e.TransferSyntax()
		raw, verr := encodeValue(elem.Tag, vr, elem.Value, byteOrder, e.EncodingSystem())
		if verr != nil {
			e.SetError(verr)
			return
		}
		encodeElementHeader(e, elem.Tag, vr, uint32(len(raw)))
		e.WriteBytes(raw)
	}
}

func writePixelData(e *dicomio.Encoder, elem *Element, vr string) {
	if len(elem.Value) != 1 {
		e.SetErrorf("%v: PixelData element must have exactly one PixelDataInfo value", dicomtag.DebugString(elem.Tag))
		return
	}
	image, ok := elem.Value[0].(PixelDataInfo)
	if !ok {
		e.SetErrorf("%v: PixelData element's value must be a PixelDataInfo", dicomtag.DebugString(elem.Tag))
		return
	}

	if elem.UndefinedLength {
		encodeElementHeader(e, elem.Tag, vr, UndefinedLength)
		writeBasicOffsetTable(e, image.Offsets)
		for _, frame := range image.Frames {
			writeRawItem(e, frame)
		}
		encodeElementHeader(e, dicomtag.SequenceDelimitationItem, "", 0)
		return
	}

	if len(image.Frames) != 1 {
		e.SetErrorf("%v: defined-length PixelData must have exactly one frame, found %d", dicomtag.DebugString(elem.Tag), len(image.Frames))
		return
	}
	encodeElementHeader(e, elem.Tag, vr, uint32(len(image.Frames[0])))
	e.WriteBytes(image.Frames[0])
}

func writeSQ(e *dicomio.Encoder, elem *Element, vr string) {
	if elem.UndefinedLength {
		encodeElementHeader(e, elem.Tag, vr, UndefinedLength)
		for _, value := range elem.Value {
			subelem, ok := value.(*Element)
			if !ok || subelem.Tag != dicomtag.Item {
				e.SetErrorf("%v: every SQ value must be an Item, found %v", dicomtag.DebugString(elem.Tag), value)
				return
			}
			WriteElement(e, subelem)
		}
		encodeElementHeader(e, dicomtag.SequenceDelimitationItem, "", 0)
		return
	}

	sube := dicomio.NewBytesEncoder(e.TransferSyntax())
	sube.SetEncodingSystem(e.EncodingSystem())
	for _, value := range elem.Value {
		subelem, ok := value.(*Element)
		if !ok || subelem.Tag != dicomtag.Item {
			e.SetErrorf("%v: every SQ value must be an Item, found %v", dicomtag.DebugString(elem.Tag), value)
			return
		}
		WriteElement(sube, subelem)
	}
	if sube.Error() != nil {
		e.SetError(sube.Error())
		return
	}
	raw := sube.Bytes()
	encodeElementHeader(e, elem.Tag, vr, uint32(len(raw)))
	e.WriteBytes(raw)
}

func writeItem(e *dicomio.Encoder, elem *Element, vr string) {
	if elem.UndefinedLength {
		encodeElementHeader(e, elem.Tag, vr, UndefinedLength)
		for _, value := range elem.Value {
			subelem, ok := value.(*Element)
			if !ok {
				e.SetErrorf("%v: every Item value must be an Element, found %v", dicomtag.DebugString(elem.Tag), value)
				return
			}
			WriteElement(e, subelem)
		}
		encodeElementHeader(e, dicomtag.ItemDelimitationItem, "", 0)
		return
	}

	sube := dicomio.NewBytesEncoder(e.TransferSyntax())
	sube.SetEncodingSystem(e.EncodingSystem())
	for _, value := range elem.Value {
		subelem, ok := value.(*Element)
		if !ok {
			e.SetErrorf("%v: every Item value must be an Element, found %v", dicomtag.DebugString(elem.Tag), value)
			return
		}
		WriteElement(sube, subelem)
	}
	if sube.Error() != nil {
		e.SetError(sube.Error())
		return
	}
	raw := sube.Bytes()
	encodeElementHeader(e, elem.Tag, vr, uint32(len(raw)))
	e.WriteBytes(raw)
}

// WriteDataSet writes ds to out in DICOM Part 10 format: the magic
// header and file-meta group, followed by the dataset proper encoded
// in the transfer syntax ds's TransferSyntaxUID element names. If that
// transfer syntax is the deflated variant, the dataset body (but not
// the file-meta group) is DEFLATE-compressed, per PS3.5 A.5.
func WriteDataSet(out io.Writer, ds *DataSet) error {
	e := dicomio.NewEncoder(out, nil, dicomio.UnknownVR)
	var metaElems []*Element
	for _, elem := range ds.Elements {
		if elem.Tag.Group == dicomtag.MetadataGroup {
			metaElems = append(metaElems, elem)
		}
	}
	WriteFileHeader(e, metaElems)
	if e.Error() != nil {
		return e.Error()
	}

	tsElem, err := ds.FindElementByTag(dicomtag.TransferSyntaxUID)
	if err != nil {
		return err
	}
	tsUID, err := tsElem.GetString()
	if err != nil {
		return err
	}
	endian, implicit, err := dicomio.ParseTransferSyntaxUID(tsUID)
	if err != nil {
		return err
	}

	if !dicomio.IsDeflated(tsUID) {
		return writeDataElements(e, ds, endian, implicit)
	}

	var body bytes.Buffer
	be := dicomio.NewEncoder(&body, endian, implicit)
	if err := writeDataElements(be, ds, endian, implicit); err != nil {
		return err
	}
	fw := flate.NewWriter(out, flate.DefaultCompression)
	if _, err := fw.Write(body.Bytes()); err != nil {
		return err
	}
	return fw.Close()
}

func writeDataElements(e *dicomio.Encoder, ds *DataSet, endian binary.ByteOrder, implicit dicomio.IsImplicitVR) error {
	e.PushTransferSyntax(endian, implicit)
	defer e.PopTransferSyntax()
	for _, elem := range ds.Elements {
		if elem.Tag.Group == dicomtag.MetadataGroup {
			continue
		}
		if elem.Tag == dicomtag.SpecificCharacterSet {
			names, serr := elem.GetStrings()
			if serr == nil {
				if es, perr := dicomio.ParseSpecificCharacterSetForEncoding(names); perr == nil {
					e.SetEncodingSystem(es)
				}
			}
		}
		WriteElement(e, elem)
	}
	return e.Error()
}

// WriteDataSetToFile writes ds to path, creating it (or truncating an
// existing file) first.
func WriteDataSetToFile(path string, ds *DataSet) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDataSet(out, ds); err != nil {
		out.Close() // nolint: errcheck
		return err
	}
	return out.Close()
}
