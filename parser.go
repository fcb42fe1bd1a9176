package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nmargas/dicomstream/dicomio"
	"github.com/nmargas/dicomstream/dicomlog"
	"github.com/nmargas/dicomstream/dicomstop"
	"github.com/nmargas/dicomstream/dicomtag"
	"github.com/nmargas/dicomstream/dicomvr"
)

// ErrNotDicom marks a stream with no 128-byte preamble and "DICM"
// magic. ReadDataSet treats it as a signal to fall back to a
// headerless Implicit VR Little Endian dataset read, rather than a
// fatal error — some PACS exports and most DICOMDIR-adjacent fragments
// omit Part 10's outer wrapper entirely.
var ErrNotDicom = errors.New("dicom: no preamble/DICM magic found")

// ErrMissingFileMetaGroupLength is returned when the first element
// after the "DICM" magic isn't (0002,0000), the file-meta group length
// PS3.10 7.1 requires every Part 10 stream to lead with.
var ErrMissingFileMetaGroupLength = errors.New("dicom: expected (0002,0000) group length element")

// parser threads a dicomstop.ParseBehavior and its "should I stop now"
// verdict through the recursive descent over a dataset's elements,
// sequences, and items.
type parser struct {
	behavior dicomstop.ParseBehavior
	stopped  bool
}

func newParser(behavior dicomstop.ParseBehavior) *parser {
	return &parser{behavior: behavior}
}

// ParseFileHeader reads the 128-byte preamble, the "DICM" magic, and
// the Explicit-VR-Little-Endian file-meta group (tag group 2) from d.
// It returns ErrNotDicom, checkable with errors.Is, if the magic is
// missing; no bytes are consumed from d in that case, since the check
// is done with PeekBytes.
func ParseFileHeader(d *dicomio.Decoder) ([]*Element, error) {
	head := d.PeekBytes(132)
	if len(head) < 132 || string(head[128:132]) != "DICM" {
		return nil, ErrNotDicom
	}

	d.PushTransferSyntax(binary.LittleEndian, dicomio.ExplicitVR)
	defer d.PopTransferSyntax()

	d.Skip(128)
	d.Skip(4) // "DICM", already verified above

	metaElement := readElementAt(d, nil, nil, -1)
	if err := d.Error(); err != nil {
		return nil, err
	}
	if metaElement.Tag != dicomtag.FileMetaInformationGroupLength {
		return nil, fmt.Errorf("%w: found %s", ErrMissingFileMetaGroupLength, metaElement.Tag.String())
	}
	metaLength, err := metaElement.GetUInt32()
	if err != nil {
		return nil, fmt.Errorf("dicom: malformed (0002,0000) group length: %w", err)
	}
	if d.EOF() {
		return nil, errors.New("dicom: no data element found after file-meta group length")
	}

	metaElems := []*Element{metaElement}
	d.PushLimit(int64(metaLength))
	defer d.PopLimit()
	for !d.EOF() {
		elem := readElementAt(d, nil, nil, -1)
		if d.Error() != nil {
			break
		}
		metaElems = append(metaElems, elem)
		dicomlog.Vprintf(1, "dicom.ParseFileHeader: meta element %v, pos %v\n", elem.String(), d.BytesRead())
	}
	if err := d.Error(); err != nil {
		return nil, err
	}
	return metaElems, nil
}

func pathWith(parent []dicomtag.TagNode, node dicomtag.TagNode) []dicomtag.TagNode {
	path := make([]dicomtag.TagNode, len(parent)+1)
	copy(path, parent)
	path[len(parent)] = node
	return path
}

// readElementAt reads one element (and, recursively, its SQ/Item
// children) starting at d's current position. parentPath is the
// sequence of tags (and, for items, their 1-based index within the
// enclosing sequence) that led here; itemIndex is this element's own
// item index if it's an Item directly inside a sequence, or -1
// otherwise. It returns nil if a BeforeTagValue stop fires exactly at
// this element, in which case p.stopped is set.
func readElementAt(d *dicomio.Decoder, p *parser, parentPath []dicomtag.TagNode, itemIndex int) *Element {
	tag := readTag(d)
	return readElementWithTag(d, p, parentPath, itemIndex, tag)
}

// readElementWithTag is readElementAt for a caller that has already
// consumed the element's tag, such as ReadDataSet's top-level loop,
// which reads the tag itself via Decoder.ReadTagOrEOF to distinguish a
// clean end-of-dataset from a truncated read.
func readElementWithTag(d *dicomio.Decoder, p *parser, parentPath []dicomtag.TagNode, itemIndex int, tag dicomtag.Tag) *Element {
	node := dicomtag.NewTagNode(tag)
	if itemIndex >= 0 && tag == dicomtag.Item {
		node = dicomtag.NewItemNode(tag, itemIndex)
	}
	path := pathWith(parentPath, node)

	if p != nil && p.behavior.Stop().Kind() == dicomstop.BeforeTagValue &&
		p.behavior.Stop().Evaluate(dicomtag.TagPath{Nodes: path}) {
		p.stopped = true
		return nil
	}

	// Group 0xFFFE (Item and its delimiters) is always Implicit VR,
	// regardless of the dataset's declared transfer syntax. PS3.6 7.5.
	_, implicit := d.TransferSyntax()
	if tag.Group == ItemSeqGroup {
		implicit = dicomio.ImplicitVR
	}

	var vr string
	var vl uint32
	if implicit == dicomio.ImplicitVR {
		vr, vl = readImplicit(d, tag)
	} else {
		dicomio.DoAssert(implicit == dicomio.ExplicitVR, implicit)
		vr, vl = readExplicit(d, tag)
	}

	elem := &Element{
		Tag:             tag,
		VR:              vr,
		UndefinedLength: vl == UndefinedLength,
	}

	nonStandardSeq := isNonStandardSeq(vr, vl)
	if nonStandardSeq {
		// PS3.5 6.2.2 allows UN (and, by the same reasoning, the other
		// "bytes" VRs) with an undefined length; such an element is in
		// fact a private-tag sequence that must be parsed as Implicit
		// VR Little Endian, same as dcmpipe's is_non_standard_seq.
		vr = "SQ"
		elem.VR = vr
	}

	var data []interface{}

	switch {
	case tag == dicomtag.PixelData:
		data = readPixelData(d, vl)

	case vr == "SQ":
		data = readSQChildren(d, p, path, vl, nonStandardSeq)

	case tag == dicomtag.Item:
		data = readItemChildren(d, p, path, vl)

	default:
		if vl == UndefinedLength {
			d.SetErrorf("dicom.ReadElement: undefined length disallowed for VR=%s, tag %s", vr, dicomtag.DebugString(tag))
			return nil
		}
		d.PushLimit(int64(vl))
		byteOrder, _ := d.TransferSyntax()
		raw := d.ReadBytes(int(vl))
		d.PopLimit()
		if d.Error() != nil {
			return nil
		}
		values, err := decodeValue(tag, vr, raw, byteOrder, d.CodingSystem())
		if err != nil {
			d.SetError(err)
			return nil
		}
		data = values
	}

	if d.Error() != nil {
		return nil
	}

	elem.Value = data

	if p != nil && p.behavior.Stop().Kind() == dicomstop.AfterTagValue &&
		p.behavior.Stop().Evaluate(dicomtag.TagPath{Nodes: path}) {
		p.stopped = true
	}

	return elem
}

// isNonStandardSeq reports whether a "bytes" VR with an undefined
// length should be reinterpreted as a private-tag sequence rather than
// a literal (and unterminated) byte blob.
func isNonStandardSeq(vr string, vl uint32) bool {
	if vl != UndefinedLength {
		return false
	}
	switch vr {
	case "UN", "OB", "OF", "OW":
		return true
	default:
		return false
	}
}

// readSQChildren reads a sequence's items, recursing with an
// incrementing item index so nested dicomstop.ParseBehavior targets
// can pin an exact item occurrence. A non-standard (UN/OB/OF/OW
// reinterpreted) sequence is forced to Implicit VR Little Endian for
// its contents, same as group 0xFFFE elements.
func readSQChildren(d *dicomio.Decoder, p *parser, path []dicomtag.TagNode, vl uint32, nonStandardSeq bool) []interface{} {
	if nonStandardSeq {
		d.PushTransferSyntax(binary.LittleEndian, dicomio.ImplicitVR)
		defer d.PopTransferSyntax()
	}

	var data []interface{}

	if vl == UndefinedLength {
		for i := 1; ; i++ {
			if p != nil && p.stopped {
				break
			}
			item := readElementAt(d, p, path, i)
			if d.Error() != nil {
				break
			}
			if p != nil && p.stopped {
				break
			}
			if item.Tag == dicomtag.SequenceDelimitationItem {
				break
			}
			if item.Tag != dicomtag.Item {
				d.SetErrorf("dicom.ReadElement: found non-Item element in seq w/ undefined length: %v", dicomtag.DebugString(item.Tag))
				break
			}
			data = append(data, item)
		}
	} else {
		d.PushLimit(int64(vl))
		for i := 1; !d.EOF(); i++ {
			if p != nil && p.stopped {
				break
			}
			item := readElementAt(d, p, path, i)
			if d.Error() != nil {
				break
			}
			if p != nil && p.stopped {
				break
			}
			if item.Tag != dicomtag.Item {
				d.SetErrorf("dicom.ReadElement: found non-Item element in seq w/ defined length: %v", dicomtag.DebugString(item.Tag))
				break
			}
			data = append(data, item)
		}
		d.PopLimit()
	}
	return data
}

// readItemChildren reads the elements nested inside a single sequence
// Item.
func readItemChildren(d *dicomio.Decoder, p *parser, path []dicomtag.TagNode, vl uint32) []interface{} {
	var data []interface{}
	if vl == UndefinedLength {
		for {
			if p != nil && p.stopped {
				break
			}
			subelem := readElementAt(d, p, path, -1)
			if d.Error() != nil {
				break
			}
			if p != nil && p.stopped {
				break
			}
			if subelem.Tag == dicomtag.ItemDelimitationItem {
				break
			}
			data = append(data, subelem)
		}
	} else {
		d.PushLimit(int64(vl))
		for !d.EOF() {
			if p != nil && p.stopped {
				break
			}
			subelem := readElementAt(d, p, path, -1)
			if d.Error() != nil {
				break
			}
			if p != nil && p.stopped {
				break
			}
			data = append(data, subelem)
		}
		d.PopLimit()
	}
	return data
}

// readPixelData reads the PixelData element's frames. P3.5 A.4
// describes the encapsulated format this codec supports:
//
//	Item(BasicOffsetTable) Item(Frame0) ... Item(FrameN) SequenceDelimitationItem
func readPixelData(d *dicomio.Decoder, vl uint32) []interface{} {
	var data []interface{}
	if vl == UndefinedLength {
		var image PixelDataInfo
		image.Offsets = readBasicOffsetTable(d)
		if len(image.Offsets) > 1 {
			logrus.Warnf("dicom.ReadElement: multiple images not fully supported, combining into a byte sequence: %v", image.Offsets)
		}
		for !d.EOF() {
			chunk, endOfItems := readRawItem(d)
			if d.Error() != nil {
				break
			}
			if endOfItems {
				break
			}
			image.Frames = append(image.Frames, chunk)
		}
		data = append(data, image)
	} else {
		var image PixelDataInfo
		image.Frames = append(image.Frames, d.ReadBytes(int(vl)))
		data = append(data, image)
	}
	return data
}

// readRawItem reads a single Item's raw bytes without building it into
// an *Element tree. Used while walking PixelData's encapsulated
// fragments.
func readRawItem(d *dicomio.Decoder) ([]byte, bool) {
	tag := readTag(d)

	// Item is always explicit-VR-absent (Implicit VR), PS3.6 7.5.
	vr, vl := readImplicit(d, tag)
	if d.Error() != nil {
		return nil, true
	}

	if tag == dicomtag.SequenceDelimitationItem {
		if vl != 0 {
			d.SetErrorf("SequenceDelimitationItem has non-zero VL: %v", vl)
		}
		return nil, true
	}
	if tag != dicomtag.Item {
		d.SetErrorf("expected Item in PixelData, found %v", dicomtag.DebugString(tag))
		return nil, false
	}
	if vl == UndefinedLength {
		d.SetErrorf("expected a defined-length item in PixelData")
		return nil, false
	}
	if vr != "NA" {
		d.SetErrorf("expected an NA item, found %s", vr)
		return nil, true
	}
	return d.ReadBytes(int(vl)), false
}

// readBasicOffsetTable reads PixelData's first embedded item, a list
// of uint32 byte offsets for each subsequent frame. P3.5 A4.
func readBasicOffsetTable(d *dicomio.Decoder) []uint32 {
	data, endOfData := readRawItem(d)
	if endOfData {
		d.SetErrorf("basic offset table not found")
	}
	if len(data) == 0 {
		return []uint32{0}
	}
	byteOrder, _ := d.TransferSyntax()
	sub := dicomio.NewBytesDecoder(data, byteOrder, dicomio.ImplicitVR)
	var offsets []uint32
	for !sub.EOF() {
		offsets = append(offsets, sub.ReadUInt32())
	}
	return offsets
}

func readTag(d *dicomio.Decoder) dicomtag.Tag {
	group := d.ReadUInt16()
	element := d.ReadUInt16()
	return dicomtag.Tag{Group: group, Element: element}
}

// readImplicit resolves vr from the dictionary and reads a 4-byte VL,
// as PS3.5 7.1.3 describes for Implicit VR Little Endian.
func readImplicit(d *dicomio.Decoder, tag dicomtag.Tag) (string, uint32) {
	vr := "UN"
	if entry, err := dicomtag.Find(tag); err == nil {
		vr = entry.VR
	}
	vl := d.ReadUInt32()
	if vl != UndefinedLength && vl%2 != 0 {
		d.SetError(fmt.Errorf("%w: odd length (vl=%v) reading implicit VR %q for tag %s", dicomio.ErrInvalidValueLength, vl, vr, dicomtag.DebugString(tag)))
		vl = 0
	}
	return vr, vl
}

// readExplicit reads the inline 2-byte VR and its VL, 2 or 4 bytes
// depending on the VR's framing rule. PS3.5 7.1.2.
func readExplicit(d *dicomio.Decoder, tag dicomtag.Tag) (string, uint32) {
	vr := d.ReadString(2)
	var vl uint32

	info, lookupErr := dicomvr.Lookup(vr)
	switch {
	case lookupErr != nil:
		d.SetError(fmt.Errorf("dicom: %w: %q", dicomio.ErrUnknownExplicitVR, vr))
		return vr, 0
	case info.Has4ByteLength:
		d.Skip(2) // reserved
		vl = d.ReadUInt32()
		if vl == UndefinedLength && (vr == "UC" || vr == "UR") {
			d.SetError(errors.New("dicom: UC and UR may not have an undefined length"))
			vl = 0
		}
	default:
		vl = uint32(d.ReadUInt16())
		if vl == 0xffff {
			vl = UndefinedLength
		}
	}

	if vl != UndefinedLength && vl%2 != 0 {
		d.SetError(fmt.Errorf("%w: odd length (vl=%v) reading explicit VR %v for tag %s", dicomio.ErrInvalidValueLength, vl, vr, dicomtag.DebugString(tag)))
		vl = 0
	}
	return vr, vl
}

// ReadDataSet reads a full DICOM stream: the Part 10 header if
// present (falling back to a headerless Implicit VR Little Endian
// dataset otherwise), switching to DEFLATE inflation mid-stream when
// the negotiated transfer syntax calls for it, and stopping according
// to behavior.
func ReadDataSet(in io.Reader, behavior dicomstop.ParseBehavior) (*DataSet, error) {
	d := dicomio.NewDecoder(in, binary.LittleEndian, dicomio.ExplicitVR)

	metaElems, err := ParseFileHeader(d)
	headerless := errors.Is(err, ErrNotDicom)
	if err != nil && !headerless {
		return nil, err
	}

	file := &DataSet{}
	byteOrder := binary.ByteOrder(binary.LittleEndian)
	implicit := dicomio.ImplicitVR
	deflated := false

	if headerless {
		logrus.Warnf("dicom.ReadDataSet: no preamble/DICM magic found; assuming a headerless Implicit VR Little Endian dataset")
	} else {
		file.Elements = metaElems
		// A missing or unrecognized TransferSyntaxUID falls back to
		// Explicit VR Little Endian, the file-meta group's own encoding.
		var tsUID string
		if tsElem, ferr := file.FindElementByTag(dicomtag.TransferSyntaxUID); ferr == nil {
			tsUID, _ = tsElem.GetString()
		}
		if bo, imp, perr := dicomio.ParseTransferSyntaxUID(tsUID); perr == nil {
			byteOrder, implicit = bo, imp
			deflated = dicomio.IsDeflated(tsUID)
		} else {
			logrus.Warnf("dicom.ReadDataSet: transfer syntax %q not recognized; falling back to Explicit VR Little Endian", tsUID)
			implicit = dicomio.ExplicitVR
		}
	}

	bd := d
	if deflated {
		bd = dicomio.NewDecoder(flate.NewReader(d), byteOrder, implicit)
	} else {
		bd.PushTransferSyntax(byteOrder, implicit)
		defer bd.PopTransferSyntax()
	}

	p := newParser(behavior)
	for {
		startLen := bd.BytesRead()

		tag, terr := bd.ReadTagOrEOF()
		if terr != nil {
			// Either a clean ErrExpectedEOF at a dataset boundary, or a
			// genuine read failure already recorded as bd's sticky
			// error by ReadTagOrEOF's underlying ReadUInt16 calls —
			// either way, there's no tag to build an element from.
			break
		}

		elem := readElementWithTag(bd, p, nil, -1, tag)

		if bd.Error() == nil && bd.BytesRead() <= startLen && !p.stopped {
			panic(fmt.Sprintf("dicom.ReadDataSet: ReadElement made no progress at offset %d", startLen))
		}
		if bd.Error() != nil {
			break
		}
		if p.stopped {
			break
		}
		if elem == nil {
			continue
		}

		if elem.Tag == dicomtag.SpecificCharacterSet {
			// SpecificCharacterSet isn't file-meta, so it can appear
			// (and change) partway through the dataset.
			encodingNames, serr := elem.GetStrings()
			if serr != nil {
				bd.SetError(serr)
			} else if cs, perr := dicomio.ParseSpecificCharacterSet(encodingNames); perr != nil {
				bd.SetError(perr)
			} else {
				bd.SetCodingSystem(cs)
			}
		}

		file.Elements = append(file.Elements, elem)

		if behavior.Stop().Kind() == dicomstop.AfterBytePos && uint64(bd.BytesRead()) >= behavior.Stop().BytePos() {
			break
		}
	}

	if err := bd.Error(); err != nil {
		if behavior.AllowPartialObject() {
			return file, err
		}
		return nil, err
	}
	return file, nil
}

// ReadDataSetInBytes is ReadDataSet for an in-memory buffer.
func ReadDataSetInBytes(data []byte, behavior dicomstop.ParseBehavior) (*DataSet, error) {
	return ReadDataSet(bytes.NewReader(data), behavior)
}

// ReadDataSetFromFile is a convenience wrapper around ReadDataSet for
// reading directly from a path. On error it still returns any
// partially-read DataSet behavior.AllowPartialObject() produced.
func ReadDataSetFromFile(path string, behavior dicomstop.ParseBehavior) (*DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ds, err := ReadDataSet(f, behavior)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return ds, err
}
