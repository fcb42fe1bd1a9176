package dicom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nmargas/dicomstream/dicomio"
	"github.com/nmargas/dicomstream/dicomtag"
	"github.com/nmargas/dicomstream/dicomuid"
)

// Element represents a single DICOM element. Use NewElement() to
// create one from scratch; avoid building the struct by hand, since
// picking the right VR is easy to get wrong.
type Element struct {
	// Tag is a <group, element> pair. See dicomtag for well-known values.
	Tag dicomtag.Tag

	// Value holds the element's values. Their Go type depends on the
	// value representation (VR) of Tag; see dicomtag.GetVRKind.
	//
	// If Tag==dicomtag.PixelData, len(Value)==1 and Value[0] is PixelDataInfo.
	// Else if Tag==dicomtag.Item, every Value[i] is a *Element (a sequence item's children).
	// Else if VR=="SQ", every Value[i] is a *Element with Tag==dicomtag.Item.
	// Else if VR is LT/UT/ST/UR/UC, len(Value)==1 and Value[0] is a string.
	// Else if VR=="DA", len(Value)==1 and Value[0] is a string.
	// Else if VR=="AT", Value[] is a list of dicomtag.Tag.
	// Else if VR is US/UL/SS/SL/SV/UV/FL/FD/OF, Value[] is a list of the matching Go numeric type (OF: float32).
	// Else if VR=="IS", Value[] is a list of int32; if VR=="DS", a list of float64.
	// Else if VR is OB/OW/OL/OV/OD/UN, len(Value)==1 and Value[0] is []byte.
	// Else, Value[] is a list of strings.
	Value []interface{}

	// VR is the two-letter value representation code, e.g. "AE", "UL".
	// ReadDataSet fills this from the stream (explicit VR) or the
	// dictionary (implicit VR); it need not be set before WriteElement,
	// which looks it up from Tag if empty.
	VR string

	// UndefinedLength is true if the element was encoded with an
	// undefined length and is delimited by an end-sequence or end-item
	// marker instead. Only meaningful when VR=="SQ", Tag==dicomtag.Item,
	// or Tag==dicomtag.PixelData (encapsulated pixel data).
	UndefinedLength bool
}

// DataSet is a parsed DICOM file: file-meta elements (Tag.Group==2)
// and dataset elements in their original stream order, undifferentiated.
type DataSet struct {
	Elements []*Element
}

// PixelDataInfo holds a PixelData element's decoded frames, plus the
// basic offset table recorded alongside them for encapsulated
// (undefined-length) pixel data.
type PixelDataInfo struct {
	Offsets []uint32
	Frames  [][]byte
}

// UndefinedLength is the sentinel value-length (0xFFFFFFFF) marking an
// element whose extent is determined by a delimiter rather than a
// byte count.
const UndefinedLength uint32 = 0xffffffff

// ItemSeqGroup is the tag group (0xFFFE) reserved for Item and its
// delimiters; elements in this group are always Implicit VR regardless
// of the dataset's declared transfer syntax (PS3.6 7.5).
const ItemSeqGroup = 0xFFFE

// NewElement creates an Element from a tag and its values. Every value
// must match the VR the dictionary assigns to tag.
func NewElement(tag dicomtag.Tag, values ...interface{}) (*Element, error) {
	ti, err := dicomtag.Find(tag)
	if err != nil {
		return nil, err
	}

	e := Element{
		Tag:   tag,
		VR:    ti.VR,
		Value: make([]interface{}, len(values)),
	}

	vrKind := dicomtag.GetVRKind(tag, ti.VR)

	for i, v := range values {
		var ok bool

		switch vrKind {
		case dicomtag.VRStringList, dicomtag.VRDate, dicomtag.VRString:
			_, ok = v.(string)
		case dicomtag.VRBytes:
			_, ok = v.([]byte)
		case dicomtag.VRUInt16List:
			_, ok = v.(uint16)
		case dicomtag.VRUInt32List:
			_, ok = v.(uint32)
		case dicomtag.VRInt16List:
			_, ok = v.(int16)
		case dicomtag.VRInt32List:
			_, ok = v.(int32)
		case dicomtag.VRUInt64List:
			_, ok = v.(uint64)
		case dicomtag.VRInt64List:
			_, ok = v.(int64)
		case dicomtag.VRFloat32List:
			_, ok = v.(float32)
		case dicomtag.VRFloat64List:
			_, ok = v.(float64)
		case dicomtag.VRPixelData:
			_, ok = v.(PixelDataInfo)
		case dicomtag.VRTagList:
			_, ok = v.(dicomtag.Tag)
		case dicomtag.VRSequence:
			var subelement *Element
			subelement, ok = v.(*Element)
			if ok {
				ok = subelement.Tag == dicomtag.Item
			}
		case dicomtag.VRItem:
			_, ok = v.(*Element)
		}

		if !ok {
			return nil, fmt.Errorf("%v: wrong payload type for NewElement: expect %v, but found %v",
				dicomtag.DebugString(tag), vrKind, v)
		}

		e.Value[i] = v
	}

	return &e, nil
}

// MustNewElement is like NewElement, but panics on error.
func MustNewElement(tag dicomtag.Tag, values ...interface{}) *Element {
	elem, err := NewElement(tag, values...)
	if err != nil {
		panic(fmt.Sprintf("failed to create element with tag %v: %v", tag, err))
	}
	return elem
}

// GetUInt32 returns an element's sole value as a uint32.
func (e *Element) GetUInt32() (uint32, error) {
	if len(e.Value) != 1 {
		return 0, fmt.Errorf("found %d value(s) in GetUInt32 (expect 1): %v", len(e.Value), e)
	}
	v, ok := e.Value[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("uint32 value not found in %v", e)
	}
	return v, nil
}

// MustGetUInt32 is like GetUInt32, but panics on error.
func (e *Element) MustGetUInt32() uint32 {
	v, err := e.GetUInt32()
	if err != nil {
		panic(err)
	}
	return v
}

// GetUInt16 returns an element's sole value as a uint16.
func (e *Element) GetUInt16() (uint16, error) {
	if len(e.Value) != 1 {
		return 0, fmt.Errorf("found %d value(s) in GetUInt16 (expect 1): %v", len(e.Value), e)
	}
	v, ok := e.Value[0].(uint16)
	if !ok {
		return 0, fmt.Errorf("uint16 value not found in %v", e)
	}
	return v, nil
}

// MustGetUInt16 is like GetUInt16, but panics on error.
func (e *Element) MustGetUInt16() uint16 {
	v, err := e.GetUInt16()
	if err != nil {
		panic(err)
	}
	return v
}

// GetString returns an element's sole value as a string.
func (e *Element) GetString() (string, error) {
	if len(e.Value) != 1 {
		return "", fmt.Errorf("found %d value(s) in GetString (expect 1): %v", len(e.Value), e.String())
	}
	v, ok := e.Value[0].(string)
	if !ok {
		return "", fmt.Errorf("string value not found in %v", e)
	}
	return v, nil
}

// MustGetString is like GetString, but panics on error.
func (e *Element) MustGetString() string {
	v, err := e.GetString()
	if err != nil {
		panic(err)
	}
	return v
}

// GetStrings returns every value in the element as a string, or an
// error if any value isn't a string.
func (e *Element) GetStrings() ([]string, error) {
	values := make([]string, 0, len(e.Value))
	for _, v := range e.Value {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("string value not found in %v", e.String())
		}
		values = append(values, s)
	}
	return values, nil
}

// GetUint32s returns every value in the element as a uint32.
func (e *Element) GetUint32s() ([]uint32, error) {
	values := make([]uint32, 0, len(e.Value))
	for _, v := range e.Value {
		n, ok := v.(uint32)
		if !ok {
			return nil, fmt.Errorf("uint32 value not found in %v", e.String())
		}
		values = append(values, n)
	}
	return values, nil
}

// MustGetUint32s is like GetUint32s, but panics on error.
func (e *Element) MustGetUint32s() []uint32 {
	values, err := e.GetUint32s()
	if err != nil {
		panic(err)
	}
	return values
}

// GetUint16s returns every value in the element as a uint16.
func (e *Element) GetUint16s() ([]uint16, error) {
	values := make([]uint16, 0, len(e.Value))
	for _, v := range e.Value {
		n, ok := v.(uint16)
		if !ok {
			return nil, fmt.Errorf("uint16 value not found in %v", e.String())
		}
		values = append(values, n)
	}
	return values, nil
}

// MustGetUint16s is like GetUint16s, but panics on error.
func (e *Element) MustGetUint16s() []uint16 {
	values, err := e.GetUint16s()
	if err != nil {
		panic(err)
	}
	return values
}

// GetInt64s returns every value in the element as an int64 (SV values).
func (e *Element) GetInt64s() ([]int64, error) {
	values := make([]int64, 0, len(e.Value))
	for _, v := range e.Value {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("int64 value not found in %v", e.String())
		}
		values = append(values, n)
	}
	return values, nil
}

// GetUint64s returns every value in the element as a uint64 (UV values).
func (e *Element) GetUint64s() ([]uint64, error) {
	values := make([]uint64, 0, len(e.Value))
	for _, v := range e.Value {
		n, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("uint64 value not found in %v", e.String())
		}
		values = append(values, n)
	}
	return values, nil
}

// GetStringForExport renders any element's values as text, for
// diagnostics or hand-off to consumers without a native uint64 (UV
// values render as plain decimal text, since many downstream tools
// don't round-trip a bare uint64 safely).
func (e *Element) GetStringForExport() (string, error) {
	parts := make([]string, len(e.Value))
	for i, v := range e.Value {
		switch vv := v.(type) {
		case string:
			parts[i] = vv
		case uint64:
			parts[i] = strconv.FormatUint(vv, 10)
		case int64:
			parts[i] = strconv.FormatInt(vv, 10)
		case uint32:
			parts[i] = strconv.FormatUint(uint64(vv), 10)
		case int32:
			parts[i] = strconv.FormatInt(int64(vv), 10)
		case uint16:
			parts[i] = strconv.FormatUint(uint64(vv), 10)
		case int16:
			parts[i] = strconv.FormatInt(int64(vv), 10)
		case float32:
			parts[i] = strconv.FormatFloat(float64(vv), 'g', -1, 32)
		case float64:
			parts[i] = strconv.FormatFloat(vv, 'g', -1, 64)
		case dicomtag.Tag:
			parts[i] = vv.String()
		default:
			return "", fmt.Errorf("%v: value %v has no textual export form", dicomtag.DebugString(e.Tag), v)
		}
	}
	return strings.Join(parts, "\\"), nil
}

func elementString(e *Element, nestLevel int) string {
	dicomio.DoAssert(nestLevel < 10)
	indent := strings.Repeat(" ", nestLevel)
	s := indent
	sVl := ""
	if e.UndefinedLength {
		sVl = "u"
	}
	s = fmt.Sprintf("%s %s %s %s ", s, dicomtag.DebugString(e.Tag), e.VR, sVl)
	if e.VR == "SQ" || e.Tag == dicomtag.Item {
		s += fmt.Sprintf(" (#%d)[\n", len(e.Value))
		for _, v := range e.Value {
			s += elementString(v.(*Element), nestLevel+1) + "\n"
		}
		s += indent + " ]"
	} else if e.VR == "UI" {
		parts := make([]string, len(e.Value))
		for i, v := range e.Value {
			uid, _ := v.(string)
			parts[i] = uid
			if info, err := dicomuid.LookupUID(uid); err == nil {
				parts[i] = fmt.Sprintf("%s[%s]", uid, info.Name)
			}
		}
		s += strings.Join(parts, "\\")
	} else {
		var sv string
		if len(e.Value) == 1 {
			sv = fmt.Sprintf("%v", e.Value)
		} else {
			sv = fmt.Sprintf("(%d)%v", len(e.Value), e.Value)
		}
		if len(sv) > 1024 {
			sv = sv[1:1024] + "(...)"
		}
		s += sv
	}
	return s
}

// String renders the element (and, recursively, any SQ/Item children)
// for diagnostics.
func (e *Element) String() string {
	return elementString(e, 0)
}

// FindElementByName finds an element in f by its dictionary name.
func (f *DataSet) FindElementByName(name string) (*Element, error) {
	return FindElementByName(f.Elements, name)
}

// FindElementByTag finds an element in f by tag.
func (f *DataSet) FindElementByTag(tag dicomtag.Tag) (*Element, error) {
	return FindElementByTag(f.Elements, tag)
}

// FindElementByName finds an element with the given dictionary name
// among elems.
func FindElementByName(elems []*Element, name string) (*Element, error) {
	t, err := dicomtag.FindByName(name)
	if err != nil {
		return nil, err
	}
	for _, elem := range elems {
		if elem.Tag == t.Tag {
			return elem, nil
		}
	}
	return nil, fmt.Errorf("could not find element named %q", name)
}

// FindElementByTag finds an element with the given tag among elems.
func FindElementByTag(elems []*Element, tag dicomtag.Tag) (*Element, error) {
	for _, elem := range elems {
		if elem.Tag == tag {
			return elem, nil
		}
	}
	return nil, fmt.Errorf("%s: element not found", dicomtag.DebugString(tag))
}

// Flatten walks the dataset depth-first, listing each Item after its
// sequence and synthesizing the ItemDelimitationItem/
// SequenceDelimitationItem markers a writer emits for undefined-length
// sequences and items, so a caller can inspect the
// wire-level element order (e.g. for export or debugging) without
// encoding actual bytes.
func (f *DataSet) Flatten() []*Element {
	var out []*Element
	for _, elem := range f.Elements {
		out = append(out, flattenElement(elem)...)
	}
	return out
}

func flattenElement(e *Element) []*Element {
	out := []*Element{e}
	if e.VR != "SQ" && e.Tag != dicomtag.Item {
		return out
	}
	for _, v := range e.Value {
		if sub, ok := v.(*Element); ok {
			out = append(out, flattenElement(sub)...)
		}
	}
	if e.UndefinedLength {
		if e.VR == "SQ" {
			out = append(out, &Element{Tag: dicomtag.SequenceDelimitationItem})
		} else {
			out = append(out, &Element{Tag: dicomtag.ItemDelimitationItem})
		}
	}
	return out
}
