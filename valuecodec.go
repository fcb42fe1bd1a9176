package dicom

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/nmargas/dicomstream/dicomio"
	"github.com/nmargas/dicomstream/dicomtag"
)

// wordSizeOf returns the per-value byte width a "bytes" VR's words are
// stored in, for the native-order byte-swap decodeValue/encodeValue
// perform on OW/OL/OV/OD. OB has no word structure: 0 means "copy
// bytes verbatim, no swap".
func wordSizeOf(vr string) int {
	switch vr {
	case "OW":
		return 2
	case "OL":
		return 4
	case "OV", "OD":
		return 8
	default:
		return 0
	}
}

// decodeValue decodes the raw wire bytes of a scalar element's value
// (i.e. not SQ, not Item, not PixelData, all of which build their
// *Element trees elsewhere) into the Go representation GetVRKind
// promises for vr. UN is the exception: GetVRKind classifies it as a
// string list, but its bytes decode here as a single []byte.
func decodeValue(tag dicomtag.Tag, vr string, raw []byte, byteOrder binary.ByteOrder, cs dicomio.CodingSystem) ([]interface{}, error) {
	d := dicomio.NewBytesDecoder(raw, byteOrder, dicomio.UnknownVR)
	d.SetCodingSystem(cs)

	var data []interface{}

	switch vr {
	case "DA":
		date := strings.Trim(d.ReadString(len(raw)), " \000")
		data = []interface{}{date}

	case "LT", "UT", "ST", "UR", "UC":
		s := strings.TrimRight(d.ReadString(len(raw)), " \000")
		data = []interface{}{s}

	case "AT":
		for !d.EOF() {
			data = append(data, dicomtag.Tag{Group: d.ReadUInt16(), Element: d.ReadUInt16()})
		}

	case "UL":
		for !d.EOF() {
			data = append(data, d.ReadUInt32())
		}
	case "SL":
		for !d.EOF() {
			data = append(data, d.ReadInt32())
		}
	case "US":
		for !d.EOF() {
			data = append(data, d.ReadUInt16())
		}
	case "SS":
		for !d.EOF() {
			data = append(data, d.ReadInt16())
		}
	case "SV":
		for !d.EOF() {
			data = append(data, d.ReadInt64())
		}
	case "UV":
		for !d.EOF() {
			data = append(data, d.ReadUInt64())
		}
	case "FL", "OF":
		for !d.EOF() {
			data = append(data, d.ReadFloat32())
		}
	case "FD":
		for !d.EOF() {
			data = append(data, d.ReadFloat64())
		}

	case "IS":
		for _, s := range splitBackslash(d.ReadString(len(raw))) {
			v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%v: malformed IS value %q: %w", dicomtag.DebugString(tag), s, err)
			}
			data = append(data, int32(v))
		}
	case "DS":
		for _, s := range splitBackslash(d.ReadString(len(raw))) {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%v: malformed DS value %q: %w", dicomtag.DebugString(tag), s, err)
			}
			data = append(data, v)
		}

	case "OB", "UN":
		data = append(data, d.ReadBytes(len(raw)))

	case "OW", "OL", "OV", "OD":
		wordSize := wordSizeOf(vr)
		if len(raw)%wordSize != 0 {
			return nil, fmt.Errorf("%v: %s requires length a multiple of %d, found %d",
				dicomtag.DebugString(tag), vr, wordSize, len(raw))
		}
		e := dicomio.NewBytesEncoder(dicomio.NativeByteOrder, dicomio.UnknownVR)
		n := len(raw) / wordSize
		for i := 0; i < n; i++ {
			switch wordSize {
			case 2:
				e.WriteUInt16(d.ReadUInt16())
			case 4:
				e.WriteUInt32(d.ReadUInt32())
			case 8:
				e.WriteUInt64(d.ReadUInt64())
			}
		}
		if err := e.Error(); err != nil {
			return nil, err
		}
		data = append(data, e.Bytes())

	default:
		// List of strings, each delimited by '\\'.
		str := strings.Trim(d.ReadString(len(raw)), " \000")
		if len(str) > 0 {
			for _, s := range strings.Split(str, "\\") {
				data = append(data, s)
			}
		}
	}

	if err := d.Error(); err != nil {
		return nil, err
	}
	return data, nil
}

func splitBackslash(s string) []string {
	s = strings.Trim(s, " \000")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\\")
}

// formatDS renders a DS (Decimal String) value. Whole numbers gain a
// trailing ".0" so the rendered text still parses as DS rather than
// IS (PS3.5 6.2's DS grammar requires a decimal point or exponent).
func formatDS(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// encodeValue is decodeValue's inverse: it renders values (already
// type-checked against vr by NewElement) to wire bytes.
func encodeValue(tag dicomtag.Tag, vr string, values []interface{}, byteOrder binary.ByteOrder, cs dicomio.EncodingSystem) ([]byte, error) {
	e := dicomio.NewBytesEncoder(byteOrder, dicomio.UnknownVR)

	switch vr {
	case "UL":
		for _, v := range values {
			e.WriteUInt32(v.(uint32))
		}
	case "SL":
		for _, v := range values {
			e.WriteInt32(v.(int32))
		}
	case "US":
		for _, v := range values {
			e.WriteUInt16(v.(uint16))
		}
	case "SS":
		for _, v := range values {
			e.WriteInt16(v.(int16))
		}
	case "SV":
		for _, v := range values {
			e.WriteInt64(v.(int64))
		}
	case "UV":
		for _, v := range values {
			e.WriteUInt64(v.(uint64))
		}
	case "FL", "OF":
		for _, v := range values {
			f := v.(float32)
			if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
				continue
			}
			e.WriteFloat32(f)
		}
	case "FD":
		for _, v := range values {
			f := v.(float64)
			if math.IsInf(f, 0) || math.IsNaN(f) {
				continue
			}
			e.WriteFloat64(f)
		}

	case "AT":
		for _, v := range values {
			t := v.(dicomtag.Tag)
			e.WriteUInt16(t.Group)
			e.WriteUInt16(t.Element)
		}

	case "IS":
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = strconv.FormatInt(int64(v.(int32)), 10)
		}
		writePaddedBytes(e, []byte(strings.Join(parts, "\\")), ' ')
	case "DS":
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = formatDS(v.(float64))
		}
		writePaddedBytes(e, []byte(strings.Join(parts, "\\")), ' ')

	case "UI":
		parts := make([]string, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%v: non-string UI value: %v", dicomtag.DebugString(tag), v)
			}
			parts[i] = s
		}
		writePaddedBytes(e, []byte(strings.Join(parts, "\\")), 0)

	case "OB":
		if len(values) != 1 {
			return nil, fmt.Errorf("%v: OB requires exactly one []byte value, found %d", dicomtag.DebugString(tag), len(values))
		}
		raw := values[0].([]byte)
		e.WriteBytes(raw)
		if len(raw)%2 == 1 {
			e.WriteByte(0)
		}
	case "UN":
		if len(values) != 1 {
			return nil, fmt.Errorf("%v: UN requires exactly one []byte value, found %d", dicomtag.DebugString(tag), len(values))
		}
		e.WriteBytes(values[0].([]byte))

	case "OW", "OL", "OV", "OD":
		if len(values) != 1 {
			return nil, fmt.Errorf("%v: %s requires exactly one []byte value, found %d", dicomtag.DebugString(tag), vr, len(values))
		}
		raw := values[0].([]byte)
		wordSize := wordSizeOf(vr)
		if len(raw)%wordSize != 0 {
			return nil, fmt.Errorf("%v: %s requires length a multiple of %d, found %d",
				dicomtag.DebugString(tag), vr, wordSize, len(raw))
		}
		d := dicomio.NewBytesDecoder(raw, dicomio.NativeByteOrder, dicomio.UnknownVR)
		n := len(raw) / wordSize
		for i := 0; i < n; i++ {
			switch wordSize {
			case 2:
				e.WriteUInt16(d.ReadUInt16())
			case 4:
				e.WriteUInt32(d.ReadUInt32())
			case 8:
				e.WriteUInt64(d.ReadUInt64())
			}
		}
		if err := d.Finish(); err != nil {
			return nil, err
		}

	default:
		parts := make([]string, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%v: non-string value for VR %s: %v", dicomtag.DebugString(tag), vr, v)
			}
			parts[i] = s
		}
		raw, err := encodeString(cs.Ideographic, strings.Join(parts, "\\"))
		if err != nil {
			return nil, err
		}
		writePaddedBytes(e, raw, ' ')
	}

	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// encodeString re-encodes s into enc's byte charset, or returns it
// as-is (ASCII) if enc is nil — the write-side mirror of the decoder's
// internalReadString fallback.
func encodeString(enc *encoding.Encoder, s string) ([]byte, error) {
	if enc == nil {
		return []byte(s), nil
	}
	return enc.Bytes([]byte(s))
}

// writePaddedBytes writes raw, padding with pad if the result would
// otherwise be odd-length (every DICOM element value must be even).
func writePaddedBytes(e *dicomio.Encoder, raw []byte, pad byte) {
	e.WriteBytes(raw)
	if len(raw)%2 == 1 {
		e.WriteByte(pad)
	}
}
