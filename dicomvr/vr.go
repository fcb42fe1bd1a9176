// Package dicomvr catalogs the DICOM Value Representations (PS3.5
// section 6.2): their two-letter codes, whether they carry a 4-byte
// (vs. 2-byte) explicit-VR length field, and whether their bytes are
// a character string subject to charset decoding and padding with
// 0x20 rather than 0x00 (UI, a character string, pads with 0x00).
package dicomvr

import "fmt"

// Info describes one VR's wire-encoding rules.
type Info struct {
	Code string
	// Padding is the byte values of this VR's trailing bytes are
	// padded with to reach an even length: ' ' (0x20) for character
	// strings other than UI, 0x00 for UI and everything else.
	Padding byte
	// IsCharacterString means the value is text, subject to
	// SpecificCharacterSet decoding.
	IsCharacterString bool
	// Has4ByteLength means explicit-VR encoding reserves 2 reserved
	// bytes followed by a 4-byte value length, rather than a plain
	// 2-byte value length (PS3.5 Table 7.1-1).
	Has4ByteLength bool
}

var table = map[string]Info{
	"AE": {Code: "AE", Padding: ' ', IsCharacterString: true},
	"AS": {Code: "AS", Padding: ' ', IsCharacterString: true},
	"AT": {Code: "AT", Padding: 0},
	"CS": {Code: "CS", Padding: ' ', IsCharacterString: true},
	"DA": {Code: "DA", Padding: ' ', IsCharacterString: true},
	"DS": {Code: "DS", Padding: ' ', IsCharacterString: true},
	"DT": {Code: "DT", Padding: ' ', IsCharacterString: true},
	"FL": {Code: "FL", Padding: 0},
	"FD": {Code: "FD", Padding: 0},
	"IS": {Code: "IS", Padding: ' ', IsCharacterString: true},
	"LO": {Code: "LO", Padding: ' ', IsCharacterString: true},
	"LT": {Code: "LT", Padding: ' ', IsCharacterString: true},
	"OB": {Code: "OB", Padding: 0, Has4ByteLength: true},
	"OD": {Code: "OD", Padding: 0, Has4ByteLength: true},
	"OF": {Code: "OF", Padding: 0, Has4ByteLength: true},
	"OL": {Code: "OL", Padding: 0, Has4ByteLength: true},
	"OV": {Code: "OV", Padding: 0, Has4ByteLength: true},
	"OW": {Code: "OW", Padding: 0, Has4ByteLength: true},
	"PN": {Code: "PN", Padding: ' ', IsCharacterString: true},
	"SH": {Code: "SH", Padding: ' ', IsCharacterString: true},
	"SL": {Code: "SL", Padding: 0},
	"SQ": {Code: "SQ", Padding: 0, Has4ByteLength: true},
	"SS": {Code: "SS", Padding: 0},
	"ST": {Code: "ST", Padding: ' ', IsCharacterString: true},
	"SV": {Code: "SV", Padding: 0, Has4ByteLength: true},
	"TM": {Code: "TM", Padding: ' ', IsCharacterString: true},
	"UC": {Code: "UC", Padding: ' ', IsCharacterString: true, Has4ByteLength: true},
	"UI": {Code: "UI", Padding: 0, IsCharacterString: true},
	"UL": {Code: "UL", Padding: 0},
	"UN": {Code: "UN", Padding: 0, Has4ByteLength: true},
	"UR": {Code: "UR", Padding: ' ', IsCharacterString: true, Has4ByteLength: true},
	"US": {Code: "US", Padding: 0},
	"UT": {Code: "UT", Padding: ' ', IsCharacterString: true, Has4ByteLength: true},
	"UV": {Code: "UV", Padding: 0, Has4ByteLength: true},
	"NA": {Code: "NA", Padding: 0, Has4ByteLength: true},
}

// Lookup resolves a two-letter VR code to its Info. Unknown codes
// (private-dictionary VRs this table doesn't carry, or garbage from a
// non-conformant file) are reported as an error rather than silently
// treated as bytes, so callers can decide their own fallback.
func Lookup(code string) (Info, error) {
	if info, ok := table[code]; ok {
		return info, nil
	}
	return Info{}, fmt.Errorf("dicomvr: unknown VR %q", code)
}

// MustLookup is like Lookup but panics on an unknown code. Intended
// for VRs already validated by the dictionary.
func MustLookup(code string) Info {
	info, err := Lookup(code)
	if err != nil {
		panic(err)
	}
	return info
}

// IsValid reports whether code is a recognized two-letter VR.
func IsValid(code string) bool {
	_, ok := table[code]
	return ok
}
