package dicomio

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// CodingSystem holds the byte<->string codecs for a SpecificCharacterSet
// value. PN-valued elements may use up to three distinct component
// groups (alphabetic/ideographic/phonetic, PS3.5 6.2); every other
// string VR only ever uses the Ideographic slot.
type CodingSystem struct {
	Alphabetic  *encoding.Decoder
	Ideographic *encoding.Decoder
	Phonetic    *encoding.Decoder
}

// EncodingSystem is CodingSystem's write-side counterpart, used when
// re-encoding a decoded string back into its original byte charset.
type EncodingSystem struct {
	Alphabetic  *encoding.Encoder
	Ideographic *encoding.Encoder
	Phonetic    *encoding.Encoder
}

// CodingSystemType selects which of a CodingSystem's three decoder
// slots applies.
type CodingSystemType int

const (
	// AlphabeticCodingSystem writes a name using (English) alphabets.
	AlphabeticCodingSystem CodingSystemType = iota
	// IdeographicCodingSystem writes a name in its native script.
	IdeographicCodingSystem
	// PhoneticCodingSystem writes a phonetic transliteration (e.g.
	// hiragana/katakana for Japanese names).
	PhoneticCodingSystem
)

// namedEncoding is a DICOM SpecificCharacterSet value plus the
// encoding.Encoding it maps to. Some charsets need a dedicated
// codec from golang.org/x/text/encoding/{japanese,korean,
// simplifiedchinese} rather than the generic htmlindex lookup, since
// htmlindex's web-charset names don't cover every DICOM ISO-IR
// designator precisely (ISO 2022 IR 87/159 are JIS X0208 in
// ISO-2022-JP form, not plain Shift-JIS).
type namedEncoding struct {
	htmlName string
	codec    encoding.Encoding
}

var dicomEncodings = map[string]namedEncoding{
	"ISO 2022 IR 6":   {htmlName: "iso-8859-1"},
	"ISO_IR 13":       {codec: japanese.ShiftJIS},
	"ISO 2022 IR 13":  {codec: japanese.ShiftJIS},
	"ISO_IR 100":      {htmlName: "iso-8859-1"},
	"ISO 2022 IR 100": {htmlName: "iso-8859-1"},
	"ISO_IR 101":      {htmlName: "iso-8859-2"},
	"ISO 2022 IR 101": {htmlName: "iso-8859-2"},
	"ISO_IR 109":      {htmlName: "iso-8859-3"},
	"ISO 2022 IR 109": {htmlName: "iso-8859-3"},
	"ISO_IR 110":      {htmlName: "iso-8859-4"},
	"ISO 2022 IR 110": {htmlName: "iso-8859-4"},
	"ISO_IR 126":      {htmlName: "iso-ir-126"},
	"ISO 2022 IR 126": {htmlName: "iso-ir-126"},
	"ISO_IR 127":      {htmlName: "iso-ir-127"},
	"ISO 2022 IR 127": {htmlName: "iso-ir-127"},
	"ISO_IR 138":      {htmlName: "iso-ir-138"},
	"ISO 2022 IR 138": {htmlName: "iso-ir-138"},
	"ISO_IR 144":      {htmlName: "iso-ir-144"},
	"ISO 2022 IR 144": {htmlName: "iso-ir-144"},
	"ISO_IR 148":      {htmlName: "iso-ir-148"},
	"ISO 2022 IR 148": {htmlName: "iso-ir-148"},
	"ISO 2022 IR 149": {codec: korean.EUCKR},
	"ISO 2022 IR 159": {codec: japanese.ISO2022JP},
	"ISO_IR 166":      {htmlName: "iso-ir-166"},
	"ISO 2022 IR 166": {htmlName: "iso-ir-166"},
	"ISO 2022 IR 87":  {codec: japanese.ISO2022JP},
	"ISO_IR 192":      {htmlName: "utf-8"},
	"GB18030":         {codec: simplifiedchinese.GB18030},
	"GBK":             {codec: simplifiedchinese.GBK},
}

func resolveEncoding(name string) (encoding.Encoding, error) {
	ne, ok := dicomEncodings[name]
	if !ok {
		return nil, fmt.Errorf("dicomio: unknown character set %q", name)
	}
	if ne.codec != nil {
		return ne.codec, nil
	}
	if ne.htmlName == "" {
		return nil, nil // 7-bit ASCII: no codec needed
	}
	enc, err := htmlindex.Get(ne.htmlName)
	if err != nil {
		return nil, fmt.Errorf("dicomio: encoding %q (for %q) not registered: %w", ne.htmlName, name, err)
	}
	return enc, nil
}

// ParseSpecificCharacterSet builds the decoders named by the values
// of a (0008,0005) SpecificCharacterSet element. DICOM allows 1-3
// values, read left to right as the alphabetic, ideographic, and
// phonetic component groups (PS3.5 6.2); a single value applies to
// all three.
func ParseSpecificCharacterSet(encodingNames []string) (CodingSystem, error) {
	var codecs []encoding.Encoding
	for _, name := range encodingNames {
		logrus.Debugf("dicomio.ParseSpecificCharacterSet: using coding system %s", name)
		enc, err := resolveEncoding(name)
		if err != nil {
			return CodingSystem{}, err
		}
		codecs = append(codecs, enc)
	}
	return codingSystemFromEncodings(codecs), nil
}

func codingSystemFromEncodings(codecs []encoding.Encoding) CodingSystem {
	decoder := func(e encoding.Encoding) *encoding.Decoder {
		if e == nil {
			return nil
		}
		return e.NewDecoder()
	}
	switch len(codecs) {
	case 0:
		return CodingSystem{}
	case 1:
		d := decoder(codecs[0])
		return CodingSystem{Alphabetic: d, Ideographic: d, Phonetic: d}
	case 2:
		return CodingSystem{
			Alphabetic:  decoder(codecs[0]),
			Ideographic: decoder(codecs[1]),
			Phonetic:    decoder(codecs[1]),
		}
	default:
		return CodingSystem{
			Alphabetic:  decoder(codecs[0]),
			Ideographic: decoder(codecs[1]),
			Phonetic:    decoder(codecs[2]),
		}
	}
}

// ParseSpecificCharacterSetForEncoding is ParseSpecificCharacterSet's
// write-side counterpart, building encoders instead of decoders so a
// writer can re-encode a PN/LO/etc. string back into the charset its
// dataset declares.
func ParseSpecificCharacterSetForEncoding(encodingNames []string) (EncodingSystem, error) {
	var codecs []encoding.Encoding
	for _, name := range encodingNames {
		enc, err := resolveEncoding(name)
		if err != nil {
			return EncodingSystem{}, err
		}
		codecs = append(codecs, enc)
	}
	encoder := func(e encoding.Encoding) *encoding.Encoder {
		if e == nil {
			return nil
		}
		return e.NewEncoder()
	}
	switch len(codecs) {
	case 0:
		return EncodingSystem{}, nil
	case 1:
		e := encoder(codecs[0])
		return EncodingSystem{Alphabetic: e, Ideographic: e, Phonetic: e}, nil
	case 2:
		return EncodingSystem{
			Alphabetic:  encoder(codecs[0]),
			Ideographic: encoder(codecs[1]),
			Phonetic:    encoder(codecs[1]),
		}, nil
	default:
		return EncodingSystem{
			Alphabetic:  encoder(codecs[0]),
			Ideographic: encoder(codecs[1]),
			Phonetic:    encoder(codecs[2]),
		}, nil
	}
}
