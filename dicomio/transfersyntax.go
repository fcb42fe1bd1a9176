package dicomio

import (
	"encoding/binary"
	"fmt"

	"github.com/nmargas/dicomstream/dicomuid"
)

// StandardTransferSyntaxes lists the transfer syntax UIDs this codec
// parses at the element level.
var StandardTransferSyntaxes = dicomuid.StandardTransferSyntaxes

// CanonicalTransferSyntaxUID maps any transfer syntax UID — including
// the encapsulated (compressed pixel data) ones — to the UID whose
// element-level framing rules apply: one of the four dataset-level
// transfer syntaxes. Encapsulated syntaxes frame their dataset as
// Explicit VR Little Endian; only PixelData's fragment bytes are
// opaque to this codec.
func CanonicalTransferSyntaxUID(uid string) (string, error) {
	switch uid {
	case dicomuid.ImplicitVRLittleEndianUID,
		dicomuid.ExplicitVRLittleEndianUID,
		dicomuid.ExplicitVRBigEndianUID,
		dicomuid.DeflatedExplicitVRLittleEndianUID:
		return uid, nil
	default:
		ts, err := dicomuid.LookupTransferSyntax(uid)
		if err != nil {
			return "", err
		}
		if dicomuid.IsEncapsulated(ts.UID) {
			return dicomuid.ExplicitVRLittleEndianUID, nil
		}
		return "", fmt.Errorf("dicomio: %q is not a known transfer syntax", uid)
	}
}

// ParseTransferSyntaxUID resolves a transfer syntax UID (canonical or
// encapsulated) to the byte order and VR mode its dataset is encoded
// with, e.g. ImplicitVRLittleEndianUID -> (LittleEndian, ImplicitVR).
func ParseTransferSyntaxUID(uid string) (byteorder binary.ByteOrder, implicit IsImplicitVR, err error) {
	canonical, err := CanonicalTransferSyntaxUID(uid)
	if err != nil {
		return nil, UnknownVR, err
	}
	switch canonical {
	case dicomuid.ImplicitVRLittleEndianUID:
		return binary.LittleEndian, ImplicitVR, nil
	case dicomuid.DeflatedExplicitVRLittleEndianUID, dicomuid.ExplicitVRLittleEndianUID:
		return binary.LittleEndian, ExplicitVR, nil
	case dicomuid.ExplicitVRBigEndianUID:
		return binary.BigEndian, ExplicitVR, nil
	default:
		return nil, UnknownVR, fmt.Errorf("dicomio: unhandled canonical transfer syntax %q", canonical)
	}
}

// IsDeflated reports whether uid requires the dataset body to be
// inflated with compress/flate before element parsing begins.
func IsDeflated(uid string) bool {
	ts, err := dicomuid.LookupTransferSyntax(uid)
	if err != nil {
		return false
	}
	return ts.Deflated
}
