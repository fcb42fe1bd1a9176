// Package dicomuid defines well-known DICOM UIDs: transfer syntaxes
// and a small SOP class table, plus lookup helpers.
package dicomuid

import "fmt"

// TransferSyntax describes the wire encoding a transfer syntax UID
// selects: byte order, explicit vs. implicit VR, and whether the
// dataset is DEFLATE-compressed.
type TransferSyntax struct {
	UID           string
	Name          string
	ImplicitVR    bool
	BigEndian     bool
	Deflated      bool
}

// Well-known transfer syntax UIDs.
const (
	ImplicitVRLittleEndianUID         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndianUID         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndianUID            = "1.2.840.10008.1.2.2"

	JPEGBaselineUID       = "1.2.840.10008.1.2.4.50"
	JPEGExtendedUID       = "1.2.840.10008.1.2.4.51"
	JPEGLosslessUID       = "1.2.840.10008.1.2.4.70"
	JPEGLSLosslessUID     = "1.2.840.10008.1.2.4.80"
	JPEG2000LosslessUID   = "1.2.840.10008.1.2.4.90"
	JPEG2000UID           = "1.2.840.10008.1.2.4.91"
	RLELosslessUID        = "1.2.840.10008.1.2.5"
)

var transferSyntaxes = map[string]TransferSyntax{
	ImplicitVRLittleEndianUID: {
		UID: ImplicitVRLittleEndianUID, Name: "Implicit VR Little Endian",
		ImplicitVR: true, BigEndian: false, Deflated: false,
	},
	ExplicitVRLittleEndianUID: {
		UID: ExplicitVRLittleEndianUID, Name: "Explicit VR Little Endian",
		ImplicitVR: false, BigEndian: false, Deflated: false,
	},
	DeflatedExplicitVRLittleEndianUID: {
		UID: DeflatedExplicitVRLittleEndianUID, Name: "Deflated Explicit VR Little Endian",
		ImplicitVR: false, BigEndian: false, Deflated: true,
	},
	ExplicitVRBigEndianUID: {
		UID: ExplicitVRBigEndianUID, Name: "Explicit VR Big Endian",
		ImplicitVR: false, BigEndian: true, Deflated: false,
	},
	// Encapsulated (compressed pixel data) transfer syntaxes are
	// otherwise Explicit VR Little Endian at the dataset-element
	// level; only PixelData's encoding inside is opaque to this
	// codec. Registered so TransferSyntaxUID validation accepts them.
	JPEGBaselineUID:     {UID: JPEGBaselineUID, Name: "JPEG Baseline"},
	JPEGExtendedUID:     {UID: JPEGExtendedUID, Name: "JPEG Extended"},
	JPEGLosslessUID:     {UID: JPEGLosslessUID, Name: "JPEG Lossless, Non-Hierarchical"},
	JPEGLSLosslessUID:   {UID: JPEGLSLosslessUID, Name: "JPEG-LS Lossless"},
	JPEG2000LosslessUID: {UID: JPEG2000LosslessUID, Name: "JPEG 2000 Lossless"},
	JPEG2000UID:         {UID: JPEG2000UID, Name: "JPEG 2000"},
	RLELosslessUID:      {UID: RLELosslessUID, Name: "RLE Lossless"},
}

// StandardTransferSyntaxes lists the UIDs this codec can fully parse
// at the dataset-element level (encapsulated pixel-data syntaxes are
// accepted for file-meta validation but their PixelData fragments are
// opaque bytes, not decoded).
var StandardTransferSyntaxes = []string{
	ImplicitVRLittleEndianUID,
	ExplicitVRLittleEndianUID,
	DeflatedExplicitVRLittleEndianUID,
	ExplicitVRBigEndianUID,
}

// LookupTransferSyntax resolves a UID to its TransferSyntax. Unknown
// UIDs return an error rather than a zero value, so callers can
// distinguish "big endian explicit VR" from "I don't recognize this".
func LookupTransferSyntax(uid string) (TransferSyntax, error) {
	if ts, ok := transferSyntaxes[uid]; ok {
		return ts, nil
	}
	return TransferSyntax{}, fmt.Errorf("dicomuid: unknown transfer syntax UID %q", uid)
}

// IsEncapsulated reports whether uid's PixelData is compressed
// (opaque fragments) rather than a native bit-packed pixel stream.
func IsEncapsulated(uid string) bool {
	switch uid {
	case ImplicitVRLittleEndianUID, ExplicitVRLittleEndianUID,
		DeflatedExplicitVRLittleEndianUID, ExplicitVRBigEndianUID:
		return false
	default:
		_, ok := transferSyntaxes[uid]
		return ok
	}
}

// UIDInfo describes a well-known SOP class or related UID.
type UIDInfo struct {
	UID  string
	Name string
	Type string // "SOP Class", "Transfer Syntax", "Meta SOP Class", ...
}

var uidDict = map[string]UIDInfo{
	"1.2.840.10008.5.1.4.1.1.7":     {Name: "Secondary Capture Image Storage", Type: "SOP Class"},
	"1.2.840.10008.5.1.4.1.1.2":     {Name: "CT Image Storage", Type: "SOP Class"},
	"1.2.840.10008.5.1.4.1.1.4":     {Name: "MR Image Storage", Type: "SOP Class"},
	"1.2.840.10008.5.1.4.1.1.1":     {Name: "Computed Radiography Image Storage", Type: "SOP Class"},
	"1.2.840.10008.5.1.4.1.1.6.1":   {Name: "Ultrasound Image Storage", Type: "SOP Class"},
	"1.2.840.10008.5.1.4.1.1.20":    {Name: "Nuclear Medicine Image Storage", Type: "SOP Class"},
	"1.2.840.10008.5.1.4.1.1.128":   {Name: "Positron Emission Tomography Image Storage", Type: "SOP Class"},
	"1.2.840.10008.5.1.4.1.1.481.1": {Name: "RT Image Storage", Type: "SOP Class"},
}

func init() {
	for uid, info := range uidDict {
		info.UID = uid
		uidDict[uid] = info
	}
	for uid, ts := range transferSyntaxes {
		uidDict[uid] = UIDInfo{UID: uid, Name: ts.Name, Type: "Transfer Syntax"}
	}
}

// LookupUID resolves any well-known UID (SOP class or transfer
// syntax) to its name, for diagnostics and Element.String() output.
func LookupUID(uid string) (UIDInfo, error) {
	if info, ok := uidDict[uid]; ok {
		return info, nil
	}
	return UIDInfo{}, fmt.Errorf("dicomuid: unknown UID %q", uid)
}
