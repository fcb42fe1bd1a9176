package dicomio

import "errors"

// Sentinel errors a caller can distinguish with errors.Is, rather
// than string-matching Decoder.Error()'s output.
var (
	// ErrExpectedEOF is returned by ReadTagOrEOF when the stream ends
	// exactly at an element boundary — a normal, successful
	// termination of a dataset, not a corrupt read.
	ErrExpectedEOF = errors.New("dicomio: expected EOF at element boundary")

	// ErrUnknownExplicitVR is set when an explicit-VR stream names a
	// two-letter code this codec doesn't recognize.
	ErrUnknownExplicitVR = errors.New("dicomio: unknown explicit VR")

	// ErrInvalidValueLength is set when a value length is odd (DICOM
	// requires element values to be even-length, padded) or otherwise
	// inconsistent with its VR's framing rule.
	ErrInvalidValueLength = errors.New("dicomio: invalid value length")
)
