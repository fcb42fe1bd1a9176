// Package dicom implements a streaming reader and writer for DICOM
// Part 10 files: the 128-byte preamble, the "DICM" magic, the
// Explicit-VR-Little-Endian file-meta group, and the dataset proper in
// whatever transfer syntax the file-meta group names.
//
// Parsing is driven by a dicomstop.ParseBehavior, which lets a caller
// stop early (e.g. before PixelData) without paying to decode bytes it
// doesn't need, and decide whether a mid-parse error should surface
// the partially-built DataSet or discard it.
//
//	f, err := os.Open("study.dcm")
//	ds, err := dicom.ReadDataSet(f, dicomstop.NewParseBehavior())
//	elem, err := ds.FindElementByTag(dicomtag.PatientName)
package dicom

// GoDICOMImplementationClassUID and GoDICOMImplementationVersionName
// identify this codec in a file's (0002,0012)/(0002,0013) elements
// when a caller doesn't supply its own.
const (
	GoDICOMImplementationClassUID    = "1.2.826.0.1.3680043.9.7133.1.1"
	GoDICOMImplementationVersionName = "DICOMSTREAM_GO_1"
)
