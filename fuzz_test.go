package dicom_test

import (
	"bytes"
	"testing"

	dicom "github.com/nmargas/dicomstream"
	"github.com/nmargas/dicomstream/dicomstop"
	"github.com/nmargas/dicomstream/dicomuid"
)

// FuzzParse feeds arbitrary bytes into ReadDataSet. It should never
// panic, regardless of how the input is truncated or corrupted; a
// rejected parse must surface as an error.
func FuzzParse(f *testing.F) {
	for _, ts := range []string{
		dicomuid.ImplicitVRLittleEndianUID,
		dicomuid.ExplicitVRLittleEndianUID,
		dicomuid.ExplicitVRBigEndianUID,
		dicomuid.DeflatedExplicitVRLittleEndianUID,
	} {
		var buf bytes.Buffer
		if err := dicom.WriteDataSet(&buf, sampleDataSet(ts)); err != nil {
			f.Fatal(err)
		}
		valid := buf.Bytes()
		f.Add(valid)

		for _, cut := range []int{4, 16, 64, 132, 200} {
			if cut < len(valid) {
				f.Add(valid[:cut])
			}
		}
	}

	f.Add([]byte{})
	f.Add([]byte("DICM"))
	f.Add(bytes.Repeat([]byte{0}, 128))

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("ReadDataSetInBytes panicked on %d bytes: %v", len(data), r)
			}
		}()
		_, _ = dicom.ReadDataSetInBytes(data, dicomstop.NewParseBehavior())
	})
}

// FuzzParsePartialObject is FuzzParse with AllowPartialObject set, to
// catch any panic specific to the partial-recovery path (e.g. a
// delimiter half-read when the stream is cut mid-sequence).
func FuzzParsePartialObject(f *testing.F) {
	var buf bytes.Buffer
	if err := dicom.WriteDataSet(&buf, sampleDataSet(dicomuid.ExplicitVRLittleEndianUID)); err != nil {
		f.Fatal(err)
	}
	valid := buf.Bytes()
	f.Add(valid)
	if len(valid) > 20 {
		f.Add(valid[:len(valid)-20])
	}

	behavior := dicomstop.NewParseBehavior(dicomstop.WithAllowPartialObject(true))
	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("ReadDataSetInBytes panicked on %d bytes: %v", len(data), r)
			}
		}()
		_, _ = dicom.ReadDataSetInBytes(data, behavior)
	})
}
