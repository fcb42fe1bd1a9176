// Package dicomio provides low-level encoding/decoding primitives for
// DICOM's binary wire format: byte-order-aware integer and string
// reads/writes, a push/pop transfer-syntax stack, and a push/pop byte
// limit stack used to bound reads to a sequence or item's declared
// length.
package dicomio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"

	"github.com/nmargas/dicomstream/dicomtag"
)

// NativeByteOrder is the in-memory byte order of decoded OW/OL/OV/OD
// words. It is always little endian, whatever the host's byte order.
var NativeByteOrder = binary.LittleEndian

type transferSyntaxStackEntry struct {
	byteorder binary.ByteOrder
	implicit  IsImplicitVR
}

type stackEntry struct {
	limit int64
	err   error
}

// IsImplicitVR selects whether a data element's VR is carried inline
// (explicit) or must be looked up in the dictionary (implicit).
type IsImplicitVR int

const (
	// ImplicitVR encodes a data element without its VR tag; the
	// reader must consult the dictionary to learn each tag's VR.
	ImplicitVR IsImplicitVR = iota
	// ExplicitVR carries the 2-byte VR code inline with each element.
	ExplicitVR
	// UnknownVR marks an Encoder/Decoder not meant to read or write
	// any data element directly (e.g. a raw byte-stream helper).
	UnknownVR
)

// Encoder is a helper for encoding DICOM's low-level wire types. It
// accumulates the first error encountered rather than returning one
// from every Write call, mirroring how the codec's higher-level
// Element/DataSet writer wants to keep emitting best-effort output
// and check for failure once at the end.
type Encoder struct {
	err error

	out io.Writer

	byteorder binary.ByteOrder

	// implicit is not used internally; it lets callers inspect the
	// transfer syntax the encoder is currently configured for.
	implicit IsImplicitVR

	encodingSystem EncodingSystem

	oldTransferSyntaxes []transferSyntaxStackEntry
}

// SetEncodingSystem overrides the default (7-bit ASCII) string-to-byte
// encoder used when re-emitting a string value, mirroring Decoder's
// SetCodingSystem.
func (e *Encoder) SetEncodingSystem(es EncodingSystem) {
	e.encodingSystem = es
}

// EncodingSystem returns the encoder's current string-to-byte encoding
// system, as last set by SetEncodingSystem.
func (e *Encoder) EncodingSystem() EncodingSystem {
	return e.encodingSystem
}

// NewBytesEncoder creates an encoder that accumulates into an
// in-memory buffer, retrievable with Bytes().
func NewBytesEncoder(byteorder binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return &Encoder{
		out:       &bytes.Buffer{},
		byteorder: byteorder,
		implicit:  implicit,
	}
}

// NewBytesEncoderWithTransferSyntax is like NewBytesEncoder, but
// derives byte order and VR mode from a transfer syntax UID.
func NewBytesEncoderWithTransferSyntax(transferSyntaxUID string) *Encoder {
	endian, implicit, err := ParseTransferSyntaxUID(transferSyntaxUID)
	if err == nil {
		return NewBytesEncoder(endian, implicit)
	}
	e := NewBytesEncoder(binary.LittleEndian, ExplicitVR)
	e.SetErrorf("%v: unknown transfer syntax uid", transferSyntaxUID)
	return e
}

// NewEncoderWithTransferSyntax is like NewEncoder, but derives byte
// order and VR mode from a transfer syntax UID.
func NewEncoderWithTransferSyntax(out io.Writer, transferSyntaxUID string) *Encoder {
	endian, implicit, err := ParseTransferSyntaxUID(transferSyntaxUID)
	if err == nil {
		return NewEncoder(out, endian, implicit)
	}
	e := NewEncoder(out, binary.LittleEndian, ExplicitVR)
	e.SetErrorf("%v: unknown transfer syntax uid", transferSyntaxUID)
	return e
}

// NewEncoder creates an encoder that writes to out.
func NewEncoder(out io.Writer, byteorder binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return &Encoder{
		out:       out,
		byteorder: byteorder,
		implicit:  implicit,
	}
}

// TransferSyntax returns the encoder's current byte order and VR mode.
func (e *Encoder) TransferSyntax() (binary.ByteOrder, IsImplicitVR) {
	return e.byteorder, e.implicit
}

// PushTransferSyntax temporarily switches encoding mode; a matching
// PopTransferSyntax restores the previous one. Used when writing a
// private-tag sequence's bytes, which the standard requires to be
// Implicit VR Little Endian regardless of the outer transfer syntax.
func (e *Encoder) PushTransferSyntax(byteorder binary.ByteOrder, implicit IsImplicitVR) {
	e.oldTransferSyntaxes = append(e.oldTransferSyntaxes,
		transferSyntaxStackEntry{e.byteorder, e.implicit})
	e.byteorder = byteorder
	e.implicit = implicit
}

// PopTransferSyntax restores the transfer syntax saved by the most
// recent PushTransferSyntax.
func (e *Encoder) PopTransferSyntax() {
	ts := e.oldTransferSyntaxes[len(e.oldTransferSyntaxes)-1]
	e.byteorder = ts.byteorder
	e.implicit = ts.implicit
	e.oldTransferSyntaxes = e.oldTransferSyntaxes[:len(e.oldTransferSyntaxes)-1]
}

// SetError records err as the encoder's sticky error. Once set, later
// calls to SetError are no-ops; Error() reports whichever error was
// set first.
func (e *Encoder) SetError(err error) {
	if err != nil && e.err == nil {
		e.err = err
	}
}

// SetErrorf is SetError with a format string.
func (e *Encoder) SetErrorf(format string, args ...interface{}) {
	e.SetError(fmt.Errorf(format, args...))
}

// Error returns the sticky error set by SetError, if any.
func (e *Encoder) Error() error { return e.err }

// Bytes returns the data written so far. Requires an encoder created
// with NewBytesEncoder, with no outstanding PushTransferSyntax, and
// panics if a write failed.
func (e *Encoder) Bytes() []byte {
	DoAssert(len(e.oldTransferSyntaxes) == 0)
	if e.err != nil {
		logrus.Panic(e.err)
	}
	return e.out.(*bytes.Buffer).Bytes()
}

func (e *Encoder) WriteByte(v byte) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteUInt16(v uint16) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteUInt32(v uint32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteUInt64(v uint64) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteInt16(v int16) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteInt32(v int32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteInt64(v int64) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteFloat32(v float32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteFloat64(v float64) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

// WriteString writes v as raw bytes, with no length prefix or padding.
func (e *Encoder) WriteString(v string) {
	if _, err := e.out.Write([]byte(v)); err != nil {
		e.SetError(err)
	}
}

// WriteZeros writes n zero bytes.
func (e *Encoder) WriteZeros(n int) {
	zeros := make([]byte, n)
	e.out.Write(zeros)
}

// WriteBytes copies v to the output verbatim.
func (e *Encoder) WriteBytes(v []byte) {
	e.out.Write(v)
}

// Decoder is a helper for decoding DICOM's low-level wire types. Like
// Encoder, errors accumulate in a sticky field rather than being
// returned from every Read call.
type Decoder struct {
	in        *bufio.Reader
	err       error
	byteorder binary.ByteOrder

	implicit IsImplicitVR

	limit int64
	pos   int64

	codingSystem CodingSystem

	oldTransferSyntaxes []transferSyntaxStackEntry
	stateStack          []stackEntry
}

// NewDecoder creates a decoder reading from in, bounded at most by a
// caller-chosen PushLimit (not by this constructor's arguments).
func NewDecoder(in io.Reader, byteorder binary.ByteOrder, implicit IsImplicitVR) *Decoder {
	return &Decoder{
		in:        bufio.NewReader(in),
		byteorder: byteorder,
		implicit:  implicit,
		limit:     math.MaxInt64,
	}
}

// NewBytesDecoder creates a decoder reading from an in-memory slice.
func NewBytesDecoder(data []byte, byteorder binary.ByteOrder, implicit IsImplicitVR) *Decoder {
	return NewDecoder(bytes.NewReader(data), byteorder, implicit)
}

// NewBytesDecoderWithTransferSyntax is like NewBytesDecoder, but
// derives byte order and VR mode from a transfer syntax UID.
func NewBytesDecoderWithTransferSyntax(data []byte, transferSyntaxUID string) *Decoder {
	endian, implicit, err := ParseTransferSyntaxUID(transferSyntaxUID)
	if err == nil {
		return NewBytesDecoder(data, endian, implicit)
	}
	d := NewBytesDecoder(data, binary.LittleEndian, ExplicitVR)
	d.SetError(fmt.Errorf("%v: unknown transfer syntax uid", transferSyntaxUID))
	return d
}

// SetError records err as the decoder's sticky error, appending the
// current byte offset for diagnostics (unless err is io.EOF, which
// carries its own well-known meaning). The offset is wrapped with %w,
// not %s, so a sentinel like ErrUnknownExplicitVR stays discoverable
// with errors.Is after it has passed through this accumulator.
func (d *Decoder) SetError(err error) {
	if err != nil && d.err == nil {
		if err != io.EOF {
			err = fmt.Errorf("%w (file offset %d)", err, d.pos)
		}
		d.err = err
	}
}

// SetErrorf is SetError with a format string.
func (d *Decoder) SetErrorf(format string, args ...interface{}) {
	d.SetError(fmt.Errorf(format, args...))
}

// TransferSyntax returns the decoder's current byte order and VR mode.
func (d *Decoder) TransferSyntax() (byteorder binary.ByteOrder, implicit IsImplicitVR) {
	return d.byteorder, d.implicit
}

// PushTransferSyntax temporarily switches decoding mode; a matching
// PopTransferSyntax restores the previous one.
func (d *Decoder) PushTransferSyntax(byteorder binary.ByteOrder, implicit IsImplicitVR) {
	d.oldTransferSyntaxes = append(d.oldTransferSyntaxes, transferSyntaxStackEntry{d.byteorder, d.implicit})
	d.byteorder = byteorder
	d.implicit = implicit
}

// PushTransferSyntaxByUID is PushTransferSyntax given a UID.
func (d *Decoder) PushTransferSyntaxByUID(uid string) {
	endian, implicit, err := ParseTransferSyntaxUID(uid)
	if err != nil {
		d.SetError(err)
	}
	d.PushTransferSyntax(endian, implicit)
}

// SetCodingSystem overrides the default (7-bit ASCII) byte-to-string
// decoder used by ReadString.
func (d *Decoder) SetCodingSystem(cs CodingSystem) {
	d.codingSystem = cs
}

// CodingSystem returns the decoder's current byte-to-string coding
// system, as last set by SetCodingSystem.
func (d *Decoder) CodingSystem() CodingSystem {
	return d.codingSystem
}

// PopTransferSyntax restores the transfer syntax saved by the most
// recent PushTransferSyntax.
func (d *Decoder) PopTransferSyntax() {
	e := d.oldTransferSyntaxes[len(d.oldTransferSyntaxes)-1]
	d.byteorder = e.byteorder
	d.implicit = e.implicit
	d.oldTransferSyntaxes = d.oldTransferSyntaxes[:len(d.oldTransferSyntaxes)-1]
}

// PushLimit temporarily narrows the readable range to n bytes beyond
// the current position, saving the old limit (and any pending error)
// for PopLimit to restore. Used to bound a read to a sequence or
// item's declared length. The new limit must be at or before the
// current limit.
func (d *Decoder) PushLimit(n int64) {
	newLimit := d.pos + n
	if newLimit > d.limit {
		d.SetError(fmt.Errorf("trying to read %d bytes beyond buffer end", newLimit-d.limit))
		newLimit = d.pos
	}
	d.stateStack = append(d.stateStack, stackEntry{limit: d.limit, err: d.err})
	d.limit = newLimit
	d.err = nil
}

// PopLimit restores the limit saved by the most recent PushLimit. If
// the pushed region wasn't fully consumed, the remainder is skipped
// so a parse error in a nested element doesn't derail the rest of the
// dataset.
func (d *Decoder) PopLimit() {
	if d.pos < d.limit {
		d.Skip(int(d.limit - d.pos))
	}
	last := len(d.stateStack) - 1
	d.limit = d.stateStack[last].limit
	if d.stateStack[last].err != nil {
		d.err = d.stateStack[last].err
	}
	d.stateStack = d.stateStack[:last]
}

// Error returns the decoder's sticky error, if any.
func (d *Decoder) Error() error { return d.err }

// Finish reports the decoder's sticky error, or an error if the
// decoder still has unconsumed input.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if !d.EOF() {
		return errors.New("dicomio: decoder has unconsumed trailing data")
	}
	return nil
}

func (d *Decoder) Read(p []byte) (int, error) {
	desired := d.len()
	if desired == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	if desired < int64(len(p)) {
		p = p[:desired]
	}
	n, err := d.in.Read(p)
	if n >= 0 {
		d.pos += int64(n)
	}
	return n, err
}

// EOF reports whether there's no more data to read, either because
// the decoder has a sticky error, its limit has been reached, or the
// underlying reader is drained.
func (d *Decoder) EOF() bool {
	if d.err != nil {
		return true
	}
	if d.limit-d.pos <= 0 {
		return true
	}
	data, _ := d.in.Peek(1)
	return len(data) == 0
}

// BytesRead returns the cumulative number of bytes read so far.
func (d *Decoder) BytesRead() int64 { return d.pos }

// PeekBytes returns up to n bytes ahead without advancing the
// decoder's position, for sniffing a magic number before committing to
// a read path. It may return fewer than n bytes near the end of the
// stream, and never sets a sticky error.
func (d *Decoder) PeekBytes(n int) []byte {
	data, _ := d.in.Peek(n)
	return data
}

func (d *Decoder) len() int64 { return d.limit - d.pos }

// ReadByte reads a single byte. On failure it sets a sticky error and
// returns a junk value.
func (d *Decoder) ReadByte() (v byte) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
		return 0
	}
	return v
}

func (d *Decoder) ReadUInt32() (v uint32) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadInt32() (v int32) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadUInt16() (v uint16) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadInt16() (v int16) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadUInt64() (v uint64) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadInt64() (v int64) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadFloat32() (v float32) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadFloat64() (v float64) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func internalReadString(d *Decoder, sd *encoding.Decoder, length int) string {
	raw := d.ReadBytes(length)
	if len(raw) == 0 {
		return ""
	}
	if sd == nil {
		// UTF-8 is assumed to be a superset of plain ASCII.
		return string(raw)
	}
	decoded, err := sd.Bytes(raw)
	if err != nil {
		d.SetError(err)
		return ""
	}
	return string(decoded)
}

// ReadStringWithCodingSystem reads length bytes and decodes them with
// the coding-system slot csType selects (PN values use distinct
// alphabetic/ideographic/phonetic decoders; see PS3.5 6.2).
func (d *Decoder) ReadStringWithCodingSystem(csType CodingSystemType, length int) string {
	var sd *encoding.Decoder
	switch csType {
	case AlphabeticCodingSystem:
		sd = d.codingSystem.Alphabetic
	case IdeographicCodingSystem:
		sd = d.codingSystem.Ideographic
	case PhoneticCodingSystem:
		sd = d.codingSystem.Phonetic
	default:
		panic(csType)
	}
	return internalReadString(d, sd, length)
}

// ReadString reads length bytes and decodes them with the decoder's
// ideographic coding system, the default slot for non-PN string VRs.
func (d *Decoder) ReadString(length int) string {
	return internalReadString(d, d.codingSystem.Ideographic, length)
}

// ReadBytes reads exactly length bytes, or sets a sticky error if
// fewer are available.
func (d *Decoder) ReadBytes(length int) []byte {
	if d.len() < int64(length) {
		d.SetError(fmt.Errorf("ReadBytes: requested %d, available %d", length, d.len()))
		return nil
	}
	v := make([]byte, length)
	remaining := v
	for len(remaining) > 0 {
		n, err := d.Read(remaining)
		if err != nil {
			d.SetError(err)
			break
		}
		remaining = remaining[n:]
	}
	DoAssert(d.err != nil || len(remaining) == 0)
	return v
}

// Skip discards length bytes without allocating a value for them.
func (d *Decoder) Skip(length int) {
	if d.len() < int64(length) {
		d.SetError(fmt.Errorf("Skip: requested %d, available %d", length, d.len()))
		return
	}
	junkSize := 1 << 16
	if length < junkSize {
		junkSize = length
	}
	junk := make([]byte, junkSize)
	remaining := length
	for remaining > 0 {
		tempLength := len(junk)
		if remaining < tempLength {
			tempLength = remaining
		}
		n, err := d.Read(junk[:tempLength])
		if err != nil {
			d.SetError(err)
			break
		}
		DoAssert(n > 0)
		remaining -= n
	}
	DoAssert(d.err != nil || remaining == 0)
}

// ReadTagOrEOF reads the next element's (group, element) tag pair. It
// distinguishes a clean end-of-dataset (zero bytes available exactly
// at a tag boundary — reported as ErrExpectedEOF) from every other
// form of failure, which is set as the decoder's sticky error and
// also returned. Callers use this to tell "the dataset ended here, as
// expected" from "something went wrong mid-element".
func (d *Decoder) ReadTagOrEOF() (dicomtag.Tag, error) {
	if d.err != nil {
		return dicomtag.Tag{}, d.err
	}
	if d.EOF() {
		return dicomtag.Tag{}, ErrExpectedEOF
	}
	group := d.ReadUInt16()
	element := d.ReadUInt16()
	if err := d.Error(); err != nil {
		return dicomtag.Tag{}, err
	}
	return dicomtag.Tag{Group: group, Element: element}, nil
}

// DoAssert panics (via logrus, so the panic is logged before it
// propagates) if condition is false. Used for invariants that a
// well-formed Decoder/Encoder should never violate.
func DoAssert(condition bool, values ...interface{}) {
	if !condition {
		var s string
		for _, value := range values {
			s += fmt.Sprintf("%v", value)
		}
		logrus.Panic(s)
	}
}
