// Package dicomstop defines where a streaming parse of a DICOM
// dataset should end, and how it should behave when it hits a parse
// error along the way. It lets a caller read only as much of a large
// dataset as it needs — e.g. everything up to PixelData, without
// paying to parse or buffer the pixel bytes themselves.
package dicomstop

import "github.com/nmargas/dicomstream/dicomtag"

// Kind discriminates the variants of ParseStop.
type Kind int

const (
	// EndOfDataset parses the entire dataset until the stream ends.
	EndOfDataset Kind = iota
	// BeforeTagValue stops right before the target tag's value would
	// be parsed. If the target tag is absent, parsing stops once a
	// tag sorting after it is encountered.
	BeforeTagValue
	// AfterTagValue stops once the target tag and its value have
	// been fully parsed.
	AfterTagValue
	// AfterBytePos stops once the given number of bytes have been
	// read from the dataset. If that position falls inside an
	// element, the element currently being parsed is still finished.
	AfterBytePos
)

// ParseStop specifies the stopping point for a streaming parse.
type ParseStop struct {
	kind     Kind
	target   dicomtag.TagPath
	bytePos  uint64
}

// AtEndOfDataset parses to the end of the stream.
func AtEndOfDataset() ParseStop {
	return ParseStop{kind: EndOfDataset}
}

// AtBeforeTagValue stops just before target's value is read. Useful
// for stopping at PixelData without buffering it.
func AtBeforeTagValue(target dicomtag.TagPath) ParseStop {
	return ParseStop{kind: BeforeTagValue, target: target}
}

// AtAfterTagValue stops once target (and its value) has been parsed.
func AtAfterTagValue(target dicomtag.TagPath) ParseStop {
	return ParseStop{kind: AfterTagValue, target: target}
}

// AtAfterBytePos stops once n bytes of the dataset have been
// consumed (rounded up to the end of the element in progress).
func AtAfterBytePos(n uint64) ParseStop {
	return ParseStop{kind: AfterBytePos, bytePos: n}
}

// Kind reports which ParseStop variant this is.
func (s ParseStop) Kind() Kind { return s.kind }

// BytePos returns the target byte position for an AfterBytePos stop.
// Meaningless for other kinds.
func (s ParseStop) BytePos() uint64 { return s.bytePos }

// Evaluate reports whether the parser, currently positioned at
// current, should stop. It only has an opinion for BeforeTagValue and
// AfterTagValue; other kinds always return false here (EndOfDataset
// is driven by the stream itself, AfterBytePos by the decoder's
// BytesRead()).
//
// The two paths are compared node by node at matching depths — node i
// of target against node i of current — exactly as dcmpipe's
// ParseStop::evaluate zips target.nodes with current.nodes. A
// mismatch in length only matters up to the shorter path's depth; if
// any compared pair decides the stop, parsing halts.
func (s ParseStop) Evaluate(current dicomtag.TagPath) bool {
	switch s.kind {
	case BeforeTagValue:
		return anyNodePairStops(s.target.Nodes, current.Nodes, isBeforeTagValue)
	case AfterTagValue:
		return anyNodePairStops(s.target.Nodes, current.Nodes, isAfterTagValue)
	default:
		return false
	}
}

func anyNodePairStops(target, current []dicomtag.TagNode, decide func(target, current dicomtag.TagNode) bool) bool {
	n := len(target)
	if len(current) < n {
		n = len(current)
	}
	for i := 0; i < n; i++ {
		if decide(target[i], current[i]) {
			return true
		}
	}
	return false
}

func isBeforeTagValue(target, current dicomtag.TagNode) bool {
	switch {
	case current.Tag.Less(target.Tag):
		// Target not yet reached; keep parsing.
		return false
	case target.Tag.Less(current.Tag):
		// Target's position has been passed without being found.
		return true
	default:
		if current.Item != nil {
			if target.Item != nil {
				return *current.Item >= *target.Item
			}
			return true
		}
		return true
	}
}

func isAfterTagValue(target, current dicomtag.TagNode) bool {
	switch {
	case current.Tag.Less(target.Tag):
		return false
	case target.Tag.Less(current.Tag):
		return true
	default:
		if current.Item != nil {
			if target.Item != nil {
				return *current.Item > *target.Item
			}
			return false
		}
		return false
	}
}

// ParseBehavior bundles a ParseStop with the parser's recovery policy
// for mid-dataset errors.
type ParseBehavior struct {
	stop               ParseStop
	allowPartialObject bool
}

// Option configures a ParseBehavior at construction.
type Option func(*ParseBehavior)

// WithStop overrides the default EndOfDataset stop.
func WithStop(stop ParseStop) Option {
	return func(b *ParseBehavior) { b.stop = stop }
}

// WithAllowPartialObject controls whether a parse error returns the
// partially-built DataSet read so far (true) or discards it in favor
// of just the error (false, the default).
func WithAllowPartialObject(allow bool) Option {
	return func(b *ParseBehavior) { b.allowPartialObject = allow }
}

// NewParseBehavior builds a ParseBehavior, defaulting to parsing the
// whole dataset and discarding partial results on error.
func NewParseBehavior(opts ...Option) ParseBehavior {
	b := ParseBehavior{stop: AtEndOfDataset()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Stop returns the configured stopping point.
func (b ParseBehavior) Stop() ParseStop { return b.stop }

// AllowPartialObject reports whether a parse error should yield a
// partially-populated DataSet instead of being surfaced bare.
func (b ParseBehavior) AllowPartialObject() bool { return b.allowPartialObject }
