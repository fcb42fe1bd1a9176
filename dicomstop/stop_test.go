package dicomstop_test

import (
	"testing"

	"github.com/nmargas/dicomstream/dicomstop"
	"github.com/nmargas/dicomstream/dicomtag"
	"github.com/stretchr/testify/require"
)

func tagPath(nodes ...dicomtag.TagNode) dicomtag.TagPath {
	return dicomtag.TagPath{Nodes: nodes}
}

func TestBeforeTagValueStopsAtExactTag(t *testing.T) {
	target := tagPath(dicomtag.NewTagNode(dicomtag.PixelData))
	stop := dicomstop.AtBeforeTagValue(target)

	require.False(t, stop.Evaluate(tagPath(dicomtag.NewTagNode(dicomtag.PatientName))))
	require.True(t, stop.Evaluate(tagPath(dicomtag.NewTagNode(dicomtag.PixelData))))
}

func TestBeforeTagValueStopsWhenTagAbsent(t *testing.T) {
	target := tagPath(dicomtag.NewTagNode(dicomtag.PixelData))
	stop := dicomstop.AtBeforeTagValue(target)

	// A tag sorting after PixelData (0x7FE0,0x0010) means PixelData
	// was never present.
	past := tagPath(dicomtag.NewTagNode(dicomtag.Tag{Group: 0x7FE1, Element: 0x0000}))
	require.True(t, stop.Evaluate(past))
}

func TestAfterTagValueStopsOnlyOnceTagPassed(t *testing.T) {
	target := tagPath(dicomtag.NewTagNode(dicomtag.PatientID))
	stop := dicomstop.AtAfterTagValue(target)

	require.False(t, stop.Evaluate(tagPath(dicomtag.NewTagNode(dicomtag.PatientID))))
	require.True(t, stop.Evaluate(tagPath(dicomtag.NewTagNode(dicomtag.PatientBirthDate))))
}

func TestBeforeTagValueItemIndex(t *testing.T) {
	seq := dicomtag.Tag{Group: 0x0040, Element: 0xA730}
	target := tagPath(dicomtag.NewTagNode(seq), dicomtag.NewItemNode(dicomtag.Item, 3))
	stop := dicomstop.AtBeforeTagValue(target)

	before := tagPath(dicomtag.NewTagNode(seq), dicomtag.NewItemNode(dicomtag.Item, 2))
	require.False(t, stop.Evaluate(before))

	at := tagPath(dicomtag.NewTagNode(seq), dicomtag.NewItemNode(dicomtag.Item, 3))
	require.True(t, stop.Evaluate(at))
}

func TestAfterTagValueItemIndex(t *testing.T) {
	seq := dicomtag.Tag{Group: 0x0040, Element: 0xA730}
	target := tagPath(dicomtag.NewTagNode(seq), dicomtag.NewItemNode(dicomtag.Item, 3))
	stop := dicomstop.AtAfterTagValue(target)

	at := tagPath(dicomtag.NewTagNode(seq), dicomtag.NewItemNode(dicomtag.Item, 3))
	require.False(t, stop.Evaluate(at))

	after := tagPath(dicomtag.NewTagNode(seq), dicomtag.NewItemNode(dicomtag.Item, 4))
	require.True(t, stop.Evaluate(after))
}

func TestEndOfDatasetNeverStopsViaEvaluate(t *testing.T) {
	stop := dicomstop.AtEndOfDataset()
	require.False(t, stop.Evaluate(tagPath(dicomtag.NewTagNode(dicomtag.PixelData))))
}

func TestParseBehaviorDefaults(t *testing.T) {
	b := dicomstop.NewParseBehavior()
	require.Equal(t, dicomstop.EndOfDataset, b.Stop().Kind())
	require.False(t, b.AllowPartialObject())
}

func TestParseBehaviorOptions(t *testing.T) {
	target := tagPath(dicomtag.NewTagNode(dicomtag.PixelData))
	b := dicomstop.NewParseBehavior(
		dicomstop.WithStop(dicomstop.AtBeforeTagValue(target)),
		dicomstop.WithAllowPartialObject(true),
	)
	require.Equal(t, dicomstop.BeforeTagValue, b.Stop().Kind())
	require.True(t, b.AllowPartialObject())
}

func TestAfterBytePos(t *testing.T) {
	stop := dicomstop.AtAfterBytePos(1024)
	require.Equal(t, dicomstop.AfterBytePos, stop.Kind())
	require.Equal(t, uint64(1024), stop.BytePos())
}
