package dicomtag_test

import (
	"testing"

	"github.com/nmargas/dicomstream/dicomtag"
	"github.com/stretchr/testify/require"
)

func TestCompareAndLess(t *testing.T) {
	a := dicomtag.Tag{Group: 0x0010, Element: 0x0010}
	b := dicomtag.Tag{Group: 0x0010, Element: 0x0020}
	c := dicomtag.Tag{Group: 0x0020, Element: 0x0000}

	require.Equal(t, -1, a.Compare(b))
	require.Equal(t, 1, b.Compare(a))
	require.Equal(t, 0, a.Compare(a))
	require.True(t, a.Less(b))
	require.True(t, b.Less(c))
}

func TestIsPrivate(t *testing.T) {
	require.True(t, dicomtag.IsPrivate(0x0009))
	require.False(t, dicomtag.IsPrivate(0x0008))
}

func TestTagString(t *testing.T) {
	require.Equal(t, "(0010, 0010)", dicomtag.PatientName.String())
}

func TestTagPathString(t *testing.T) {
	path := dicomtag.TagPath{Nodes: []dicomtag.TagNode{
		dicomtag.NewTagNode(dicomtag.Tag{Group: 0x0040, Element: 0xA730}),
		dicomtag.NewItemNode(dicomtag.Item, 2),
		dicomtag.NewTagNode(dicomtag.PatientID),
	}}
	require.Equal(t, "(0040, a730)/(fffe, e000)[2]/(0010, 0020)", path.String())
}

func TestFindWellKnownTags(t *testing.T) {
	info, err := dicomtag.Find(dicomtag.PatientName)
	require.NoError(t, err)
	require.Equal(t, "PN", info.VR)
	require.Equal(t, "PatientName", info.Name)

	info, err = dicomtag.Find(dicomtag.TransferSyntaxUID)
	require.NoError(t, err)
	require.Equal(t, "UI", info.VR)
}

func TestFindGenericGroupLength(t *testing.T) {
	info, err := dicomtag.Find(dicomtag.Tag{Group: 0x0300, Element: 0x0000})
	require.NoError(t, err)
	require.Equal(t, "UL", info.VR)
	require.Equal(t, "GenericGroupLength", info.Name)
}

func TestFindGroupRangeOverlay(t *testing.T) {
	info, err := dicomtag.Find(dicomtag.Tag{Group: 0x6010, Element: 0x0010})
	require.NoError(t, err)
	require.Equal(t, "US", info.VR)
	require.Equal(t, "OverlayRows", info.Name)
}

func TestFindUnknown(t *testing.T) {
	_, err := dicomtag.Find(dicomtag.Tag{Group: 0x0009, Element: 0x1234})
	require.Error(t, err)
}

func TestFindByName(t *testing.T) {
	info, err := dicomtag.FindByName("StudyInstanceUID")
	require.NoError(t, err)
	require.Equal(t, dicomtag.StudyInstanceUID, info.Tag)

	_, err = dicomtag.FindByName("NoSuchTagName")
	require.Error(t, err)
}

func TestDebugString(t *testing.T) {
	require.Equal(t, "(0010,0010)[PatientName]", dicomtag.DebugString(dicomtag.PatientName))
	require.Contains(t, dicomtag.DebugString(dicomtag.Tag{Group: 0x0009, Element: 0x0001}), "private")
}

func TestParseTag(t *testing.T) {
	tag, err := dicomtag.ParseTag("(0010,0010)")
	require.NoError(t, err)
	require.Equal(t, dicomtag.PatientName, tag)

	_, err = dicomtag.ParseTag("not-a-tag")
	require.Error(t, err)
}

func TestGetVRKind(t *testing.T) {
	require.Equal(t, dicomtag.VRItem, dicomtag.GetVRKind(dicomtag.Item, "NA"))
	require.Equal(t, dicomtag.VRPixelData, dicomtag.GetVRKind(dicomtag.PixelData, "OW"))
	require.Equal(t, dicomtag.VRUInt64List, dicomtag.GetVRKind(dicomtag.Tag{}, "UV"))
	require.Equal(t, dicomtag.VRInt64List, dicomtag.GetVRKind(dicomtag.Tag{}, "SV"))
	require.Equal(t, dicomtag.VRFloat64List, dicomtag.GetVRKind(dicomtag.Tag{}, "DS"))
	require.Equal(t, dicomtag.VRInt32List, dicomtag.GetVRKind(dicomtag.Tag{}, "IS"))
}

func TestRegisterGroupRangeRejectsBadPattern(t *testing.T) {
	err := dicomtag.RegisterGroupRange("[", 0x0000, "UL", "Broken", "1")
	require.Error(t, err)
}
