// Package dicomtag defines the DICOM Tag type, tag paths, and the
// static data dictionary used to resolve a tag's default VR, human
// name, and value multiplicity.
package dicomtag

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is a <group, element> tuple that identifies an element type in
// a DICOM file. Well-known tags are initialized in dictionary.go from
// the embedded data dictionary.
type Tag struct {
	// Group and Element are the halves of a hex-pair tag, e.g. (0010,0010).
	Group   uint16
	Element uint16
}

// Compare returns -1/0/1 if t<other | t==other | t>other. Tags order
// by group first, then by element.
func (t Tag) Compare(other Tag) int {
	if t.Group < other.Group {
		return -1
	}
	if t.Group > other.Group {
		return 1
	}
	if t.Element < other.Element {
		return -1
	}
	if t.Element > other.Element {
		return 1
	}
	return 0
}

// Less reports whether t sorts before other under Compare.
func (t Tag) Less(other Tag) bool { return t.Compare(other) < 0 }

func IsPrivate(group uint16) bool {
	return group%2 == 1
}

// String returns a string like "(0008, 1234)", where 0x0008 is
// t.Group and 0x1234 is t.Element.
func (t Tag) String() string {
	return fmt.Sprintf("(%04x, %04x)", t.Group, t.Element)
}

// TagNode is one step of a TagPath: a tag plus an optional 1-based
// item index, present when the tag is an item inside a sequence.
type TagNode struct {
	Tag  Tag
	Item *int
}

// NewTagNode builds a node with no item index.
func NewTagNode(tag Tag) TagNode { return TagNode{Tag: tag} }

// NewItemNode builds a node pinned to the given 1-based item index.
func NewItemNode(tag Tag, item int) TagNode {
	i := item
	return TagNode{Tag: tag, Item: &i}
}

func (n TagNode) String() string {
	if n.Item != nil {
		return fmt.Sprintf("%s[%d]", n.Tag, *n.Item)
	}
	return n.Tag.String()
}

// TagPath is an ordered sequence of TagNodes: the parser's current
// location, or a ParseStop target.
type TagPath struct {
	Nodes []TagNode
}

// NewTagPath builds a flat TagPath (no item indices pinned) from a
// list of tags.
func NewTagPath(tags ...Tag) TagPath {
	p := TagPath{Nodes: make([]TagNode, len(tags))}
	for i, t := range tags {
		p.Nodes[i] = NewTagNode(t)
	}
	return p
}

func (p TagPath) String() string {
	parts := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, "/")
}

// TagInfo holds detail information about a Tag, as found in the DICOM
// standard's data dictionary.
type TagInfo struct {
	Tag Tag
	// VR is the default value encoding, e.g. "UL", "CS".
	VR string
	// Name is the human-readable tag name, e.g. "PatientID".
	Name string
	// VM is the value multiplicity (expected # of values in an element).
	VM string
}

// MetadataGroup is the Tag.Group value used by file-meta tags.
const MetadataGroup = 2

// VRKind defines the Go-level encoding used for an element's values.
type VRKind int

const (
	// VRStringList means the element stores a list of strings.
	VRStringList VRKind = iota
	// VRBytes means the element stores a []byte.
	VRBytes
	// VRString means the element stores a single string.
	VRString
	// VRUInt16List means the element stores a list of uint16s.
	VRUInt16List
	// VRUInt32List means the element stores a list of uint32s.
	VRUInt32List
	// VRInt16List means the element stores a list of int16s.
	VRInt16List
	// VRInt32List means the element stores a list of int32s.
	VRInt32List
	// VRUInt64List means the element stores a list of uint64s (UV).
	VRUInt64List
	// VRInt64List means the element stores a list of int64s (SV).
	VRInt64List
	// VRFloat32List means the element stores a list of float32s.
	VRFloat32List
	// VRFloat64List means the element stores a list of float64s.
	VRFloat64List
	// VRSequence means the element stores a list of *Elements, w/ TagItem.
	VRSequence
	// VRItem means the element stores a list of *Elements.
	VRItem
	// VRTagList means the element stores a list of Tags.
	VRTagList
	// VRDate means the element stores a date string.
	VRDate
	// VRPixelData means the element stores a PixelDataInfo.
	VRPixelData
)

// GetVRKind returns the Go representation of an element's values,
// given its <tag, vr>.
func GetVRKind(tag Tag, vr string) VRKind {
	if tag == Item {
		return VRItem
	} else if tag == PixelData {
		return VRPixelData
	}
	switch vr {
	case "DA":
		return VRDate
	case "AT":
		return VRTagList
	case "OW", "OB", "OL", "OV", "OD":
		return VRBytes
	case "LT", "UT", "ST", "UR", "UC":
		return VRString
	case "UL":
		return VRUInt32List
	case "SL", "IS":
		return VRInt32List
	case "US":
		return VRUInt16List
	case "SS":
		return VRInt16List
	case "UV":
		return VRUInt64List
	case "SV":
		return VRInt64List
	case "FL", "OF":
		return VRFloat32List
	case "FD", "DS":
		return VRFloat64List
	case "SQ":
		return VRSequence
	default:
		return VRStringList
	}
}

// Find looks up a tag in the dictionary. If tag isn't directly known,
// it is checked against registered private/repeating group-range
// patterns (see RegisterGroupRange), then against the generic
// group-length fallback, before being reported as not found.
func Find(tag Tag) (TagInfo, error) {
	maybeInitTagDict()
	if entry, ok := tagDict[tag]; ok {
		return entry, nil
	}
	if entry, ok := lookupGroupRange(tag); ok {
		return entry, nil
	}
	// (gggg,0000) UL GenericGroupLength 1 GENERIC
	if tag.Group%2 == 0 && tag.Element == 0x0000 {
		return TagInfo{Tag: tag, VR: "UL", Name: "GenericGroupLength", VM: "1"}, nil
	}
	return TagInfo{}, fmt.Errorf("dicomtag: could not find tag %s in dictionary", tag)
}

// MustFind is like Find, but panics on error.
func MustFind(tag Tag) TagInfo {
	e, err := Find(tag)
	if err != nil {
		panic(fmt.Sprintf("tag %v not found: %s", tag, err))
	}
	return e
}

// FindByName finds a tag's dictionary entry by its Name, e.g.
// FindByName("TransferSyntaxUID").
func FindByName(name string) (TagInfo, error) {
	maybeInitTagDict()
	for _, ent := range tagDict {
		if ent.Name == name {
			return ent, nil
		}
	}
	return TagInfo{}, fmt.Errorf("dicomtag: could not find tag named %q", name)
}

// DebugString returns a human-readable diagnostic string for a tag,
// such as "(0010,0010)[PatientName]".
func DebugString(tag Tag) string {
	e, err := Find(tag)
	if err != nil {
		if IsPrivate(tag.Group) {
			return fmt.Sprintf("(%04x,%04x)[private]", tag.Group, tag.Element)
		}
		return fmt.Sprintf("(%04x,%04x)[??]", tag.Group, tag.Element)
	}
	return fmt.Sprintf("(%04x,%04x)[%s]", tag.Group, tag.Element, e.Name)
}

// ParseTag splits a "(group,element)" hex-pair string into a Tag.
func ParseTag(tag string) (Tag, error) {
	parts := strings.Split(strings.Trim(tag, "() "), ",")
	if len(parts) != 2 {
		return Tag{}, fmt.Errorf("dicomtag: malformed tag %q", tag)
	}
	group, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 16, 0)
	if err != nil {
		return Tag{}, err
	}
	elem, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 16, 0)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Group: uint16(group), Element: uint16(elem)}, nil
}
