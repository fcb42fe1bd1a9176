package dicomtag

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// Well-known tags, resolved from the embedded dictionary at init time.
// Parsing/writing code refers to these instead of spelling out hex
// pairs, the same way the teacher's element.go/writer.go do.
var (
	Item                       Tag
	ItemDelimitationItem       Tag
	SequenceDelimitationItem   Tag

	FileMetaInformationGroupLength Tag
	FileMetaInformationVersion     Tag
	MediaStorageSOPClassUID        Tag
	MediaStorageSOPInstanceUID     Tag
	TransferSyntaxUID              Tag
	ImplementationClassUID         Tag
	ImplementationVersionName      Tag

	SpecificCharacterSet Tag
	QueryRetrieveLevel   Tag

	PatientName       Tag
	PatientID         Tag
	PatientBirthDate  Tag
	PatientSex        Tag
	InstitutionName   Tag
	StudyInstanceUID  Tag
	SeriesInstanceUID Tag
	StudyDate         Tag
	StudyTime         Tag
	Modality          Tag
	SOPClassUID       Tag
	SOPInstanceUID    Tag

	Rows           Tag
	Columns        Tag
	BitsAllocated  Tag
	PixelData      Tag
)

// tagDictData is an embedded, tab-separated slice of the DICOM
// standard's data dictionary (PS3.6), covering the tags this module's
// tests and examples exercise: file-meta, patient/study/series
// identification, common image-pixel-module attributes, and the
// sequence/item delimiter pseudo-tags. Group and Element are hex
// pairs; columns are Tag, VR, Name, VM.
const tagDictData = `
(0002,0000)	UL	FileMetaInformationGroupLength	1
(0002,0001)	OB	FileMetaInformationVersion	1
(0002,0002)	UI	MediaStorageSOPClassUID	1
(0002,0003)	UI	MediaStorageSOPInstanceUID	1
(0002,0010)	UI	TransferSyntaxUID	1
(0002,0012)	UI	ImplementationClassUID	1
(0002,0013)	SH	ImplementationVersionName	1
(0002,0016)	AE	SourceApplicationEntityTitle	1
(0002,0100)	UI	PrivateInformationCreatorUID	1
(0002,0102)	OB	PrivateInformation	1

(0008,0005)	CS	SpecificCharacterSet	1-n
(0008,0008)	CS	ImageType	2-n
(0008,0016)	UI	SOPClassUID	1
(0008,0018)	UI	SOPInstanceUID	1
(0008,0020)	DA	StudyDate	1
(0008,0021)	DA	SeriesDate	1
(0008,0022)	DA	AcquisitionDate	1
(0008,0023)	DA	ContentDate	1
(0008,0030)	TM	StudyTime	1
(0008,0031)	TM	SeriesTime	1
(0008,0050)	SH	AccessionNumber	1
(0008,0060)	CS	Modality	1
(0008,0070)	LO	Manufacturer	1
(0008,0080)	LO	InstitutionName	1
(0008,0090)	PN	ReferringPhysicianName	1
(0008,1030)	LO	StudyDescription	1
(0008,103E)	LO	SeriesDescription	1
(0008,1090)	LO	ManufacturerModelName	1

(0010,0010)	PN	PatientName	1
(0010,0020)	LO	PatientID	1
(0010,0030)	DA	PatientBirthDate	1
(0010,0040)	CS	PatientSex	1
(0010,1010)	AS	PatientAge	1
(0010,1030)	DS	PatientWeight	1

(0018,0050)	DS	SliceThickness	1
(0018,0060)	DS	KVP	1
(0018,1020)	LO	SoftwareVersions	1-n
(0018,1151)	IS	XRayTubeCurrent	1
(0018,1160)	SH	FilterType	1

(0020,000D)	UI	StudyInstanceUID	1
(0020,000E)	UI	SeriesInstanceUID	1
(0020,0010)	SH	StudyID	1
(0020,0011)	IS	SeriesNumber	1
(0020,0013)	IS	InstanceNumber	1
(0020,0020)	CS	PatientOrientation	2-2n
(0020,0032)	DS	ImagePositionPatient	3
(0020,0037)	DS	ImageOrientationPatient	6
(0020,1040)	LO	PositionReferenceIndicator	1

(0028,0002)	US	SamplesPerPixel	1
(0028,0004)	CS	PhotometricInterpretation	1
(0028,0010)	US	Rows	1
(0028,0011)	US	Columns	1
(0028,0030)	DS	PixelSpacing	2
(0028,0100)	US	BitsAllocated	1
(0028,0101)	US	BitsStored	1
(0028,0102)	US	HighBit	1
(0028,0103)	US	PixelRepresentation	1
(0028,1050)	DS	WindowCenter	1-n
(0028,1051)	DS	WindowWidth	1-n
(0028,1052)	DS	RescaleIntercept	1
(0028,1053)	DS	RescaleSlope	1

(0040,A730)	SQ	ContentSequence	1-n
(0040,A168)	SQ	ConceptCodeSequence	1-n

(0054,0016)	SQ	RadiopharmaceuticalInformationSequence	1-n

(0008,1140)	SQ	ReferencedImageSequence	1-n
(0008,0005)	CS	SpecificCharacterSet	1-n

(0088,0130)	SH	StorageMediaFileSetID	1

(7FE0,0008)	OF	FloatPixelData	1
(7FE0,0009)	OD	DoubleFloatPixelData	1
(7FE0,0010)	OW	PixelData	1

(0040,0001)	AE	ScheduledStationAETitle	1-n
(0040,0100)	SQ	ScheduledProcedureStepSequence	1-n

(0008,0100)	SH	CodeValue	1
(0008,0102)	SH	CodingSchemeDesignator	1
(0008,0104)	LO	CodeMeaning	1

(0020,9128)	SL	TemporalPositionIndex	1
(0020,9161)	UI	ConcatenationUID	1
(0028,9099)	SS	LargestValidPixelValue	1

(0088,0140)	UI	StorageMediaFileSetUID	1

(7FE0,0001)	OV	ExtendedOffsetTable	1
(7FE0,0002)	OV	ExtendedOffsetTableLengths	1

(0040,9224)	FD	RealWorldValueLastValueMapped	1
(0040,9225)	FD	RealWorldValueFirstValueMapped	1
(0040,9096)	SQ	RealWorldValueMappingSequence	1-n
(0040,9211)	SV	SelectorSVValue	1
(0040,9212)	UV	SelectorUVValue	1

(0088,0200)	SQ	IconImageSequence	1-n

(FFFE,E000)	NA	Item	1
(FFFE,E00D)	NA	ItemDelimitationItem	1
(FFFE,E0DD)	NA	SequenceDelimitationItem	1

(0008,0201)	SH	TimezoneOffsetFromUTC	1
(0020,0200)	UI	SynchronizationFrameOfReferenceUID	1

(0032,1064)	SQ	RequestedProcedureCodeSequence	1-n

(FFFA,FFFA)	SQ	DigitalSignaturesSequence	1-n

(0004,1130)	CS	FileSetID	1
(0004,1141)	CS	FileSetDescriptorFileID	1

(0088,0904)	LO	TopicTitle	1

(0010,21B0)	LT	AdditionalPatientHistory	1

(0018,0015)	CS	BodyPartExamined	1

(0020,9056)	SH	StackID	1
(0020,9057)	UL	InStackPositionNumber	1
`

var (
	tagDictOnce sync.Once
	tagDict     map[Tag]TagInfo

	// tagDictLoaded is set once tagDict is filled, so the Find calls
	// made while assigning the well-known tags don't re-enter tagDictOnce.
	tagDictLoaded bool

	groupRangesOnce sync.Once
	groupRanges     []groupRangeEntry
)

type groupRangeEntry struct {
	groupPattern glob.Glob
	info         TagInfo
}

func maybeInitTagDict() {
	if tagDictLoaded {
		return
	}
	tagDictOnce.Do(func() {
		tagDict = make(map[Tag]TagInfo)
		reader := csv.NewReader(bytes.NewReader([]byte(tagDictData)))
		reader.Comma = '\t'
		reader.Comment = '#'
		reader.FieldsPerRecord = -1
		for {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				panic(err)
			}
			if len(row) < 4 {
				continue
			}
			tag, err := ParseTag(strings.TrimSpace(row[0]))
			if err != nil {
				continue // group-range rows are registered separately
			}
			tagDict[tag] = TagInfo{
				Tag:  tag,
				VR:   strings.ToUpper(strings.TrimSpace(row[1])),
				Name: strings.TrimSpace(row[2]),
				VM:   strings.TrimSpace(row[3]),
			}
		}
		tagDictLoaded = true

		Item = MustFind(Tag{0xFFFE, 0xE000}).Tag
		ItemDelimitationItem = MustFind(Tag{0xFFFE, 0xE00D}).Tag
		SequenceDelimitationItem = MustFind(Tag{0xFFFE, 0xE0DD}).Tag

		FileMetaInformationGroupLength = MustFind(Tag{0x0002, 0x0000}).Tag
		FileMetaInformationVersion = MustFind(Tag{0x0002, 0x0001}).Tag
		MediaStorageSOPClassUID = MustFind(Tag{0x0002, 0x0002}).Tag
		MediaStorageSOPInstanceUID = MustFind(Tag{0x0002, 0x0003}).Tag
		TransferSyntaxUID = MustFind(Tag{0x0002, 0x0010}).Tag
		ImplementationClassUID = MustFind(Tag{0x0002, 0x0012}).Tag
		ImplementationVersionName = MustFind(Tag{0x0002, 0x0013}).Tag

		SpecificCharacterSet = MustFind(Tag{0x0008, 0x0005}).Tag
		Modality = MustFind(Tag{0x0008, 0x0060}).Tag
		InstitutionName = MustFind(Tag{0x0008, 0x0080}).Tag
		SOPClassUID = MustFind(Tag{0x0008, 0x0016}).Tag
		SOPInstanceUID = MustFind(Tag{0x0008, 0x0018}).Tag
		StudyDate = MustFind(Tag{0x0008, 0x0020}).Tag
		StudyTime = MustFind(Tag{0x0008, 0x0030}).Tag

		PatientName = MustFind(Tag{0x0010, 0x0010}).Tag
		PatientID = MustFind(Tag{0x0010, 0x0020}).Tag
		PatientBirthDate = MustFind(Tag{0x0010, 0x0030}).Tag
		PatientSex = MustFind(Tag{0x0010, 0x0040}).Tag

		StudyInstanceUID = MustFind(Tag{0x0020, 0x000D}).Tag
		SeriesInstanceUID = MustFind(Tag{0x0020, 0x000E}).Tag

		Rows = MustFind(Tag{0x0028, 0x0010}).Tag
		Columns = MustFind(Tag{0x0028, 0x0011}).Tag
		BitsAllocated = MustFind(Tag{0x0028, 0x0100}).Tag

		PixelData = MustFind(Tag{0x7FE0, 0x0010}).Tag

		// QueryRetrieveLevel (0008,0052) isn't part of the core image
		// modules dictionary above; register it directly since no
		// component in this module issues C-FIND queries, but
		// DebugString and Element.String() output can still name it.
		tagDict[Tag{0x0008, 0x0052}] = TagInfo{Tag: Tag{0x0008, 0x0052}, VR: "CS", Name: "QueryRetrieveLevel", VM: "1"}
		QueryRetrieveLevel = Tag{0x0008, 0x0052}
	})
}

// RegisterGroupRange adds a dictionary entry for a private or
// repeating group range, such as the curve and overlay groups
// (50xx,eeee)/(60xx,eeee) PS3.5 defines. groupPattern is a glob over
// the 4-digit hex group (e.g. "60??" matches 6000-60FF). Lookups that
// miss the exact-tag dictionary fall back to these patterns, matched
// against the tag's Element as well as its Group so a single pattern
// can register a whole family of (group, element) pairs sharing VR
// and Name.
func RegisterGroupRange(groupPattern string, elem uint16, vr, name, vm string) error {
	g, err := glob.Compile(groupPattern)
	if err != nil {
		return err
	}
	groupRangesOnce.Do(func() {}) // ensure groupRanges is usable even if never range-looked-up yet
	groupRanges = append(groupRanges, groupRangeEntry{
		groupPattern: g,
		info: TagInfo{
			Tag:  Tag{Element: elem},
			VR:   vr,
			Name: name,
			VM:   vm,
		},
	})
	return nil
}

func lookupGroupRange(tag Tag) (TagInfo, bool) {
	if len(groupRanges) == 0 {
		return TagInfo{}, false
	}
	groupHex := groupHexString(tag.Group)
	for _, e := range groupRanges {
		if e.info.Tag.Element != tag.Element {
			continue
		}
		if e.groupPattern.Match(groupHex) {
			info := e.info
			info.Tag = tag
			return info, true
		}
	}
	return TagInfo{}, false
}

func groupHexString(group uint16) string {
	const hexDigits = "0123456789ABCDEF"
	b := [4]byte{
		hexDigits[(group>>12)&0xF],
		hexDigits[(group>>8)&0xF],
		hexDigits[(group>>4)&0xF],
		hexDigits[group&0xF],
	}
	return string(b[:])
}

func init() {
	maybeInitTagDict()

	// PS3.5 7.8.1 repeating groups used by legacy curve/overlay data:
	// group (50xx,eeee) and (60xx,eeee) share element layouts across
	// the whole xx range. Registered here instead of hand-listing 256
	// entries per family in tagDictData.
	_ = RegisterGroupRange("50??", 0x0000, "UL", "CurveGroupLength", "1")
	_ = RegisterGroupRange("60??", 0x0000, "UL", "OverlayGroupLength", "1")
	_ = RegisterGroupRange("60??", 0x0010, "US", "OverlayRows", "1")
	_ = RegisterGroupRange("60??", 0x0011, "US", "OverlayColumns", "1")
	_ = RegisterGroupRange("60??", 0x0022, "LO", "OverlayDescription", "1")
	_ = RegisterGroupRange("60??", 0x0050, "SS", "OverlayOrigin", "2")
	_ = RegisterGroupRange("60??", 0x3000, "OW", "OverlayData", "1")
}
