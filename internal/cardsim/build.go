package cardsim

import (
	"github.com/gregLibert/emv-reader/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// Primitive builds a primitive data object.
func Primitive(tag string, value []byte) bertlv.TLV {
	return bertlv.TLV{Tag: tag, Value: value}
}

// Template builds a constructed data object.
func Template(tag string, children ...bertlv.TLV) bertlv.TLV {
	return bertlv.TLV{Tag: tag, TLVs: children}
}

// Encode serializes data objects. It panics on invalid tags, which only
// happens with broken fixtures.
func Encode(objects ...bertlv.TLV) []byte {
	b, err := bertlv.Encode(objects)
	if err != nil {
		panic(err)
	}
	return b
}

// PPSEResponse builds the FCI of the PPSE listing one application per AID.
func PPSEResponse(aids ...[]byte) []byte {
	var entries []bertlv.TLV
	for _, aid := range aids {
		entries = append(entries, Template("61", Primitive("4F", aid)))
	}
	return Encode(Template("6F",
		Primitive("84", []byte(PPSE)),
		Template("A5", Template("BF0C", entries...)),
	))
}

// ApplicationFCI builds the FCI answered to SELECT AID.
func ApplicationFCI(aid []byte, label string) []byte {
	return Encode(Template("6F",
		Primitive("84", aid),
		Template("A5", Primitive("50", []byte(label))),
	))
}

// GPOFormat2 wraps an AFL in a response template '77'.
func GPOFormat2(afl []byte) []byte {
	return Encode(Template("77",
		Primitive("82", []byte{0x19, 0x80}),
		Primitive("94", afl),
	))
}

// GPOFormat1 builds a format 1 response: AIP followed by the AFL.
func GPOFormat1(afl []byte) []byte {
	return Encode(Primitive("80", append([]byte{0x19, 0x80}, afl...)))
}

// RecordTemplate wraps data objects in a record template '70'.
func RecordTemplate(children ...bertlv.TLV) []byte {
	return Encode(Template("70", children...))
}

// Test card data.
var (
	VisaAID        = tlv.Hex("A0000000031010")
	VisaPAN        = tlv.Hex("4761739001010010")
	VisaTrack2     = tlv.Hex("4761739001010010D251220100000000000F")
	VisaExpiry     = tlv.Hex("251231")
	VisaHolderName = []byte("DOE/JOHN")
)

// VisaCard returns a card that completes the flow through its AFL:
// SFI 1 records 1-2, the first holding the PAN, the second the track 2.
func VisaCard() *Card {
	return &Card{
		PPSE: PPSEResponse(VisaAID),
		Applications: map[string][]byte{
			"A0000000031010": ApplicationFCI(VisaAID, "VISA CREDIT"),
		},
		GPO: GPOFormat2(tlv.Hex("08 01 02 00")),
		Records: map[Record][]byte{
			{SFI: 1, Number: 1}: RecordTemplate(
				Primitive("5A", VisaPAN),
				Primitive("5F24", VisaExpiry),
				Primitive("5F20", VisaHolderName),
			),
			{SFI: 1, Number: 2}: RecordTemplate(
				Primitive("57", VisaTrack2),
			),
		},
	}
}
