// Package emv implements the contactless EMV read flow on top of iso7816:
// PPSE discovery, application selection, GET PROCESSING OPTIONS and record
// retrieval, plus the extraction of cardholder data from the returned records.
package emv

import "github.com/gregLibert/emv-reader/pkg/tlv"

// EMV data object tags used by the reader (EMV Book 3, Annex A).
const (
	TagAID                      tlv.Tag = 0x4F
	TagApplicationLabel         tlv.Tag = 0x50
	TagTrack2                   tlv.Tag = 0x57
	TagPAN                      tlv.Tag = 0x5A
	TagCardholderName           tlv.Tag = 0x5F20
	TagExpiryDate               tlv.Tag = 0x5F24
	TagApplicationTemplate      tlv.Tag = 0x61
	TagFCITemplate              tlv.Tag = 0x6F
	TagRecordTemplate           tlv.Tag = 0x70
	TagResponseFormat2          tlv.Tag = 0x77
	TagResponseFormat1          tlv.Tag = 0x80
	TagAIP                      tlv.Tag = 0x82
	TagDFName                   tlv.Tag = 0x84
	TagPriorityIndicator        tlv.Tag = 0x87
	TagAFL                      tlv.Tag = 0x94
	TagIssuerCodeTableIndex     tlv.Tag = 0x9F11
	TagApplicationPreferredName tlv.Tag = 0x9F12
	TagFCIProprietaryTemplate   tlv.Tag = 0xA5
	TagFCIIssuerDiscretionary   tlv.Tag = 0xBF0C
)

// PPSEName is the DF name of the Proximity Payment System Environment.
const PPSEName = "2PAY.SYS.DDF01"
