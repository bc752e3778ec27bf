package emv

import (
	"strings"

	"github.com/gregLibert/emv-reader/pkg/tlv"
)

// CardReadResult is the cardholder data gathered during one scan.
// Empty strings and a nil AID mean the field was not found.
type CardReadResult struct {
	PAN              string `tlv:"5A"`
	Track2           string `tlv:"57"`
	ExpiryDate       string `tlv:"5F24"`
	CardholderName   string `tlv:"5F20"`
	ApplicationLabel string `tlv:"50"`
	PreferredName    string `tlv:"9F12"`
	AID              []byte `tlv:"4F"`

	Success bool
}

// HasAccountData reports whether a PAN or a Track 2 was found.
func (r *CardReadResult) HasAccountData() bool {
	return r.PAN != "" || r.Track2 != ""
}

// Merge runs every field extractor over data and fills the fields that are
// still empty. Fields already set are never overwritten.
func (r *CardReadResult) Merge(data []byte) {
	setOnce(&r.PAN, ExtractPAN(data))
	setOnce(&r.Track2, ExtractTrack2(data))
	setOnce(&r.ExpiryDate, ExtractExpiry(data))
	setOnce(&r.CardholderName, ExtractCardholderName(data))
	setOnce(&r.ApplicationLabel, ExtractApplicationLabel(data))
	setOnce(&r.PreferredName, ExtractPreferredName(data))
}

// finalize derives the PAN from Track 2 when the card did not return tag '5A'.
func (r *CardReadResult) finalize() {
	if r.PAN == "" && r.Track2 != "" {
		r.PAN = PANFromTrack2(r.Track2)
	}
	r.Success = r.HasAccountData()
}

// Describe generates a report of the fields found on the card.
func (r *CardReadResult) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EMV CARD READ RESULT ===")

	tlv.WriteStructFields(&sb, "Card", r)

	return strings.TrimRight(sb.String(), "\n")
}

func setOnce(field *string, v string) {
	if *field == "" && v != "" {
		*field = v
	}
}
