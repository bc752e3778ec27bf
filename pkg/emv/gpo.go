package emv

import (
	"fmt"

	"github.com/gregLibert/emv-reader/pkg/tlv"
)

// GET PROCESSING OPTIONS RESPONSE:
// The card answers GPO in one of two formats (EMV Book 3, 6.5.8.4):
//
// - Format 1: primitive tag '80' whose value is AIP (2 bytes) followed by the AFL.
// - Format 2: constructed tag '77' holding, among others, AIP ('82') and AFL ('94').

// ProcessingOptions is the decoded GPO response.
type ProcessingOptions struct {
	AIP []byte
	AFL []byte
}

// ParseProcessingOptions locates the AIP and AFL in a GPO response.
// An AFL that is missing is not an error; AFL is simply nil.
func ParseProcessingOptions(data []byte) (*ProcessingOptions, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty GPO response")
	}

	if tlv.Tag(data[0]) == TagResponseFormat1 {
		v, err := tlv.GetValue(data, TagResponseFormat1)
		if err != nil {
			return nil, fmt.Errorf("format 1 response: %w", err)
		}
		if len(v) < 2 {
			return nil, fmt.Errorf("format 1 response too short: %d bytes", len(v))
		}
		po := &ProcessingOptions{AIP: v[:2]}
		if len(v) > 2 {
			po.AFL = v[2:]
		}
		return po, nil
	}

	po := &ProcessingOptions{}
	if aip, ok := tlv.FindFirst(TagAIP, data); ok && len(aip) == 2 {
		po.AIP = aip
	}
	if afl, ok := tlv.FindFirst(TagAFL, data); ok {
		po.AFL = afl
	}
	return po, nil
}

// Entries parses the AFL. It fails when no AFL was returned or when it is
// malformed.
func (p *ProcessingOptions) Entries() ([]AFLEntry, error) {
	if len(p.AFL) == 0 {
		return nil, fmt.Errorf("no AFL in GPO response")
	}
	return ParseAFL(p.AFL)
}
