package iso7816

import "fmt"

// C-APDU layout (ISO 7816-3 12.1):
//
//	CLA INS P1 P2 [Lc Data] [Le]
//
//	case 1  header only
//	case 2  header, Le
//	case 3  header, Lc, data
//	case 4  header, Lc, data, Le
//
// Lc and Le take one byte each unless the data exceeds 255 bytes or more
// than 256 bytes are expected. Then both switch to the extended form: Lc is
// '00' followed by two bytes, Le is two bytes ('00' prefixed when there is no
// Lc). A zero Le stands for the maximum of its form.
//
// An R-APDU is the response data followed by SW1 SW2.

const (
	MaxShortLc    = 255
	MaxShortLe    = 256
	MaxExtendedLc = 65535
	MaxExtendedLe = 65536
)

// CommandAPDU is a command to the card. Ne is the number of response bytes
// expected, 0 for none.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int
}

func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{Class: cla, Instruction: ins, P1: p1, P2: p2, Data: data, Ne: ne}
}

// Bytes encodes the command, choosing the short or extended form.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc, ne := len(c.Data), c.Ne
	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("command data too long: %d bytes", nc)
	}
	if ne < 0 || ne > MaxExtendedLe {
		return nil, fmt.Errorf("expected length out of range: %d", ne)
	}

	cla, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}

	out := make([]byte, 0, 4+3+nc+3)
	out = append(out, cla, byte(c.Instruction.Raw), c.P1, c.P2)

	if nc <= MaxShortLc && ne <= MaxShortLe {
		if nc > 0 {
			out = append(out, byte(nc))
			out = append(out, c.Data...)
		}
		if ne > 0 {
			out = append(out, byte(ne))
		}
		return out, nil
	}

	if nc > 0 {
		out = append(out, 0x00, byte(nc>>8), byte(nc))
		out = append(out, c.Data...)
	}
	if ne > 0 {
		if nc == 0 {
			out = append(out, 0x00)
		}
		out = append(out, byte(ne>>8), byte(ne))
	}
	return out, nil
}

func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU is the card's answer to one command.
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU splits raw into data and status word.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	n := len(raw)
	if n < 2 {
		return nil, fmt.Errorf("response too short: length %d", n)
	}
	return &ResponseAPDU{
		Data:   raw[:n-2],
		Status: NewStatusWord(raw[n-2], raw[n-1]),
	}, nil
}

func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
