package iso7816

import (
	"fmt"
	"sync"
)

// A Send is one logical command. The Client answers T=0 follow-ups itself:
//
//	61XX  GET RESPONSE for XX bytes on the same logical channel
//	6CXX  the same command again with Le = XX
//
// and returns every exchange in the Trace. At most MaxFollowUps extra
// exchanges are made. Concurrent Sends are serialized, follow-ups included.

// MaxFollowUps bounds the extra exchanges of a single Send.
const MaxFollowUps = 8

// Transmitter is the physical channel to the card.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Logger receives raw exchanges when set as Client.Debug.
type Logger interface {
	Printf(format string, v ...any)
}

// Client sends commands to a card and resolves T=0 follow-ups.
type Client struct {
	Card  Transmitter
	Debug Logger

	mu sync.Mutex
}

// NewClient creates a Client over card.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits cmd and its follow-ups. On error the trace holds the
// exchanges completed so far.
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var trace Trace
	for next := cmd; next != nil; {
		if len(trace) > MaxFollowUps {
			return trace, fmt.Errorf("card kept requesting follow-up exchanges after %d attempts", MaxFollowUps)
		}
		resp, err := c.exchange(next)
		if err != nil {
			return trace, err
		}
		trace = append(trace, Transaction{Command: next, Response: resp})
		next = followUp(next, resp.Status)
	}
	return trace, nil
}

func (c *Client) exchange(cmd *CommandAPDU) (*ResponseAPDU, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}
	c.logf("-> %02X %02X %02X %02X | %X", raw[0], raw[1], raw[2], raw[3], raw[4:])

	out, err := c.Card.Transmit(raw)
	if err != nil {
		c.logf("<- Error: %s", err)
		return nil, fmt.Errorf("transmission error: %w", err)
	}
	resp, err := ParseResponseAPDU(out)
	if err != nil {
		c.logf("<- Malformed: %X", out)
		return nil, err
	}
	c.logf("<- %04X | %X", uint16(resp.Status), resp.Data)
	return resp, nil
}

// followUp returns the command answering sw, or nil when the exchange is over.
func followUp(cmd *CommandAPDU, sw StatusWord) *CommandAPDU {
	ne := int(sw.SW2())
	if ne == 0 {
		ne = MaxShortLe
	}

	switch sw.SW1() {
	case 0x61:
		cla := cmd.Class
		cla.IsChained = false
		if cla.IsProprietary {
			cla = Class{}
		}
		return NewCommandAPDU(cla, mustInstruction(INS_GET_RESPONSE), 0x00, 0x00, nil, ne)
	case 0x6C:
		retry := *cmd
		retry.Ne = ne
		return &retry
	}
	return nil
}

func (c *Client) logf(format string, v ...any) {
	if c.Debug != nil {
		c.Debug.Printf(format, v...)
	}
}
