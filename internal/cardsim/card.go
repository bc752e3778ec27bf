// Package cardsim simulates a contactless EMV card and the proximity
// transport in front of it. It backs the unit tests and the "sim" driver of
// the demo command.
package cardsim

import (
	"bytes"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/gregLibert/emv-reader/pkg/iso7816"
)

// PPSE is the DF name answered with Card.PPSE.
const PPSE = "2PAY.SYS.DDF01"

// Record addresses one record of the simulated card.
type Record struct {
	SFI    byte
	Number byte
}

// Card answers SELECT, GET PROCESSING OPTIONS, READ RECORD and GET RESPONSE
// from static data. Missing data produces the usual ISO error status words.
// A zero status field means "answer normally".
type Card struct {
	// PPSE is the FCI returned for SELECT 2PAY.SYS.DDF01.
	PPSE       []byte
	PPSEStatus iso7816.StatusWord

	// Applications maps an uppercase hex AID to the FCI returned when it is selected.
	Applications map[string][]byte
	SelectStatus iso7816.StatusWord

	// GPO is the response to GET PROCESSING OPTIONS.
	GPO       []byte
	GPOStatus iso7816.StatusWord
	GPOErr    error

	Records      map[Record][]byte
	RecordStatus map[Record]iso7816.StatusWord
	RecordErr    map[Record]error

	// ChainResponses makes every data response go through '61XX' + GET RESPONSE.
	ChainResponses bool

	// Latency is spent on each exchange.
	Latency time.Duration

	mu       sync.Mutex
	pending  []byte
	commands [][]byte
}

// Transmit implements iso7816.Transmitter.
func (c *Card) Transmit(cmd []byte) ([]byte, error) {
	if c.Latency > 0 {
		time.Sleep(c.Latency)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands = append(c.commands, bytes.Clone(cmd))

	if len(cmd) < 4 {
		return sw(iso7816.SW_ERR_WRONG_LENGTH), nil
	}

	switch iso7816.InsCode(cmd[1]) {
	case iso7816.INS_SELECT:
		return c.selectFile(commandData(cmd)), nil
	case iso7816.INS_GET_PROCESSING_OPTIONS:
		if c.GPOErr != nil {
			return nil, c.GPOErr
		}
		return c.respond(c.GPO, c.GPOStatus, iso7816.SW_ERR_COND_OF_USE_NOT_SAT), nil
	case iso7816.INS_READ_RECORD:
		rec := Record{SFI: cmd[3] >> 3, Number: cmd[2]}
		if err := c.RecordErr[rec]; err != nil {
			return nil, err
		}
		return c.respond(c.Records[rec], c.RecordStatus[rec], iso7816.SW_ERR_RECORD_NOT_FOUND), nil
	case iso7816.INS_GET_RESPONSE:
		if c.pending == nil {
			return sw(iso7816.SW_ERR_COND_OF_USE_NOT_SAT), nil
		}
		data := c.pending
		c.pending = nil
		return append(bytes.Clone(data), 0x90, 0x00), nil
	default:
		return sw(iso7816.SW_ERR_INS_INVALID), nil
	}
}

func (c *Card) selectFile(name []byte) []byte {
	if string(name) == PPSE {
		return c.respond(c.PPSE, c.PPSEStatus, iso7816.SW_ERR_FILE_NOT_FOUND)
	}
	fci, ok := c.Applications[strings.ToUpper(hex.EncodeToString(name))]
	if !ok {
		return sw(iso7816.SW_ERR_FILE_NOT_FOUND)
	}
	return c.respond(fci, c.SelectStatus, iso7816.SW_ERR_FILE_NOT_FOUND)
}

// respond builds the R-APDU. Must be called with c.mu held.
func (c *Card) respond(data []byte, status, missing iso7816.StatusWord) []byte {
	if status != 0 && status != iso7816.SW_NO_ERROR {
		return sw(status)
	}
	if data == nil {
		return sw(missing)
	}
	if c.ChainResponses && len(data) > 0 && len(data) <= 0xFF {
		c.pending = data
		return []byte{0x61, byte(len(data))}
	}
	return append(bytes.Clone(data), 0x90, 0x00)
}

// Commands returns a copy of every C-APDU received so far.
func (c *Card) Commands() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.commands))
	copy(out, c.commands)
	return out
}

// Count returns how many commands with instruction ins were received.
func (c *Card) Count(ins iso7816.InsCode) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, cmd := range c.commands {
		if len(cmd) > 1 && iso7816.InsCode(cmd[1]) == ins {
			n++
		}
	}
	return n
}

// commandData extracts the data field of a short C-APDU.
func commandData(cmd []byte) []byte {
	if len(cmd) < 6 {
		return nil
	}
	lc := int(cmd[4])
	if 5+lc > len(cmd) {
		return nil
	}
	return cmd[5 : 5+lc]
}

func sw(s iso7816.StatusWord) []byte {
	return []byte{s.SW1(), s.SW2()}
}
