// Package tlv provides the BER-TLV (Basic Encoding Rules - Tag-Length-Value)
// tooling used to read EMV card responses: a defensive flat scanner for single
// data objects (FindFirst) and a struct mapper (Unmarshal) for full templates.
package tlv

import (
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// STRUCT MAPPING:
// Unmarshal fills a struct from a list of data objects. Fields are bound with
// struct tags:
//
//	AID   []byte       `tlv:"4F"`              raw value
//	Label string       `tlv:"50" fmt:"ascii"`  printable text, trimmed
//	PDOL  string       `tlv:"9F38"`            uppercase hex
//	FCI   Proprietary  `tlv:"A5"`              constructed object, recursive
//	Apps  []App        `tlv:"61"`              one element per occurrence
//	Other []bertlv.TLV `tlv:",unknown"`        objects no field claimed
//
// A scalar field keeps the first occurrence of its tag; a slice field
// collects all of them in order.

// Unmarshaler allows custom types to implement their own TLV parsing logic.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

var errTarget = errors.New("target must be a non-nil pointer to a struct")

// binding ties a struct field to the tag it is filled from.
type binding struct {
	index  int
	tag    string
	format string
}

// bindings lists the tagged fields of t and the index of its unknown field
// (-1 when absent).
func bindings(t reflect.Type) ([]binding, int) {
	var out []binding
	unknown := -1

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, _, _ := strings.Cut(sf.Tag.Get("tlv"), ",")

		if sf.Tag.Get("tlv") == ",unknown" || sf.Name == "Unknown" {
			unknown = i
			continue
		}
		if name == "" {
			continue
		}
		out = append(out, binding{index: i, tag: strings.ToUpper(name), format: sf.Tag.Get("fmt")})
	}
	return out, unknown
}

// Unmarshal parses raw BER-TLV data and maps it into a target Go struct.
func Unmarshal(data []byte, target any) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps pre-decoded bertlv.TLV objects to a target struct.
func UnmarshalFromPackets(packets []bertlv.TLV, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return errTarget
	}
	v = v.Elem()

	fields, unknown := bindings(v.Type())
	claimed := make([]bool, len(packets))

	for _, b := range fields {
		field := v.Field(b.index)
		isSlice := field.Kind() == reflect.Slice && !isBytes(field)
		set := false

		for i, p := range packets {
			if !strings.EqualFold(p.Tag, b.tag) {
				continue
			}
			claimed[i] = true

			if isSlice {
				elem := reflect.New(field.Type().Elem()).Elem()
				if err := assign(elem, p, b.format); err != nil {
					return fmt.Errorf("tag %s: %w", b.tag, err)
				}
				field.Set(reflect.Append(field, elem))
				continue
			}
			// first occurrence wins; later ones are still claimed
			if set {
				continue
			}
			if err := assign(field, p, b.format); err != nil {
				return fmt.Errorf("tag %s: %w", b.tag, err)
			}
			set = true
		}
	}

	if unknown < 0 {
		return nil
	}

	var rest []bertlv.TLV
	for i, p := range packets {
		if !claimed[i] {
			rest = append(rest, p)
		}
	}
	if len(rest) > 0 {
		v.Field(unknown).Set(reflect.ValueOf(rest))
	}
	return nil
}

// assign stores the content of p into field.
func assign(field reflect.Value, p bertlv.TLV, format string) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(content(p))
		}
	}

	switch {
	case isBytes(field):
		field.SetBytes(content(p))

	case field.Kind() == reflect.String && format == "ascii":
		field.SetString(strings.TrimSpace(MakeSafeASCII(p.Value)))

	case field.Kind() == reflect.String:
		field.SetString(strings.ToUpper(hex.EncodeToString(p.Value)))

	case field.Kind() == reflect.Struct:
		return unmarshalNested(p, field.Addr().Interface())

	case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return unmarshalNested(p, field.Interface())
	}
	return nil
}

func unmarshalNested(p bertlv.TLV, target any) error {
	if len(p.TLVs) > 0 {
		return UnmarshalFromPackets(p.TLVs, target)
	}
	return Unmarshal(p.Value, target)
}

// content returns the value bytes of p, re-encoding the children of a
// constructed object.
func content(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}

func isBytes(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

// GetValue decodes data as a sequence of top-level BER-TLV objects and returns
// the payload of the first one carrying tag. Unlike FindFirst, the whole buffer
// must be well formed.
func GetValue(data []byte, tag Tag) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode failed: %w", err)
	}

	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag.String()) {
			return content(p), nil
		}
	}
	return nil, fmt.Errorf("tag %s not found", tag)
}
