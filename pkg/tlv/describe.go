package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

var tlvSliceType = reflect.TypeOf([]bertlv.TLV(nil))

// WriteStructFields writes one report line per populated []byte, string or
// []bertlv.TLV field of s:
//
//	    - Prefix.Field (tag): value
//
// Lines are separated by newlines with no trailing newline. A non-empty
// builder gets a newline first. Nested structs are left to the caller.
func WriteStructFields(sb *strings.Builder, prefix string, s any) {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}

	var lines []string
	for i := 0; i < val.NumField(); i++ {
		lines = append(lines, describeField(prefix, val.Type().Field(i), val.Field(i))...)
	}
	if len(lines) == 0 {
		return
	}

	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

func describeField(prefix string, sf reflect.StructField, field reflect.Value) []string {
	if (field.Kind() == reflect.Slice || field.Kind() == reflect.String) && field.Len() == 0 {
		return nil
	}

	switch {
	case field.Type() == tlvSliceType:
		var lines []string
		for _, t := range field.Interface().([]bertlv.TLV) {
			lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, t.Tag, t.Value))
		}
		return lines

	case isBytes(field):
		return []string{fmt.Sprintf("    - %s.%s: %s", prefix, fieldLabel(sf), formatBytes(field.Bytes(), sf.Tag.Get("fmt")))}

	case field.Kind() == reflect.String:
		return []string{fmt.Sprintf("    - %s.%s: %s", prefix, fieldLabel(sf), field.String())}
	}
	return nil
}

func fieldLabel(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("tlv"), ",")
	if name == "" {
		return sf.Name
	}
	return fmt.Sprintf("%s (%s)", sf.Name, name)
}

func formatBytes(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "int":
		var n int
		for _, b := range data {
			n = n<<8 | int(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, n)
	}
	return fmt.Sprintf("%X", data)
}

// MakeSafeASCII renders data as printable ASCII, replacing anything else with '.'.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
