package source

import (
	"strings"

	"treemap/internal/core"
)

// ParseTag reads the text form of a select cell, "Name" or "Name|color".
// Empty names yield nil.
func ParseTag(s string) any {
	name, color, _ := strings.Cut(s, "|")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return core.Tag{Name: name, Color: strings.TrimSpace(color)}
}

// InferFieldType picks number when most non-empty samples parse as a
// number, text otherwise. The odd malformed cell in a numeric column stays
// text and counts as zero when aggregated.
func InferFieldType(samples []string) core.FieldType {
	nonEmpty, numeric := 0, 0
	for _, s := range samples {
		if strings.TrimSpace(s) == "" {
			continue
		}
		nonEmpty++
		if _, ok := core.ParseNumber(s); ok {
			numeric++
		}
	}
	if nonEmpty == 0 || numeric*2 <= nonEmpty {
		return core.FieldText
	}
	return core.FieldNumber
}

// TextCell converts a text cell to the representation used for t.
func TextCell(t core.FieldType, s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	switch t {
	case core.FieldNumber:
		if f, ok := core.ParseNumber(s); ok {
			return f
		}
		return s
	case core.FieldSelect:
		return ParseTag(s)
	default:
		return s
	}
}
