package dicomdir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func findIn(elems []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, el := range elems {
		if el.Tag == t {
			return el
		}
	}
	return nil
}

// stringsOf returns the trimmed string values of el, or nil when el is
// missing or not a string element.
func stringsOf(el *dicom.Element) []string {
	if el == nil || el.Value == nil {
		return nil
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strings.TrimSpace(strings.TrimRight(v, "\x00"))
	}
	return out
}

func firstString(elems []*dicom.Element, t tag.Tag) (string, bool) {
	vals := stringsOf(findIn(elems, t))
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// floatsOf parses a decimal string element (DS).
func floatsOf(el *dicom.Element) ([]float64, error) {
	vals := stringsOf(el)
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s value %q: %w", el.Tag, v, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// sequenceItems returns the element lists of each item of a sequence element.
func sequenceItems(el *dicom.Element) [][]*dicom.Element {
	if el == nil || el.Value == nil || el.Value.ValueType() != dicom.Sequences {
		return nil
	}
	items, ok := el.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil
	}
	out := make([][]*dicom.Element, 0, len(items))
	for _, item := range items {
		elems, _ := item.GetValue().([]*dicom.Element)
		out = append(out, elems)
	}
	return out
}

// canonical renders a dataset deterministically. Pixel data is skipped and
// sequences are rendered recursively.
func canonical(elems []*dicom.Element) string {
	var b strings.Builder
	writeCanonical(&b, elems, 0)
	return b.String()
}

func writeCanonical(b *strings.Builder, elems []*dicom.Element, depth int) {
	for _, el := range elems {
		if el.Tag.Group == 0x0002 || el.Value == nil {
			continue
		}
		fmt.Fprintf(b, "%s%s %s ", strings.Repeat("  ", depth), el.Tag, el.RawValueRepresentation)
		switch el.Value.ValueType() {
		case dicom.Sequences:
			b.WriteString("[\n")
			for _, item := range sequenceItems(el) {
				writeCanonical(b, item, depth+1)
				b.WriteString(strings.Repeat("  ", depth+1) + "--\n")
			}
			b.WriteString(strings.Repeat("  ", depth) + "]\n")
		case dicom.PixelData:
			b.WriteString("<pixel data>\n")
		default:
			b.WriteString(el.Value.String())
			b.WriteByte('\n')
		}
	}
}
