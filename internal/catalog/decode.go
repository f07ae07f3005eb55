package catalog

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/timmy/russtat/internal/domain"
)

type listDocument struct {
	Items []listItem `xml:"meta>item"`
}

type listItem struct {
	Fields []listField `xml:",any"`
}

type listField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Decode parses a catalog list document into descriptors, in document order.
// Field values are stripped of surrounding double quotes and whitespace.
// With xmlOnly set, entries whose format is not "xml" are dropped.
func Decode(data []byte, xmlOnly bool) ([]domain.Descriptor, error) {
	var doc listDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w: %v", domain.ErrMalformedDocument, err)
	}

	out := make([]domain.Descriptor, 0, len(doc.Items))
	for _, item := range doc.Items {
		fields := make(map[string]string, len(item.Fields))
		for _, f := range item.Fields {
			fields[f.XMLName.Local] = cleanValue(f.Value)
		}
		d := domain.NewDescriptor(fields)
		if xmlOnly && !d.IsXML() {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.Trim(s, `"`))
}
