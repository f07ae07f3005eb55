package domain

import (
	"encoding/json"
	"fmt"
)

// FormatXML is the only catalog format the parser understands.
const FormatXML = "xml"

// Catalog field names with a dedicated Descriptor field.
const (
	fieldIdentifier = "identifier"
	fieldTitle      = "title"
	fieldLink       = "link"
	fieldFormat     = "format"
)

// Descriptor is one entry of the portal catalog.
// Fields the catalog carries beyond the four known ones are kept verbatim in Extra.
type Descriptor struct {
	Identifier string
	Title      string
	Link       string
	Format     string
	Extra      map[string]string
}

// NewDescriptor builds a Descriptor from raw catalog fields.
// Known keys populate the typed fields; everything else lands in Extra.
func NewDescriptor(fields map[string]string) Descriptor {
	d := Descriptor{}
	for k, v := range fields {
		switch k {
		case fieldIdentifier:
			d.Identifier = v
		case fieldTitle:
			d.Title = v
		case fieldLink:
			d.Link = v
		case fieldFormat:
			d.Format = v
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]string)
			}
			d.Extra[k] = v
		}
	}
	return d
}

// Fields returns the descriptor as the flat key/value set it was read from.
func (d Descriptor) Fields() map[string]string {
	out := make(map[string]string, len(d.Extra)+4)
	for k, v := range d.Extra {
		out[k] = v
	}
	out[fieldIdentifier] = d.Identifier
	out[fieldTitle] = d.Title
	out[fieldLink] = d.Link
	out[fieldFormat] = d.Format
	return out
}

// IsXML reports whether the descriptor points at an XML document.
func (d Descriptor) IsXML() bool {
	return d.Format == FormatXML
}

// Validate checks the descriptor can be fetched and parsed.
func (d Descriptor) Validate() error {
	if d.Link == "" {
		return fmt.Errorf("dataset %q has no link: %w", d.Identifier, ErrInvalidArgument)
	}
	if !d.IsXML() {
		return fmt.Errorf("dataset %q has format %q, want %q: %w", d.Identifier, d.Format, FormatXML, ErrInvalidArgument)
	}
	return nil
}

// MarshalJSON writes the descriptor as a single flat object.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Fields())
}

// UnmarshalJSON reads a flat object written by MarshalJSON.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = NewDescriptor(fields)
	return nil
}
