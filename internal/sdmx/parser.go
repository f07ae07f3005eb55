package sdmx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/logger"
)

// DefaultTimestampOffset is the zone offset assumed for timestamps that carry none.
const DefaultTimestampOffset = 3 * time.Hour

// Series attribute concepts.
const (
	conceptUnit   = "EI"
	conceptPeriod = "PERIOD"
)

// ParseError reports a document that could not be parsed completely.
// Partial holds whatever was extracted before the failure and is never nil.
type ParseError struct {
	Partial *domain.Dataset
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse dataset: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser converts SDMX generic-data documents into domain.Dataset values.
// A Parser is safe for concurrent use.
type Parser struct {
	loc *time.Location
	log *logger.Logger
}

// NewParser creates a parser reading zone-less timestamps at the given UTC offset.
func NewParser(offset time.Duration) *Parser {
	return &Parser{
		loc: time.FixedZone(zoneName(offset), int(offset.Seconds())),
	}
}

// zoneName formats offset as UTC±hh:mm.
func zoneName(offset time.Duration) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	minutes := int(offset / time.Minute)
	return fmt.Sprintf("UTC%c%02d:%02d", sign, minutes/60, minutes%60)
}

// WithLogger sets the logger used for degradation notices.
func (p *Parser) WithLogger(l *logger.Logger) *Parser {
	p.log = l
	return p
}

func (p *Parser) logger() *logger.Logger {
	if p.log != nil {
		return p.log
	}
	return logger.GetDefault()
}

// Parse parses an in-memory document.
func (p *Parser) Parse(doc []byte) (*domain.Dataset, error) {
	return p.ParseReader(bytes.NewReader(doc))
}

// ParseFile parses the document stored at path.
func (p *Parser) ParseFile(path string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return p.ParseReader(f)
}

// ParseReader streams the top-level blocks of a document from r.
// Blocks are decoded one at a time, so a failure late in the document still
// returns the header, code lists and description in ParseError.Partial.
func (p *Parser) ParseReader(r io.Reader) (*domain.Dataset, error) {
	var (
		hdr    *header
		codes  *codeLists
		desc   *description
		series []series
	)
	build := func() *domain.Dataset {
		return p.assemble(hdr, codes, desc, series)
	}
	fail := func(err error) (*domain.Dataset, error) {
		return nil, &ParseError{Partial: build(), Err: err}
	}

	dec := xml.NewDecoder(r)
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth != 2 {
				continue
			}
			var decodeErr error
			switch t.Name {
			case elemHeader:
				hdr = &header{}
				decodeErr = dec.DecodeElement(hdr, &t)
			case elemCodeLists:
				codes = &codeLists{}
				decodeErr = dec.DecodeElement(codes, &t)
			case elemDescription:
				desc = &description{}
				decodeErr = dec.DecodeElement(desc, &t)
			case elemDataSet:
				var ds dataSet
				decodeErr = dec.DecodeElement(&ds, &t)
				series = append(series, ds.Series...)
			default:
				decodeErr = dec.Skip()
			}
			if decodeErr != nil {
				return fail(fmt.Errorf("%w: %s: %v", domain.ErrMalformedDocument, t.Name.Local, decodeErr))
			}
			// DecodeElement and Skip consume the matching end element.
			depth--
		case xml.EndElement:
			depth--
		}
	}

	if hdr == nil {
		return fail(fmt.Errorf("%w: missing Header", domain.ErrMalformedDocument))
	}
	if desc == nil || len(desc.Indicators) == 0 {
		return fail(fmt.Errorf("%w: missing Description/Indicator", domain.ErrMalformedDocument))
	}
	return build(), nil
}

// assemble maps whatever blocks were decoded onto a Dataset.
func (p *Parser) assemble(hdr *header, codes *codeLists, desc *description, series []series) *domain.Dataset {
	ds := &domain.Dataset{
		CodeLists:    map[string]domain.CodeList{},
		Observations: []domain.Observation{},
	}

	if hdr != nil {
		ds.Prepared = p.parseTimestamp("Prepared", hdr.Prepared)
		ds.ID = hdr.DataSetID
		ds.AgencyID = hdr.DataSetAgency
	}

	if codes != nil {
		for _, cl := range codes.Lists {
			list := domain.CodeList{
				Name:  first(cl.Names),
				Codes: make([]domain.Code, 0, len(cl.Codes)),
			}
			for _, c := range cl.Codes {
				list.Codes = append(list.Codes, domain.Code{Value: c.Value, Description: first(c.Descriptions)})
			}
			ds.CodeLists[cl.ID] = list
		}
	}

	if desc != nil && len(desc.Indicators) > 0 {
		ind := desc.Indicators[0]
		ds.FullName = ind.Name
		ds.Unit = first(ind.Units).Value

		per := first(ind.Periodicities)
		ds.Periodicity = domain.Periodicity{Value: per.Value, Releases: per.Releases}
		if per.NextRelease != "" {
			if next, err := time.ParseInLocation("02.01.2006", per.NextRelease, p.loc); err == nil {
				next = next.UTC()
				ds.Periodicity.NextRelease = &next
			} else {
				p.logger().WithField(logger.FieldDataset, ds.ID).Debugf("unparsable next-release %q", per.NextRelease)
			}
		}

		if ind.DataRange != nil {
			ds.DataRange.Start = p.lenientInt(ds.ID, "DataRange.start", ind.DataRange.Start)
			ds.DataRange.End = p.lenientInt(ds.ID, "DataRange.end", ind.DataRange.End)
		}

		ds.Updated = p.parseTimestamp("LastUpdate", ind.LastUpdate.Value)
		ds.Methodology = ind.Methodology.Value
		ds.AgencyName = ind.Organization.Value
		ds.AgencyDept = ind.Department.Value

		alloc := first(ind.Allocations)
		ds.Classifier = domain.Classifier{ID: alloc.ID, Path: alloc.Name}
		ds.PreparedBy = domain.Responsible{Name: ind.Responsible.Name, Contacts: ind.Responsible.Contacts}
	}

	for _, s := range series {
		ds.Observations = append(ds.Observations, observations(s, ds.CodeLists)...)
	}

	if n := ds.DegradedCount(); n > 0 {
		p.logger().WithFields(logger.Fields{
			logger.FieldDataset: ds.ID,
			logger.FieldCount:   n,
		}).Debug("observations with degraded fields")
	}
	return ds
}

// observations expands one series into one observation per key value per Obs.
// A series without key values yields one unclassified observation per Obs.
func observations(s series, codes map[string]domain.CodeList) []domain.Observation {
	var unit, period string
	for _, attr := range s.Attributes {
		switch attr.Concept {
		case conceptUnit:
			unit = attr.Value
		case conceptPeriod:
			period = attr.Value
		}
	}

	keys := s.Keys
	if len(keys) == 0 {
		keys = []conceptValue{{}}
	}

	out := make([]domain.Observation, 0, len(keys)*len(s.Obs))
	for _, o := range s.Obs {
		var degraded domain.DegradedField

		year, ok := 0, false
		if o.Time != nil {
			year, ok = parseYear(*o.Time)
		}
		if !ok {
			degraded |= domain.DegradedYear
		}

		value, ok := 0.0, false
		if o.ObsValue != nil {
			value, ok = parseValue(o.ObsValue.Value)
		}
		if !ok {
			degraded |= domain.DegradedValue
		}

		for _, key := range keys {
			group, label := resolveKey(key, codes)
			out = append(out, domain.Observation{
				ClassifierGroup: group,
				ClassifierValue: label,
				Unit:            unit,
				Period:          period,
				Year:            year,
				Value:           value,
				Degraded:        degraded,
			})
		}
	}
	return out
}

// resolveKey maps a series key onto its code list name and code description.
// Unknown concepts or values resolve to empty strings.
func resolveKey(key conceptValue, codes map[string]domain.CodeList) (group, label string) {
	cl, ok := codes[key.Concept]
	if !ok {
		return "", ""
	}
	label, _ = cl.Lookup(key.Value)
	return cl.Name, label
}
