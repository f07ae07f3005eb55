package sdmx

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/timmy/russtat/internal/logger"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseYear reads an observation time as an integer year.
func parseYear(s string) (int, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return year, true
}

// parseValue reads a number that may contain inner whitespace (non-breaking
// spaces serve as thousands separators) and a decimal comma.
func parseValue(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == ',':
			return '.'
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseTimestamp reads an ISO-8601 timestamp. Values without a zone are taken
// in the parser's offset zone; the result is always UTC. Unparsable values
// yield the zero time.
func (p *Parser) parseTimestamp(field, s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t.UTC()
		}
	}
	p.logger().Debugf("unparsable %s timestamp %q", field, s)
	return time.Time{}
}

func (p *Parser) lenientInt(datasetID, field, s string) int {
	v, ok := parseYear(s)
	if !ok && strings.TrimSpace(s) != "" {
		p.logger().WithField(logger.FieldDataset, datasetID).Debugf("unparsable %s %q", field, s)
	}
	return v
}
