package domain

import "time"

// Code is one enumerated value of a code list.
type Code struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

// CodeList is a named enumeration used to resolve series keys into labels.
type CodeList struct {
	Name  string `json:"name"`
	Codes []Code `json:"values"`
}

// Lookup returns the description registered for value.
func (c CodeList) Lookup(value string) (string, bool) {
	for _, code := range c.Codes {
		if code.Value == value {
			return code.Description, true
		}
	}
	return "", false
}

// Periodicity describes how often a dataset is released.
type Periodicity struct {
	Value       string     `json:"value"`
	Releases    string     `json:"releases"`
	NextRelease *time.Time `json:"next,omitempty"`
}

// DataRange is the inclusive span of years the dataset covers.
type DataRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Classifier places a dataset within the subject taxonomy.
type Classifier struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Responsible identifies who prepared a dataset.
type Responsible struct {
	Name     string `json:"name"`
	Contacts string `json:"contacts"`
}

// DegradedField flags observation fields replaced by zero values during parsing.
type DegradedField uint8

const (
	// DegradedYear is set when the observation time was missing or not an integer.
	DegradedYear DegradedField = 1 << iota
	// DegradedValue is set when the observation value was missing or not a number.
	DegradedValue
)

// Has reports whether f contains flag.
func (f DegradedField) Has(flag DegradedField) bool {
	return f&flag != 0
}

// Observation is a single data point of a dataset.
type Observation struct {
	ClassifierGroup string        `json:"classifier"`
	ClassifierValue string        `json:"class"`
	Unit            string        `json:"unit"`
	Period          string        `json:"period"`
	Year            int           `json:"year"`
	Value           float64       `json:"value"`
	Degraded        DegradedField `json:"degraded,omitempty"`
}

// Dataset is the canonical form of one parsed SDMX document.
type Dataset struct {
	Prepared     time.Time           `json:"prepared"`
	ID           string              `json:"id"`
	AgencyID     string              `json:"agency_id"`
	CodeLists    map[string]CodeList `json:"codes"`
	FullName     string              `json:"full_name"`
	Unit         string              `json:"unit"`
	Periodicity  Periodicity         `json:"periodicity"`
	DataRange    DataRange           `json:"data_range"`
	Updated      time.Time           `json:"updated"`
	Methodology  string              `json:"methodology"`
	AgencyName   string              `json:"agency_name"`
	AgencyDept   string              `json:"agency_dept"`
	Classifier   Classifier          `json:"classifier"`
	PreparedBy   Responsible         `json:"prepared_by"`
	Observations []Observation       `json:"data"`
}

// DegradedCount returns how many observations carry at least one degraded field.
func (d *Dataset) DegradedCount() int {
	n := 0
	for _, obs := range d.Observations {
		if obs.Degraded != 0 {
			n++
		}
	}
	return n
}
