package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CodeListSet stores code lists as JSON text in the database.
type CodeListSet map[string]CodeList

// Value implements the driver.Valuer interface for database serialization.
func (c CodeListSet) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (c *CodeListSet) Scan(value interface{}) error {
	if value == nil {
		*c = CodeListSet{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan CodeListSet")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, c)
}

// DatasetRecord is the persisted header of a dataset.
type DatasetRecord struct {
	ID               string      `gorm:"type:text;primaryKey" json:"id"`
	ExternalID       string      `gorm:"type:text;not null;uniqueIndex:idx_datasets_external" json:"external_id"`
	AgencyID         string      `gorm:"type:text" json:"agency_id"`
	FullName         string      `gorm:"type:text;index:idx_datasets_name" json:"full_name"`
	Unit             string      `gorm:"type:text" json:"unit"`
	Periodicity      string      `gorm:"type:text" json:"periodicity"`
	Releases         string      `gorm:"type:text" json:"releases"`
	NextRelease      *time.Time  `json:"next_release,omitempty"`
	RangeStart       int         `json:"range_start"`
	RangeEnd         int         `json:"range_end"`
	Methodology      string      `gorm:"type:text" json:"methodology"`
	AgencyName       string      `gorm:"type:text" json:"agency_name"`
	AgencyDept       string      `gorm:"type:text" json:"agency_dept"`
	ClassifierID     string      `gorm:"type:text" json:"classifier_id"`
	ClassifierPath   string      `gorm:"type:text;index:idx_datasets_classifier" json:"classifier_path"`
	PreparedBy       string      `gorm:"type:text" json:"prepared_by"`
	PreparedContacts string      `gorm:"type:text" json:"prepared_contacts"`
	CodeLists        CodeListSet `gorm:"type:text" json:"codes"`
	Prepared         time.Time   `json:"prepared"`
	Updated          time.Time   `json:"updated"`
	ObservationCount int         `json:"observation_count"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName returns the database table name for DatasetRecord.
func (DatasetRecord) TableName() string {
	return "datasets"
}

// ObservationRecord is one persisted observation row.
type ObservationRecord struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	DatasetID       string        `gorm:"type:text;not null;index:idx_observations_dataset" json:"dataset_id"`
	ClassifierGroup string        `gorm:"type:text" json:"classifier"`
	ClassifierValue string        `gorm:"type:text" json:"class"`
	Unit            string        `gorm:"type:text" json:"unit"`
	Period          string        `gorm:"type:text" json:"period"`
	Year            int           `gorm:"index:idx_observations_year" json:"year"`
	Value           float64       `json:"value"`
	Degraded        DegradedField `json:"degraded"`
}

// TableName returns the database table name for ObservationRecord.
func (ObservationRecord) TableName() string {
	return "observations"
}

// NewDatasetRecord flattens a parsed dataset into its persisted header.
// The caller assigns ID.
func NewDatasetRecord(ds *Dataset) *DatasetRecord {
	return &DatasetRecord{
		ExternalID:       ds.ID,
		AgencyID:         ds.AgencyID,
		FullName:         ds.FullName,
		Unit:             ds.Unit,
		Periodicity:      ds.Periodicity.Value,
		Releases:         ds.Periodicity.Releases,
		NextRelease:      ds.Periodicity.NextRelease,
		RangeStart:       ds.DataRange.Start,
		RangeEnd:         ds.DataRange.End,
		Methodology:      ds.Methodology,
		AgencyName:       ds.AgencyName,
		AgencyDept:       ds.AgencyDept,
		ClassifierID:     ds.Classifier.ID,
		ClassifierPath:   ds.Classifier.Path,
		PreparedBy:       ds.PreparedBy.Name,
		PreparedContacts: ds.PreparedBy.Contacts,
		CodeLists:        CodeListSet(ds.CodeLists),
		Prepared:         ds.Prepared,
		Updated:          ds.Updated,
		ObservationCount: len(ds.Observations),
	}
}

// NewObservationRecords converts observations into rows owned by datasetID.
func NewObservationRecords(datasetID string, obs []Observation) []ObservationRecord {
	rows := make([]ObservationRecord, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, ObservationRecord{
			DatasetID:       datasetID,
			ClassifierGroup: o.ClassifierGroup,
			ClassifierValue: o.ClassifierValue,
			Unit:            o.Unit,
			Period:          o.Period,
			Year:            o.Year,
			Value:           o.Value,
			Degraded:        o.Degraded,
		})
	}
	return rows
}
