package sdmx

import "encoding/xml"

// SDMX-ML v1.0 namespaces.
const (
	NSMessage   = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message"
	NSCommon    = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/common"
	NSCompact   = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/compact"
	NSCross     = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/cross"
	NSGeneric   = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/generic"
	NSQuery     = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/query"
	NSStructure = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/structure"
	NSUtility   = "http://www.SDMX.org/resources/SDMXML/schemas/v1_0/utility"
	NSXSI       = "http://www.w3.org/2001/XMLSchema-instance"
)

// Top-level blocks of a message document, matched by namespace and local name.
var (
	elemHeader      = xml.Name{Space: NSMessage, Local: "Header"}
	elemCodeLists   = xml.Name{Space: NSMessage, Local: "CodeLists"}
	elemDescription = xml.Name{Space: NSMessage, Local: "Description"}
	elemDataSet     = xml.Name{Space: NSMessage, Local: "DataSet"}
)

type header struct {
	Prepared      string `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Prepared"`
	DataSetID     string `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message DataSetID"`
	DataSetAgency string `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message DataSetAgency"`
}

type codeLists struct {
	Lists []codeList `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/structure CodeList"`
}

type codeList struct {
	ID    string     `xml:"id,attr"`
	Names []string   `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/structure Name"`
	Codes []codeItem `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/structure Code"`
}

type codeItem struct {
	Value        string   `xml:"value,attr"`
	Descriptions []string `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/structure Description"`
}

type description struct {
	Indicators []indicator `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Indicator"`
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

type indicator struct {
	Name          string        `xml:"name,attr"`
	Units         []valueAttr   `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Units>Unit"`
	Periodicities []periodicity `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Periodicities>Periodicity"`
	DataRange     *dataRange    `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message DataRange"`
	LastUpdate    valueAttr     `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message LastUpdate"`
	Methodology   valueAttr     `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Methodology"`
	Organization  valueAttr     `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Organization"`
	Department    valueAttr     `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Department"`
	Allocations   []allocation  `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Allocations>Allocation"`
	Responsible   responsible   `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Responsible"`
}

type periodicity struct {
	Value       string `xml:"value,attr"`
	Releases    string `xml:"releases,attr"`
	NextRelease string `xml:"next-release,attr"`
}

type dataRange struct {
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}

type allocation struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Name"`
}

type responsible struct {
	Name     string `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Name"`
	Contacts string `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/message Contacts"`
}

type dataSet struct {
	Series []series `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/generic Series"`
}

type conceptValue struct {
	Concept string `xml:"concept,attr"`
	Value   string `xml:"value,attr"`
}

type series struct {
	Keys       []conceptValue `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/generic SeriesKey>Value"`
	Attributes []conceptValue `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/generic Attributes>Value"`
	Obs        []obs          `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/generic Obs"`
}

type obs struct {
	Time     *string    `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/generic Time"`
	ObsValue *valueAttr `xml:"http://www.SDMX.org/resources/SDMXML/schemas/v1_0/generic ObsValue"`
}

// first returns the first element of s, or the zero value.
func first[T any](s []T) T {
	var zero T
	if len(s) == 0 {
		return zero
	}
	return s[0]
}
