package inspection

import "time"

// Record is the structured result of one inspection report extraction
type Record struct {
	CompanyName     string     `json:"companyName"`
	DrawingNumber   string     `json:"drawingNumber"`
	PartNumber      string     `json:"partNumber"`
	PartName        string     `json:"partName"`
	Inspector       string     `json:"inspector"`
	Comment         string     `json:"comment"`
	InspectionItems []LineItem `json:"inspectionItems"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// LineItem is one measured characteristic (one table row) of a report.
// Values are display strings; tolerances like "+0.1" or symbols like "φA"
// are not reliably numeric.
type LineItem struct {
	Target                string `json:"target"`
	Symbol                string `json:"symbol"`
	Dimension             string `json:"dimension"`
	LowerTolerance        string `json:"lowerTolerance"`
	UpperTolerance        string `json:"upperTolerance"`
	MinAllowableDimension string `json:"minAllowableDimension"`
	Quantity              string `json:"quantity"`
	Measurement1          string `json:"measurement1"`
	Measurement2          string `json:"measurement2"`
	OverallJudgment       string `json:"overallJudgment"`
	Judgment1             string `json:"judgment1"`
	Judgment2             string `json:"judgment2"`
	Remarks               string `json:"remarks"`
}

// Stored is a persisted record with its generated identifier
type Stored struct {
	ID string `json:"id"`
	Record
}

// HeaderFields lists the JSON keys of the record header, in display order
var HeaderFields = []string{
	"companyName",
	"drawingNumber",
	"partNumber",
	"partName",
	"inspector",
	"comment",
}

// ItemFields lists the JSON keys of a line item, in table column order
var ItemFields = []string{
	"target",
	"symbol",
	"dimension",
	"lowerTolerance",
	"upperTolerance",
	"minAllowableDimension",
	"quantity",
	"measurement1",
	"measurement2",
	"overallJudgment",
	"judgment1",
	"judgment2",
	"remarks",
}
