package inspection

import "time"

// BlankLineItem returns a line item with every field empty
func BlankLineItem() LineItem {
	return LineItem{}
}

// Clone returns a deep copy of the record. The item slice is never shared.
func (r Record) Clone() Record {
	out := r
	if r.InspectionItems != nil {
		out.InspectionItems = make([]LineItem, len(r.InspectionItems))
		copy(out.InspectionItems, r.InspectionItems)
	}
	return out
}

// EnsureItems appends one blank line item when the record has none
func (r *Record) EnsureItems() {
	if len(r.InspectionItems) == 0 {
		r.InspectionItems = []LineItem{BlankLineItem()}
	}
}

// SetHeader assigns a header field by its JSON key. Unknown keys are ignored.
func (r *Record) SetHeader(key, value string) {
	switch key {
	case "companyName":
		r.CompanyName = value
	case "drawingNumber":
		r.DrawingNumber = value
	case "partNumber":
		r.PartNumber = value
	case "partName":
		r.PartName = value
	case "inspector":
		r.Inspector = value
	case "comment":
		r.Comment = value
	}
}

// Set assigns a line item field by its JSON key. Unknown keys are ignored.
func (li *LineItem) Set(key, value string) {
	switch key {
	case "target":
		li.Target = value
	case "symbol":
		li.Symbol = value
	case "dimension":
		li.Dimension = value
	case "lowerTolerance":
		li.LowerTolerance = value
	case "upperTolerance":
		li.UpperTolerance = value
	case "minAllowableDimension":
		li.MinAllowableDimension = value
	case "quantity":
		li.Quantity = value
	case "measurement1":
		li.Measurement1 = value
	case "measurement2":
		li.Measurement2 = value
	case "overallJudgment":
		li.OverallJudgment = value
	case "judgment1":
		li.Judgment1 = value
	case "judgment2":
		li.Judgment2 = value
	case "remarks":
		li.Remarks = value
	}
}

// FallbackComment marks a record that was not read from the image
const FallbackComment = "OCR処理に失敗しました。これはサンプルデータです。"

// Fallback returns the fixed placeholder record used when the model text
// could not be parsed. Every header field and the single line item are populated.
func Fallback(now time.Time) Record {
	return Record{
		CompanyName:   "サンプル株式会社",
		DrawingNumber: "DRW-2023-001",
		PartNumber:    "PT-A123",
		PartName:      "フランジ",
		Inspector:     "山田太郎",
		Comment:       FallbackComment,
		InspectionItems: []LineItem{
			{
				Target:                "外径",
				Symbol:                "φA",
				Dimension:             "50.0",
				LowerTolerance:        "-0.1",
				UpperTolerance:        "+0.1",
				MinAllowableDimension: "49.9",
				Quantity:              "5",
				Measurement1:          "50.05",
				Measurement2:          "50.02",
				OverallJudgment:       "合格",
				Judgment1:             "合格",
				Judgment2:             "合格",
				Remarks:               "",
			},
		},
		CreatedAt: now.UTC(),
	}
}

// Samples returns the demo records the in-memory store can be seeded with
func Samples() []Record {
	return []Record{
		{
			CompanyName:   "サンプル株式会社",
			DrawingNumber: "DRW-2023-001",
			PartNumber:    "PT-A123",
			PartName:      "フランジ",
			Inspector:     "山田太郎",
			Comment:       "初回検査",
			InspectionItems: []LineItem{
				{
					Target: "外径", Symbol: "φA", Dimension: "50.0",
					LowerTolerance: "-0.1", UpperTolerance: "+0.1", MinAllowableDimension: "49.9",
					Quantity: "5", Measurement1: "50.05", Measurement2: "50.02",
					OverallJudgment: "合格", Judgment1: "合格", Judgment2: "合格",
				},
				{
					Target: "内径", Symbol: "φB", Dimension: "30.0",
					LowerTolerance: "-0.05", UpperTolerance: "+0.05", MinAllowableDimension: "29.95",
					Quantity: "5", Measurement1: "30.03", Measurement2: "30.01",
					OverallJudgment: "合格", Judgment1: "合格", Judgment2: "合格",
				},
			},
			CreatedAt: time.Date(2023, 4, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			CompanyName:   "テスト工業",
			DrawingNumber: "DRW-2023-002",
			PartNumber:    "PT-B456",
			PartName:      "シャフト",
			Inspector:     "佐藤次郎",
			Comment:       "量産検査",
			InspectionItems: []LineItem{
				{
					Target: "長さ", Symbol: "L", Dimension: "100.0",
					LowerTolerance: "-0.2", UpperTolerance: "+0.2", MinAllowableDimension: "99.8",
					Quantity: "10", Measurement1: "100.1", Measurement2: "100.0",
					OverallJudgment: "合格", Judgment1: "合格", Judgment2: "合格",
				},
			},
			CreatedAt: time.Date(2023, 4, 20, 14, 15, 0, 0, time.UTC),
		},
	}
}
