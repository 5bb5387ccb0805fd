package export

import (
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet that holds the issues
const SheetName = "Issues"

// ExcelWriter writes a single worksheet with a bold header row
type ExcelWriter struct{}

func (ExcelWriter) Write(path string, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	header := Header(doc.Fields)
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetName, 1, 1, style); err != nil {
		return err
	}

	for i, issue := range doc.Issues {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := Row(issue, doc.Fields)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
