package report

import (
	"fmt"
	"io"

	"cafe-service/internal/service"
	"cafe-service/internal/util"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName   = "Revenue"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headings = []string{"Day", "Orders", "Revenue", "Cost", "Margin"}

// Filename returns the attachment name of a revenue report
func Filename(r *service.RevenueReport) string {
	return fmt.Sprintf("revenue_%s_%s.xlsx", r.From.Format("20060102"), r.To.Format("20060102"))
}

// WriteRevenue renders the revenue report as a single sheet workbook with
// one row per day followed by a totals row
func WriteRevenue(w io.Writer, r *service.RevenueReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, h := range headings {
		if err := f.SetCellValue(sheetName, cell(i, 1), h); err != nil {
			return err
		}
	}

	row := 2
	for _, d := range r.Days {
		values := []interface{}{
			d.Day.Format("2006-01-02"),
			d.Orders,
			util.Float(d.Revenue),
			util.Float(d.Cost),
			util.Float(d.Margin),
		}
		if err := setRow(f, row, values); err != nil {
			return err
		}
		row++
	}

	totals := []interface{}{
		"Total",
		r.TotalOrders,
		util.Float(r.TotalRevenue),
		util.Float(r.TotalCost),
		util.Float(r.TotalMargin),
	}
	if err := setRow(f, row, totals); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	for i, v := range values {
		if err := f.SetCellValue(sheetName, cell(i, row), v); err != nil {
			return err
		}
	}
	return nil
}

func cell(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}
