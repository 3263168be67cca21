package report

import (
	"bytes"
	"testing"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteRevenue(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &service.RevenueReport{
		From: from,
		To:   from.AddDate(0, 0, 7),
		Days: []service.RevenueDay{{
			RevenueRow: models.RevenueRow{
				Day:     from,
				Orders:  2,
				Revenue: decimal.RequireFromString("20.00"),
				Cost:    decimal.RequireFromString("7.50"),
			},
			Margin: decimal.RequireFromString("12.50"),
		}},
		TotalOrders:  2,
		TotalRevenue: decimal.RequireFromString("20.00"),
		TotalCost:    decimal.RequireFromString("7.50"),
		TotalMargin:  decimal.RequireFromString("12.50"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRevenue(&buf, r))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, headings, rows[0])
	assert.Equal(t, []string{"2024-03-01", "2", "20", "7.5", "12.5"}, rows[1])
	assert.Equal(t, "Total", rows[2][0])
	assert.Equal(t, "12.5", rows[2][4])

	assert.Equal(t, "revenue_20240301_20240308.xlsx", Filename(r))
}
