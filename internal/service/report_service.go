package service

import (
	"context"
	"fmt"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ReportStore aggregates placed orders
type ReportStore interface {
	GetRevenueByDay(ctx context.Context, from, to time.Time) ([]models.RevenueRow, error)
}

// RevenueDay is one day of the revenue report
type RevenueDay struct {
	models.RevenueRow
	Margin decimal.Decimal `json:"margin"`
}

// RevenueReport covers orders created in [From, To)
type RevenueReport struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Days         []RevenueDay    `json:"days"`
	TotalOrders  int             `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalMargin  decimal.Decimal `json:"total_margin"`
}

type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// Revenue builds the revenue and cost report of a period
func (s *ReportService) Revenue(ctx context.Context, from, to time.Time) (*RevenueReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Revenue",
		attribute.String("from", from.Format(time.RFC3339)),
		attribute.String("to", to.Format(time.RFC3339)))
	defer span.End()

	if !from.Before(to) {
		return nil, ErrInvalidPeriod
	}

	rows, err := s.store.GetRevenueByDay(ctx, from, to)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}

	report := &RevenueReport{
		From:         from,
		To:           to,
		Days:         make([]RevenueDay, 0, len(rows)),
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
	}
	for _, row := range rows {
		report.Days = append(report.Days, RevenueDay{
			RevenueRow: row,
			Margin:     row.Revenue.Sub(row.Cost),
		})
		report.TotalOrders += row.Orders
		report.TotalRevenue = report.TotalRevenue.Add(row.Revenue)
		report.TotalCost = report.TotalCost.Add(row.Cost)
	}
	report.TotalMargin = report.TotalRevenue.Sub(report.TotalCost)

	return report, nil
}
