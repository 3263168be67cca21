package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafe_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_orders_rejected_total",
		Help: "Total number of checkouts that did not place an order",
	}, []string{"reason"})

	OrderRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafe_order_revenue_total",
		Help: "Sum of sale prices of placed orders",
	})

	OrderCostTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafe_order_cost_total",
		Help: "Sum of ingredient costs of placed orders",
	})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cafe_checkout_latency_seconds",
		Help:    "Latency of the order fulfillment transaction",
		Buckets: prometheus.DefBuckets,
	})

	CheckoutRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafe_checkout_retries_total",
		Help: "Total number of checkout transactions retried after a deadlock or serialization failure",
	})

	StockShortagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafe_stock_shortages_total",
		Help: "Total number of recipe lines checked out without enough stock",
	})

	WarehouseRecordsDepletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafe_warehouse_records_depleted_total",
		Help: "Total number of warehouse records removed by checkouts",
	})

	ShipmentsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafe_shipments_received_total",
		Help: "Total number of shipments received",
	})

	IngredientStockRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cafe_ingredient_stock_remaining",
		Help: "Remaining stock per ingredient",
	}, []string{"ingredient"})

	StockLowAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_stock_low_alerts_total",
		Help: "Total number of low stock alerts",
	}, []string{"ingredient"})

	BasketEditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_basket_edits_total",
		Help: "Total number of basket edits",
	}, []string{"action"})

	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_catalog_cache_total",
		Help: "Catalog cache lookups",
	}, []string{"result"})

	RequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_request_errors_total",
		Help: "Total number of failed requests recorded in the error log",
	}, []string{"exception"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
