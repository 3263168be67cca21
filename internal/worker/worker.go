package worker

import (
	"context"

	"cafe-service/internal/broker"
	"cafe-service/internal/service"
	"cafe-service/internal/util"

	"go.uber.org/zap"
)

// StockWorker feeds cafe events to the stock monitor
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockWorker creates a new stock worker
func NewStockWorker(consumer *broker.Consumer, monitor *service.StockMonitor) *StockWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(monitor.HandleOrderPlaced)
	eventHandler.OnShipmentReceived(monitor.HandleShipmentReceived)

	return &StockWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.ComponentLogger("stock_worker"),
	}
}

// Start consumes until ctx is cancelled
func (w *StockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	w.logger.Info("Stopping stock worker")
	return w.consumer.Close()
}
