package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/connectors"
	"orderexecutor/src/model"
	"orderexecutor/src/validation"
)

// Gateway is the slice of the exchange REST client the drivers need.
type Gateway interface {
	PlaceOrder(ctx context.Context, req connectors.OrderRequest) (*connectors.OrderResponse, error)
	SymbolPrecision(ctx context.Context, symbol string) (pricePrecision, quantityPrecision int, err error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Journal records execution outcomes. Optional; a nil journal disables it.
type Journal interface {
	Create(ctx context.Context, entry *model.ExecutionLog) error
}

// Executor runs the fire-and-forget strategies: each call validates its
// input, issues a bounded sequence of gateway calls, and exits.
type Executor struct {
	log     *logger.Entry
	gateway Gateway
	journal Journal
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewExecutor(gateway Gateway, journal Journal, log *logger.Entry) *Executor {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Executor{log: log, gateway: gateway, journal: journal, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Market places a single market order.
func (e *Executor) Market(ctx context.Context, symbol, side string, quantity float64) (*connectors.OrderResponse, error) {
	symbol, err := validation.Symbol(symbol)
	if err != nil {
		return nil, err
	}
	side, err = validation.Side(side)
	if err != nil {
		return nil, err
	}
	if _, err := validation.Positive(quantity, "quantity"); err != nil {
		return nil, err
	}

	_, qtyPrecision := validation.SymbolPrecision(ctx, e.gateway, symbol, e.log)
	qty := decimal.NewFromFloat(quantity).StringFixed(int32(qtyPrecision))

	e.log.Infof("Initiating MARKET %s order for %s %s", side, qty, symbol)

	req := connectors.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          "MARKET",
		Quantity:      qty,
		ClientOrderID: uuid.NewString(),
	}
	resp, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		e.log.WithError(err).Error("Market order rejected")
		e.record(model.StrategyMarket, req, 0, model.ExecutionStatusRejected, err)
		return nil, err
	}

	e.log.WithField("orderId", resp.OrderID).Infof("Order success, avg price: %s", orDash(resp.AvgPrice))
	e.record(model.StrategyMarket, req, resp.OrderID, model.ExecutionStatusPlaced, nil)
	return resp, nil
}

// Limit places a single GTC limit order.
func (e *Executor) Limit(ctx context.Context, symbol, side string, quantity, price float64) (*connectors.OrderResponse, error) {
	symbol, err := validation.Symbol(symbol)
	if err != nil {
		return nil, err
	}
	side, err = validation.Side(side)
	if err != nil {
		return nil, err
	}
	if _, err := validation.Positive(quantity, "quantity"); err != nil {
		return nil, err
	}
	if _, err := validation.Positive(price, "price"); err != nil {
		return nil, err
	}

	pricePrecision, qtyPrecision := validation.SymbolPrecision(ctx, e.gateway, symbol, e.log)
	qty := decimal.NewFromFloat(quantity).StringFixed(int32(qtyPrecision))
	limitPrice := decimal.NewFromFloat(price).StringFixed(int32(pricePrecision))

	e.log.Infof("Initiating LIMIT %s order for %s %s @ %s", side, qty, symbol, limitPrice)

	req := connectors.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          "LIMIT",
		Quantity:      qty,
		Price:         limitPrice,
		TimeInForce:   "GTC",
		ClientOrderID: uuid.NewString(),
	}
	resp, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		e.log.WithError(err).Error("Limit order rejected")
		e.record(model.StrategyLimit, req, 0, model.ExecutionStatusRejected, err)
		return nil, err
	}

	e.log.WithFields(logger.Fields{"orderId": resp.OrderID, "status": resp.Status}).Info("Order placed")
	e.record(model.StrategyLimit, req, resp.OrderID, model.ExecutionStatusPlaced, nil)
	return resp, nil
}

// StopLimit places a single conditional order with a trigger and a limit price.
func (e *Executor) StopLimit(ctx context.Context, symbol, side string, quantity, stopPrice, limitPrice float64) (*connectors.OrderResponse, error) {
	symbol, err := validation.Symbol(symbol)
	if err != nil {
		return nil, err
	}
	side, err = validation.Side(side)
	if err != nil {
		return nil, err
	}
	if _, err := validation.Positive(quantity, "quantity"); err != nil {
		return nil, err
	}
	if _, err := validation.Positive(stopPrice, "stop price"); err != nil {
		return nil, err
	}
	if _, err := validation.Positive(limitPrice, "limit price"); err != nil {
		return nil, err
	}

	pricePrecision, qtyPrecision := validation.SymbolPrecision(ctx, e.gateway, symbol, e.log)
	qty := decimal.NewFromFloat(quantity).StringFixed(int32(qtyPrecision))
	trigger := decimal.NewFromFloat(stopPrice).StringFixed(int32(pricePrecision))
	limit := decimal.NewFromFloat(limitPrice).StringFixed(int32(pricePrecision))

	e.log.Infof("Placing STOP-LIMIT: trigger @ %s, limit @ %s", trigger, limit)

	req := connectors.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          "STOP",
		Quantity:      qty,
		Price:         limit,
		StopPrice:     trigger,
		TimeInForce:   "GTC",
		ClientOrderID: uuid.NewString(),
	}
	resp, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		e.log.WithError(err).Error("Stop-limit order rejected")
		e.record(model.StrategyStopLimit, req, 0, model.ExecutionStatusRejected, err)
		return nil, err
	}

	e.log.WithField("orderId", resp.OrderID).Info("Stop-limit registered")
	e.record(model.StrategyStopLimit, req, resp.OrderID, model.ExecutionStatusPlaced, nil)
	return resp, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (e *Executor) record(strategy string, req connectors.OrderRequest, orderID int64, status string, cause error) {
	if e.journal == nil {
		return
	}

	qty, _ := decimal.NewFromString(req.Quantity)
	qtyF, _ := qty.Float64()
	entry := &model.ExecutionLog{
		Strategy:         strategy,
		Symbol:           req.Symbol,
		Side:             req.Side,
		OrderType:        req.Type,
		Quantity:         qtyF,
		ExchangeOrderID:  orderID,
		ExchangeClientID: req.ClientOrderID,
		Status:           status,
		RequestedAt:      time.Now().UTC(),
	}
	if req.Price != "" {
		if price, err := decimal.NewFromString(req.Price); err == nil {
			priceF, _ := price.Float64()
			entry.Price = &priceF
		}
	}
	if req.StopPrice != "" {
		if stop, err := decimal.NewFromString(req.StopPrice); err == nil {
			stopF, _ := stop.Float64()
			entry.StopPrice = &stopF
		}
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.journal.Create(ctx, entry); err != nil {
		e.log.WithError(err).Error("Failed to journal execution")
	}
}
