package strategy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/connectors"
	"orderexecutor/src/model"
	"orderexecutor/src/validation"
)

// Share of one price step under which a grid level is considered too close to
// the current market price to place without an immediate self-fill.
var gridSkipFactor = decimal.NewFromFloat(0.1)

type GridParams struct {
	Symbol      string
	LowerPrice  float64
	UpperPrice  float64
	GridLevels  int
	QtyPerLevel float64
}

// Grid places a neutral ladder of gridLevels+1 evenly spaced GTC limit
// orders: BUY below the current price, SELL above. Levels within 10% of one
// price step of the current price are skipped, and individual placement
// failures do not stop the rest of the ladder. Returns the number of orders
// actually placed.
func (e *Executor) Grid(ctx context.Context, params GridParams) (int, error) {
	symbol, err := validation.Symbol(params.Symbol)
	if err != nil {
		return 0, err
	}
	if _, err := validation.Positive(params.LowerPrice, "lower price"); err != nil {
		return 0, err
	}
	if _, err := validation.Positive(params.UpperPrice, "upper price"); err != nil {
		return 0, err
	}
	if params.UpperPrice <= params.LowerPrice {
		return 0, &validation.ValidationError{Field: "upper price", Message: "must be greater than lower price"}
	}
	if _, err := validation.PositiveInt(params.GridLevels, "grid levels"); err != nil {
		return 0, err
	}
	if _, err := validation.Positive(params.QtyPerLevel, "quantity per level"); err != nil {
		return 0, err
	}

	pricePrecision, qtyPrecision := validation.SymbolPrecision(ctx, e.gateway, symbol, e.log)

	currentPrice, err := e.gateway.TickerPrice(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("fetch current price: %w", err)
	}

	lower := decimal.NewFromFloat(params.LowerPrice)
	upper := decimal.NewFromFloat(params.UpperPrice)
	qty := decimal.NewFromFloat(params.QtyPerLevel).StringFixed(int32(qtyPrecision))

	step := upper.Sub(lower).Div(decimal.NewFromInt(int64(params.GridLevels)))
	skipThreshold := step.Mul(gridSkipFactor)

	e.log.WithFields(logger.Fields{
		"currentPrice": currentPrice,
		"lower":        lower,
		"upper":        upper,
		"step":         step,
	}).Info("Placing grid ladder")

	ordersPlaced := 0

	for i := 0; i <= params.GridLevels; i++ {
		levelPrice := lower.Add(step.Mul(decimal.NewFromInt(int64(i)))).Round(int32(pricePrecision))

		if levelPrice.Sub(currentPrice).Abs().LessThan(skipThreshold) {
			e.log.Infof("Skipping grid level %d @ %s (too close to current price)", i+1, levelPrice)
			continue
		}

		side := "SELL"
		if levelPrice.LessThan(currentPrice) {
			side = "BUY"
		}

		e.log.Infof("Placing grid level %d: %s %s @ %s", i+1, side, qty, levelPrice)

		req := connectors.OrderRequest{
			Symbol:        symbol,
			Side:          side,
			Type:          "LIMIT",
			Quantity:      qty,
			Price:         levelPrice.StringFixed(int32(pricePrecision)),
			TimeInForce:   "GTC",
			ClientOrderID: uuid.NewString(),
		}
		resp, err := e.gateway.PlaceOrder(ctx, req)
		if err != nil {
			e.log.WithError(err).Errorf("Failed to place grid level @ %s", levelPrice)
			e.record(model.StrategyGrid, req, 0, model.ExecutionStatusRejected, err)
			continue
		}

		e.record(model.StrategyGrid, req, resp.OrderID, model.ExecutionStatusPlaced, nil)
		ordersPlaced++
	}

	e.log.Infof("Grid setup complete, total orders placed: %d", ordersPlaced)
	return ordersPlaced, nil
}
