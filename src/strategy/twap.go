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

type TWAPParams struct {
	Symbol        string
	Side          string
	TotalQuantity float64
	Duration      time.Duration
	Chunks        int
}

// chunkSizes splits total into n pieces rounded to the quantity precision.
// The last chunk absorbs the rounding remainder so the sizes sum back to total.
func chunkSizes(total decimal.Decimal, chunks int, qtyPrecision int) []decimal.Decimal {
	base := total.Div(decimal.NewFromInt(int64(chunks))).Round(int32(qtyPrecision))

	sizes := make([]decimal.Decimal, chunks)
	planned := decimal.Zero
	for i := 0; i < chunks-1; i++ {
		sizes[i] = base
		planned = planned.Add(base)
	}
	sizes[chunks-1] = total.Sub(planned).Round(int32(qtyPrecision))
	return sizes
}

// TWAP splits the total quantity into equal market-order chunks executed at
// fixed intervals (duration / chunks). A failed chunk is logged and the run
// continues with the remaining chunks. Returns the cumulative executed
// quantity, which is also reported when the context is cancelled mid-run.
func (e *Executor) TWAP(ctx context.Context, params TWAPParams) (decimal.Decimal, error) {
	symbol, err := validation.Symbol(params.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	side, err := validation.Side(params.Side)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := validation.Positive(params.TotalQuantity, "total quantity"); err != nil {
		return decimal.Zero, err
	}
	if _, err := validation.PositiveInt(params.Chunks, "chunks"); err != nil {
		return decimal.Zero, err
	}
	if params.Duration <= 0 {
		return decimal.Zero, &validation.ValidationError{Field: "duration", Message: "must be greater than 0"}
	}

	_, qtyPrecision := validation.SymbolPrecision(ctx, e.gateway, symbol, e.log)

	total := decimal.NewFromFloat(params.TotalQuantity)
	sizes := chunkSizes(total, params.Chunks, qtyPrecision)
	interval := params.Duration / time.Duration(params.Chunks)

	e.log.WithFields(logger.Fields{
		"total":    total,
		"chunks":   params.Chunks,
		"interval": interval,
	}).Infof("Starting TWAP for %s", symbol)

	executed := decimal.Zero

	for i, size := range sizes {
		if size.Sign() <= 0 {
			e.log.Warnf("Chunk %d/%d rounds to zero at precision %d, skipping", i+1, params.Chunks, qtyPrecision)
			continue
		}

		e.log.Infof("Executing chunk %d/%d: %s %s", i+1, params.Chunks, size, symbol)

		req := connectors.OrderRequest{
			Symbol:        symbol,
			Side:          side,
			Type:          "MARKET",
			Quantity:      size.StringFixed(int32(qtyPrecision)),
			ClientOrderID: uuid.NewString(),
		}
		resp, err := e.gateway.PlaceOrder(ctx, req)
		if err != nil {
			// Keep going with the remaining chunks.
			e.log.WithError(err).Errorf("Chunk %d/%d failed", i+1, params.Chunks)
			e.record(model.StrategyTWAP, req, 0, model.ExecutionStatusRejected, err)
		} else {
			executed = executed.Add(size)
			e.log.WithField("orderId", resp.OrderID).Infof("Chunk %d/%d filled", i+1, params.Chunks)
			e.record(model.StrategyTWAP, req, resp.OrderID, model.ExecutionStatusPlaced, nil)
		}

		if i < len(sizes)-1 {
			e.log.Infof("Sleeping for %s before next chunk", interval)
			if err := e.sleep(ctx, interval); err != nil {
				e.log.Warnf("TWAP interrupted, partial execution: %s/%s", executed, total)
				return executed, err
			}
		}
	}

	e.log.Infof("TWAP completed, total executed: %s/%s", executed, total)
	return executed, nil
}
