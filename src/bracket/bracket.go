package bracket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/connectors"
	"orderexecutor/src/model"
	"orderexecutor/src/userstream"
	"orderexecutor/src/validation"
)

// Status is the lifecycle state of a bracket. COMPLETED and FAILED are
// terminal; once reached, no further gateway mutation is issued.
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusActive       Status = "ACTIVE"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
)

// teardownTimeout bounds best-effort cleanup calls so teardown cannot hang on
// a dead exchange.
const teardownTimeout = 10 * time.Second

// Gateway is the slice of the exchange REST client the bracket needs.
type Gateway interface {
	PlaceOrder(ctx context.Context, req connectors.OrderRequest) (*connectors.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	CreateListenKey(ctx context.Context) (string, error)
}

// Stream is one push-event session scoped to a listen key.
type Stream interface {
	Open(ctx context.Context, wsBaseURL, listenKey string, onMessage userstream.Handler) error
	Close()
}

// Journal records execution outcomes. Optional; a nil journal disables it.
type Journal interface {
	Create(ctx context.Context, entry *model.ExecutionLog) error
}

// Params describes one TP/SL pair for one position-closing intent.
type Params struct {
	Symbol          string
	Quantity        float64
	TakeProfitPrice float64
	StopLossPrice   float64
	Side            string // direction used to close the position

	PricePrecision    int
	QuantityPrecision int
}

// Manager owns the lifecycle of exactly one TP/SL order pair. It places both
// legs, listens to the user-data stream, and cancels the sibling leg when one
// fills. Events arrive on the stream's delivery goroutine concurrently with
// Run, so status and order IDs are guarded by mu.
type Manager struct {
	log       *logger.Entry
	gateway   Gateway
	stream    Stream
	journal   Journal
	wsBaseURL string

	symbol   string
	side     string
	quantity string
	tpPrice  string
	slPrice  string

	mu        sync.Mutex
	status    Status
	tpOrderID int64
	slOrderID int64
	listenKey string

	// closed by the event handler on the transition to COMPLETED
	done chan struct{}
}

// New validates params and builds a Manager in INITIALIZING state.
func New(gateway Gateway, stream Stream, journal Journal, wsBaseURL string, params Params, log *logger.Entry) (*Manager, error) {
	symbol, err := validation.Symbol(params.Symbol)
	if err != nil {
		return nil, err
	}
	side, err := validation.Side(params.Side)
	if err != nil {
		return nil, err
	}
	quantity, err := validation.Positive(params.Quantity, "quantity")
	if err != nil {
		return nil, err
	}
	tpPrice, err := validation.Positive(params.TakeProfitPrice, "take profit price")
	if err != nil {
		return nil, err
	}
	slPrice, err := validation.Positive(params.StopLossPrice, "stop loss price")
	if err != nil {
		return nil, err
	}

	return &Manager{
		log:       log.WithField("symbol", symbol),
		gateway:   gateway,
		stream:    stream,
		journal:   journal,
		wsBaseURL: wsBaseURL,
		symbol:    symbol,
		side:      side,
		quantity:  decimal.NewFromFloat(quantity).StringFixed(int32(params.QuantityPrecision)),
		tpPrice:   decimal.NewFromFloat(tpPrice).StringFixed(int32(params.PricePrecision)),
		slPrice:   decimal.NewFromFloat(slPrice).StringFixed(int32(params.PricePrecision)),
		status:    StatusInitializing,
		done:      make(chan struct{}),
	}, nil
}

// Run drives the bracket to a terminal state. It returns after the bracket
// COMPLETED (one leg filled, sibling handled), the context was cancelled, or
// a failure forced teardown. The stream session is closed exactly once on
// every path.
func (m *Manager) Run(ctx context.Context) error {
	defer m.stream.Close()

	if err := m.initialize(ctx); err != nil {
		m.fail(err)
		return err
	}

	select {
	case <-m.done:
		m.log.WithFields(logger.Fields{
			"tpOrderId": m.tpOrderID,
			"slOrderId": m.slOrderID,
		}).Info("Bracket completed")
		return nil
	case <-ctx.Done():
		m.fail(ctx.Err())
		return ctx.Err()
	}
}

func (m *Manager) initialize(ctx context.Context) error {
	listenKey, err := m.gateway.CreateListenKey(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen key: %w", err)
	}

	m.mu.Lock()
	m.listenKey = listenKey
	m.mu.Unlock()

	if err := m.stream.Open(ctx, m.wsBaseURL, listenKey, m.handleMessage); err != nil {
		return fmt.Errorf("open user-data stream: %w", err)
	}

	m.log.WithFields(logger.Fields{
		"qty":     m.quantity,
		"tpPrice": m.tpPrice,
		"slPrice": m.slPrice,
		"side":    m.side,
	}).Info("Setting up OCO bracket")

	tp, err := m.placeLeg(ctx, connectors.OrderRequest{
		Symbol:      m.symbol,
		Side:        m.side,
		Type:        "LIMIT",
		Quantity:    m.quantity,
		Price:       m.tpPrice,
		TimeInForce: "GTC",
		ReduceOnly:  true,
	})
	if err != nil {
		return fmt.Errorf("place take-profit leg: %w", err)
	}
	m.mu.Lock()
	m.tpOrderID = tp.OrderID
	m.mu.Unlock()
	m.log.WithField("orderId", tp.OrderID).Infof("Take profit limit placed @ %s", m.tpPrice)

	sl, err := m.placeLeg(ctx, connectors.OrderRequest{
		Symbol:     m.symbol,
		Side:       m.side,
		Type:       "STOP_MARKET",
		Quantity:   m.quantity,
		StopPrice:  m.slPrice,
		ReduceOnly: true,
	})
	if err != nil {
		return fmt.Errorf("place stop-loss leg: %w", err)
	}

	m.mu.Lock()
	m.slOrderID = sl.OrderID
	m.status = StatusActive
	m.mu.Unlock()
	m.log.WithField("orderId", sl.OrderID).Infof("Stop loss placed @ %s", m.slPrice)
	m.log.WithFields(logger.Fields{
		"tpOrderId": tp.OrderID,
		"slOrderId": sl.OrderID,
	}).Info("Bracket active, waiting for a leg to fill")

	return nil
}

func (m *Manager) placeLeg(ctx context.Context, req connectors.OrderRequest) (*connectors.OrderResponse, error) {
	req.ClientOrderID = uuid.NewString()

	resp, err := m.gateway.PlaceOrder(ctx, req)
	if err != nil {
		m.recordLeg(req, 0, model.ExecutionStatusRejected, err)
		return nil, err
	}
	m.recordLeg(req, resp.OrderID, model.ExecutionStatusPlaced, nil)
	return resp, nil
}

// handleMessage runs on the stream delivery goroutine. Events may arrive
// out of order and more than once; only the first FILLED event for a tracked
// leg moves the bracket, everything after a terminal transition is ignored.
func (m *Manager) handleMessage(raw []byte) {
	env, err := userstream.ParseEnvelope(raw)
	if err != nil {
		m.log.WithError(err).Warn("Dropping malformed stream message")
		return
	}
	if env.EventType != userstream.EventOrderTradeUpdate || env.Order == nil {
		m.log.WithField("eventType", env.EventType).Debug("Ignoring non-order event")
		return
	}
	update := env.Order

	m.mu.Lock()
	if m.status != StatusActive {
		m.mu.Unlock()
		m.log.WithField("orderId", update.OrderID).Debug("Ignoring event, bracket already terminal")
		return
	}

	var sibling int64
	switch update.OrderID {
	case m.tpOrderID:
		sibling = m.slOrderID
	case m.slOrderID:
		sibling = m.tpOrderID
	default:
		m.mu.Unlock()
		m.log.WithField("orderId", update.OrderID).Debug("Ignoring update for untracked order")
		return
	}

	if update.Status != userstream.OrderStatusFilled {
		m.mu.Unlock()
		if userstream.IsTerminal(update.Status) {
			m.log.WithFields(logger.Fields{
				"orderId": update.OrderID,
				"status":  update.Status,
			}).Warn("Tracked leg closed on the exchange without filling")
		} else {
			m.log.WithFields(logger.Fields{
				"orderId": update.OrderID,
				"status":  update.Status,
			}).Info("Leg update")
		}
		return
	}

	m.status = StatusCompleted
	m.mu.Unlock()

	m.log.WithField("orderId", update.OrderID).Info("Leg filled, cancelling sibling order")
	m.cancelLeg(sibling, "sibling of filled leg")
	close(m.done)
}

// cancelLeg issues a best-effort cancel. The exchange reporting the order as
// unknown means it already filled or was already cancelled, which is success
// for our purposes; any other failure is logged but never propagated.
func (m *Manager) cancelLeg(orderID int64, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	err := m.gateway.CancelOrder(ctx, m.symbol, orderID)
	entry := logger.Fields{"orderId": orderID, "reason": reason}
	switch {
	case err == nil:
		m.log.WithFields(entry).Info("Order cancelled")
		m.recordCancel(orderID, model.ExecutionStatusCanceled, reason, nil)
	case connectors.IsUnknownOrder(err):
		m.log.WithFields(entry).Info("Order already closed on the exchange, nothing to cancel")
		m.recordCancel(orderID, model.ExecutionStatusAlreadyClosed, reason, nil)
	default:
		m.log.WithFields(entry).WithError(err).Error("Best-effort cancel failed")
		m.recordCancel(orderID, model.ExecutionStatusCancelError, reason, err)
	}
}

// fail moves the bracket to FAILED and best-effort cancels whichever legs
// were placed. No-op when the bracket already reached a terminal state.
func (m *Manager) fail(cause error) {
	m.mu.Lock()
	if m.status == StatusCompleted || m.status == StatusFailed {
		m.mu.Unlock()
		return
	}
	m.status = StatusFailed
	tpOrderID := m.tpOrderID
	slOrderID := m.slOrderID
	m.mu.Unlock()

	m.log.WithError(cause).Warn("Bracket failed, cancelling any open legs")
	if tpOrderID != 0 {
		m.cancelLeg(tpOrderID, "bracket teardown")
	}
	if slOrderID != 0 {
		m.cancelLeg(slOrderID, "bracket teardown")
	}
}

// Snapshot is a point-in-time view of the bracket, safe to serve concurrently
// with the event handler.
type Snapshot struct {
	Symbol            string `json:"symbol"`
	Side              string `json:"side"`
	Quantity          string `json:"quantity"`
	TakeProfitPrice   string `json:"take_profit_price"`
	StopLossPrice     string `json:"stop_loss_price"`
	TakeProfitOrderID int64  `json:"take_profit_order_id"`
	StopLossOrderID   int64  `json:"stop_loss_order_id"`
	Status            Status `json:"status"`
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Symbol:            m.symbol,
		Side:              m.side,
		Quantity:          m.quantity,
		TakeProfitPrice:   m.tpPrice,
		StopLossPrice:     m.slPrice,
		TakeProfitOrderID: m.tpOrderID,
		StopLossOrderID:   m.slOrderID,
		Status:            m.status,
	}
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) recordLeg(req connectors.OrderRequest, orderID int64, status string, cause error) {
	if m.journal == nil {
		return
	}

	qty, _ := decimal.NewFromString(req.Quantity)
	qtyF, _ := qty.Float64()
	entry := &model.ExecutionLog{
		Strategy:         model.StrategyBracket,
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
	m.writeJournal(entry)
}

func (m *Manager) recordCancel(orderID int64, status, reason string, cause error) {
	if m.journal == nil {
		return
	}

	entry := &model.ExecutionLog{
		Strategy:        model.StrategyBracket,
		Symbol:          m.symbol,
		Side:            m.side,
		OrderType:       "CANCEL",
		ExchangeOrderID: orderID,
		Status:          status,
		Reason:          reason,
		RequestedAt:     time.Now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}
	m.writeJournal(entry)
}

func (m *Manager) writeJournal(entry *model.ExecutionLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.journal.Create(ctx, entry); err != nil {
		m.log.WithError(err).Error("Failed to journal execution")
	}
}
