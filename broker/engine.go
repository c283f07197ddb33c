package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CommitHook runs after an order has been committed. Its error is logged and
// never undoes the order.
type CommitHook func(ctx context.Context, o ledger.Order) error

// Engine applies buy and sell orders to the ledger. Every order is one
// ledger transaction: either all of holding, order log and cash change, or
// none do.
type Engine struct {
	ledger Ledger
	log    logrus.FieldLogger
	now    func() time.Time

	mu    sync.RWMutex
	hooks []CommitHook
}

var _ Broker = (*Engine)(nil)

type Option func(*Engine)

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the source of order timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(l Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnCommit registers a hook invoked after each successful order.
func (e *Engine) OnCommit(h CommitHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, h)
}

func (e *Engine) Execute(ctx context.Context, typ ledger.OrderType, req OrderRequest) (ledger.Order, error) {
	switch typ {
	case ledger.Buy:
		return e.Buy(ctx, req)
	case ledger.Sell:
		return e.Sell(ctx, req)
	}
	return ledger.Order{}, fmt.Errorf("execute: %w: unknown order type %q", ledger.ErrValidation, typ)
}

// Buy debits quantity*price from cash and adds to the holding, averaging the
// cost of any existing position.
func (e *Engine) Buy(ctx context.Context, req OrderRequest) (ledger.Order, error) {
	req, err := req.normalize("buy")
	if err != nil {
		return ledger.Order{}, err
	}

	o := e.newOrder(ledger.Buy, req)
	total := req.Total()

	err = e.ledger.Update(ctx, func(tx *ledger.Tx) error {
		cash, err := tx.Cash(ctx)
		if err != nil {
			return err
		}
		if cash.LessThan(total) {
			return fmt.Errorf("buy %s: %w: need %s, have %s", req.Symbol, ledger.ErrInsufficientFunds, total, cash)
		}

		h, found, err := tx.Holding(ctx, req.Symbol)
		if err != nil {
			return err
		}
		if found {
			qty, ok := addQuantity(h.Quantity, req.Quantity)
			if !ok {
				return fmt.Errorf("buy %s: %w: quantity overflow", req.Symbol, ledger.ErrValidation)
			}
			h.AvgPrice = h.CostBasis().Add(total).Div(decimal.NewFromInt(qty))
			h.Quantity = qty
		} else {
			h = ledger.Holding{Symbol: req.Symbol, Quantity: req.Quantity, AvgPrice: req.Price}
		}

		if err := tx.UpsertHolding(ctx, h); err != nil {
			return err
		}
		if o.ID, err = tx.AppendOrder(ctx, o); err != nil {
			return err
		}
		return tx.SetCash(ctx, cash.Sub(total))
	})
	if err != nil {
		return ledger.Order{}, err
	}

	e.committed(ctx, o)
	return o, nil
}

// Sell credits quantity*price to cash and reduces the holding. The average
// price of what remains is unchanged; a holding sold down to zero is removed.
func (e *Engine) Sell(ctx context.Context, req OrderRequest) (ledger.Order, error) {
	req, err := req.normalize("sell")
	if err != nil {
		return ledger.Order{}, err
	}

	o := e.newOrder(ledger.Sell, req)
	total := req.Total()

	err = e.ledger.Update(ctx, func(tx *ledger.Tx) error {
		h, found, err := tx.Holding(ctx, req.Symbol)
		if err != nil {
			return err
		}
		if !found || h.Quantity < req.Quantity {
			return fmt.Errorf("sell %s: %w: want %d, hold %d", req.Symbol, ledger.ErrInsufficientHoldings, req.Quantity, h.Quantity)
		}

		cash, err := tx.Cash(ctx)
		if err != nil {
			return err
		}

		h.Quantity -= req.Quantity
		if h.Quantity == 0 {
			err = tx.RemoveHolding(ctx, req.Symbol)
		} else {
			err = tx.UpsertHolding(ctx, h)
		}
		if err != nil {
			return err
		}
		if o.ID, err = tx.AppendOrder(ctx, o); err != nil {
			return err
		}
		return tx.SetCash(ctx, cash.Add(total))
	})
	if err != nil {
		return ledger.Order{}, err
	}

	e.committed(ctx, o)
	return o, nil
}

func (e *Engine) newOrder(typ ledger.OrderType, req OrderRequest) ledger.Order {
	return ledger.Order{
		Symbol:    req.Symbol,
		Type:      typ,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Timestamp: e.now().UTC(),
		Status:    ledger.Executed,
		Strategy:  req.Strategy,
	}
}

func (e *Engine) committed(ctx context.Context, o ledger.Order) {
	log := e.log.WithFields(logrus.Fields{
		"id":       o.ID,
		"symbol":   o.Symbol,
		"type":     o.Type,
		"quantity": o.Quantity,
		"price":    o.Price.String(),
	})
	log.Info("order executed")

	e.mu.RLock()
	hooks := make([]CommitHook, len(e.hooks))
	copy(hooks, e.hooks)
	e.mu.RUnlock()

	for _, h := range hooks {
		runHook(ctx, log, h, o)
	}
}

func runHook(ctx context.Context, log logrus.FieldLogger, h CommitHook, o ledger.Order) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("commit hook panicked")
		}
	}()
	if err := h(ctx, o); err != nil {
		log.WithError(err).Warn("commit hook failed")
	}
}
