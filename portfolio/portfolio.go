// Package portfolio values the ledger against current quotes. Nothing here
// is stored: profit and loss are always derived at read time.
package portfolio

import (
	"context"
	"sort"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Quoter supplies the latest price for a symbol; ok is false when no price
// is available.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (price decimal.Decimal, ok bool, err error)
}

// Source is the ledger read used for a summary.
type Source interface {
	Snapshot(ctx context.Context) (ledger.Snapshot, error)
}

// MaxConcurrentQuotes bounds the number of quote requests in flight.
const MaxConcurrentQuotes = 8

var hundred = decimal.NewFromInt(100)

type Position struct {
	ledger.Holding
	Invested decimal.Decimal

	// Priced is false when no quote was available; the fields below are
	// then zero and must not be shown as values.
	Priced bool
	Price  decimal.Decimal
	Value  decimal.Decimal
	PnL    decimal.Decimal
	PnLPct decimal.Decimal
}

type Summary struct {
	Cash decimal.Decimal
	// Invested is the cost basis of every holding.
	Invested decimal.Decimal
	// Current is the market value of the priced holdings.
	Current decimal.Decimal
	// Total is Cash + Current.
	Total decimal.Decimal
	// PnL and PnLPct cover priced holdings only.
	PnL    decimal.Decimal
	PnLPct decimal.Decimal

	Positions []Position
	Unpriced  []string
	Stats     OrderStats
}

// Summarize reads the ledger once and prices every holding concurrently.
// A failed or missing quote marks the holding unpriced rather than failing
// the summary.
func Summarize(ctx context.Context, src Source, q Quoter, log logrus.FieldLogger) (Summary, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	positions := make([]Position, len(snap.Holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentQuotes)
	for i, h := range snap.Holdings {
		positions[i] = Position{Holding: h, Invested: h.CostBasis()}
		g.Go(func() error {
			price, ok, err := q.Quote(gctx, h.Symbol)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.WithError(err).WithField("symbol", h.Symbol).Warn("quote failed")
				return nil
			}
			if ok {
				positions[i].price(price)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	s := Summary{
		Cash:      snap.Cash,
		Invested:  decimal.Zero,
		Current:   decimal.Zero,
		Positions: positions,
		Stats:     Stats(snap.Orders),
	}
	pricedCost := decimal.Zero
	for _, p := range positions {
		s.Invested = s.Invested.Add(p.Invested)
		if !p.Priced {
			s.Unpriced = append(s.Unpriced, p.Symbol)
			continue
		}
		s.Current = s.Current.Add(p.Value)
		pricedCost = pricedCost.Add(p.Invested)
	}
	s.Total = s.Cash.Add(s.Current)
	s.PnL = s.Current.Sub(pricedCost)
	s.PnLPct = percent(s.PnL, pricedCost)
	sort.Strings(s.Unpriced)
	return s, nil
}

func (p *Position) price(price decimal.Decimal) {
	p.Priced = true
	p.Price = price
	p.Value = price.Mul(decimal.NewFromInt(p.Quantity))
	p.PnL = p.Value.Sub(p.Invested)
	p.PnLPct = percent(p.PnL, p.Invested)
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
