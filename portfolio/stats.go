package portfolio

import "github.com/rustyeddy/papertrader/ledger"

type OrderStats struct {
	Total      int
	Buys       int
	Sells      int
	ByStrategy map[string]int
}

// Stats counts orders by type and by strategy. Orders without a strategy
// are not counted in ByStrategy.
func Stats(orders []ledger.Order) OrderStats {
	s := OrderStats{ByStrategy: map[string]int{}}
	for _, o := range orders {
		s.Total++
		switch o.Type {
		case ledger.Buy:
			s.Buys++
		case ledger.Sell:
			s.Sells++
		}
		if o.Strategy != "" {
			s.ByStrategy[o.Strategy]++
		}
	}
	return s
}
