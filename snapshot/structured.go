package snapshot

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("snapshot.json", schemaJSON)

type holdingJSON struct {
	Symbol   string      `json:"symbol"`
	Quantity json.Number `json:"quantity"`
	AvgPrice json.Number `json:"avg_price"`
}

type orderJSON struct {
	ID        int64       `json:"id"`
	Symbol    string      `json:"symbol"`
	OrderType string      `json:"order_type"`
	Quantity  json.Number `json:"quantity"`
	Price     json.Number `json:"price"`
	Timestamp string      `json:"timestamp"`
	Status    string      `json:"status"`
	Strategy  *string     `json:"strategy"`
}

type document struct {
	Holdings    []holdingJSON `json:"holdings"`
	Orders      []orderJSON   `json:"orders"`
	CashBalance json.Number   `json:"cash_balance"`
	ExportTime  string        `json:"export_time,omitempty"`
}

// EncodeStructured renders snap as an indented JSON document. Decimals are
// written as JSON numbers with every stored digit.
func EncodeStructured(snap ledger.Snapshot) ([]byte, error) {
	doc := document{
		Holdings:    make([]holdingJSON, 0, len(snap.Holdings)),
		Orders:      make([]orderJSON, 0, len(snap.Orders)),
		CashBalance: json.Number(snap.Cash.String()),
		ExportTime:  formatTime(snap.Time),
	}
	for _, h := range snap.Holdings {
		doc.Holdings = append(doc.Holdings, holdingJSON{
			Symbol:   h.Symbol,
			Quantity: json.Number(fmt.Sprint(h.Quantity)),
			AvgPrice: json.Number(h.AvgPrice.String()),
		})
	}
	for _, o := range snap.Orders {
		strategy := o.Strategy
		doc.Orders = append(doc.Orders, orderJSON{
			ID:        o.ID,
			Symbol:    o.Symbol,
			OrderType: string(o.Type),
			Quantity:  json.Number(fmt.Sprint(o.Quantity)),
			Price:     json.Number(o.Price.String()),
			Timestamp: formatTime(o.Timestamp),
			Status:    string(o.Status),
			Strategy:  &strategy,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeStructured parses and validates a structured payload. Errors wrap
// ledger.ErrImport.
func DecodeStructured(payload []byte) (ledger.Snapshot, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return ledger.Snapshot{}, importErr("malformed JSON: %v", err)
	}
	if err := schema.Validate(raw); err != nil {
		return ledger.Snapshot{}, importErr("%v", err)
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return ledger.Snapshot{}, importErr("%v", err)
	}

	var snap ledger.Snapshot
	var err error
	if snap.Cash, err = parseCash(doc.CashBalance.String()); err != nil {
		return ledger.Snapshot{}, importErr("%v", err)
	}
	if doc.ExportTime != "" {
		if snap.Time, err = parseTime(doc.ExportTime); err != nil {
			return ledger.Snapshot{}, importErr("export_time: %v", err)
		}
	}

	for i, h := range doc.Holdings {
		hd := ledger.Holding{Symbol: ledger.NormalizeSymbol(h.Symbol)}
		if hd.Quantity, err = parseQuantity("quantity", h.Quantity.String()); err != nil {
			return ledger.Snapshot{}, importErr("holding %d: %v", i, err)
		}
		if hd.AvgPrice, err = parsePrice("avg_price", h.AvgPrice.String()); err != nil {
			return ledger.Snapshot{}, importErr("holding %d: %v", i, err)
		}
		snap.Holdings = append(snap.Holdings, hd)
	}

	for i, o := range doc.Orders {
		od := ledger.Order{ID: o.ID, Symbol: ledger.NormalizeSymbol(o.Symbol)}
		if o.Strategy != nil {
			od.Strategy = *o.Strategy
		}
		if od.Type, err = ledger.ParseOrderType(o.OrderType); err != nil {
			return ledger.Snapshot{}, importErr("order %d: %v", i, err)
		}
		if od.Quantity, err = parseQuantity("quantity", o.Quantity.String()); err != nil {
			return ledger.Snapshot{}, importErr("order %d: %v", i, err)
		}
		if od.Price, err = parsePrice("price", o.Price.String()); err != nil {
			return ledger.Snapshot{}, importErr("order %d: %v", i, err)
		}
		if od.Timestamp, err = parseTime(o.Timestamp); err != nil {
			return ledger.Snapshot{}, importErr("order %d: %v", i, err)
		}
		if od.Status, err = parseStatus(o.Status); err != nil {
			return ledger.Snapshot{}, importErr("order %d: %v", i, err)
		}
		snap.Orders = append(snap.Orders, od)
	}

	if err := check(snap); err != nil {
		return ledger.Snapshot{}, err
	}
	return snap, nil
}

// ExportStructured reads src in one transaction and encodes it.
func ExportStructured(ctx context.Context, src Source) ([]byte, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return EncodeStructured(snap)
}

// ImportStructured replaces the contents of dst with payload. Nothing is
// written unless the whole payload is valid.
func ImportStructured(ctx context.Context, dst Target, payload []byte) (ledger.Snapshot, error) {
	snap, err := DecodeStructured(payload)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if err := dst.Restore(ctx, snap, true); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("import: %w: %w", ledger.ErrImport, err)
	}
	return snap, nil
}
