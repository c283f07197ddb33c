package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rustyeddy/papertrader/ledger"
)

// File names used by WriteTabularDir and ReadTabularDir.
const (
	HoldingsFile = "holdings.csv"
	OrdersFile   = "orders.csv"
	CashFile     = "cash.csv"
)

var (
	holdingsHeader = []string{"symbol", "quantity", "avg_price"}
	ordersHeader   = []string{"id", "symbol", "order_type", "quantity", "price", "timestamp", "status", "strategy"}
	cashHeader     = []string{"cash_balance"}
)

// Tables is a ledger rendered as three CSV documents.
type Tables struct {
	Holdings []byte
	Orders   []byte
	Cash     []byte
}

func EncodeTables(snap ledger.Snapshot) (Tables, error) {
	var t Tables
	var err error

	hrows := make([][]string, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		hrows = append(hrows, []string{h.Symbol, strconv.FormatInt(h.Quantity, 10), h.AvgPrice.String()})
	}
	if t.Holdings, err = writeCSV(holdingsHeader, hrows); err != nil {
		return Tables{}, err
	}

	orows := make([][]string, 0, len(snap.Orders))
	for _, o := range snap.Orders {
		orows = append(orows, []string{
			strconv.FormatInt(o.ID, 10),
			o.Symbol,
			string(o.Type),
			strconv.FormatInt(o.Quantity, 10),
			o.Price.String(),
			formatTime(o.Timestamp),
			string(o.Status),
			o.Strategy,
		})
	}
	if t.Orders, err = writeCSV(ordersHeader, orows); err != nil {
		return Tables{}, err
	}

	if t.Cash, err = writeCSV(cashHeader, [][]string{{snap.Cash.String()}}); err != nil {
		return Tables{}, err
	}
	return t, nil
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// table is a parsed CSV document addressed by header name.
type table struct {
	name string
	cols map[string]int
	rows [][]string
}

func readCSV(name string, data []byte, required []string) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, importErr("%s: missing header row", name)
	}
	if err != nil {
		return nil, importErr("%s: %v", name, err)
	}

	t := &table{name: name, cols: make(map[string]int, len(header))}
	for i, h := range header {
		t.cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, importErr("%s: missing column %q", name, col)
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, importErr("%s: %v", name, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) get(row []string, col string) string {
	return strings.TrimSpace(t.raw(row, col))
}

// raw returns the cell untouched, for free-text columns.
func (t *table) raw(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// DecodeHoldings parses a holdings table.
func DecodeHoldings(data []byte) ([]ledger.Holding, error) {
	t, err := readCSV(HoldingsFile, data, holdingsHeader)
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Holding, 0, len(t.rows))
	for i, row := range t.rows {
		h := ledger.Holding{Symbol: ledger.NormalizeSymbol(t.get(row, "symbol"))}
		if h.Quantity, err = parseQuantity("quantity", t.get(row, "quantity")); err != nil {
			return nil, importErr("%s row %d: %v", t.name, i+1, err)
		}
		if h.AvgPrice, err = parsePrice("avg_price", t.get(row, "avg_price")); err != nil {
			return nil, importErr("%s row %d: %v", t.name, i+1, err)
		}
		out = append(out, h)
	}
	return out, nil
}

// DecodeOrders parses an orders table. The id, status and strategy columns
// are optional.
func DecodeOrders(data []byte) ([]ledger.Order, error) {
	t, err := readCSV(OrdersFile, data, []string{"symbol", "order_type", "quantity", "price", "timestamp"})
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Order, 0, len(t.rows))
	for i, row := range t.rows {
		o := ledger.Order{
			Symbol:   ledger.NormalizeSymbol(t.get(row, "symbol")),
			Strategy: t.raw(row, "strategy"),
		}
		if s := t.get(row, "id"); s != "" {
			if o.ID, err = strconv.ParseInt(s, 10, 64); err != nil {
				return nil, importErr("%s row %d: bad id %q", t.name, i+1, s)
			}
		}
		if o.Type, err = ledger.ParseOrderType(t.get(row, "order_type")); err != nil {
			return nil, importErr("%s row %d: %v", t.name, i+1, err)
		}
		if o.Quantity, err = parseQuantity("quantity", t.get(row, "quantity")); err != nil {
			return nil, importErr("%s row %d: %v", t.name, i+1, err)
		}
		if o.Price, err = parsePrice("price", t.get(row, "price")); err != nil {
			return nil, importErr("%s row %d: %v", t.name, i+1, err)
		}
		if o.Timestamp, err = parseTime(t.get(row, "timestamp")); err != nil {
			return nil, importErr("%s row %d: %v", t.name, i+1, err)
		}
		if o.Status, err = parseStatus(t.get(row, "status")); err != nil {
			return nil, importErr("%s row %d: %v", t.name, i+1, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// DecodeCash parses a cash table: a cash_balance header and exactly one row.
func DecodeCash(data []byte) (ledger.Snapshot, error) {
	t, err := readCSV(CashFile, data, cashHeader)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if len(t.rows) != 1 {
		return ledger.Snapshot{}, importErr("%s: want exactly one row, got %d", t.name, len(t.rows))
	}
	cash, err := parseCash(t.get(t.rows[0], "cash_balance"))
	if err != nil {
		return ledger.Snapshot{}, importErr("%s: %v", t.name, err)
	}
	return ledger.Snapshot{Cash: cash}, nil
}

// DecodeTables parses all three tables into one snapshot.
func DecodeTables(t Tables) (ledger.Snapshot, error) {
	snap, err := DecodeCash(t.Cash)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if snap.Holdings, err = DecodeHoldings(t.Holdings); err != nil {
		return ledger.Snapshot{}, err
	}
	if snap.Orders, err = DecodeOrders(t.Orders); err != nil {
		return ledger.Snapshot{}, err
	}
	if err := check(snap); err != nil {
		return ledger.Snapshot{}, err
	}
	return snap, nil
}

func ExportTabular(ctx context.Context, src Source) (Tables, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return Tables{}, fmt.Errorf("export: %w", err)
	}
	return EncodeTables(snap)
}

// ImportTabular replaces the contents of dst with the three tables. A
// malformed table fails the import before anything is written.
func ImportTabular(ctx context.Context, dst Target, t Tables) (ledger.Snapshot, error) {
	snap, err := DecodeTables(t)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if err := dst.Restore(ctx, snap, true); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("import: %w: %w", ledger.ErrImport, err)
	}
	return snap, nil
}

// WriteTabularDir writes the tables into dir, creating it if needed.
func WriteTabularDir(dir string, t Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, data := range map[string][]byte{
		HoldingsFile: t.Holdings,
		OrdersFile:   t.Orders,
		CashFile:     t.Cash,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ReadTabularDir loads the three table files from dir.
func ReadTabularDir(dir string) (Tables, error) {
	var t Tables
	for name, dst := range map[string]*[]byte{
		HoldingsFile: &t.Holdings,
		OrdersFile:   &t.Orders,
		CashFile:     &t.Cash,
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return Tables{}, importErr("%v", err)
		}
		*dst = data
	}
	return t, nil
}
