package snapshot

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var t0 = time.Date(2024, 2, 1, 9, 15, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := ledger.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"),
		ledger.WithLogger(logger),
		ledger.WithClock(func() time.Time { return t0.Add(time.Hour) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *ledger.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Restore(ctx, ledger.Snapshot{
		Cash: dec("462000"),
		Holdings: []ledger.Holding{
			{Symbol: "RELIANCE", Quantity: 15, AvgPrice: dec("2533.3333333333333333")},
			{Symbol: "TCS", Quantity: 2, AvgPrice: dec("3500.05")},
		},
		Orders: []ledger.Order{
			{Symbol: "TCS", Type: ledger.Buy, Quantity: 2, Price: dec("3500.05"), Timestamp: t0.Add(2 * time.Minute), Strategy: "  deep value "},
			{Symbol: "RELIANCE", Type: ledger.Buy, Quantity: 5, Price: dec("2600"), Timestamp: t0.Add(time.Minute)},
			{Symbol: "RELIANCE", Type: ledger.Buy, Quantity: 10, Price: dec("2500"), Timestamp: t0},
		},
	}, true))
}

func assertSameLedger(t *testing.T, want, got ledger.Snapshot) {
	t.Helper()
	assert.True(t, want.Cash.Equal(got.Cash), "cash %s != %s", want.Cash, got.Cash)
	require.Len(t, got.Holdings, len(want.Holdings))
	for i := range want.Holdings {
		assert.Equal(t, want.Holdings[i].Symbol, got.Holdings[i].Symbol)
		assert.Equal(t, want.Holdings[i].Quantity, got.Holdings[i].Quantity)
		assert.True(t, want.Holdings[i].AvgPrice.Equal(got.Holdings[i].AvgPrice))
	}
	require.Len(t, got.Orders, len(want.Orders))
	for i := range want.Orders {
		assert.Equal(t, want.Orders[i].Symbol, got.Orders[i].Symbol)
		assert.Equal(t, want.Orders[i].Type, got.Orders[i].Type)
		assert.Equal(t, want.Orders[i].Quantity, got.Orders[i].Quantity)
		assert.True(t, want.Orders[i].Price.Equal(got.Orders[i].Price))
		assert.True(t, want.Orders[i].Timestamp.Equal(got.Orders[i].Timestamp))
		assert.Equal(t, want.Orders[i].Strategy, got.Orders[i].Strategy)
	}
}

func TestStructuredRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := openStore(t)
	seed(t, src)
	want, err := src.Snapshot(ctx)
	require.NoError(t, err)

	payload, err := ExportStructured(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, "462000", gjson.GetBytes(payload, "cash_balance").Raw)
	assert.Equal(t, "2533.3333333333333333", gjson.GetBytes(payload, "holdings.0.avg_price").Raw)
	assert.Equal(t, "TCS", gjson.GetBytes(payload, "orders.0.symbol").String())
	assert.Equal(t, "2024-02-01T10:15:00Z", gjson.GetBytes(payload, "export_time").String())

	dst := openStore(t)
	_, err = ImportStructured(ctx, dst, payload)
	require.NoError(t, err)

	got, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	assertSameLedger(t, want, got)
}

func TestImportReplacesExistingLedger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dst := openStore(t)
	require.NoError(t, dst.UpsertHolding(ctx, ledger.Holding{Symbol: "OLD", Quantity: 1, AvgPrice: dec("1")}))

	_, err := ImportStructured(ctx, dst, []byte(`{"holdings":[],"orders":[],"cash_balance":1000}`))
	require.NoError(t, err)

	got, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Holdings)
	assert.Equal(t, "1000", got.Cash.String())
}

func TestImportStructuredRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{"holdings": [`},
		{"missing orders", `{"holdings":[],"cash_balance":1}`},
		{"missing holdings", `{"orders":[],"cash_balance":1}`},
		{"missing cash", `{"holdings":[],"orders":[]}`},
		{"negative cash", `{"holdings":[],"orders":[],"cash_balance":-1}`},
		{"zero quantity", `{"holdings":[{"symbol":"A","quantity":0,"avg_price":1}],"orders":[],"cash_balance":1}`},
		{"fractional quantity", `{"holdings":[{"symbol":"A","quantity":1.5,"avg_price":1}],"orders":[],"cash_balance":1}`},
		{"duplicate holding", `{"holdings":[{"symbol":"A","quantity":1,"avg_price":1},{"symbol":"a","quantity":2,"avg_price":1}],"orders":[],"cash_balance":1}`},
		{"bad order type", `{"holdings":[],"orders":[{"symbol":"A","order_type":"SHORT","quantity":1,"price":1,"timestamp":"2024-01-01 10:00:00"}],"cash_balance":1}`},
		{"bad timestamp", `{"holdings":[],"orders":[{"symbol":"A","order_type":"BUY","quantity":1,"price":1,"timestamp":"yesterday"}],"cash_balance":1}`},
		{"bad status", `{"holdings":[],"orders":[{"symbol":"A","order_type":"BUY","quantity":1,"price":1,"timestamp":"2024-01-01 10:00:00","status":"PENDING"}],"cash_balance":1}`},
		{"string price", `{"holdings":[{"symbol":"A","quantity":1,"avg_price":"abc"}],"orders":[],"cash_balance":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := openStore(t)
			seed(t, s)
			before, err := s.Snapshot(ctx)
			require.NoError(t, err)

			_, err = ImportStructured(ctx, s, []byte(tt.payload))
			require.Error(t, err)
			assert.Equal(t, ledger.KindImport, ledger.KindOf(err), "err = %v", err)

			after, err := s.Snapshot(ctx)
			require.NoError(t, err)
			assertSameLedger(t, before, after)
		})
	}
}

func TestDecodeLegacyTimestamps(t *testing.T) {
	t.Parallel()

	snap, err := DecodeStructured([]byte(`{
		"holdings": [{"symbol": " infy ", "quantity": 3, "avg_price": 1450.5}],
		"orders": [
			{"id": 7, "symbol": "INFY", "order_type": "buy", "quantity": 3, "price": 1450.5, "timestamp": "2024-01-15 10:30:00", "status": "EXECUTED", "strategy": null},
			{"id": 8, "symbol": "INFY", "order_type": "SELL", "quantity": 1, "price": 1500, "timestamp": "2024-01-16T11:00:00.250000"}
		],
		"cash_balance": 495648.5
	}`))
	require.NoError(t, err)

	require.Len(t, snap.Holdings, 1)
	assert.Equal(t, "INFY", snap.Holdings[0].Symbol)
	require.Len(t, snap.Orders, 2)
	assert.Equal(t, ledger.Buy, snap.Orders[0].Type)
	assert.True(t, snap.Orders[0].Timestamp.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "", snap.Orders[0].Strategy)
	assert.Equal(t, ledger.Executed, snap.Orders[1].Status)
	assert.Equal(t, 250*time.Millisecond, time.Duration(snap.Orders[1].Timestamp.Nanosecond()))
	assert.Equal(t, "495648.5", snap.Cash.String())
}

func TestEncodeKeepsDecimalDigits(t *testing.T) {
	t.Parallel()

	payload, err := EncodeStructured(ledger.Snapshot{
		Cash:     dec("0.1"),
		Holdings: []ledger.Holding{{Symbol: "X", Quantity: 3, AvgPrice: dec("0.3333333333333333")}},
	})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "0.1", string(raw["cash_balance"]))
	assert.Equal(t, "[]", string(raw["orders"]))
}

func TestTabularRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := openStore(t)
	seed(t, src)
	want, err := src.Snapshot(ctx)
	require.NoError(t, err)

	tables, err := ExportTabular(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "cash_balance\n462000\n", string(tables.Cash))

	dir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, WriteTabularDir(dir, tables))
	read, err := ReadTabularDir(dir)
	require.NoError(t, err)

	dst := openStore(t)
	_, err = ImportTabular(ctx, dst, read)
	require.NoError(t, err)

	got, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	assertSameLedger(t, want, got)
}

func TestStrategyTextSurvivesBothFormats(t *testing.T) {
	t.Parallel()

	snap := ledger.Snapshot{
		Cash: dec("100"),
		Orders: []ledger.Order{
			{ID: 1, Symbol: "INFY", Type: ledger.Sell, Quantity: 1, Price: dec("1500"), Timestamp: t0, Status: ledger.Executed, Strategy: "  swing  "},
			{ID: 2, Symbol: "INFY", Type: ledger.Buy, Quantity: 1, Price: dec("1400"), Timestamp: t0, Status: ledger.Executed, Strategy: "\tmean, revert"},
		},
	}

	tables, err := EncodeTables(snap)
	require.NoError(t, err)
	fromTables, err := DecodeTables(tables)
	require.NoError(t, err)

	payload, err := EncodeStructured(snap)
	require.NoError(t, err)
	fromJSON, err := DecodeStructured(payload)
	require.NoError(t, err)

	for i, o := range snap.Orders {
		assert.Equal(t, o.Strategy, fromTables.Orders[i].Strategy)
		assert.Equal(t, o.Strategy, fromJSON.Orders[i].Strategy)
	}
}

func TestTabularColumnsByName(t *testing.T) {
	t.Parallel()

	hs, err := DecodeHoldings([]byte("avg_price,symbol,quantity\n101.25,wipro,4\n"))
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "WIPRO", hs[0].Symbol)
	assert.Equal(t, int64(4), hs[0].Quantity)
	assert.Equal(t, "101.25", hs[0].AvgPrice.String())

	orders, err := DecodeOrders([]byte("symbol,order_type,quantity,price,timestamp\nWIPRO,BUY,4,101.25,2024-01-15 10:30:00\n"))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, ledger.Executed, orders[0].Status)
}

func TestMalformedCashTableLeavesLedgerUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := openStore(t)
	seed(t, src)
	tables, err := ExportTabular(ctx, src)
	require.NoError(t, err)

	bad := []struct {
		name string
		cash string
	}{
		{"not a number", "cash_balance\nlots\n"},
		{"two rows", "cash_balance\n1\n2\n"},
		{"no rows", "cash_balance\n"},
		{"wrong header", "balance\n100\n"},
		{"negative", "cash_balance\n-100\n"},
		{"empty", ""},
	}

	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dst := openStore(t)
			require.NoError(t, dst.UpsertHolding(ctx, ledger.Holding{Symbol: "KEEP", Quantity: 1, AvgPrice: dec("1")}))
			before, err := dst.Snapshot(ctx)
			require.NoError(t, err)

			in := tables
			in.Cash = []byte(tt.cash)
			_, err = ImportTabular(ctx, dst, in)
			require.Error(t, err)
			assert.Equal(t, ledger.KindImport, ledger.KindOf(err))

			after, err := dst.Snapshot(ctx)
			require.NoError(t, err)
			assertSameLedger(t, before, after)
		})
	}
}

func TestReadTabularDirMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadTabularDir(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrImport)
}

func TestImportWriteFailureIsPersistence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := openStore(t)
	seed(t, src)
	payload, err := ExportStructured(ctx, src)
	require.NoError(t, err)
	tables, err := ExportTabular(ctx, src)
	require.NoError(t, err)

	dst := openStore(t)
	require.NoError(t, dst.Close())

	_, err = ImportStructured(ctx, dst, payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrImport)
	assert.Equal(t, ledger.KindPersistence, ledger.KindOf(err))

	_, err = ImportTabular(ctx, dst, tables)
	require.Error(t, err)
	assert.Equal(t, ledger.KindPersistence, ledger.KindOf(err))
}
