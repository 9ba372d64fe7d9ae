package backtest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skalibog/ssbe/pkg/models"
)

func TestWriteCSV(t *testing.T) {
	entry := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	result := &models.BacktestResult{
		Trades: []models.Trade{
			{
				ID:         "t1",
				Symbol:     "BTCUSDT",
				Side:       models.DirectionLong,
				EntryTime:  entry,
				ExitTime:   entry.Add(90 * time.Minute),
				EntryPrice: 50000,
				ExitPrice:  51000,
				Quantity:   0.02,
				PnL:        20,
				PnLPercent: 2,
				Commission: 0.5,
				ExitReason: "take_profit",
			},
			{
				ID:         "t2",
				Symbol:     "BTCUSDT",
				Side:       models.DirectionShort,
				EntryTime:  entry.Add(3 * time.Hour),
				ExitTime:   entry.Add(4 * time.Hour),
				EntryPrice: 51000,
				ExitPrice:  51500,
				Quantity:   0.02,
				PnL:        -10,
				PnLPercent: -1,
				Commission: 0.5,
				ExitReason: "stop_loss",
			},
		},
	}

	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := WriteCSV(result, path); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("строк = %d, ожидалось 3 (заголовок + 2 сделки)", len(rows))
	}

	wantHeader := "id,symbol,side,entry_time,exit_time,entry_price,exit_price,quantity,pnl,pnl_percent,commission,duration_ms"
	if got := strings.Join(rows[0], ","); got != wantHeader {
		t.Errorf("заголовок = %q, ожидалось %q", got, wantHeader)
	}

	first := rows[1]
	if first[0] != "t1" || first[2] != "long" {
		t.Errorf("первая строка: id=%q side=%q", first[0], first[2])
	}
	if first[3] != "2024-01-01T10:00:00Z" {
		t.Errorf("entry_time = %q", first[3])
	}
	if first[11] != "5400000" { // 90 минут в миллисекундах
		t.Errorf("duration_ms = %q, ожидалось 5400000", first[11])
	}
	if rows[2][8] != "-10" {
		t.Errorf("pnl второй сделки = %q, ожидалось -10", rows[2][8])
	}
}

func TestWriteCSVEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteCSV(&models.BacktestResult{}, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Errorf("пустой журнал должен давать только заголовок, получено %d строк", len(lines))
	}
}
