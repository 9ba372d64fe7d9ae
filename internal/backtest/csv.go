package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/skalibog/ssbe/pkg/models"
)

// Фиксированный заголовок экспорта сделок
var csvHeader = []string{
	"id", "symbol", "side",
	"entry_time", "exit_time",
	"entry_price", "exit_price",
	"quantity", "pnl", "pnl_percent",
	"commission", "duration_ms",
}

// WriteCSV экспортирует журнал сделок прогона в CSV-файл,
// по одной строке на сделку
func WriteCSV(result *models.BacktestResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла экспорта: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	for _, t := range result.Trades {
		row := []string{
			t.ID,
			t.Symbol,
			string(t.Side),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Quantity),
			formatFloat(t.PnL),
			formatFloat(t.PnLPercent),
			formatFloat(t.Commission),
			strconv.FormatInt(t.ExitTime.Sub(t.EntryTime).Milliseconds(), 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("ошибка записи сделки %s: %w", t.ID, err)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
