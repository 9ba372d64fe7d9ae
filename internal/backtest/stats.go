package backtest

import (
	"math"
	"time"

	"github.com/skalibog/ssbe/pkg/models"
)

// Торговых дней в году для аннуализации Sharpe
const tradingDaysPerYear = 252

// finalize собирает итоговую статистику из журнала сделок
// и кривой капитала
func (e *Engine) finalize(started time.Time) *models.BacktestResult {
	result := &models.BacktestResult{
		Trades:      e.trades,
		EquityCurve: e.equity,
	}
	if len(e.candles) > 0 {
		result.Symbol = e.candles[0].Symbol
	}

	result.TotalReturn = e.balance - e.config.InitialBalance
	if e.config.InitialBalance > 0 {
		result.TotalReturnPercent = result.TotalReturn / e.config.InitialBalance * 100
	}

	var grossProfit, grossLoss float64
	largestWin := 0.0
	largestLoss := 0.0
	for _, t := range e.trades {
		if t.PnL >= 0 {
			result.WinningTrades++
			grossProfit += t.PnL
			if t.PnL > largestWin {
				largestWin = t.PnL
			}
		} else {
			result.LosingTrades++
			grossLoss += -t.PnL
			if t.PnL < largestLoss {
				largestLoss = t.PnL
			}
		}
	}
	result.TotalTrades = len(e.trades)
	result.LargestWin = largestWin
	result.LargestLoss = largestLoss

	if result.WinningTrades > 0 {
		result.AvgWin = grossProfit / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AvgLoss = -grossLoss / float64(result.LosingTrades)
	}
	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	}

	// Вырожденный случай без убытков разрешается в валовую прибыль
	if grossLoss == 0 {
		result.ProfitFactor = grossProfit
	} else {
		result.ProfitFactor = grossProfit / grossLoss
	}

	result.MaxDrawdown, result.MaxDrawdownPercent = maxDrawdown(e.equity)
	result.SharpeRatio = sharpeRatio(e.equity)
	result.ExecutionTime = time.Since(started)
	return result
}

// maxDrawdown возвращает максимальную просадку кривой капитала
// в абсолютном выражении и в процентах от пика
func maxDrawdown(equity []models.EquityPoint) (float64, float64) {
	var peak, maxAbs, maxPct float64
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		dd := peak - p.Value
		if dd > maxAbs {
			maxAbs = dd
		}
		if pct := dd / peak * 100; pct > maxPct {
			maxPct = pct
		}
	}
	return maxAbs, maxPct
}

// sharpeRatio рассчитывает аннуализированный коэффициент Шарпа
// по дневным доходностям кривой капитала. Нулевая дисперсия дает 0.
func sharpeRatio(equity []models.EquityPoint) float64 {
	daily := dailyCloses(equity)
	if len(daily) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(daily)-1)
	for i := 1; i < len(daily); i++ {
		if daily[i-1] == 0 {
			continue
		}
		returns = append(returns, (daily[i]-daily[i-1])/daily[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// dailyCloses возвращает последнее значение капитала за каждый
// календарный день в хронологическом порядке
func dailyCloses(equity []models.EquityPoint) []float64 {
	var out []float64
	var lastDay string
	for _, p := range equity {
		day := p.Timestamp.UTC().Format("2006-01-02")
		if day == lastDay && len(out) > 0 {
			out[len(out)-1] = p.Value
			continue
		}
		out = append(out, p.Value)
		lastDay = day
	}
	return out
}
