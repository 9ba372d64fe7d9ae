package indicator

import (
	"fmt"

	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/pkg/models"
)

// Compute рассчитывает индикатор по его конфигурации и возвращает
// набор именованных серий. Многолинейные индикаторы публикуют
// дополнительные серии с суффиксами (_signal, _hist, _upper и т.д.).
func Compute(cfg config.IndicatorConfig, candles []models.Candle) (map[string][]float64, error) {
	closes := Closes(candles)
	out := make(map[string][]float64)

	switch cfg.Type {
	case "sma":
		out[cfg.Name] = SMA(closes, cfg.Period)
	case "ema":
		out[cfg.Name] = EMA(closes, cfg.Period)
	case "rsi":
		out[cfg.Name] = RSI(closes, cfg.Period)
	case "macd":
		macd, signal, hist := MACD(closes, cfg.Fast, cfg.Slow, cfg.Signal)
		out[cfg.Name] = macd
		out[cfg.Name+"_signal"] = signal
		out[cfg.Name+"_hist"] = hist
	case "bollinger":
		mult := cfg.StdDev
		if mult <= 0 {
			mult = 2.0
		}
		upper, middle, lower := BollingerBands(closes, cfg.Period, mult)
		out[cfg.Name+"_upper"] = upper
		out[cfg.Name] = middle
		out[cfg.Name+"_lower"] = lower
	case "stochastic":
		k, d := Stochastic(candles, cfg.Period, cfg.DPeriod)
		out[cfg.Name] = k
		out[cfg.Name+"_d"] = d
	case "adx":
		out[cfg.Name] = ADX(Highs(candles), Lows(candles), closes, cfg.Period)
	case "atr":
		out[cfg.Name] = ATR(Highs(candles), Lows(candles), closes, cfg.Period)
	default:
		return nil, fmt.Errorf("неизвестный тип индикатора: %s", cfg.Type)
	}

	return out, nil
}

// Warmup возвращает число свечей, необходимое индикатору для прогрева
func Warmup(cfg config.IndicatorConfig) int {
	switch cfg.Type {
	case "sma", "ema", "bollinger":
		return cfg.Period
	case "rsi", "atr":
		return cfg.Period + 1
	case "macd":
		return cfg.Slow + cfg.Signal
	case "stochastic":
		return cfg.Period + cfg.DPeriod
	case "adx":
		return 2*cfg.Period + 1
	default:
		return 0
	}
}
