package signal

import (
	"fmt"
	"math"

	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/internal/indicator"
	"github.com/skalibog/ssbe/pkg/models"
)

// Generator реализует конфлюэнс-генератор сигналов: каждый индикатор
// отдает один бычий или медвежий голос, сигнал выдается при согласии
// как минимум двух индикаторов
type Generator struct {
	config config.SignalConfig
}

// NewGenerator создает новый генератор сигналов
func NewGenerator(cfg config.SignalConfig) *Generator {
	return &Generator{
		config: cfg,
	}
}

// Generate вычисляет сигнал по последней свече ряда.
// До накопления минимальной истории возвращается HOLD.
func (g *Generator) Generate(candles []models.Candle) models.Signal {
	sig := models.Signal{
		Direction:  models.DirectionHold,
		Components: make(map[string]float64),
	}
	if len(candles) == 0 {
		return sig
	}

	last := candles[len(candles)-1]
	sig.Symbol = last.Symbol
	sig.Price = last.Close
	sig.Timestamp = last.CloseTime

	if len(candles) < g.config.MinHistory {
		sig.Reasoning = append(sig.Reasoning,
			fmt.Sprintf("недостаточно истории: %d свечей из %d", len(candles), g.config.MinHistory))
		return sig
	}

	closes := indicator.Closes(candles)
	highs := indicator.Highs(candles)
	lows := indicator.Lows(candles)

	var bullish, bearish float64

	// Голос RSI: перепроданность — за покупку, перекупленность — за продажу
	if rsi, ok := indicator.Last(indicator.RSI(closes, g.config.RSIPeriod)); ok {
		sig.Components["rsi"] = rsi
		if rsi < 30 {
			bullish++
			sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("RSI %.1f: перепроданность", rsi))
		} else if rsi > 70 {
			bearish++
			sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("RSI %.1f: перекупленность", rsi))
		}
	}

	// Голос MACD: положение линии относительно сигнальной
	macd, macdSignal, _ := indicator.MACD(closes, g.config.MACDFast, g.config.MACDSlow, g.config.MACDSignal)
	if m, ok := indicator.Last(macd); ok {
		if s, ok := indicator.Last(macdSignal); ok {
			sig.Components["macd"] = m
			sig.Components["macd_signal"] = s
			if m > s {
				bullish++
				sig.Reasoning = append(sig.Reasoning, "MACD выше сигнальной линии")
			} else {
				bearish++
				sig.Reasoning = append(sig.Reasoning, "MACD ниже сигнальной линии")
			}
		}
	}

	// Голос EMA: положение быстрой относительно медленной
	emaFast, okF := indicator.Last(indicator.EMA(closes, g.config.EMAFast))
	emaSlow, okS := indicator.Last(indicator.EMA(closes, g.config.EMASlow))
	if okF && okS {
		sig.Components["ema_fast"] = emaFast
		sig.Components["ema_slow"] = emaSlow
		if emaFast > emaSlow {
			bullish++
			sig.Reasoning = append(sig.Reasoning, "быстрая EMA выше медленной")
		} else {
			bearish++
			sig.Reasoning = append(sig.Reasoning, "быстрая EMA ниже медленной")
		}
	}

	// ADX не голосует за направление, но усиливает голоса при сильном тренде
	if adx, ok := indicator.Last(indicator.ADX(highs, lows, closes, g.config.ADXPeriod)); ok {
		sig.Components["adx"] = adx
		if adx > g.config.ADXThreshold {
			bullish *= 1.2
			bearish *= 1.2
			sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("ADX %.1f: сильный тренд", adx))
		}
	}

	sig.Components["bullish_votes"] = bullish
	sig.Components["bearish_votes"] = bearish

	switch {
	case bullish > bearish && bullish >= 2:
		sig.Direction = models.DirectionLong
		sig.Strength = math.Min(bullish/3, 1)
	case bearish > bullish && bearish >= 2:
		sig.Direction = models.DirectionShort
		sig.Strength = math.Min(bearish/3, 1)
	default:
		sig.Direction = models.DirectionHold
		sig.Strength = 0
	}

	return sig
}
