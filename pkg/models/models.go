package models

import (
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Direction представляет направление сигнала
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionHold  Direction = "hold"
)

// Signal представляет торговый сигнал по одной свече
type Signal struct {
	Symbol     string
	Direction  Direction
	Strength   float64 // сила сигнала в диапазоне [0, 1]
	Price      float64
	Timestamp  time.Time
	Components map[string]float64 // снимок значений индикаторов на момент сигнала
	Reasoning  []string
}

// OrderIntent представляет намерение открыть позицию,
// передаваемое внешнему исполнителю заявок
type OrderIntent struct {
	Symbol     string
	Side       Direction
	Amount     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Timestamp  time.Time
}

// Trade представляет закрытую сделку в журнале бэктеста
type Trade struct {
	ID         string
	Symbol     string
	Side       Direction
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	PnLPercent float64
	Commission float64
	ExitReason string
}

// EquityPoint представляет точку кривой капитала
type EquityPoint struct {
	Timestamp time.Time
	Value     float64
}

// BacktestResult представляет итоговую статистику прогона бэктеста
type BacktestResult struct {
	Symbol             string
	TotalReturn        float64
	TotalReturnPercent float64
	SharpeRatio        float64
	MaxDrawdown        float64
	MaxDrawdownPercent float64
	WinRate            float64
	ProfitFactor       float64
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	AvgWin             float64
	AvgLoss            float64
	LargestWin         float64
	LargestLoss        float64
	Trades             []Trade
	EquityCurve        []EquityPoint
	ExecutionTime      time.Duration
}
