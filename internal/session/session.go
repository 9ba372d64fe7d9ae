package session

import (
	"context"
	"sync"

	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/internal/indicator"
	"github.com/skalibog/ssbe/internal/risk"
	"github.com/skalibog/ssbe/internal/signal"
	"github.com/skalibog/ssbe/internal/storage"
	"github.com/skalibog/ssbe/pkg/logger"
	"github.com/skalibog/ssbe/pkg/models"
	"go.uber.org/zap"
)

// Размер буфера входящих свечей и глубина истории сигналов
const (
	candleBuffer     = 16
	signalHistoryMax = 100
)

// Дистанции стопа и цели по умолчанию от цены входа
const (
	defaultStopPct   = 0.02
	defaultTargetPct = 0.04
)

// Период ATR для поправки размера на волатильность
const atrPeriod = 14

// Executor представляет внешнего исполнителя заявок.
// Сессия только формирует намерения, заявки она не размещает.
type Executor interface {
	PlaceIntent(ctx context.Context, intent models.OrderIntent) error
}

// Session представляет торговую сессию одного символа: скользящее окно
// свечей, генератор сигналов и риск-менеджер. Все зависимости передаются
// явно при создании; глобального состояния нет. Состояние сессии и
// риск-менеджер сериализуются через mu: riskMgr вызывается только под ним,
// поэтому сам менеджер остается без блокировок.
type Session struct {
	symbol    string
	cfg       config.TradingConfig
	generator *signal.Generator
	riskMgr   *risk.Manager
	store     storage.Storage
	executor  Executor

	mu       sync.RWMutex
	candles  []models.Candle
	history  []models.Signal // сначала свежие
	candleCh chan models.Candle
}

// NewSession создает торговую сессию символа
func NewSession(symbol string, cfg config.TradingConfig, generator *signal.Generator, riskMgr *risk.Manager, store storage.Storage, executor Executor) *Session {
	return &Session{
		symbol:    symbol,
		cfg:       cfg,
		generator: generator,
		riskMgr:   riskMgr,
		store:     store,
		executor:  executor,
		candleCh:  make(chan models.Candle, candleBuffer),
	}
}

// LoadHistoricalSeries заменяет скользящее окно историческим рядом
func (s *Session) LoadHistoricalSeries(candles []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(candles) > s.cfg.HistorySize {
		candles = candles[len(candles)-s.cfg.HistorySize:]
	}
	s.candles = append(s.candles[:0], candles...)
	logger.Info("Загружена историческая серия",
		zap.String("symbol", s.symbol),
		zap.Int("candles", len(s.candles)))
}

// IngestCandle передает новую свечу циклу сессии
func (s *Session) IngestCandle(candle models.Candle) {
	s.candleCh <- candle
}

// Start запускает цикл сессии. Блокируется до отмены контекста.
// Все изменения состояния происходят только внутри этого цикла.
func (s *Session) Start(ctx context.Context) {
	logger.Info("Старт сессии", zap.String("symbol", s.symbol))
	for {
		select {
		case candle := <-s.candleCh:
			s.process(ctx, candle)
		case <-ctx.Done():
			logger.Info("Сессия остановлена", zap.String("symbol", s.symbol))
			return
		}
	}
}

// SignalHistory возвращает историю сигналов сессии, сначала свежие
func (s *Session) SignalHistory() []models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Signal, len(s.history))
	copy(out, s.history)
	return out
}

// ReportFill учитывает закрытие позиции внешним исполнителем:
// снимает позицию с учета и проводит реализованный результат
// через риск-менеджер. Сериализуется с циклом сессии.
func (s *Session) ReportFill(size, entryPrice, pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	realized := pnl
	s.riskMgr.UpdateAfterTrade(s.symbol, risk.ActionSell, size, entryPrice, &realized)
	logger.Info("Учтено закрытие позиции",
		zap.String("symbol", s.symbol),
		zap.Float64("size", size),
		zap.Float64("pnl", pnl))
}

// RiskMetrics возвращает текущие риск-метрики для отображения
func (s *Session) RiskMetrics() risk.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.riskMgr.GetMetrics()
}

// EmergencyMode сообщает о состоянии аварийного стопа
func (s *Session) EmergencyMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.riskMgr.IsEmergencyMode()
}

// process обрабатывает одну свечу: окно → сигнал → риск → намерение
func (s *Session) process(ctx context.Context, candle models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = append(s.candles, candle)
	if len(s.candles) > s.cfg.HistorySize {
		s.candles = s.candles[len(s.candles)-s.cfg.HistorySize:]
	}

	if err := s.store.SaveCandle(ctx, &candle); err != nil {
		logger.Warn("Не удалось сохранить свечу", zap.String("symbol", s.symbol), zap.Error(err))
	}

	sig := s.generator.Generate(s.candles)

	s.history = append([]models.Signal{sig}, s.history...)
	if len(s.history) > signalHistoryMax {
		s.history = s.history[:signalHistoryMax]
	}
	if err := s.store.SaveSignal(ctx, &sig); err != nil {
		logger.Warn("Не удалось сохранить сигнал", zap.String("symbol", s.symbol), zap.Error(err))
	}

	if sig.Direction == models.DirectionHold {
		return
	}
	if s.riskMgr.HasOpenPosition(s.symbol) {
		// Пирамидинг не поддерживается: одна позиция на символ
		return
	}

	s.propose(ctx, sig)
}

// propose проводит сигнал через риск-менеджер и передает
// одобренное намерение исполнителю
func (s *Session) propose(ctx context.Context, sig models.Signal) {
	stop := defaultStop(sig.Direction, sig.Price)
	target := defaultTarget(sig.Direction, sig.Price)

	atr, _ := indicator.Last(indicator.ATR(
		indicator.Highs(s.candles),
		indicator.Lows(s.candles),
		indicator.Closes(s.candles),
		atrPeriod,
	))

	balance := s.riskMgr.GetMetrics().AccountBalance
	calc := s.riskMgr.CalculatePositionSize(balance, sig.Price, stop, s.symbol, atr)
	if !calc.Approved {
		logger.Debug("Размер позиции не одобрен",
			zap.String("symbol", s.symbol),
			zap.Strings("reasoning", calc.Reasoning))
		return
	}

	assessment := s.riskMgr.AssessTradeRisk(s.symbol, risk.ActionBuy, calc.RecommendedSize, sig.Price, stop, target)
	if !assessment.Approved {
		logger.Info("Сделка отклонена риск-менеджером",
			zap.String("symbol", s.symbol),
			zap.Float64("risk_score", assessment.RiskScore),
			zap.Strings("restrictions", assessment.Restrictions),
			zap.Strings("warnings", assessment.Warnings))
		return
	}

	intent := models.OrderIntent{
		Symbol:     s.symbol,
		Side:       sig.Direction,
		Amount:     calc.RecommendedSize,
		Price:      sig.Price,
		StopLoss:   stop,
		TakeProfit: target,
		Timestamp:  sig.Timestamp,
	}
	if err := s.executor.PlaceIntent(ctx, intent); err != nil {
		logger.Error("Ошибка передачи намерения исполнителю",
			zap.String("symbol", s.symbol), zap.Error(err))
		return
	}

	s.riskMgr.UpdateAfterTrade(s.symbol, risk.ActionBuy, calc.RecommendedSize, sig.Price, nil)
	logger.Info("Намерение передано исполнителю",
		zap.String("symbol", s.symbol),
		zap.String("side", string(sig.Direction)),
		zap.Float64("amount", calc.RecommendedSize),
		zap.Float64("price", sig.Price))
}

// defaultStop возвращает стоп по умолчанию для направления.
// Единственное место вычисления запасного стопа.
func defaultStop(side models.Direction, price float64) float64 {
	if side == models.DirectionShort {
		return price * (1 + defaultStopPct)
	}
	return price * (1 - defaultStopPct)
}

// defaultTarget возвращает цель по умолчанию для направления
func defaultTarget(side models.Direction, price float64) float64 {
	if side == models.DirectionShort {
		return price * (1 - defaultTargetPct)
	}
	return price * (1 + defaultTargetPct)
}
