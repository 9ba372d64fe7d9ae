package backtest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/internal/indicator"
	"github.com/skalibog/ssbe/internal/strategy"
	"github.com/skalibog/ssbe/pkg/logger"
	"github.com/skalibog/ssbe/pkg/models"
	"go.uber.org/zap"
)

// Ошибки подготовки прогона. Ошибки внутри цикла не возникают:
// вырожденные численные случаи разрешаются в нулевые значения.
var (
	ErrInvalidInput  = errors.New("пустой ряд свечей")
	ErrConfiguration = errors.New("некорректная конфигурация стратегии")
)

// State представляет состояние прогона бэктеста
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Причины закрытия позиции
const (
	exitReasonStopLoss    = "stop_loss"
	exitReasonTakeProfit  = "take_profit"
	exitReasonRule        = "rule"
	exitReasonMaxDrawdown = "max_drawdown"
)

// Шаг кооперативной уступки планировщику внутри цикла
const yieldEvery = 256

// openPosition представляет симулируемую открытую позицию.
// Существует не более одной на прогон; при закрытии превращается в Trade.
type openPosition struct {
	side       models.Direction
	size       float64
	entryPrice float64
	entryTime  time.Time
	commission float64
}

// Engine реализует детерминированный событийный цикл бэктеста:
// свечи → индикаторы → правила → симулированные исполнения → статистика
type Engine struct {
	config  config.BacktestConfig
	rules   []strategy.Rule
	candles []models.Candle

	mu    sync.Mutex
	state State

	pauseFlag atomic.Bool
	stopFlag  atomic.Bool

	balance   float64
	pos       *openPosition
	trades    []models.Trade
	equity    []models.EquityPoint
	maxEquity float64
}

// NewEngine создает новый движок бэктеста
func NewEngine(cfg config.BacktestConfig, rules []strategy.Rule) *Engine {
	return &Engine{
		config: cfg,
		rules:  rules,
		state:  StateIdle,
	}
}

// LoadData заменяет рабочий ряд свечей
func (e *Engine) LoadData(candles []models.Candle) error {
	if len(candles) == 0 {
		return ErrInvalidInput
	}
	e.candles = candles
	return nil
}

// State возвращает текущее состояние прогона
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Pause приостанавливает цикл между свечами
func (e *Engine) Pause() {
	e.pauseFlag.Store(true)
}

// Resume возобновляет цикл со следующей необработанной свечи
func (e *Engine) Resume() {
	e.pauseFlag.Store(false)
}

// Stop останавливает прогон. Открытая на момент остановки позиция
// остается неразрешенной и в журнал сделок не попадает.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Run выполняет прогон от первой прогретой свечи до конца ряда.
// Требует как минимум один включенный индикатор и одно входное правило.
func (e *Engine) Run(ctx context.Context) (*models.BacktestResult, error) {
	started := time.Now()

	if len(e.candles) == 0 {
		e.setState(StateFailed)
		return nil, ErrInvalidInput
	}

	entryRules, exitRules, filterRules := e.activeRules()
	enabledIndicators := e.enabledIndicators()
	if len(enabledIndicators) == 0 || len(entryRules) == 0 {
		e.setState(StateFailed)
		return nil, fmt.Errorf("%w: нужны минимум один индикатор и одно входное правило", ErrConfiguration)
	}

	eval, warmup, err := e.buildEvaluator(enabledIndicators)
	if err != nil {
		e.setState(StateFailed)
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	e.balance = e.config.InitialBalance
	e.pos = nil
	e.trades = nil
	e.equity = nil
	e.maxEquity = e.config.InitialBalance
	e.stopFlag.Store(false)

	e.setState(StateRunning)
	logger.Info("Старт бэктеста",
		zap.Int("candles", len(e.candles)),
		zap.Int("warmup", warmup),
		zap.Float64("balance", e.balance))

	stopped := false
	for i := warmup; i < len(e.candles); i++ {
		if e.stopFlag.Load() {
			stopped = true
			break
		}
		if err := e.waitIfPaused(ctx); err != nil {
			stopped = true
			break
		}
		if i%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				stopped = true
			default:
				runtime.Gosched()
			}
			if stopped {
				break
			}
		}

		candle := e.candles[i]

		if e.pos == nil {
			// Вход разрешен только когда все фильтры пропускают свечу
			if filtersPass(eval, filterRules, i) {
				for _, rule := range entryRules {
					if eval.EvaluateRule(rule, i) {
						e.openPosition(rule.Direction, candle)
						break
					}
				}
			}
		} else {
			e.checkExits(eval, exitRules, i, candle)
		}

		e.sampleEquity(candle)
	}

	if stopped {
		e.setState(StateStopped)
		logger.Info("Бэктест остановлен", zap.Int("trades", len(e.trades)))
	} else {
		e.setState(StateCompleted)
	}

	result := e.finalize(started)
	logger.Info("Бэктест завершен",
		zap.Int("trades", result.TotalTrades),
		zap.Float64("return_pct", result.TotalReturnPercent),
		zap.Float64("sharpe", result.SharpeRatio))
	return result, nil
}

// activeRules разделяет включенные правила на входные, выходные и фильтры
func (e *Engine) activeRules() (entry, exit, filter []strategy.Rule) {
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		switch r.Category {
		case strategy.CategoryEntry:
			entry = append(entry, r)
		case strategy.CategoryExit:
			exit = append(exit, r)
		case strategy.CategoryFilter:
			filter = append(filter, r)
		}
	}
	return entry, exit, filter
}

// filtersPass проверяет, что каждое фильтрующее правило пропускает свечу
func filtersPass(eval *strategy.Evaluator, filters []strategy.Rule, index int) bool {
	for _, f := range filters {
		if !eval.EvaluateRule(f, index) {
			return false
		}
	}
	return true
}

func (e *Engine) enabledIndicators() []config.IndicatorConfig {
	var out []config.IndicatorConfig
	for _, ic := range e.config.Indicators {
		if ic.Enabled {
			out = append(out, ic)
		}
	}
	return out
}

// buildEvaluator рассчитывает все серии индикаторов и возвращает
// оценщик правил вместе с числом свечей прогрева
func (e *Engine) buildEvaluator(indicators []config.IndicatorConfig) (*strategy.Evaluator, int, error) {
	eval := strategy.NewEvaluator(len(e.candles))
	eval.AddSeries("close", indicator.Closes(e.candles))

	warmup := 1 // пересечения требуют предыдущей свечи
	for _, ic := range indicators {
		series, err := indicator.Compute(ic, e.candles)
		if err != nil {
			return nil, 0, err
		}
		for name, values := range series {
			eval.AddSeries(name, values)
		}
		if w := indicator.Warmup(ic); w > warmup {
			warmup = w
		}
	}
	return eval, warmup, nil
}

// waitIfPaused кооперативно ждет снятия паузы между свечами
func (e *Engine) waitIfPaused(ctx context.Context) error {
	if !e.pauseFlag.Load() {
		return nil
	}
	e.setState(StatePaused)
	for e.pauseFlag.Load() {
		if e.stopFlag.Load() {
			return context.Canceled
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	e.setState(StateRunning)
	return nil
}

// openPosition открывает позицию по цене закрытия свечи
func (e *Engine) openPosition(side models.Direction, candle models.Candle) {
	price := candle.Close
	if price <= 0 {
		return
	}
	size := e.balance * e.config.PositionSizePct / price
	commission := size * price * e.config.CommissionPct

	e.pos = &openPosition{
		side:       side,
		size:       size,
		entryPrice: price,
		entryTime:  candle.CloseTime,
		commission: commission,
	}
}

// checkExits проверяет условия выхода в порядке приоритета:
// стоп-лосс/тейк-профит, затем выходные правила, затем просадка портфеля
func (e *Engine) checkExits(eval *strategy.Evaluator, exitRules []strategy.Rule, index int, candle models.Candle) {
	price := candle.Close
	pos := e.pos

	var change float64
	if pos.side == models.DirectionLong {
		change = (price - pos.entryPrice) / pos.entryPrice
	} else {
		change = (pos.entryPrice - price) / pos.entryPrice
	}

	if change <= -e.config.StopLossPct {
		e.closePosition(candle, exitReasonStopLoss)
		return
	}
	if change >= e.config.TakeProfitPct {
		e.closePosition(candle, exitReasonTakeProfit)
		return
	}

	for _, rule := range exitRules {
		if eval.EvaluateRule(rule, index) {
			e.closePosition(candle, exitReasonRule)
			return
		}
	}

	equity := e.currentEquity(price)
	if e.maxEquity > 0 && (e.maxEquity-equity)/e.maxEquity >= e.config.MaxDrawdownPct {
		e.closePosition(candle, exitReasonMaxDrawdown)
	}
}

// closePosition закрывает позицию и добавляет сделку в журнал
func (e *Engine) closePosition(candle models.Candle, reason string) {
	pos := e.pos
	price := candle.Close

	var pnl float64
	if pos.side == models.DirectionLong {
		pnl = (price - pos.entryPrice) * pos.size
	} else {
		pnl = (pos.entryPrice - price) * pos.size
	}
	commission := pos.commission + pos.size*price*e.config.CommissionPct
	net := pnl - commission

	e.balance += net

	trade := models.Trade{
		ID:         tradeID(candle.Symbol, pos.entryTime, len(e.trades)),
		Symbol:     candle.Symbol,
		Side:       pos.side,
		EntryTime:  pos.entryTime,
		ExitTime:   candle.CloseTime,
		EntryPrice: pos.entryPrice,
		ExitPrice:  price,
		Quantity:   pos.size,
		PnL:        net,
		Commission: commission,
		ExitReason: reason,
	}
	if notional := pos.size * pos.entryPrice; notional > 0 {
		trade.PnLPercent = net / notional * 100
	}
	e.trades = append(e.trades, trade)
	e.pos = nil
}

// currentEquity возвращает баланс с учетом нереализованного результата
func (e *Engine) currentEquity(price float64) float64 {
	equity := e.balance
	if e.pos != nil {
		if e.pos.side == models.DirectionLong {
			equity += (price - e.pos.entryPrice) * e.pos.size
		} else {
			equity += (e.pos.entryPrice - price) * e.pos.size
		}
	}
	return equity
}

// sampleEquity записывает точку кривой капитала и обновляет максимум
func (e *Engine) sampleEquity(candle models.Candle) {
	equity := e.currentEquity(candle.Close)
	e.equity = append(e.equity, models.EquityPoint{
		Timestamp: candle.CloseTime,
		Value:     equity,
	})
	if equity > e.maxEquity {
		e.maxEquity = equity
	}
}

// tradeID строит детерминированный идентификатор сделки,
// чтобы повторный прогон давал идентичный результат
func tradeID(symbol string, entry time.Time, n int) string {
	name := fmt.Sprintf("%s-%d-%d", symbol, entry.UnixNano(), n)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
