package risk

import (
	"fmt"
	"time"

	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/pkg/logger"
	"go.uber.org/zap"
)

// Порог корреляции, начиная с которого пары считаются связанными
const correlationThreshold = 0.7

// Окно скользящего журнала сделок для оценки частоты торговли
const tradeLogWindow = time.Hour

// Action представляет сторону сделки для учета позиций
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Metrics представляет текущие риск-метрики счета.
// Владеет ими исключительно Manager.
type Metrics struct {
	CurrentDrawdown float64 // текущая просадка, неположительная
	DailyPnL        float64
	OpenPositions   int
	TotalExposure   float64
	AccountBalance  float64
	LastReset       time.Time
}

// SizeCalculation представляет результат расчета размера позиции
type SizeCalculation struct {
	RecommendedSize float64
	MaxAllowedSize  float64
	RiskAmount      float64
	Reasoning       []string
	Approved        bool
}

// Assessment представляет результат оценки риска сделки.
// Отказ — это нормальный результат, а не ошибка.
type Assessment struct {
	Approved     bool
	RiskScore    float64
	Restrictions []string // жесткие запреты
	Warnings     []string
	Sizing       SizeCalculation
}

// position учитывает открытую позицию для экспозиции и корреляции
type position struct {
	side       Action
	size       float64
	entryPrice float64
}

// Manager реализует риск-менеджмент: одобрение и сайзинг каждой сделки,
// учет метрик счета и аварийный стоп. Не потокобезопасен: у каждого
// счета должен быть единственный владелец (см. session).
type Manager struct {
	config    config.RiskConfig
	metrics   Metrics
	positions map[string]position
	tradeLog  []time.Time

	emergency          bool
	emergencyEnteredAt time.Time
	drawdownAtExit     float64

	now func() time.Time
}

// NewManager создает новый риск-менеджер
func NewManager(cfg config.RiskConfig, accountBalance float64) *Manager {
	return &Manager{
		config: cfg,
		metrics: Metrics{
			AccountBalance: accountBalance,
			LastReset:      time.Now(),
		},
		positions: make(map[string]position),
		now:       time.Now,
	}
}

// CalculatePositionSize рассчитывает размер позиции по риску на сделку
// с поправками на волатильность, корреляцию и текущую просадку.
// Каждый шаг добавляет строку объяснения в порядке применения.
func (m *Manager) CalculatePositionSize(balance, entryPrice, stopPrice float64, symbol string, atr float64) SizeCalculation {
	calc := SizeCalculation{}

	maxRiskAmount := balance * m.config.MaxRiskPerTrade
	calc.Reasoning = append(calc.Reasoning,
		fmt.Sprintf("риск на сделку %.2f (%.1f%% от баланса %.2f)", maxRiskAmount, m.config.MaxRiskPerTrade*100, balance))

	stopDistance := entryPrice - stopPrice
	if stopDistance < 0 {
		stopDistance = -stopDistance
	}
	if stopDistance == 0 || entryPrice <= 0 {
		calc.Reasoning = append(calc.Reasoning, "нулевая дистанция до стопа: размер не определен")
		return calc
	}

	size := maxRiskAmount / stopDistance
	calc.Reasoning = append(calc.Reasoning,
		fmt.Sprintf("базовый размер %.6f при дистанции до стопа %.4f", size, stopDistance))

	// Поправка на волатильность: размер уменьшается с ростом ATR
	if atr > 0 {
		volFactor := 0.02 / (atr / entryPrice)
		if volFactor > 1 {
			volFactor = 1
		}
		size *= volFactor
		calc.Reasoning = append(calc.Reasoning,
			fmt.Sprintf("поправка на волатильность ×%.2f (ATR %.4f)", volFactor, atr))
	}

	// Поправка на корреляцию с открытыми позициями
	correlated := m.correlatedCount(symbol)
	corrFactor := 1 - 0.2*float64(correlated)
	if corrFactor < 0.2 {
		corrFactor = 0.2
	}
	size *= corrFactor
	calc.Reasoning = append(calc.Reasoning,
		fmt.Sprintf("поправка на корреляцию ×%.2f (%d связанных позиций)", corrFactor, correlated))

	// Поправка на текущую просадку, ступенчатая
	ddFactor := m.drawdownFactor()
	size *= ddFactor
	calc.Reasoning = append(calc.Reasoning,
		fmt.Sprintf("поправка на просадку ×%.2f", ddFactor))

	// Абсолютный потолок: 10% баланса в нотационале
	calc.MaxAllowedSize = 0.10 * balance / entryPrice
	if size > calc.MaxAllowedSize {
		size = calc.MaxAllowedSize
		calc.Reasoning = append(calc.Reasoning,
			fmt.Sprintf("размер ограничен потолком %.6f (10%% баланса)", calc.MaxAllowedSize))
	}

	calc.RecommendedSize = size
	calc.RiskAmount = size * stopDistance
	calc.Approved = size > 0 && !m.emergency
	if m.emergency {
		calc.Reasoning = append(calc.Reasoning, "аварийный режим: сделка не одобрена")
	}
	return calc
}

// AssessTradeRisk оценивает предлагаемую сделку и накапливает риск-балл.
// В аварийном режиме сделка отклоняется безусловно с баллом 100.
func (m *Manager) AssessTradeRisk(symbol string, side Action, size, entryPrice, stopPrice, takeProfit float64) Assessment {
	m.checkEmergencyConditions()

	if m.emergency {
		return Assessment{
			Approved:     false,
			RiskScore:    100,
			Restrictions: []string{"аварийный режим: торговля остановлена"},
		}
	}

	a := Assessment{}

	if m.metrics.DailyPnL <= -m.config.MaxDailyDrawdown*m.metrics.AccountBalance {
		a.RiskScore += 30
		a.Restrictions = append(a.Restrictions,
			fmt.Sprintf("превышен дневной лимит просадки: %.2f", m.metrics.DailyPnL))
	}

	if len(m.positions) >= m.config.MaxOpenPositions {
		a.RiskScore += 20
		a.Restrictions = append(a.Restrictions,
			fmt.Sprintf("достигнут лимит открытых позиций: %d", len(m.positions)))
	}

	if takeProfit > 0 {
		riskDist := entryPrice - stopPrice
		if riskDist < 0 {
			riskDist = -riskDist
		}
		rewardDist := takeProfit - entryPrice
		if rewardDist < 0 {
			rewardDist = -rewardDist
		}
		if riskDist > 0 && rewardDist/riskDist < m.config.MinRiskReward {
			a.RiskScore += 15
			a.Warnings = append(a.Warnings,
				fmt.Sprintf("risk:reward %.2f ниже минимума %.2f", rewardDist/riskDist, m.config.MinRiskReward))
		}
	}

	if m.correlatedCount(symbol) >= m.config.MaxCorrelatedPosition {
		a.RiskScore += 10
		a.Warnings = append(a.Warnings, "слишком много коррелированных позиций")
	}

	if m.metrics.TotalExposure+size*entryPrice > 0.5*m.metrics.AccountBalance {
		a.RiskScore += 15
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("суммарная экспозиция превышает 50%% баланса: %.2f", m.metrics.TotalExposure+size*entryPrice))
	}

	if m.recentTradeCount() > 10 {
		a.RiskScore += 10
		a.Warnings = append(a.Warnings, "более 10 сделок за последний час")
	}

	a.Sizing = m.CalculatePositionSize(m.metrics.AccountBalance, entryPrice, stopPrice, symbol, 0)
	a.Approved = len(a.Restrictions) == 0 && a.Sizing.Approved && a.RiskScore < 70
	return a
}

// UpdateAfterTrade обновляет метрики после исполнения сделки.
// Покупка регистрирует позицию и экспозицию, продажа снимает их.
// pnl, если передан, накапливается в дневной результат и баланс.
func (m *Manager) UpdateAfterTrade(symbol string, action Action, size, entryPrice float64, pnl *float64) {
	m.tradeLog = append(m.tradeLog, m.now())

	switch action {
	case ActionBuy:
		m.positions[symbol] = position{side: action, size: size, entryPrice: entryPrice}
		m.metrics.OpenPositions = len(m.positions)
		m.metrics.TotalExposure += size * entryPrice
	case ActionSell:
		delete(m.positions, symbol)
		m.metrics.OpenPositions = len(m.positions)
		m.metrics.TotalExposure -= size * entryPrice
		if m.metrics.TotalExposure < 0 {
			m.metrics.TotalExposure = 0
		}
	}

	if pnl != nil {
		m.metrics.DailyPnL += *pnl
		m.metrics.AccountBalance += *pnl
		// Просадка — бегущий неположительный минимум дневного результата
		if m.metrics.DailyPnL < m.metrics.CurrentDrawdown {
			m.metrics.CurrentDrawdown = m.metrics.DailyPnL
		}
		if m.metrics.CurrentDrawdown > 0 {
			m.metrics.CurrentDrawdown = 0
		}
	}

	m.checkEmergencyConditions()
	m.resetDailyMetricsIfNeeded()
}

// UpdateAccountBalance устанавливает баланс счета из внешнего хранилища
func (m *Manager) UpdateAccountBalance(balance float64) {
	m.metrics.AccountBalance = balance
}

// UpdateConfig заменяет конфигурацию лимитов. Изменение только явное.
func (m *Manager) UpdateConfig(cfg config.RiskConfig) {
	m.config = cfg
}

// GetMetrics возвращает копию текущих метрик для отображения
func (m *Manager) GetMetrics() Metrics {
	return m.metrics
}

// GetConfig возвращает текущую конфигурацию лимитов
func (m *Manager) GetConfig() config.RiskConfig {
	return m.config
}

// HasOpenPosition сообщает, открыта ли позиция по символу
func (m *Manager) HasOpenPosition(symbol string) bool {
	_, ok := m.positions[symbol]
	return ok
}

// IsEmergencyMode сообщает, находится ли менеджер в аварийном режиме
func (m *Manager) IsEmergencyMode() bool {
	return m.emergency
}

// checkEmergencyConditions переключает аварийный режим.
// Вход — при катастрофической просадке, выход — лениво после кулдауна.
func (m *Manager) checkEmergencyConditions() {
	if !m.emergency {
		// После выхода по кулдауну повторный вход требует углубления
		// просадки, иначе режим включался бы заново каждый вызов
		if m.metrics.CurrentDrawdown <= -m.config.EmergencyStopLoss*m.metrics.AccountBalance &&
			m.metrics.CurrentDrawdown < m.drawdownAtExit {
			m.emergency = true
			m.emergencyEnteredAt = m.now()
			logger.Warn("Включен аварийный режим",
				zap.Float64("drawdown", m.metrics.CurrentDrawdown),
				zap.Float64("balance", m.metrics.AccountBalance))
		}
		return
	}

	cooldown := time.Duration(m.config.CooldownMinutes) * time.Minute
	if m.now().Sub(m.emergencyEnteredAt) >= cooldown {
		m.emergency = false
		m.drawdownAtExit = m.metrics.CurrentDrawdown
		logger.Info("Аварийный режим снят после кулдауна",
			zap.Duration("cooldown", cooldown))
	}
}

// resetDailyMetricsIfNeeded сбрасывает дневные метрики спустя сутки
func (m *Manager) resetDailyMetricsIfNeeded() {
	if m.now().Sub(m.metrics.LastReset) <= 24*time.Hour {
		return
	}
	m.metrics.DailyPnL = 0
	m.metrics.CurrentDrawdown = 0
	m.drawdownAtExit = 0
	m.tradeLog = nil
	m.metrics.LastReset = m.now()
	logger.Info("Сброшены дневные риск-метрики")
}

// drawdownFactor возвращает ступенчатую поправку размера на просадку
func (m *Manager) drawdownFactor() float64 {
	if m.metrics.AccountBalance <= 0 {
		return 1
	}
	dd := -m.metrics.CurrentDrawdown / m.metrics.AccountBalance
	switch {
	case dd < 0.05:
		return 1.0
	case dd < 0.10:
		return 0.8
	case dd < 0.15:
		return 0.6
	default:
		return 0.4
	}
}

// correlatedCount считает открытые позиции, коррелированные с символом
func (m *Manager) correlatedCount(symbol string) int {
	count := 0
	for open := range m.positions {
		if open == symbol {
			continue
		}
		if Correlation(symbol, open) >= correlationThreshold {
			count++
		}
	}
	return count
}

// recentTradeCount считает сделки в скользящем часовом окне
func (m *Manager) recentTradeCount() int {
	cutoff := m.now().Add(-tradeLogWindow)
	count := 0
	kept := m.tradeLog[:0]
	for _, t := range m.tradeLog {
		if t.After(cutoff) {
			kept = append(kept, t)
			count++
		}
	}
	m.tradeLog = kept
	return count
}
