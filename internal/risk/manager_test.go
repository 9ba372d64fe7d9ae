package risk

import (
	"testing"
	"time"

	"github.com/skalibog/ssbe/internal/config"
)

func defaultRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxRiskPerTrade:       0.02,
		MaxDailyDrawdown:      0.05,
		MaxOpenPositions:      5,
		MaxCorrelatedPosition: 2,
		MinRiskReward:         1.5,
		MaxLeverage:           3,
		EmergencyStopLoss:     0.10,
		CooldownMinutes:       60,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestEmergencyAfterCatastrophicLoss(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)

	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, floatPtr(-1100))

	if !m.IsEmergencyMode() {
		t.Fatal("просадка -1100 при балансе 10000 должна включать аварийный режим")
	}

	a := m.AssessTradeRisk("BTCUSDT", ActionBuy, 1, 100, 98, 104)
	if a.Approved {
		t.Error("в аварийном режиме сделка не может быть одобрена")
	}
	if a.RiskScore != 100 {
		t.Errorf("riskScore = %v, want 100", a.RiskScore)
	}
}

func TestRejectWhileEmergencyRegardlessOfParams(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)
	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, floatPtr(-2000))
	if !m.IsEmergencyMode() {
		t.Fatal("ожидался аварийный режим")
	}

	tests := []struct {
		name            string
		entry, stop, tp float64
	}{
		{"perfect trade", 100, 99, 110},
		{"tiny size", 100, 99.9, 101},
		{"no take profit", 100, 95, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := m.AssessTradeRisk("ETHUSDT", ActionBuy, 0.001, tt.entry, tt.stop, tt.tp)
			if a.Approved {
				t.Error("одобрение в аварийном режиме запрещено")
			}
		})
	}
}

func TestEmergencyCooldownExit(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)

	current := time.Now()
	m.now = func() time.Time { return current }

	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, floatPtr(-1500))
	if !m.IsEmergencyMode() {
		t.Fatal("ожидался аварийный режим")
	}

	// До истечения кулдауна режим сохраняется
	current = current.Add(30 * time.Minute)
	m.AssessTradeRisk("BTCUSDT", ActionBuy, 1, 100, 98, 104)
	if !m.IsEmergencyMode() {
		t.Error("кулдаун не истек, режим должен сохраняться")
	}

	// После кулдауна ленивый выход при следующей проверке
	current = current.Add(31 * time.Minute)
	m.AssessTradeRisk("BTCUSDT", ActionBuy, 1, 100, 98, 104)
	if m.IsEmergencyMode() {
		t.Error("после кулдауна режим должен сниматься")
	}
}

func TestPositionSizeMonotonicInRisk(t *testing.T) {
	risks := []float64{0.05, 0.04, 0.03, 0.02, 0.01, 0.005}
	prev := -1.0

	for i, r := range risks {
		cfg := defaultRiskConfig()
		cfg.MaxRiskPerTrade = r
		m := NewManager(cfg, 10000)

		calc := m.CalculatePositionSize(10000, 100, 98, "BTCUSDT", 0)
		if prev >= 0 && calc.RecommendedSize > prev {
			t.Errorf("шаг %d: размер %v вырос при снижении риска (был %v)", i, calc.RecommendedSize, prev)
		}
		prev = calc.RecommendedSize
	}
}

func TestPositionSizeCap(t *testing.T) {
	cfg := defaultRiskConfig()
	cfg.MaxRiskPerTrade = 0.5 // заведомо больше потолка
	m := NewManager(cfg, 10000)

	calc := m.CalculatePositionSize(10000, 100, 99.9, "BTCUSDT", 0)
	if calc.RecommendedSize > calc.MaxAllowedSize {
		t.Errorf("размер %v превышает потолок %v", calc.RecommendedSize, calc.MaxAllowedSize)
	}
	if calc.MaxAllowedSize != 10 { // 10% от 10000 при цене 100
		t.Errorf("maxAllowedSize = %v, want 10", calc.MaxAllowedSize)
	}
}

func TestPositionSizeZeroStopDistance(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)
	calc := m.CalculatePositionSize(10000, 100, 100, "BTCUSDT", 0)
	if calc.Approved {
		t.Error("нулевая дистанция до стопа не может давать одобрение")
	}
	if calc.RecommendedSize != 0 {
		t.Errorf("размер = %v, want 0", calc.RecommendedSize)
	}
}

func TestPositionSizeNeverNegative(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)
	tests := []struct {
		name        string
		entry, stop float64
		atr         float64
	}{
		{"wide stop", 100, 50, 0},
		{"high atr", 100, 98, 50},
		{"stop above entry", 100, 105, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := m.CalculatePositionSize(10000, tt.entry, tt.stop, "BTCUSDT", tt.atr)
			if calc.RecommendedSize < 0 {
				t.Errorf("отрицательный размер: %v", calc.RecommendedSize)
			}
		})
	}
}

func TestPositionSizeReasoningOrder(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)
	calc := m.CalculatePositionSize(10000, 100, 98, "BTCUSDT", 3)
	// риск, базовый размер, волатильность, корреляция, просадка
	if len(calc.Reasoning) < 5 {
		t.Fatalf("ожидалось минимум 5 строк объяснения, получено %d: %v", len(calc.Reasoning), calc.Reasoning)
	}
}

func TestCorrelationAdjustment(t *testing.T) {
	// Риск-бюджет заведомо ниже нотационального потолка, иначе
	// обе величины упираются в потолок и поправка не видна
	cfg := defaultRiskConfig()
	cfg.MaxRiskPerTrade = 0.001
	m := NewManager(cfg, 100000)

	base := m.CalculatePositionSize(100000, 100, 98, "BTCUSDT", 0)

	// Открытая позиция по ETHUSDT коррелирует с BTCUSDT (0.85 >= 0.7)
	m.UpdateAfterTrade("ETHUSDT", ActionBuy, 1, 3000, nil)
	adjusted := m.CalculatePositionSize(100000, 100, 98, "BTCUSDT", 0)

	if base.RecommendedSize >= base.MaxAllowedSize {
		t.Fatalf("базовый размер %v не должен упираться в потолок %v",
			base.RecommendedSize, base.MaxAllowedSize)
	}
	if adjusted.RecommendedSize >= base.RecommendedSize {
		t.Errorf("коррелированная позиция должна уменьшать размер: %v -> %v",
			base.RecommendedSize, adjusted.RecommendedSize)
	}
}

func TestOpenPositionLimitRestriction(t *testing.T) {
	cfg := defaultRiskConfig()
	cfg.MaxOpenPositions = 2
	m := NewManager(cfg, 1000000)

	m.UpdateAfterTrade("BTCUSDT", ActionBuy, 0.01, 100, nil)
	m.UpdateAfterTrade("ETHUSDT", ActionBuy, 0.01, 100, nil)

	a := m.AssessTradeRisk("SOLUSDT", ActionBuy, 0.01, 100, 98, 104)
	if a.Approved {
		t.Error("при достигнутом лимите позиций сделка должна отклоняться")
	}
	if len(a.Restrictions) == 0 {
		t.Error("ожидался жесткий запрет")
	}
}

func TestRiskRewardWarning(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)

	// R:R = 1.0 ниже минимума 1.5: предупреждение, но не запрет
	a := m.AssessTradeRisk("BTCUSDT", ActionBuy, 0.1, 100, 98, 102)
	if len(a.Warnings) == 0 {
		t.Error("ожидалось предупреждение о низком risk:reward")
	}
	if a.RiskScore < 15 {
		t.Errorf("riskScore = %v, want >= 15", a.RiskScore)
	}
}

func TestUpdateAfterTradeBookkeeping(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)

	m.UpdateAfterTrade("BTCUSDT", ActionBuy, 0.5, 100, nil)
	metrics := m.GetMetrics()
	if metrics.OpenPositions != 1 {
		t.Errorf("openPositions = %d, want 1", metrics.OpenPositions)
	}
	if metrics.TotalExposure != 50 {
		t.Errorf("totalExposure = %v, want 50", metrics.TotalExposure)
	}

	m.UpdateAfterTrade("BTCUSDT", ActionSell, 0.5, 100, floatPtr(25))
	metrics = m.GetMetrics()
	if metrics.OpenPositions != 0 {
		t.Errorf("openPositions = %d, want 0", metrics.OpenPositions)
	}
	if metrics.TotalExposure != 0 {
		t.Errorf("totalExposure = %v, want 0", metrics.TotalExposure)
	}
	if metrics.DailyPnL != 25 {
		t.Errorf("dailyPnL = %v, want 25", metrics.DailyPnL)
	}
	if metrics.AccountBalance != 10025 {
		t.Errorf("accountBalance = %v, want 10025", metrics.AccountBalance)
	}
	if metrics.CurrentDrawdown != 0 {
		t.Errorf("прибыль не должна углублять просадку: %v", metrics.CurrentDrawdown)
	}
}

func TestDrawdownIsRunningMinimum(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)

	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, floatPtr(-200))
	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, floatPtr(150))
	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, floatPtr(-100))

	metrics := m.GetMetrics()
	// Минимум кумулятивного дневного результата: -200
	if metrics.CurrentDrawdown != -200 {
		t.Errorf("currentDrawdown = %v, want -200", metrics.CurrentDrawdown)
	}
}

func TestDailyReset(t *testing.T) {
	m := NewManager(defaultRiskConfig(), 10000)

	current := time.Now()
	m.now = func() time.Time { return current }

	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, floatPtr(-300))
	if m.GetMetrics().DailyPnL != -300 {
		t.Fatalf("dailyPnL = %v, want -300", m.GetMetrics().DailyPnL)
	}

	current = current.Add(25 * time.Hour)
	m.UpdateAfterTrade("BTCUSDT", ActionSell, 1, 100, nil)

	metrics := m.GetMetrics()
	if metrics.DailyPnL != 0 {
		t.Errorf("dailyPnL после суточного сброса = %v, want 0", metrics.DailyPnL)
	}
	if metrics.CurrentDrawdown != 0 {
		t.Errorf("currentDrawdown после сброса = %v, want 0", metrics.CurrentDrawdown)
	}
}

func TestCorrelationLookup(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"BTCUSDT", "ETHUSDT", 0.85},
		{"ETHUSDT", "BTCUSDT", 0.85}, // симметрия
		{"BTCUSDT", "BTCUSDT", 1},
		{"BTCUSDT", "DOGEUSDT", 0},
	}
	for _, tt := range tests {
		if got := Correlation(tt.a, tt.b); got != tt.want {
			t.Errorf("Correlation(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
