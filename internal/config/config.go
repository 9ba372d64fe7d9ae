package config

import (
	"io/ioutil"

	"github.com/skalibog/ssbe/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Signal   SignalConfig   `yaml:"signal"`
	Risk     RiskConfig     `yaml:"risk"`
	Backtest BacktestConfig `yaml:"backtest"`
	Storage  StorageConfig  `yaml:"storage"`
	UI       UIConfig       `yaml:"ui"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TradingConfig содержит настройки торговли
type TradingConfig struct {
	Symbols     []string `yaml:"symbols"`
	Interval    string   `yaml:"interval"`
	HistorySize int      `yaml:"history_size"` // размер скользящего окна свечей
}

// SignalConfig содержит настройки генератора сигналов (конфлюэнс)
type SignalConfig struct {
	RSIPeriod    int     `yaml:"rsi_period"`
	MACDFast     int     `yaml:"macd_fast"`
	MACDSlow     int     `yaml:"macd_slow"`
	MACDSignal   int     `yaml:"macd_signal"`
	EMAFast      int     `yaml:"ema_fast"`
	EMASlow      int     `yaml:"ema_slow"`
	ADXPeriod    int     `yaml:"adx_period"`
	ADXThreshold float64 `yaml:"adx_threshold"`
	MinHistory   int     `yaml:"min_history"`
}

// RiskConfig содержит лимиты риск-менеджмента
type RiskConfig struct {
	MaxRiskPerTrade       float64 `yaml:"max_risk_per_trade"`
	MaxDailyDrawdown      float64 `yaml:"max_daily_drawdown"`
	MaxOpenPositions      int     `yaml:"max_open_positions"`
	MaxCorrelatedPosition int     `yaml:"max_correlated_positions"`
	MinRiskReward         float64 `yaml:"min_risk_reward"`
	MaxLeverage           float64 `yaml:"max_leverage"`
	EmergencyStopLoss     float64 `yaml:"emergency_stop_loss"`
	CooldownMinutes       int     `yaml:"cooldown_minutes"`
}

// BacktestConfig содержит настройки бэктеста
type BacktestConfig struct {
	InitialBalance  float64           `yaml:"initial_balance"`
	PositionSizePct float64           `yaml:"position_size_pct"`
	StopLossPct     float64           `yaml:"stop_loss_pct"`
	TakeProfitPct   float64           `yaml:"take_profit_pct"`
	MaxDrawdownPct  float64           `yaml:"max_drawdown_pct"`
	CommissionPct   float64           `yaml:"commission_pct"`
	Indicators      []IndicatorConfig `yaml:"indicators"`
	Rules           []RuleConfig      `yaml:"rules"`
	ExportPath      string            `yaml:"export_path"`
	CandleLimit     int               `yaml:"candle_limit"`
}

// IndicatorConfig описывает один индикатор стратегии
type IndicatorConfig struct {
	Name    string  `yaml:"name"` // ключ серии, например "rsi"
	Type    string  `yaml:"type"` // sma, ema, rsi, macd, bollinger, stochastic, adx, atr
	Period  int     `yaml:"period"`
	Fast    int     `yaml:"fast"`
	Slow    int     `yaml:"slow"`
	Signal  int     `yaml:"signal"`
	StdDev  float64 `yaml:"std_dev"`
	DPeriod int     `yaml:"d_period"`
	Enabled bool    `yaml:"enabled"`
}

// RuleConfig описывает одно правило стратегии
type RuleConfig struct {
	ID         string            `yaml:"id"`
	Category   string            `yaml:"category"`  // entry, exit, filter
	Direction  string            `yaml:"direction"` // long, short
	Enabled    bool              `yaml:"enabled"`
	Weight     float64           `yaml:"weight"`
	Conditions []ConditionConfig `yaml:"conditions"`
}

// ConditionConfig описывает одно условие правила
type ConditionConfig struct {
	Indicator string  `yaml:"indicator"`
	Operator  string  `yaml:"operator"` // >, <, =, cross_above, cross_below
	Value     float64 `yaml:"value"`
	Compare   string  `yaml:"compare"` // ключ другого индикатора вместо значения
	Logic     string  `yaml:"logic"`   // and, or — связка с предыдущим условием
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	RefreshRate int `yaml:"refresh_rate_ms"`
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		logger.Fatal("Ошибка чтения файла конфигурации", zap.Error(err))
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		logger.Fatal("Ошибка разбора файла конфигурации", zap.Error(err))
	}

	config.applyDefaults()

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("config", config))
	logger.Info("Загружена конфигурация", zap.Any("Symbols", config.Trading.Symbols))
	return &config, nil
}

// applyDefaults выставляет значения по умолчанию для незаполненных полей
func (c *Config) applyDefaults() {
	if c.Trading.HistorySize <= 0 {
		c.Trading.HistorySize = 500
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = "1m"
	}

	if c.Signal.RSIPeriod <= 0 {
		c.Signal.RSIPeriod = 14
	}
	if c.Signal.MACDFast <= 0 {
		c.Signal.MACDFast = 12
	}
	if c.Signal.MACDSlow <= 0 {
		c.Signal.MACDSlow = 26
	}
	if c.Signal.MACDSignal <= 0 {
		c.Signal.MACDSignal = 9
	}
	if c.Signal.EMAFast <= 0 {
		c.Signal.EMAFast = 9
	}
	if c.Signal.EMASlow <= 0 {
		c.Signal.EMASlow = 21
	}
	if c.Signal.ADXPeriod <= 0 {
		c.Signal.ADXPeriod = 14
	}
	if c.Signal.ADXThreshold <= 0 {
		c.Signal.ADXThreshold = 25
	}
	if c.Signal.MinHistory <= 0 {
		c.Signal.MinHistory = 50
	}

	if c.Risk.MaxRiskPerTrade <= 0 {
		c.Risk.MaxRiskPerTrade = 0.02
	}
	if c.Risk.MaxDailyDrawdown <= 0 {
		c.Risk.MaxDailyDrawdown = 0.05
	}
	if c.Risk.MaxOpenPositions <= 0 {
		c.Risk.MaxOpenPositions = 5
	}
	if c.Risk.MaxCorrelatedPosition <= 0 {
		c.Risk.MaxCorrelatedPosition = 2
	}
	if c.Risk.MinRiskReward <= 0 {
		c.Risk.MinRiskReward = 1.5
	}
	if c.Risk.MaxLeverage <= 0 {
		c.Risk.MaxLeverage = 3
	}
	if c.Risk.EmergencyStopLoss <= 0 {
		c.Risk.EmergencyStopLoss = 0.10
	}
	if c.Risk.CooldownMinutes <= 0 {
		c.Risk.CooldownMinutes = 60
	}

	if c.Backtest.InitialBalance <= 0 {
		c.Backtest.InitialBalance = 10000
	}
	if c.Backtest.PositionSizePct <= 0 {
		c.Backtest.PositionSizePct = 0.10
	}
	if c.Backtest.StopLossPct <= 0 {
		c.Backtest.StopLossPct = 0.02
	}
	if c.Backtest.TakeProfitPct <= 0 {
		c.Backtest.TakeProfitPct = 0.04
	}
	if c.Backtest.MaxDrawdownPct <= 0 {
		c.Backtest.MaxDrawdownPct = 0.25
	}
	if c.Backtest.CandleLimit <= 0 {
		c.Backtest.CandleLimit = 1000
	}

	if c.UI.RefreshRate <= 0 {
		c.UI.RefreshRate = 1000
	}
}
