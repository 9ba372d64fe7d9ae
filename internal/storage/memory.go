package storage

import (
	"context"
	"sync"

	"github.com/skalibog/ssbe/pkg/models"
)

// MemoryStorage реализует интерфейс Storage в памяти.
// Используется в тестах и при офлайн-прогонах без InfluxDB.
type MemoryStorage struct {
	mu      sync.RWMutex
	candles map[string][]*models.Candle // ключ: symbol/interval
	signals map[string][]*models.Signal // сначала свежие
	trades  []*models.Trade
	results []*models.BacktestResult
}

// NewMemoryStorage создает новое хранилище в памяти
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		candles: make(map[string][]*models.Candle),
		signals: make(map[string][]*models.Signal),
	}
}

// Close ничего не освобождает, нужен для интерфейса
func (s *MemoryStorage) Close() {}

func candleKey(symbol, interval string) string {
	return symbol + "/" + interval
}

// SaveCandle сохраняет свечу
func (s *MemoryStorage) SaveCandle(ctx context.Context, candle *models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := candleKey(candle.Symbol, candle.Interval)
	s.candles[key] = append(s.candles[key], candle)
	return nil
}

// SaveCandles сохраняет множество свечей
func (s *MemoryStorage) SaveCandles(ctx context.Context, candles []*models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candle := range candles {
		key := candleKey(candle.Symbol, candle.Interval)
		s.candles[key] = append(s.candles[key], candle)
	}
	return nil
}

// GetCandles возвращает последние limit свечей в хронологическом порядке
func (s *MemoryStorage) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.candles[candleKey(symbol, interval)]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*models.Candle, len(all))
	copy(out, all)
	return out, nil
}

// SaveSignal сохраняет сигнал в начало истории
func (s *MemoryStorage) SaveSignal(ctx context.Context, signal *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[signal.Symbol] = append([]*models.Signal{signal}, s.signals[signal.Symbol]...)
	return nil
}

// GetSignalHistory возвращает историю сигналов, сначала свежие
func (s *MemoryStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.signals[symbol]
	if len(history) > limit {
		history = history[:limit]
	}
	out := make([]*models.Signal, len(history))
	copy(out, history)
	return out, nil
}

// SaveTrade сохраняет сделку
func (s *MemoryStorage) SaveTrade(ctx context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

// Trades возвращает все сохраненные сделки
func (s *MemoryStorage) Trades() []*models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// SaveBacktestResult сохраняет сводку прогона
func (s *MemoryStorage) SaveBacktestResult(ctx context.Context, result *models.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}
